// Package cryptutil implements the symmetric and asymmetric primitives the
// Event Codec (protocol package) uses: ECDH + HKDF to derive a pairwise
// secret for the shared-key/shared-signer envelopes, and ChaCha20-Poly1305
// AEAD to encrypt vault-scoped payloads under the vault's shared key.
package cryptutil

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// SharedKey is a per-vault symmetric key (spec.md's "Shared key" entity).
type SharedKey [32]byte

// GenerateSharedKey returns a fresh random shared key for a new vault.
func GenerateSharedKey() (SharedKey, error) {
	var k SharedKey
	if _, err := io.ReadFull(rand.Reader, k[:]); err != nil {
		return k, fmt.Errorf("cryptutil: generate shared key: %w", err)
	}
	return k, nil
}

// EncryptSymmetric seals plaintext under key, returning nonce||ciphertext.
func EncryptSymmetric(key SharedKey, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptutil: new aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cryptutil: nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// DecryptSymmetric opens a nonce||ciphertext blob produced by
// EncryptSymmetric.
func DecryptSymmetric(key SharedKey, blob []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptutil: new aead: %w", err)
	}
	ns := aead.NonceSize()
	if len(blob) < ns {
		return nil, fmt.Errorf("cryptutil: ciphertext too short")
	}
	nonce, ct := blob[:ns], blob[ns:]
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("cryptutil: decrypt: %w", err)
	}
	return pt, nil
}

// ECDH computes the x-only ECDH shared secret between priv and an x-only
// public key, matching the asymmetric scheme used for shared-key and
// shared-signer envelopes (spec.md §4.C): the secret is derived from the
// shared point's x-coordinate only, then run through HKDF before use as an
// AEAD key.
func ECDH(priv *btcec.PrivateKey, pub *btcec.PublicKey) [32]byte {
	var point btcec.JacobianPoint
	pub.AsJacobian(&point)

	var result btcec.JacobianPoint
	btcec.ScalarMultNonConst(&priv.Key, &point, &result)
	result.ToAffine()

	return sha256.Sum256(result.X.Bytes()[:])
}

// DeriveAEADKey runs HKDF-SHA256 over an ECDH secret with a fixed info
// string, producing the key used by EncryptSymmetric/DecryptSymmetric for
// participant-to-participant envelopes.
func DeriveAEADKey(secret [32]byte, info string) (SharedKey, error) {
	var key SharedKey
	r := hkdf.New(sha256.New, secret[:], nil, []byte(info))
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return key, fmt.Errorf("cryptutil: hkdf: %w", err)
	}
	return key, nil
}

// EncryptAsymmetric encrypts plaintext from sender to recipient using an
// ECDH+HKDF derived key. Used for shared-key and shared-signer events,
// which are addressed to exactly one recipient (spec.md §4.C).
func EncryptAsymmetric(sender *btcec.PrivateKey, recipient *btcec.PublicKey, info string, plaintext []byte) ([]byte, error) {
	secret := ECDH(sender, recipient)
	key, err := DeriveAEADKey(secret, info)
	if err != nil {
		return nil, err
	}
	return EncryptSymmetric(key, plaintext)
}

// DecryptAsymmetric is the receiving side of EncryptAsymmetric: recipient
// decrypts a blob encrypted to them by sender's public key.
func DecryptAsymmetric(recipient *btcec.PrivateKey, sender *btcec.PublicKey, info string, blob []byte) ([]byte, error) {
	secret := ECDH(recipient, sender)
	key, err := DeriveAEADKey(secret, info)
	if err != nil {
		return nil, err
	}
	return DecryptSymmetric(key, blob)
}

// SigningKeyFromShared derives the keypair every vault participant uses to
// sign vault/proposal/completion/label events "by the shared key" (spec.md
// §4.C): since every participant who knows the shared key must be able to
// reproduce the same signature-capable identity, the signing scalar is
// derived deterministically from the shared secret via HKDF, the same
// construction DeriveAEADKey uses for the encryption side.
func SigningKeyFromShared(key SharedKey) (*btcec.PrivateKey, error) {
	derived, err := DeriveAEADKey([32]byte(key), "smartvaults/shared-key-signing")
	if err != nil {
		return nil, err
	}
	return btcec.PrivKeyFromBytes(derived[:]), nil
}

// Sha256Truncated32 implements spec.md §3's label identifier construction:
// truncate32(sha256(data)) returns the first 16 bytes of the sha256 digest,
// hex-encodeable to a 32-character identifier (hence the name: 32 hex
// characters, 16 bytes).
func Sha256Truncated32(data []byte) [16]byte {
	full := sha256.Sum256(data)
	var out [16]byte
	copy(out[:], full[:16])
	return out
}
