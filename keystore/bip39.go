package keystore

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/scrypt"

	"github.com/smartvaults/svengine/cryptutil"
	"github.com/smartvaults/svengine/errs"
)

// nostrIdentityPath is the NIP-06 derivation path nostr clients use for a
// mnemonic-derived identity key: m/44'/1237'/0'/0/0.
var nostrIdentityPath = []uint32{44, 1237, 0, 0, 0}

// bitcoinSigningPurpose/coinType fix a BIP-86 taproot path:
// m/86'/0'/account'/0/0, grounded on the pack's own BIP84/BIP86 derivation
// helper (see djschnei21-vault-plugin-btc/wallet/keys.go) generalized from
// a fixed account-0 wallet key to the per-account signing key a vault
// participant needs.
const (
	bitcoinSigningPurpose = 86
	bitcoinSigningCoin    = 0
)

// scryptN/R/P are the interactive-login parameters recommended by RFC 7914
// for passphrase-derived keys.
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

type encryptedMnemonicFile struct {
	Salt       string `json:"salt"`
	Ciphertext string `json:"ciphertext"`
}

// FileKeystore is a bip39-mnemonic-backed Keystore persisted as a single
// passphrase-encrypted file.
type FileKeystore struct {
	path string
}

// NewFileKeystore returns a FileKeystore that reads/writes path.
func NewFileKeystore(path string) *FileKeystore {
	return &FileKeystore{path: path}
}

// NewMnemonic generates a fresh 24-word (256-bit entropy) mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", errs.Cryptof("generate entropy", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", errs.Cryptof("generate mnemonic", err)
	}
	return mnemonic, nil
}

func passphraseKey(passphrase string, salt []byte) (cryptutil.SharedKey, error) {
	var key cryptutil.SharedKey
	derived, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, 32)
	if err != nil {
		return key, errs.Cryptof("derive passphrase key", err)
	}
	copy(key[:], derived)
	return key, nil
}

// SaveMnemonic implements Keystore.
func (k *FileKeystore) SaveMnemonic(mnemonic, passphrase string) error {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return errs.Cryptof("generate salt", err)
	}
	key, err := passphraseKey(passphrase, salt)
	if err != nil {
		return err
	}
	ciphertext, err := cryptutil.EncryptSymmetric(key, []byte(mnemonic))
	if err != nil {
		return errs.Cryptof("encrypt mnemonic", err)
	}
	blob, err := json.Marshal(encryptedMnemonicFile{
		Salt:       hex.EncodeToString(salt),
		Ciphertext: hex.EncodeToString(ciphertext),
	})
	if err != nil {
		return errs.Cryptof("encode mnemonic file", err)
	}
	if err := os.MkdirAll(filepath.Dir(k.path), 0o700); err != nil {
		return errs.External("create keystore directory", err)
	}
	if err := os.WriteFile(k.path, blob, 0o600); err != nil {
		return errs.External("write keystore file", err)
	}
	return nil
}

// LoadMnemonic implements Keystore.
func (k *FileKeystore) LoadMnemonic(passphrase string) (string, error) {
	raw, err := os.ReadFile(k.path)
	if err != nil {
		return "", errs.External("read keystore file", err)
	}
	var f encryptedMnemonicFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", errs.Cryptof("decode mnemonic file", err)
	}
	salt, err := hex.DecodeString(f.Salt)
	if err != nil {
		return "", errs.Cryptof("decode salt", err)
	}
	ciphertext, err := hex.DecodeString(f.Ciphertext)
	if err != nil {
		return "", errs.Cryptof("decode ciphertext", err)
	}
	key, err := passphraseKey(passphrase, salt)
	if err != nil {
		return "", err
	}
	plaintext, err := cryptutil.DecryptSymmetric(key, ciphertext)
	if err != nil {
		return "", errs.Cryptof("decrypt mnemonic: wrong passphrase?", err)
	}
	return string(plaintext), nil
}

// DeriveIdentity implements Keystore.
func (k *FileKeystore) DeriveIdentity(mnemonic string) (*btcec.PrivateKey, error) {
	seed := bip39.NewSeed(mnemonic, "")
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, errs.Cryptof("derive master key", err)
	}
	return derivePath(master, nostrIdentityPath)
}

// DeriveSigningKey implements Keystore.
func (k *FileKeystore) DeriveSigningKey(mnemonic string, account uint32) (*btcec.PrivateKey, error) {
	seed := bip39.NewSeed(mnemonic, "")
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, errs.Cryptof("derive master key", err)
	}
	path := []uint32{bitcoinSigningPurpose, bitcoinSigningCoin, account, 0, 0}
	return derivePath(master, path)
}

// derivePath walks a BIP32 path whose first three levels (purpose, coin
// type, account) are hardened and whose remaining levels are not, and
// returns the leaf's EC private key, the same Derive-chaining shape the
// pack's own BIP84/BIP86 helper uses one level at a time.
func derivePath(master *hdkeychain.ExtendedKey, path []uint32) (*btcec.PrivateKey, error) {
	key := master
	for i, idx := range path {
		if i < 3 {
			idx += hdkeychain.HardenedKeyStart
		}
		next, err := key.Derive(idx)
		if err != nil {
			return nil, errs.Cryptof("derive child key", err)
		}
		key = next
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, errs.Cryptof("extract ec private key", err)
	}
	return priv, nil
}
