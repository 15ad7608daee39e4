package protocol

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/smartvaults/svengine/cryptutil"
	"github.com/smartvaults/svengine/ids"
)

// Decoder selects the decryption key for an inbound event by its kind, per
// spec.md §4.C's inbound decoding table.
type Decoder struct{}

// NewDecoder returns a stateless Decoder.
func NewDecoder() *Decoder { return &Decoder{} }

// DecryptSharedKeyEvent decrypts a KindSharedKey event addressed to us.
func (d *Decoder) DecryptSharedKeyEvent(ev *Event, ourPriv *btcec.PrivateKey) (cryptutil.SharedKey, error) {
	var key cryptutil.SharedKey
	if ev.Kind != KindSharedKey {
		return key, fmt.Errorf("protocol: not a shared-key event")
	}
	authorPub, err := schnorrToPubKey(ev.PubKey)
	if err != nil {
		return key, err
	}
	plaintext, err := cryptutil.DecryptAsymmetric(ourPriv, authorPub, "smartvaults/shared-key", []byte(ev.Content))
	if err != nil {
		return key, err
	}
	if len(plaintext) != len(key) {
		return key, fmt.Errorf("protocol: decrypted shared key has wrong length %d", len(plaintext))
	}
	copy(key[:], plaintext)
	return key, nil
}

// DecryptVaultScoped decrypts a Vault/Proposal/Approval/Completion/Label
// event under the vault's shared key.
func (d *Decoder) DecryptVaultScoped(ev *Event, key cryptutil.SharedKey) ([]byte, error) {
	switch ev.Kind {
	case KindVault, KindProposal, KindApprovedProposal, KindCompletedProposal, KindLabel:
	default:
		return nil, fmt.Errorf("protocol: kind %d is not vault-scoped", ev.Kind)
	}
	return cryptutil.DecryptSymmetric(key, []byte(ev.Content))
}

// DecryptSignerSelf decrypts a self-authored KindSigner event.
func (d *Decoder) DecryptSignerSelf(ev *Event, ourPriv *btcec.PrivateKey) ([]byte, error) {
	if ev.Kind != KindSigner {
		return nil, fmt.Errorf("protocol: not a signer event")
	}
	return cryptutil.DecryptAsymmetric(ourPriv, ourPriv.PubKey(), "smartvaults/signer-self", []byte(ev.Content))
}

// DecryptSharedSigner decrypts a KindSharedSigner event sent to us by
// another participant.
func (d *Decoder) DecryptSharedSigner(ev *Event, ourPriv *btcec.PrivateKey) ([]byte, error) {
	if ev.Kind != KindSharedSigner {
		return nil, fmt.Errorf("protocol: not a shared-signer event")
	}
	authorPub, err := schnorrToPubKey(ev.PubKey)
	if err != nil {
		return nil, err
	}
	return cryptutil.DecryptAsymmetric(ourPriv, authorPub, "smartvaults/shared-signer", []byte(ev.Content))
}

// DecryptNostrConnect decrypts an inbound KindNostrConnect request
// addressed to us by an app pubkey with an open session.
func (d *Decoder) DecryptNostrConnect(ev *Event, ourPriv *btcec.PrivateKey) ([]byte, error) {
	if ev.Kind != KindNostrConnect {
		return nil, fmt.Errorf("protocol: not a nostr-connect event")
	}
	authorPub, err := schnorrToPubKey(ev.PubKey)
	if err != nil {
		return nil, err
	}
	return cryptutil.DecryptAsymmetric(ourPriv, authorPub, "smartvaults/nostr-connect", []byte(ev.Content))
}

// DecryptDirectMessage decrypts a KindDirectMessage event addressed to us.
func (d *Decoder) DecryptDirectMessage(ev *Event, ourPriv *btcec.PrivateKey) (string, error) {
	if ev.Kind != KindDirectMessage {
		return "", fmt.Errorf("protocol: not a direct-message event")
	}
	authorPub, err := schnorrToPubKey(ev.PubKey)
	if err != nil {
		return "", err
	}
	plaintext, err := cryptutil.DecryptAsymmetric(ourPriv, authorPub, "smartvaults/direct-message", []byte(ev.Content))
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// ParsePubKey parses an x-only PubKey into its full curve point, the form
// every ECDH-based helper needs.
func ParsePubKey(pk ids.PubKey) (*btcec.PublicKey, error) {
	return schnorrToPubKey(pk)
}

func schnorrToPubKey(pk ids.PubKey) (*btcec.PublicKey, error) {
	// x-only pubkeys have two possible full points; ParsePubKey from the
	// schnorr package always normalizes to the even-y point, which is the
	// canonical convention this protocol follows for ECDH as well.
	full := make([]byte, 33)
	full[0] = 0x02
	copy(full[1:], pk[:])
	return btcec.ParsePubKey(full)
}

// PubKeyFromPrivate returns the x-only identity that corresponds to priv,
// the inverse of schnorrToPubKey.
func PubKeyFromPrivate(priv *btcec.PrivateKey) ids.PubKey {
	var pk ids.PubKey
	copy(pk[:], schnorr.SerializePubKey(priv.PubKey()))
	return pk
}
