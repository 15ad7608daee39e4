// Package keystore implements the Keystore external collaborator
// (spec.md §1, §6): "load/save mnemonic, derive nostr identity keys,
// derive Bitcoin signing keys" — password handling and seed storage are
// this package's job, kept out of the core engine entirely.
package keystore

import "github.com/btcsuite/btcd/btcec/v2"

// Keystore is the interface cmd/svcli uses to store the mnemonic and to
// derive the nostr identity key and Bitcoin signing key it hands to the
// Action API; the Action API itself takes those keys, not a Keystore.
type Keystore interface {
	// SaveMnemonic encrypts mnemonic under passphrase and persists it.
	SaveMnemonic(mnemonic, passphrase string) error

	// LoadMnemonic decrypts and returns the stored mnemonic.
	LoadMnemonic(passphrase string) (string, error)

	// DeriveIdentity returns the nostr identity keypair derived from
	// mnemonic, the key every protocol event is ultimately signed or
	// addressed by.
	DeriveIdentity(mnemonic string) (*btcec.PrivateKey, error)

	// DeriveSigningKey returns the Bitcoin signing key at account, the
	// key a vault descriptor's participant leaf resolves to.
	DeriveSigningKey(mnemonic string, account uint32) (*btcec.PrivateKey, error)
}
