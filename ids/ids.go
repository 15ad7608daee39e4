// Package ids defines the raw identifier types shared across the engine:
// 32-byte event/vault ids and x-only public keys for participant identities.
package ids

import (
	"encoding/hex"
	"fmt"
)

// EventID is the content hash of a signed relay event. Every protocol
// object (vault, proposal, approval, completion, label, ...) is identified
// by the id of the event that introduced it.
type EventID [32]byte

// VaultID aliases EventID: a vault is keyed internally by the id of the
// vault-creation event.
type VaultID = EventID

// PubKey is a 32-byte x-only public key identifying a participant.
type PubKey [32]byte

// ZeroEventID is the zero value, never a valid id.
var ZeroEventID EventID

// String renders the id as lowercase hex.
func (id EventID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero value.
func (id EventID) IsZero() bool {
	return id == ZeroEventID
}

// EventIDFromHex decodes a 64-character hex string into an EventID.
func EventIDFromHex(s string) (EventID, error) {
	var id EventID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("ids: invalid event id hex: %w", err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("ids: event id must be %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// String renders the pubkey as lowercase hex.
func (pk PubKey) String() string {
	return hex.EncodeToString(pk[:])
}

// PubKeyFromHex decodes a 64-character hex string into a PubKey.
func PubKeyFromHex(s string) (PubKey, error) {
	var pk PubKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return pk, fmt.Errorf("ids: invalid pubkey hex: %w", err)
	}
	if len(b) != len(pk) {
		return pk, fmt.Errorf("ids: pubkey must be %d bytes, got %d", len(pk), len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// Bytes returns a copy of the underlying bytes.
func (id EventID) Bytes() []byte {
	out := make([]byte, len(id))
	copy(out, id[:])
	return out
}

// Bytes returns a copy of the underlying bytes.
func (pk PubKey) Bytes() []byte {
	out := make([]byte, len(pk))
	copy(out, pk[:])
	return out
}
