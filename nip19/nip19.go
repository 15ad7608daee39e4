// Package nip19 adapts zpay32's tagged bech32 encoding (originally built
// for Lightning invoices) to the much simpler job of rendering raw ids and
// pubkeys as bech32 strings for logs and CLI display. It never touches the
// wire format: events on the relay always carry raw hex (spec.md §6).
package nip19

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/smartvaults/svengine/ids"
)

const (
	hrpPubKey  = "npub"
	hrpEventID = "nevent"
	hrpVaultID = "nvault"
)

func encode(hrp string, data []byte) (string, error) {
	conv, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("nip19: convert bits: %w", err)
	}
	s, err := bech32.Encode(hrp, conv)
	if err != nil {
		return "", fmt.Errorf("nip19: encode: %w", err)
	}
	return s, nil
}

func decode(expectedHRP, bech string) ([]byte, error) {
	hrp, conv, err := bech32.Decode(bech)
	if err != nil {
		return nil, fmt.Errorf("nip19: decode: %w", err)
	}
	if hrp != expectedHRP {
		return nil, fmt.Errorf("nip19: expected hrp %q, got %q", expectedHRP, hrp)
	}
	data, err := bech32.ConvertBits(conv, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("nip19: convert bits: %w", err)
	}
	return data, nil
}

// EncodePubKey renders a participant identity as npub1....
func EncodePubKey(pk ids.PubKey) (string, error) {
	return encode(hrpPubKey, pk.Bytes())
}

// DecodePubKey parses an npub1... string back into a PubKey.
func DecodePubKey(s string) (ids.PubKey, error) {
	var pk ids.PubKey
	data, err := decode(hrpPubKey, s)
	if err != nil {
		return pk, err
	}
	if len(data) != len(pk) {
		return pk, fmt.Errorf("nip19: npub payload has wrong length %d", len(data))
	}
	copy(pk[:], data)
	return pk, nil
}

// EncodeEventID renders an event id as nevent1....
func EncodeEventID(id ids.EventID) (string, error) {
	return encode(hrpEventID, id.Bytes())
}

// DecodeEventID parses an nevent1... string back into an EventID.
func DecodeEventID(s string) (ids.EventID, error) {
	var id ids.EventID
	data, err := decode(hrpEventID, s)
	if err != nil {
		return id, err
	}
	if len(data) != len(id) {
		return id, fmt.Errorf("nip19: nevent payload has wrong length %d", len(data))
	}
	copy(id[:], data)
	return id, nil
}

// EncodeVaultID renders a vault id as nvault1..., purely to make logs more
// legible than an undifferentiated nevent1... string would be.
func EncodeVaultID(id ids.VaultID) (string, error) {
	return encode(hrpVaultID, id.Bytes())
}

// DecodeVaultID parses an nvault1... string back into a VaultID.
func DecodeVaultID(s string) (ids.VaultID, error) {
	var id ids.VaultID
	data, err := decode(hrpVaultID, s)
	if err != nil {
		return id, err
	}
	if len(data) != len(id) {
		return id, fmt.Errorf("nip19: nvault payload has wrong length %d", len(data))
	}
	copy(id[:], data)
	return id, nil
}
