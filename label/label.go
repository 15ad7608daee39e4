// Package label implements the Label entity (spec.md §3) and its
// deterministic identifier derivation, which lets independent participants
// converge on the same identifier for the same annotation without ever
// comparing plaintext off the relay.
package label

import (
	"encoding/hex"
	"fmt"

	"github.com/smartvaults/svengine/cryptutil"
	"github.com/smartvaults/svengine/ids"
)

// Kind tags what a Label annotates.
type Kind int

const (
	KindAddress Kind = iota + 1
	KindUTXO
	KindTxID
)

// Data is the tagged payload a Label annotates: an address, a UTXO
// outpoint ("txid:vout"), or a txid.
type Data struct {
	Kind  Kind
	Value string
}

// String renders the canonical textual form hashed into the identifier.
func (d Data) String() string {
	return d.Value
}

// Label is a free-text annotation scoped to a vault.
type Label struct {
	VaultID ids.VaultID
	Data    Data
	Text    string
}

// Identifier computes spec.md §3/§8's deterministic label identifier:
//
//	identifier(label, k) = truncate32(sha256(k_secret ":" data(label)))
//
// secretHex is the vault shared key's secret rendered as lowercase hex, the
// same string the reference scenarios in spec.md §8 use.
func Identifier(secretHex string, data Data) string {
	sum := cryptutil.Sha256Truncated32([]byte(secretHex + ":" + data.String()))
	return hex.EncodeToString(sum[:])
}

// IdentifierForKey computes the identifier directly from a SharedKey,
// rendering it as hex the way the protocol's on-disk/on-wire form does.
func IdentifierForKey(key cryptutil.SharedKey, data Data) string {
	return Identifier(hex.EncodeToString(key[:]), data)
}

// ParseKind maps a textual label kind back to its Kind value, used when
// decoding a serialized label payload.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "address":
		return KindAddress, nil
	case "utxo":
		return KindUTXO, nil
	case "txid":
		return KindTxID, nil
	default:
		return 0, fmt.Errorf("label: unknown kind %q", s)
	}
}

// String renders the Kind's wire name.
func (k Kind) String() string {
	switch k {
	case KindAddress:
		return "address"
	case KindUTXO:
		return "utxo"
	case KindTxID:
		return "txid"
	default:
		return "unknown"
	}
}
