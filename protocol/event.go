// Package protocol implements the Event Codec (spec.md §4.C): the relay
// wire format (spec.md §6), the kind/tag vocabulary, and the per-action
// event builders and decoders.
package protocol

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/smartvaults/svengine/ids"
)

// Kind is the stable integer identifying a protocol action, per spec.md §6.
type Kind int

const (
	KindVault              Kind = 31000
	KindProposal           Kind = 31001
	KindApprovedProposal   Kind = 31002
	KindCompletedProposal  Kind = 31003
	KindSharedKey          Kind = 31004
	KindSigner             Kind = 31005
	KindSharedSigner       Kind = 31006
	KindLabel              Kind = 31007
	KindKeyAgentSignaling  Kind = 31008
	KindKeyAgentSignerOffr Kind = 31009
	KindKeyAgentVerified   Kind = 31010

	// Standard kinds, reused as-is from the wider relay protocol.
	KindMetadata      Kind = 0
	KindContactList   Kind = 3
	KindDirectMessage Kind = 4
	KindDeletion      Kind = 5
	KindNostrConnect  Kind = 24133
)

// Tag is a single tag entry on a signed event: `["e", id]`, `["p", pubkey]`,
// `["d", identifier]`, `["expiration", unixSeconds]`.
type Tag []string

const (
	TagEvent      = "e"
	TagPubKey     = "p"
	TagIdentifier = "d"
	TagExpiration = "expiration"
)

// EventTag builds an `e` tag referencing id.
func EventTag(id ids.EventID) Tag { return Tag{TagEvent, id.String()} }

// PubKeyTag builds a `p` tag referencing pk.
func PubKeyTag(pk ids.PubKey) Tag { return Tag{TagPubKey, pk.String()} }

// IdentifierTag builds a `d` tag carrying a replaceable-event identifier.
func IdentifierTag(identifier string) Tag { return Tag{TagIdentifier, identifier} }

// ExpirationTag builds an `expiration` tag carrying a unix timestamp.
func ExpirationTag(t time.Time) Tag {
	return Tag{TagExpiration, fmt.Sprintf("%d", t.Unix())}
}

// Event is a signed relay event, per spec.md §6's wire format.
type Event struct {
	ID        ids.EventID `json:"id"`
	PubKey    ids.PubKey  `json:"pubkey"`
	CreatedAt int64       `json:"created_at"`
	Kind      Kind        `json:"kind"`
	Tags      []Tag       `json:"tags"`
	Content   string      `json:"content"`
	Sig       [64]byte    `json:"-"`
}

// serializable is the canonical tuple hashed to produce an event id,
// following the nostr NIP-01 canonicalization shape: a JSON array of
// [0, pubkey, created_at, kind, tags, content].
func (e *Event) serializable() []byte {
	arr := []interface{}{
		0,
		e.PubKey.String(),
		e.CreatedAt,
		int(e.Kind),
		e.Tags,
		e.Content,
	}
	raw, _ := json.Marshal(arr)
	return raw
}

// ComputeID derives the content-hash id of the event from its canonical
// serialization.
func (e *Event) ComputeID() ids.EventID {
	return sha256.Sum256(e.serializable())
}

// Sign finalizes id/sig using priv, whose x-only pubkey must equal e.PubKey.
func (e *Event) Sign(priv *btcec.PrivateKey) error {
	e.ID = e.ComputeID()
	sig, err := schnorr.Sign(priv, e.ID[:])
	if err != nil {
		return fmt.Errorf("protocol: sign event: %w", err)
	}
	copy(e.Sig[:], sig.Serialize())
	return nil
}

// Verify checks that e.ID matches its content and that e.Sig is a valid
// schnorr signature over e.ID by e.PubKey. Malformed or unauthorized events
// must be tolerated, never panicked on (spec.md §1 Non-goals) — Verify
// always returns a plain bool plus an explanatory error, never panics.
func (e *Event) Verify() (bool, error) {
	want := e.ComputeID()
	if want != e.ID {
		return false, fmt.Errorf("protocol: id mismatch")
	}
	pub, err := schnorr.ParsePubKey(e.PubKey[:])
	if err != nil {
		return false, fmt.Errorf("protocol: invalid pubkey: %w", err)
	}
	sig, err := schnorr.ParseSignature(e.Sig[:])
	if err != nil {
		return false, fmt.Errorf("protocol: invalid signature: %w", err)
	}
	return sig.Verify(e.ID[:], pub), nil
}

// Tags helpers -----------------------------------------------------------

// EventIDs returns every referenced event id carried in `e` tags.
func (e *Event) EventIDs() []ids.EventID {
	var out []ids.EventID
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == TagEvent {
			if id, err := ids.EventIDFromHex(t[1]); err == nil {
				out = append(out, id)
			}
		}
	}
	return out
}

// PubKeys returns every referenced pubkey carried in `p` tags.
func (e *Event) PubKeys() []ids.PubKey {
	var out []ids.PubKey
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == TagPubKey {
			if pk, err := ids.PubKeyFromHex(t[1]); err == nil {
				out = append(out, pk)
			}
		}
	}
	return out
}

// Identifier returns the `d` tag value, if any, and whether it was present.
func (e *Event) Identifier() (string, bool) {
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == TagIdentifier {
			return t[1], true
		}
	}
	return "", false
}

// Expiration returns the `expiration` tag value as a time.Time, if present.
func (e *Event) Expiration() (time.Time, bool) {
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == TagExpiration {
			var sec int64
			if _, err := fmt.Sscanf(t[1], "%d", &sec); err == nil {
				return time.Unix(sec, 0), true
			}
		}
	}
	return time.Time{}, false
}

// sortTagsStable returns a copy of tags in a deterministic order; nothing
// in the module calls it. The wire format itself preserves
// builder-assigned order.
func sortTagsStable(tags []Tag) []Tag {
	out := make([]Tag, len(tags))
	copy(out, tags)
	sort.SliceStable(out, func(i, j int) bool {
		return fmt.Sprint(out[i]) < fmt.Sprint(out[j])
	})
	return out
}

// u64le encodes v as 8 little-endian bytes; nothing in the module calls
// it.
func u64le(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}
