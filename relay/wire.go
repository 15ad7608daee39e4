package relay

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/smartvaults/svengine/ids"
	"github.com/smartvaults/svengine/protocol"
)

// wireEvent is the JSON shape of a signed event on the wire (spec.md §6):
// {id, pubkey, created_at, kind, tags, content, sig}. protocol.Event itself
// omits Sig from its JSON tags since ComputeID must hash a tuple without it;
// the wire form adds it back as hex.
type wireEvent struct {
	ID        string          `json:"id"`
	PubKey    string          `json:"pubkey"`
	CreatedAt int64           `json:"created_at"`
	Kind      int             `json:"kind"`
	Tags      []protocol.Tag  `json:"tags"`
	Content   string          `json:"content"`
	Sig       string          `json:"sig"`
}

func marshalEvent(ev *protocol.Event) ([]byte, error) {
	w := wireEvent{
		ID:        ev.ID.String(),
		PubKey:    ev.PubKey.String(),
		CreatedAt: ev.CreatedAt,
		Kind:      int(ev.Kind),
		Tags:      ev.Tags,
		Content:   ev.Content,
		Sig:       hex.EncodeToString(ev.Sig[:]),
	}
	return json.Marshal(w)
}

func unmarshalEvent(raw json.RawMessage) (*protocol.Event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("relay: malformed event: %w", err)
	}
	id, err := ids.EventIDFromHex(w.ID)
	if err != nil {
		return nil, fmt.Errorf("relay: malformed event id: %w", err)
	}
	pk, err := ids.PubKeyFromHex(w.PubKey)
	if err != nil {
		return nil, fmt.Errorf("relay: malformed pubkey: %w", err)
	}
	sigBytes, err := hex.DecodeString(w.Sig)
	if err != nil || len(sigBytes) != 64 {
		return nil, fmt.Errorf("relay: malformed signature")
	}
	var sig [64]byte
	copy(sig[:], sigBytes)
	return &protocol.Event{
		ID:        id,
		PubKey:    pk,
		CreatedAt: w.CreatedAt,
		Kind:      protocol.Kind(w.Kind),
		Tags:      w.Tags,
		Content:   w.Content,
		Sig:       sig,
	}, nil
}

// toWire renders a Filter as a REQ filter object.
func (f Filter) toWire() map[string]interface{} {
	w := map[string]interface{}{}
	if len(f.Authors) > 0 {
		authors := make([]string, len(f.Authors))
		for i, a := range f.Authors {
			authors[i] = a.String()
		}
		w["authors"] = authors
	}
	if len(f.Kinds) > 0 {
		kinds := make([]int, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = int(k)
		}
		w["kinds"] = kinds
	}
	if !f.Since.IsZero() {
		w["since"] = f.Since.Unix()
	}
	for tagName, values := range f.Tags {
		w["#"+tagName] = values
	}
	return w
}
