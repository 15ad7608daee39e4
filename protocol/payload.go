package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/smartvaults/svengine/ids"
)

// Payload DTOs are the plaintext JSON shapes carried inside an event's
// encrypted Content, one per vault-scoped entity (spec.md §4.C). They
// mirror store's row DTOs (dto.go) in spirit — a stable wire shape decoupled
// from the in-memory struct — but travel over the relay instead of to disk.

// VaultPayload is the plaintext content of a KindVault event.
type VaultPayload struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Descriptor   string   `json:"descriptor"`
	Network      string   `json:"network"`
	Participants []string `json:"participants"`
}

// MarshalVaultPayload serializes v into a KindVault event's plaintext.
func MarshalVaultPayload(v VaultPayload) ([]byte, error) {
	return json.Marshal(v)
}

// UnmarshalVaultPayload parses a KindVault event's decrypted plaintext.
func UnmarshalVaultPayload(raw []byte) (VaultPayload, error) {
	var v VaultPayload
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("protocol: malformed vault payload: %w", err)
	}
	return v, nil
}

// ProposalPayload is the plaintext content of a KindProposal event.
type ProposalPayload struct {
	Type             int    `json:"type"`
	Descriptor       string `json:"descriptor"`
	ToAddress        string `json:"to_address,omitempty"`
	Amount           int64  `json:"amount,omitempty"`
	Description      string `json:"description,omitempty"`
	Message          string `json:"message,omitempty"`
	SignerDescriptor string `json:"signer_descriptor,omitempty"`
	PeriodFrom       int64  `json:"period_from,omitempty"`
	PeriodTo         int64  `json:"period_to,omitempty"`
	PSBT             string `json:"psbt"`
}

func MarshalProposalPayload(p ProposalPayload) ([]byte, error) { return json.Marshal(p) }

func UnmarshalProposalPayload(raw []byte) (ProposalPayload, error) {
	var p ProposalPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("protocol: malformed proposal payload: %w", err)
	}
	return p, nil
}

// ApprovalPayload is the plaintext content of a KindApprovedProposal event.
type ApprovalPayload struct {
	Type int    `json:"type"`
	PSBT string `json:"psbt"`
}

func MarshalApprovalPayload(a ApprovalPayload) ([]byte, error) { return json.Marshal(a) }

func UnmarshalApprovalPayload(raw []byte) (ApprovalPayload, error) {
	var a ApprovalPayload
	if err := json.Unmarshal(raw, &a); err != nil {
		return a, fmt.Errorf("protocol: malformed approval payload: %w", err)
	}
	return a, nil
}

// CompletionPayload is the plaintext content of a KindCompletedProposal event.
type CompletionPayload struct {
	Type             int    `json:"type"`
	TxHex            string `json:"tx_hex,omitempty"`
	Description      string `json:"description,omitempty"`
	SignerDescriptor string `json:"signer_descriptor,omitempty"`
	PeriodFrom       int64  `json:"period_from,omitempty"`
	PeriodTo         int64  `json:"period_to,omitempty"`
	Message          string `json:"message,omitempty"`
	Descriptor       string `json:"descriptor,omitempty"`
	PSBT             string `json:"psbt,omitempty"`
}

func MarshalCompletionPayload(c CompletionPayload) ([]byte, error) { return json.Marshal(c) }

func UnmarshalCompletionPayload(raw []byte) (CompletionPayload, error) {
	var c CompletionPayload
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("protocol: malformed completion payload: %w", err)
	}
	return c, nil
}

// LabelPayload is the plaintext content of a KindLabel event.
type LabelPayload struct {
	Kind  int    `json:"kind"`
	Value string `json:"value"`
	Text  string `json:"text"`
}

func MarshalLabelPayload(l LabelPayload) ([]byte, error) { return json.Marshal(l) }

func UnmarshalLabelPayload(raw []byte) (LabelPayload, error) {
	var l LabelPayload
	if err := json.Unmarshal(raw, &l); err != nil {
		return l, fmt.Errorf("protocol: malformed label payload: %w", err)
	}
	return l, nil
}

// SignerPayload is the plaintext content of a KindSigner event.
type SignerPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Fingerprint string `json:"fingerprint"`
	Descriptor  string `json:"descriptor"`
	Type        int    `json:"type"`
}

func MarshalSignerPayload(s SignerPayload) ([]byte, error) { return json.Marshal(s) }

func UnmarshalSignerPayload(raw []byte) (SignerPayload, error) {
	var s SignerPayload
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("protocol: malformed signer payload: %w", err)
	}
	return s, nil
}

// SharedSignerPayload is the plaintext content of a KindSharedSigner event.
type SharedSignerPayload struct {
	Fingerprint string `json:"fingerprint"`
	Descriptor  string `json:"descriptor"`
}

func MarshalSharedSignerPayload(s SharedSignerPayload) ([]byte, error) { return json.Marshal(s) }

func UnmarshalSharedSignerPayload(raw []byte) (SharedSignerPayload, error) {
	var s SharedSignerPayload
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("protocol: malformed shared-signer payload: %w", err)
	}
	return s, nil
}

// MetadataPayload is the plaintext content of a KindMetadata event (NIP-01
// standard kind 0, reused as-is per spec.md §6).
type MetadataPayload struct {
	Name  string `json:"name"`
	About string `json:"about"`
}

func UnmarshalMetadataPayload(raw []byte) (MetadataPayload, error) {
	var m MetadataPayload
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("protocol: malformed metadata payload: %w", err)
	}
	return m, nil
}

// ContactListPayload is the plaintext content of a KindContactList event
// (standard kind 3): tags carry the `p`-tagged pubkeys, content carries an
// optional petname map keyed by pubkey hex.
type ContactListPayload map[string]string

func UnmarshalContactListPayload(raw []byte) (ContactListPayload, error) {
	if len(raw) == 0 {
		return ContactListPayload{}, nil
	}
	var c ContactListPayload
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("protocol: malformed contact list payload: %w", err)
	}
	return c, nil
}

// ConnectRequestPayload is the plaintext content of an inbound
// KindNostrConnect request (spec.md §4.F nostr-connect session handling).
type ConnectRequestPayload struct {
	ID     string        `json:"id"`
	Method string        `json:"method"`
	Params []string      `json:"params"`
}

func UnmarshalConnectRequestPayload(raw []byte) (ConnectRequestPayload, error) {
	var c ConnectRequestPayload
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("protocol: malformed nostr-connect request: %w", err)
	}
	return c, nil
}

// ConnectResponsePayload is the plaintext content of an outbound
// KindNostrConnect response.
type ConnectResponsePayload struct {
	ID     string `json:"id"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func MarshalConnectResponsePayload(c ConnectResponsePayload) ([]byte, error) { return json.Marshal(c) }

// DirectMessagePayload is the plaintext content of a KindDirectMessage
// event used for the `spend` notification (spec.md §4.F: "send a
// direct-message notification to every other participant with amount and
// description").
type DirectMessagePayload struct {
	VaultID     string `json:"vault_id"`
	ProposalID  string `json:"proposal_id"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

func MarshalDirectMessagePayload(d DirectMessagePayload) ([]byte, error) { return json.Marshal(d) }

func UnmarshalDirectMessagePayload(raw []byte) (DirectMessagePayload, error) {
	var d DirectMessagePayload
	if err := json.Unmarshal(raw, &d); err != nil {
		return d, fmt.Errorf("protocol: malformed direct-message payload: %w", err)
	}
	return d, nil
}

// pubKeysFromStrings parses a slice of hex pubkeys, skipping malformed
// entries rather than failing the whole payload (spec.md §1 Non-goals:
// malformed/unauthorized events must be tolerated).
func pubKeysFromStrings(ss []string) []ids.PubKey {
	out := make([]ids.PubKey, 0, len(ss))
	for _, s := range ss {
		if pk, err := ids.PubKeyFromHex(s); err == nil {
			out = append(out, pk)
		}
	}
	return out
}
