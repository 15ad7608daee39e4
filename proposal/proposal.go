// Package proposal implements the Proposal/Approval/Completion tagged
// entities of spec.md §3 and the finalize operation of spec.md §4.B/§4.F.
package proposal

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/smartvaults/svengine/ids"
)

// Type tags the three proposal/approval/completion variants (spec.md §3).
type Type int

const (
	TypeSpending Type = iota + 1
	TypeProofOfReserve
	TypeKeyAgentPayment
)

func (t Type) String() string {
	switch t {
	case TypeSpending:
		return "spending"
	case TypeProofOfReserve:
		return "proof-of-reserve"
	case TypeKeyAgentPayment:
		return "key-agent-payment"
	default:
		return "unknown"
	}
}

// Period bounds a key-agent payment's billing window.
type Period struct {
	From time.Time
	To   time.Time
}

// Proposal is the tagged draft Bitcoin action awaiting approvals.
type Proposal struct {
	ID      ids.EventID
	VaultID ids.VaultID
	Type    Type

	Descriptor string

	// Spending
	ToAddress   string
	Amount      btcutil.Amount
	Description string

	// ProofOfReserve
	Message string

	// KeyAgentPayment
	SignerDescriptor string
	Period           Period

	PSBT *psbt.Packet
}

// Approval is one signer's partial-signature contribution to a proposal
// (spec.md §3).
type Approval struct {
	ID         ids.EventID
	ProposalID ids.EventID
	VaultID    ids.VaultID
	Type       Type
	Author     ids.PubKey
	Timestamp  time.Time
	Expiration time.Time
	PSBT       *psbt.Packet
}

// Completion is the terminal record of a finalized proposal (spec.md §3).
type Completion struct {
	ID         ids.EventID
	ProposalID ids.EventID
	VaultID    ids.VaultID
	Type       Type

	// Spending / KeyAgentPayment
	TxHex       string
	Description string

	// KeyAgentPayment extras
	SignerDescriptor string
	Period           Period

	// ProofOfReserve
	Message    string
	Descriptor string
	PSBT       *psbt.Packet
}

// ExportProof renders a proof-of-reserve completion as the same
// {message, descriptor, psbt} JSON shape the original export_proof
// produced, for out-of-band sharing.
func (c *Completion) ExportProof() (map[string]string, bool) {
	if c.Type != TypeProofOfReserve {
		return nil, false
	}
	psbtB64 := ""
	if c.PSBT != nil {
		if s, err := c.PSBT.B64Encode(); err == nil {
			psbtB64 = s
		}
	}
	return map[string]string{
		"message":    c.Message,
		"descriptor": c.Descriptor,
		"psbt":       psbtB64,
	}, true
}
