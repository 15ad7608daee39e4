package proposal

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/smartvaults/svengine/errs"
)

// ErrTypeMismatch is returned when an approval's type does not match its
// proposal's.
var ErrTypeMismatch = errs.Wallet("approved proposal type mismatch")

// ErrPsbtNotSigned is returned by ApproveWithSignedPsbt when the supplied
// PSBT is byte-identical to the proposal's original PSBT.
var ErrPsbtNotSigned = errs.Wallet("psbt not signed (equal to base psbt)")

// Finalize combines every approval's PSBT into the proposal's base PSBT and
// finalizes it, producing a Completion (spec.md §4.F `finalize`). The
// combine-then-finalize sequence, and the requirement that every approval
// share the proposal's Type, is taken from
// `smartvaults-core/src/proposal/mod.rs`'s `Proposal::finalize`.
func (p *Proposal) Finalize(approvals []*Approval) (*Completion, error) {
	if len(approvals) == 0 {
		return nil, errs.Wallet("no approvals supplied to finalize")
	}

	base, err := clonePacket(p.PSBT)
	if err != nil {
		return nil, errs.Walletf("clone base psbt", err)
	}

	for _, a := range approvals {
		if a.Type != p.Type {
			return nil, ErrTypeMismatch
		}
		if err := combine(base, a.PSBT); err != nil {
			return nil, errs.Walletf("combine psbt", err)
		}
	}

	switch p.Type {
	case TypeSpending, TypeKeyAgentPayment:
		if err := finalizeAll(base); err != nil {
			return nil, err
		}
		tx, err := psbt.Extract(base)
		if err != nil {
			return nil, errs.Walletf("extract finalized tx", err)
		}
		var buf bytes.Buffer
		if err := tx.Serialize(&buf); err != nil {
			return nil, errs.Walletf("serialize tx", err)
		}
		c := &Completion{
			ProposalID:  p.ID,
			VaultID:     p.VaultID,
			Type:        p.Type,
			TxHex:       hex.EncodeToString(buf.Bytes()),
			Description: p.Description,
		}
		if p.Type == TypeKeyAgentPayment {
			c.SignerDescriptor = p.SignerDescriptor
			c.Period = p.Period
		}
		return c, nil

	case TypeProofOfReserve:
		if err := finalizeAll(base); err != nil {
			return nil, err
		}
		return &Completion{
			ProposalID: p.ID,
			VaultID:    p.VaultID,
			Type:       p.Type,
			Message:    p.Message,
			Descriptor: p.Descriptor,
			PSBT:       base,
		}, nil

	default:
		return nil, errs.Wallet("unknown proposal type")
	}
}

func finalizeAll(p *psbt.Packet) error {
	complete, err := psbt.MaybeFinalizeAll(p)
	if err != nil {
		return errs.Walletf("finalize psbt", err)
	}
	if !complete {
		return errs.Wallet("psbt could not be finalized: not all inputs satisfiable")
	}
	return nil
}

// ApproveWithSignedPsbt validates a pre-signed PSBT against the proposal's
// original PSBT (spec.md §4.F: rejects if psbt == original_psbt).
func (p *Proposal) ApproveWithSignedPsbt(signed *psbt.Packet) error {
	origB64, err := p.PSBT.B64Encode()
	if err != nil {
		return errs.Walletf("encode base psbt", err)
	}
	signedB64, err := signed.B64Encode()
	if err != nil {
		return errs.Walletf("encode signed psbt", err)
	}
	if origB64 == signedB64 {
		return ErrPsbtNotSigned
	}
	return nil
}

func clonePacket(p *psbt.Packet) (*psbt.Packet, error) {
	b64, err := p.B64Encode()
	if err != nil {
		return nil, err
	}
	return psbt.NewFromRawBytes(strings.NewReader(b64), true)
}

// combine merges src's per-input partial signatures and taproot signatures
// into dst in place, the way PartiallySignedTransaction::combine does in
// the original: each input's signature set is a union across approvals,
// since distinct signers contribute to distinct inputs or distinct keys
// within the same input.
func combine(dst, src *psbt.Packet) error {
	if len(dst.Inputs) != len(src.Inputs) {
		return errs.Wallet("psbt input count mismatch during combine")
	}

	for i := range dst.Inputs {
		di := &dst.Inputs[i]
		si := &src.Inputs[i]

		for _, sig := range si.PartialSigs {
			if !hasPartialSig(di.PartialSigs, sig.PubKey) {
				di.PartialSigs = append(di.PartialSigs, sig)
			}
		}

		if len(di.TaprootKeySig) == 0 && len(si.TaprootKeySig) != 0 {
			di.TaprootKeySig = si.TaprootKeySig
		}

		for _, sig := range si.TaprootScriptSpendSig {
			if !hasTaprootScriptSig(di.TaprootScriptSpendSig, sig) {
				di.TaprootScriptSpendSig = append(di.TaprootScriptSpendSig, sig)
			}
		}
	}
	return nil
}

func hasPartialSig(sigs []*psbt.PartialSig, pubKey []byte) bool {
	for _, s := range sigs {
		if bytes.Equal(s.PubKey, pubKey) {
			return true
		}
	}
	return false
}

func hasTaprootScriptSig(sigs []*psbt.TaprootScriptSpendSig, sig *psbt.TaprootScriptSpendSig) bool {
	for _, s := range sigs {
		if bytes.Equal(s.XOnlyPubKey, sig.XOnlyPubKey) && bytes.Equal(s.LeafHash, sig.LeafHash) {
			return true
		}
	}
	return false
}
