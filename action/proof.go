package action

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/smartvaults/svengine/errs"
	"github.com/smartvaults/svengine/ids"
	"github.com/smartvaults/svengine/notifier"
	"github.com/smartvaults/svengine/proposal"
)

// NewProofProposal implements `new_proof_proposal` (spec.md §4.F): the
// proof-of-reserve analogue of `spend` — the same build-persist-publish
// sequence, applied to a message-bound proof PSBT rather than a payment.
func (a *Action) NewProofProposal(vaultID ids.VaultID, message string) (*SpendResult, error) {
	v, ok, err := a.store.GetVault(vaultID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("action: vault %s not found", vaultID)
	}

	built, err := a.wallets.ProofOfReserve(vaultID, ids.EventID{}, message)
	if err != nil {
		return nil, err
	}

	ev, err := a.buildProposalEvent(vaultID, built)
	if err != nil {
		return nil, err
	}
	built.ID = ev.ID

	if err := a.store.SaveProposal(built); err != nil {
		return nil, err
	}
	if err := a.publish(ev); err != nil {
		return nil, err
	}

	_ = v // participants already folded into buildProposalEvent's tags
	if err := a.notify(notifier.NotificationNewProposal, ev.ID); err != nil {
		return nil, err
	}
	return &SpendResult{ProposalID: ev.ID, VaultID: vaultID, Proposal: built}, nil
}

// VerifyProofByID implements `verify_proof_by_id` (spec.md §4.F): loads a
// completed proof-of-reserve proposal by its completion id and checks it
// against the vault's descriptor via the Wallet Manager.
func (a *Action) VerifyProofByID(completionID ids.EventID) (btcutil.Amount, error) {
	c, ok, err := a.store.GetCompletionByID(completionID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("action: completion %s not found", completionID)
	}
	if c.Type != proposal.TypeProofOfReserve {
		return 0, errs.Validation("verify_proof_by_id: completion is not a proof-of-reserve")
	}
	return a.wallets.VerifyProof(c.VaultID, c.PSBT, c.Message)
}
