package action

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil/psbt"

	"github.com/smartvaults/svengine/errs"
	"github.com/smartvaults/svengine/ids"
	"github.com/smartvaults/svengine/notifier"
	"github.com/smartvaults/svengine/proposal"
	"github.com/smartvaults/svengine/protocol"
)

// clonePSBT round-trips pkt through base64, the same approach
// proposal.Finalize uses internally to avoid two callers sharing mutable
// PSBT state.
func clonePSBT(pkt *psbt.Packet) (*psbt.Packet, error) {
	b64, err := proposal.EncodePSBT(pkt)
	if err != nil {
		return nil, err
	}
	return proposal.DecodePSBT(b64)
}

func (a *Action) loadProposalAndVault(proposalID ids.EventID) (*proposal.Proposal, []ids.PubKey, error) {
	p, ok, err := a.store.GetProposal(proposalID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("action: proposal %s not found", proposalID)
	}
	v, ok, err := a.store.GetVault(p.VaultID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("action: vault %s not found", p.VaultID)
	}
	return p, v.Participants, nil
}

// publishApproval signs an approval payload built around signedPSBT and
// stores/publishes it, shared by Approve and ApproveWithSignedPsbt.
func (a *Action) publishApproval(p *proposal.Proposal, participants []ids.PubKey, signedPSBT *psbt.Packet) error {
	key, _, _, err := a.sharedSigning(p.VaultID)
	if err != nil {
		return err
	}

	psbtB64, err := proposal.EncodePSBT(signedPSBT)
	if err != nil {
		return errs.Walletf("encode approval psbt", err)
	}
	raw, err := protocol.MarshalApprovalPayload(protocol.ApprovalPayload{Type: int(p.Type), PSBT: psbtB64})
	if err != nil {
		return errs.Walletf("encode approval payload", err)
	}

	ev, err := a.builder.ApprovalEvent(a.identityPriv, a.identityPub, key, p.VaultID, p.ID, participants, raw, protocol.ApprovalTTL)
	if err != nil {
		return errs.Cryptof("build approval event", err)
	}
	expiration, _ := ev.Expiration()

	appr := &proposal.Approval{
		ID:         ev.ID,
		ProposalID: p.ID,
		VaultID:    p.VaultID,
		Type:       p.Type,
		Author:     a.identityPub,
		Timestamp:  time.Unix(ev.CreatedAt, 0),
		Expiration: expiration,
		PSBT:       signedPSBT,
	}
	if err := a.store.SaveApproval(appr); err != nil {
		return err
	}
	if err := a.publish(ev); err != nil {
		return err
	}
	return a.notify(notifier.NotificationNewApproval, ev.ID)
}

// Approve implements `approve` (spec.md §4.F): signs a clone of the
// proposal's base PSBT with this participant's signing key via the Wallet
// Manager, then persists and publishes the approval.
func (a *Action) Approve(proposalID ids.EventID) error {
	p, participants, err := a.loadProposalAndVault(proposalID)
	if err != nil {
		return err
	}
	clone, err := clonePSBT(p.PSBT)
	if err != nil {
		return errs.Walletf("clone proposal psbt", err)
	}
	if err := a.wallets.SignPSBT(clone, a.signingKey); err != nil {
		return err
	}
	return a.publishApproval(p, participants, clone)
}

// ApproveWithSignedPsbt implements `approve_with_signed_psbt` (spec.md
// §4.F): accepts a pre-signed PSBT instead of signing locally, rejecting
// it outright if it's byte-identical to the proposal's base PSBT.
func (a *Action) ApproveWithSignedPsbt(proposalID ids.EventID, signed *psbt.Packet) error {
	p, participants, err := a.loadProposalAndVault(proposalID)
	if err != nil {
		return err
	}
	if err := p.ApproveWithSignedPsbt(signed); err != nil {
		return err
	}
	return a.publishApproval(p, participants, signed)
}

// RevokeApproval implements `revoke_approval` (spec.md §4.F): an approval
// is self-signed by its author's identity, so it is authorized as a
// personal object, not a vault-scoped one.
func (a *Action) RevokeApproval(approvalID ids.EventID) error {
	if err := a.authorizePersonal(approvalID); err != nil {
		return err
	}
	return a.deleteAndNotify(a.identityPriv, a.identityPub, []ids.EventID{approvalID}, nil)
}

// Finalize implements `finalize` (spec.md §4.F): combines every approval
// into the proposal's base PSBT, finalizes it, broadcasts spending/
// key-agent completions via the Chain Client, then persists and publishes
// the completion. `Store.SaveCompletion` deletes the proposal row in the
// same transaction, so no separate proposal-deletion event is published
// (see DESIGN.md's recorded decision on the completion-cascade).
func (a *Action) Finalize(proposalID ids.EventID) (*proposal.Completion, error) {
	p, participants, err := a.loadProposalAndVault(proposalID)
	if err != nil {
		return nil, err
	}
	approvals, err := a.store.GetApprovals(proposalID)
	if err != nil {
		return nil, err
	}

	completion, err := p.Finalize(approvals)
	if err != nil {
		return nil, err
	}

	if completion.Type == proposal.TypeSpending || completion.Type == proposal.TypeKeyAgentPayment {
		if a.chain == nil {
			return nil, errs.Wallet("finalize: no chain client configured to broadcast")
		}
		if _, err := a.chain.Broadcast(completion.TxHex); err != nil {
			return nil, errs.External("finalize: broadcast transaction", err)
		}
	}

	key, sharedPriv, sharedPub, err := a.sharedSigning(p.VaultID)
	if err != nil {
		return nil, err
	}
	psbtB64, err := proposal.EncodePSBT(completion.PSBT)
	if err != nil {
		return nil, errs.Walletf("encode completion psbt", err)
	}
	raw, err := protocol.MarshalCompletionPayload(protocol.CompletionPayload{
		Type:             int(completion.Type),
		TxHex:            completion.TxHex,
		Description:      completion.Description,
		SignerDescriptor: completion.SignerDescriptor,
		PeriodFrom:       completion.Period.From.Unix(),
		PeriodTo:         completion.Period.To.Unix(),
		Message:          completion.Message,
		Descriptor:       completion.Descriptor,
		PSBT:             psbtB64,
	})
	if err != nil {
		return nil, errs.Walletf("encode completion payload", err)
	}
	ev, err := a.builder.CompletionEvent(sharedPriv, sharedPub, key, p.VaultID, proposalID, participants, raw)
	if err != nil {
		return nil, errs.Cryptof("build completion event", err)
	}
	completion.ID = ev.ID

	for _, outpoint := range builtSpendOutpoints(p) {
		_ = a.wallets.UnfreezeOutpoint(p.VaultID, outpoint)
	}

	if err := a.store.SaveCompletion(completion); err != nil {
		return nil, err
	}
	if err := a.publish(ev); err != nil {
		return nil, err
	}
	if err := a.notify(notifier.NotificationNewCompletedProposal, ev.ID); err != nil {
		return nil, err
	}
	return completion, nil
}

// DeleteCompletion implements `delete_completion` (spec.md §4.F).
func (a *Action) DeleteCompletion(completionID ids.EventID) error {
	c, ok, err := a.store.GetCompletionByID(completionID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("action: completion %s not found", completionID)
	}
	if err := a.authorizeVaultScoped(c.VaultID, completionID); err != nil {
		return err
	}
	v, ok, err := a.store.GetVault(c.VaultID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("action: vault %s not found", c.VaultID)
	}
	_, sharedPriv, sharedPub, err := a.sharedSigning(c.VaultID)
	if err != nil {
		return err
	}
	return a.deleteAndNotify(sharedPriv, sharedPub, []ids.EventID{completionID}, otherParticipants(v.Participants, a.identityPub))
}
