package action

import (
	"fmt"

	"github.com/smartvaults/svengine/errs"
	"github.com/smartvaults/svengine/ids"
	"github.com/smartvaults/svengine/notifier"
	"github.com/smartvaults/svengine/proposal"
	"github.com/smartvaults/svengine/protocol"
	"github.com/smartvaults/svengine/walletmgr"
)

// SpendResult is the `{ proposal_id, vault_id, proposal }` triple `spend`
// returns (spec.md §4.F).
type SpendResult struct {
	ProposalID ids.EventID
	VaultID    ids.VaultID
	Proposal   *proposal.Proposal
}

// SpendParams mirrors walletmgr.SpendParams, the request shape `spend` and
// `self_transfer` both build from.
type SpendParams struct {
	ToAddress          string
	AmountSats         int64
	Description        string
	FeeRateSatPerVByte float64
	FrozenOutpoints    []string
	PolicyPath         map[string][]int
	EnableRBF          bool
}

// buildProposalEvent builds, signs, and assigns the proposal's id before
// any persistence happens, the same build-first pattern CreateVault uses
// to resolve an event's own id before it's referenced anywhere else.
func (a *Action) buildProposalEvent(vaultID ids.VaultID, p *proposal.Proposal) (*protocol.Event, error) {
	key, sharedPriv, sharedPub, err := a.sharedSigning(vaultID)
	if err != nil {
		return nil, err
	}
	v, ok, err := a.store.GetVault(vaultID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("action: vault %s not found", vaultID)
	}

	psbtB64, err := proposal.EncodePSBT(p.PSBT)
	if err != nil {
		return nil, errs.Walletf("encode proposal psbt", err)
	}
	payload := protocol.ProposalPayload{
		Type:             int(p.Type),
		Descriptor:       p.Descriptor,
		ToAddress:        p.ToAddress,
		Amount:           int64(p.Amount),
		Description:      p.Description,
		Message:          p.Message,
		SignerDescriptor: p.SignerDescriptor,
		PeriodFrom:       p.Period.From.Unix(),
		PeriodTo:         p.Period.To.Unix(),
		PSBT:             psbtB64,
	}
	raw, err := protocol.MarshalProposalPayload(payload)
	if err != nil {
		return nil, errs.Walletf("encode proposal payload", err)
	}
	ev, err := a.builder.ProposalEvent(sharedPriv, sharedPub, key, vaultID, v.Participants, raw)
	if err != nil {
		return nil, errs.Cryptof("build proposal event", err)
	}
	return ev, nil
}

// Spend implements `spend` (spec.md §4.F).
func (a *Action) Spend(vaultID ids.VaultID, p SpendParams) (*SpendResult, error) {
	v, ok, err := a.store.GetVault(vaultID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("action: vault %s not found", vaultID)
	}

	// The proposal's own id is only known once its event is built and
	// signed, so the wallet's proposal is first constructed with a zero
	// id and re-stamped after the event is built.
	built, err := a.wallets.Spend(vaultID, ids.EventID{}, walletmgr.SpendParams{
		ToAddress:          p.ToAddress,
		AmountSats:         p.AmountSats,
		Description:        p.Description,
		FeeRateSatPerVByte: p.FeeRateSatPerVByte,
		FrozenOutpoints:    p.FrozenOutpoints,
		PolicyPath:         p.PolicyPath,
		EnableRBF:          p.EnableRBF,
	})
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
	for _, in := range builtSpendOutpoints(built) {
		_ = a.wallets.FreezeOutpoint(vaultID, in)
	}
	if err := a.publish(ev); err != nil {
		return nil, err
	}

	for _, p := range otherParticipants(v.Participants, a.identityPub) {
		recipientPub, err := protocol.ParsePubKey(p)
		if err != nil {
			continue
		}
		dm, err := protocol.MarshalDirectMessagePayload(protocol.DirectMessagePayload{
			VaultID:     vaultID.String(),
			ProposalID:  ev.ID.String(),
			Amount:      int64(built.Amount),
			Description: built.Description,
		})
		if err != nil {
			continue
		}
		dmEvent, err := a.builder.DirectMessageEvent(a.identityPriv, a.identityPub, recipientPub, p, string(dm))
		if err != nil {
			continue
		}
		if err := a.publish(dmEvent); err != nil {
			log.Warnf("spend: direct-message notification to %s failed: %v", p, err)
		}
	}

	if err := a.notify(notifier.NotificationNewProposal, ev.ID); err != nil {
		return nil, err
	}
	return &SpendResult{ProposalID: ev.ID, VaultID: vaultID, Proposal: built}, nil
}

func builtSpendOutpoints(p *proposal.Proposal) []string {
	if p.PSBT == nil || p.PSBT.UnsignedTx == nil {
		return nil
	}
	out := make([]string, 0, len(p.PSBT.UnsignedTx.TxIn))
	for _, in := range p.PSBT.UnsignedTx.TxIn {
		out = append(out, fmt.Sprintf("%s:%d", in.PreviousOutPoint.Hash.String(), in.PreviousOutPoint.Index))
	}
	return out
}

// SelfTransfer implements `self_transfer` (spec.md §4.F): a spend whose
// destination is the target vault's next unused address and whose
// description is the fixed "Self transfer from vault #X to vault #Y"
// format.
func (a *Action) SelfTransfer(from, to ids.VaultID, amountSats int64, feeRate float64, frozenOutpoints []string, policyPath map[string][]int) (*SpendResult, error) {
	toAddr, err := a.wallets.LastUnusedAddress(to)
	if err != nil {
		return nil, err
	}
	description := fmt.Sprintf("Self transfer from vault #%s to vault #%s", shortID(from), shortID(to))
	return a.Spend(from, SpendParams{
		ToAddress:          toAddr,
		AmountSats:         amountSats,
		Description:        description,
		FeeRateSatPerVByte: feeRate,
		FrozenOutpoints:    frozenOutpoints,
		PolicyPath:         policyPath,
	})
}

func shortID(id ids.EventID) string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// DeleteProposal implements `delete_proposal` (spec.md §4.F).
func (a *Action) DeleteProposal(proposalID ids.EventID) error {
	p, ok, err := a.store.GetProposal(proposalID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("action: proposal %s not found", proposalID)
	}
	if err := a.authorizeVaultScoped(p.VaultID, proposalID); err != nil {
		return err
	}
	v, ok, err := a.store.GetVault(p.VaultID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("action: vault %s not found", p.VaultID)
	}
	_, sharedPriv, sharedPub, err := a.sharedSigning(p.VaultID)
	if err != nil {
		return err
	}
	if err := a.deleteAndNotify(sharedPriv, sharedPub, []ids.EventID{proposalID}, otherParticipants(v.Participants, a.identityPub)); err != nil {
		return err
	}
	for _, outpoint := range builtSpendOutpoints(p) {
		_ = a.wallets.UnfreezeOutpoint(p.VaultID, outpoint)
	}
	return nil
}
