package store

import (
	"encoding/json"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/smartvaults/svengine/errs"
	"github.com/smartvaults/svengine/proposal"
)

// DTOs mirror the proposal/approval/completion structs but with the PSBT
// swapped for its base64 wire form, since *psbt.Packet carries unexported
// state that encoding/json cannot round-trip.

type proposalDTO struct {
	Descriptor       string
	ToAddress        string
	Amount           int64
	Description      string
	Message          string
	SignerDescriptor string
	PeriodFrom       int64
	PeriodTo         int64
	PSBT             string
}

func encodeProposal(p *proposal.Proposal) ([]byte, error) {
	psbtB64, err := proposal.EncodePSBT(p.PSBT)
	if err != nil {
		return nil, err
	}
	dto := proposalDTO{
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
	return json.Marshal(dto)
}

func decodeProposal(id, vaultID string, typ int, raw []byte) (*proposal.Proposal, error) {
	var dto proposalDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, errs.Walletf("decode proposal", err)
	}
	id32, err := eventIDFromString(id)
	if err != nil {
		return nil, err
	}
	vault32, err := eventIDFromString(vaultID)
	if err != nil {
		return nil, err
	}
	pkt, err := proposal.DecodePSBT(dto.PSBT)
	if err != nil {
		return nil, err
	}
	return &proposal.Proposal{
		ID:               id32,
		VaultID:          vault32,
		Type:             proposal.Type(typ),
		Descriptor:       dto.Descriptor,
		ToAddress:        dto.ToAddress,
		Amount:           btcutil.Amount(dto.Amount),
		Description:      dto.Description,
		Message:          dto.Message,
		SignerDescriptor: dto.SignerDescriptor,
		Period:           unixPeriod(dto.PeriodFrom, dto.PeriodTo),
		PSBT:             pkt,
	}, nil
}

type approvalDTO struct {
	PSBT string
}

func encodeApproval(a *proposal.Approval) ([]byte, error) {
	psbtB64, err := proposal.EncodePSBT(a.PSBT)
	if err != nil {
		return nil, err
	}
	return json.Marshal(approvalDTO{PSBT: psbtB64})
}

func decodeApproval(row ApprovalRow, raw []byte) (*proposal.Approval, error) {
	var dto approvalDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, errs.Walletf("decode approval", err)
	}
	id, err := eventIDFromString(row.ID)
	if err != nil {
		return nil, err
	}
	proposalID, err := eventIDFromString(row.ProposalID)
	if err != nil {
		return nil, err
	}
	vaultID, err := eventIDFromString(row.VaultID)
	if err != nil {
		return nil, err
	}
	author, err := pubKeyFromString(row.Author)
	if err != nil {
		return nil, err
	}
	pkt, err := proposal.DecodePSBT(dto.PSBT)
	if err != nil {
		return nil, err
	}
	return &proposal.Approval{
		ID:         id,
		ProposalID: proposalID,
		VaultID:    vaultID,
		Author:     author,
		Timestamp:  unixTime(row.Timestamp),
		Expiration: unixTime(row.Expiration),
		PSBT:       pkt,
	}, nil
}

type completionDTO struct {
	TxHex            string
	Description      string
	SignerDescriptor string
	PeriodFrom       int64
	PeriodTo         int64
	Message          string
	Descriptor       string
	PSBT             string
}

func encodeCompletion(c *proposal.Completion) ([]byte, error) {
	psbtB64, err := proposal.EncodePSBT(c.PSBT)
	if err != nil {
		return nil, err
	}
	dto := completionDTO{
		TxHex:            c.TxHex,
		Description:      c.Description,
		SignerDescriptor: c.SignerDescriptor,
		PeriodFrom:       c.Period.From.Unix(),
		PeriodTo:         c.Period.To.Unix(),
		Message:          c.Message,
		Descriptor:       c.Descriptor,
		PSBT:             psbtB64,
	}
	return json.Marshal(dto)
}

func decodeCompletion(id, proposalID, vaultID string, typ int, raw []byte) (*proposal.Completion, error) {
	var dto completionDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, errs.Walletf("decode completion", err)
	}
	id32, err := eventIDFromString(id)
	if err != nil {
		return nil, err
	}
	proposalID32, err := eventIDFromString(proposalID)
	if err != nil {
		return nil, err
	}
	vaultID32, err := eventIDFromString(vaultID)
	if err != nil {
		return nil, err
	}
	pkt, err := proposal.DecodePSBT(dto.PSBT)
	if err != nil {
		return nil, err
	}
	return &proposal.Completion{
		ID:               id32,
		ProposalID:       proposalID32,
		VaultID:          vaultID32,
		Type:             proposal.Type(typ),
		TxHex:            dto.TxHex,
		Description:      dto.Description,
		SignerDescriptor: dto.SignerDescriptor,
		Period:           unixPeriod(dto.PeriodFrom, dto.PeriodTo),
		Message:          dto.Message,
		Descriptor:       dto.Descriptor,
		PSBT:             pkt,
	}, nil
}

