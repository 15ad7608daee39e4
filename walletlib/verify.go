package walletlib

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"

	"github.com/smartvaults/svengine/errs"
)

// VerifyProof implements Library: checks that every input of a
// proof-of-reserve PSBT carries a valid key-path signature under
// descriptor's internal key, and returns the total value thereby proven
// controlled (spec.md §4.B `verify_proof(id, psbt, message, timeout) ->
// satisfied_sats`). message is accepted for symmetry with the proof's
// companion text (spec.md §3 Completion `Message`) but isn't itself part
// of the signed digest — the proof binds the PSBT's inputs, which the
// caller ties to message out of band via Completion.ExportProof.
func (l *ChainBackedLibrary) VerifyProof(pkt *psbt.Packet, descriptor string, message string) (btcutil.Amount, error) {
	internalKey, err := parseInternalKey(descriptor)
	if err != nil {
		return 0, err
	}

	if len(pkt.Inputs) != len(pkt.UnsignedTx.TxIn) {
		return 0, errs.Wallet("walletlib: psbt input count mismatch")
	}

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range pkt.Inputs {
		if in.WitnessUtxo == nil {
			return 0, errs.Wallet("walletlib: missing witness utxo for input")
		}
		fetcher.AddPrevOut(pkt.UnsignedTx.TxIn[i].PreviousOutPoint, in.WitnessUtxo)
	}

	var total btcutil.Amount
	for i, in := range pkt.Inputs {
		if len(in.TaprootKeySig) == 0 {
			return 0, errs.Wallet("walletlib: proof input is unsigned")
		}
		ok, err := verifyKeyPathSpend(pkt.UnsignedTx, i, fetcher, internalKey, in.TaprootKeySig)
		if err != nil {
			return 0, errs.Cryptof("walletlib: verify proof signature", err)
		}
		if !ok {
			return 0, errs.Crypto("walletlib: proof signature does not satisfy descriptor's internal key")
		}
		total += btcutil.Amount(in.WitnessUtxo.Value)
	}
	return total, nil
}
