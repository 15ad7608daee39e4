package walletlib

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/smartvaults/svengine/errs"
)

// SignPSBT implements Library: adds a BIP-341 key-path schnorr signature to
// every input of pkt, using priv's x-only public key as the signing key.
// Script-path signing (the general miniscript satisfaction) is the
// external Wallet Library's job in full (spec.md §1 Non-goals).
func (l *ChainBackedLibrary) SignPSBT(pkt *psbt.Packet, priv *btcec.PrivateKey) error {
	if len(pkt.Inputs) != len(pkt.UnsignedTx.TxIn) {
		return errs.Wallet("walletlib: psbt input count mismatch")
	}

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range pkt.Inputs {
		if in.WitnessUtxo == nil {
			return errs.Wallet("walletlib: missing witness utxo for input")
		}
		fetcher.AddPrevOut(pkt.UnsignedTx.TxIn[i].PreviousOutPoint, in.WitnessUtxo)
	}
	sigHashes := txscript.NewTxSigHashes(pkt.UnsignedTx, fetcher)

	for i := range pkt.Inputs {
		sigHash, err := txscript.CalcTaprootSignatureHash(
			sigHashes, txscript.SigHashDefault, pkt.UnsignedTx, i, fetcher,
		)
		if err != nil {
			return errs.Walletf("walletlib: compute taproot sighash", err)
		}
		sig, err := schnorr.Sign(priv, sigHash)
		if err != nil {
			return errs.Walletf("walletlib: sign taproot input", err)
		}
		pkt.Inputs[i].TaprootKeySig = sig.Serialize()
	}
	return nil
}

// verifyKeyPathSpend is a helper used by VerifyProof to check a signature
// without mutating pkt, kept separate from SignPSBT's mutating path.
func verifyKeyPathSpend(tx *wire.MsgTx, index int, fetcher *txscript.MultiPrevOutFetcher, pub *btcec.PublicKey, sig []byte) (bool, error) {
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	sigHash, err := txscript.CalcTaprootSignatureHash(sigHashes, txscript.SigHashDefault, tx, index, fetcher)
	if err != nil {
		return false, err
	}
	parsed, err := schnorr.ParseSignature(sig)
	if err != nil {
		return false, err
	}
	return parsed.Verify(sigHash, pub), nil
}
