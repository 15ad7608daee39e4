package walletlib

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/smartvaults/svengine/errs"
)

// BuildSpend implements Library. It selects inputs, builds a single- or
// drain-to-address output transaction, and wraps it as an unsigned PSBT
// (spec.md §4.B PSBT construction rules).
func (l *ChainBackedLibrary) BuildSpend(params BuildParams) (*BuildResult, error) {
	internalKey, err := parseInternalKey(params.Descriptor)
	if err != nil {
		return nil, err
	}
	outputScript, err := p2trScript(internalKey)
	if err != nil {
		return nil, err
	}

	addr, err := btcutil.DecodeAddress(params.ToAddress, params.Network)
	if err != nil {
		return nil, errs.Validationf("walletlib: invalid destination address", err)
	}
	destScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, errs.Validationf("walletlib: cannot script destination address", err)
	}

	available := filterFrozen(params.Utxos, params.FrozenOutpoints)
	if len(available) == 0 {
		return nil, errs.Wallet("no UTXOs available (none or all frozen)")
	}

	tx := wire.NewMsgTx(2)
	var netAmount btcutil.Amount

	if params.AmountSats < 0 {
		// Amount = Max: drain every available UTXO to the destination.
		var total btcutil.Amount
		for _, c := range available {
			tx.AddTxIn(newTxIn(c))
			total += c.Value
		}
		vsize := estimateVSize(len(available), 1)
		fee := btcutil.Amount(float64(vsize) * params.FeeRateSatPerVByte)
		if total <= fee {
			return nil, errs.Wallet("insufficient funds: drain amount does not cover fee")
		}
		netAmount = total - fee
		tx.AddTxOut(wire.NewTxOut(int64(netAmount), destScript))
	} else {
		amt := btcutil.Amount(params.AmountSats)
		selected, change, err := selectCoins(amt, params.FeeRateSatPerVByte, available, 2)
		if err != nil {
			return nil, err
		}
		for _, c := range selected {
			tx.AddTxIn(newTxIn(c))
		}
		tx.AddTxOut(wire.NewTxOut(int64(amt), destScript))
		if change > 0 {
			tx.AddTxOut(wire.NewTxOut(int64(change), outputScript))
		}
		netAmount = amt
	}

	if params.EnableRBF {
		for _, in := range tx.TxIn {
			in.Sequence = wire.MaxTxInSequenceNum - 2
		}
	}

	pkt, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, errs.Walletf("wrap unsigned tx as psbt", err)
	}
	fillWitnessUTXOs(pkt, available, tx, outputScript)

	return &BuildResult{PSBT: pkt, NetAmount: netAmount}, nil
}

// BuildProofOfReserve implements Library: an unsigned PSBT spending every
// supplied UTXO back to the same vault, which is never broadcast — only
// signed far enough to prove key control (spec.md §4.B `proof_of_reserve`).
func (l *ChainBackedLibrary) BuildProofOfReserve(descriptor string, network *chaincfg.Params, utxos []Coin) (*psbt.Packet, error) {
	internalKey, err := parseInternalKey(descriptor)
	if err != nil {
		return nil, err
	}
	outputScript, err := p2trScript(internalKey)
	if err != nil {
		return nil, err
	}
	if len(utxos) == 0 {
		return nil, errs.Wallet("no UTXOs available for proof of reserve")
	}

	tx := wire.NewMsgTx(2)
	var total btcutil.Amount
	for _, c := range utxos {
		tx.AddTxIn(newTxIn(c))
		total += c.Value
	}
	tx.AddTxOut(wire.NewTxOut(int64(total), outputScript))

	pkt, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, errs.Walletf("wrap proof-of-reserve tx as psbt", err)
	}
	fillWitnessUTXOs(pkt, utxos, tx, outputScript)
	return pkt, nil
}

func newTxIn(c Coin) *wire.TxIn {
	hash, err := chainhash.NewHashFromStr(c.TxID)
	if err != nil {
		hash = &chainhash.Hash{}
	}
	return wire.NewTxIn(wire.NewOutPoint(hash, c.Vout), nil, nil)
}

func fillWitnessUTXOs(pkt *psbt.Packet, coins []Coin, tx *wire.MsgTx, script []byte) {
	for i := range pkt.Inputs {
		if i >= len(coins) {
			break
		}
		pkt.Inputs[i].WitnessUtxo = wire.NewTxOut(int64(coins[i].Value), script)
	}
}

// p2trScript builds a key-path-only taproot output script. Script-path
// spends (the general miniscript tree) are the external Wallet Library's
// job in full (spec.md §1 Non-goals); this module only exercises the
// key-path branch, which is sufficient for the 1-of-1/threshold-satisfied
// internal-key paths this package's policy tree reasons about.
func p2trScript(internalKey *btcec.PublicKey) ([]byte, error) {
	xOnly := schnorr.SerializePubKey(internalKey)
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_1).
		AddData(xOnly).
		Script()
	if err != nil {
		return nil, errs.Walletf("build taproot output script", err)
	}
	return script, nil
}
