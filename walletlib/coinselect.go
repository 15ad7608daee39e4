package walletlib

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/smartvaults/svengine/errs"
)

// Size constants for a single-signature taproot key-path spend, following
// BIP-341/342: a key-path input's witness is one 64- or 65-byte schnorr
// signature; inputs/outputs otherwise follow the standard compact-size
// prefixed layout. Values are vbytes.
const (
	txOverheadVBytes    = 11 // version + segwit marker/flag + locktime + counts, rounded
	txInBaseVBytes      = 41 // outpoint(36) + empty scriptSig varint(1) + sequence(4)
	taprootKeyWitnessVB = 17 // 65-byte witness amortized by the segwit discount (65/4 rounded up) + item count
	txOutBaseVBytes     = 43 // value(8) + taproot scriptPubKey(1+1+32) + varint
)

func estimateVSize(numInputs, numOutputs int) int64 {
	return int64(txOverheadVBytes) +
		int64(numInputs)*int64(txInBaseVBytes+taprootKeyWitnessVB) +
		int64(numOutputs)*int64(txOutBaseVBytes)
}

// selectCoins takes coins in the order given, without sorting (grounded on
// `lnwallet/chanfunding/coin_select.go`'s `selectInputs`/`CoinSelect`
// iterate-until-fee-covered shape, adapted from P2PKH channel-funding
// inputs to taproot key-path spends) until the selected total covers amt
// plus the fee of the transaction built so far, re-estimating fee each
// round since adding inputs grows the transaction.
func selectCoins(amt btcutil.Amount, feeRateSatPerVByte float64, coins []Coin, numOutputs int) ([]Coin, btcutil.Amount, error) {
	amtNeeded := amt
	for {
		selected, total, err := takeCoinsUpTo(amtNeeded, coins)
		if err != nil {
			return nil, 0, err
		}
		vsize := estimateVSize(len(selected), numOutputs)
		fee := btcutil.Amount(float64(vsize) * feeRateSatPerVByte)
		if total < amt+fee {
			amtNeeded = amt + fee
			if amtNeeded > total && len(selected) == len(coins) {
				return nil, 0, errs.Wallet("insufficient funds for requested amount and fee")
			}
			continue
		}
		return selected, total - amt - fee, nil
	}
}

func takeCoinsUpTo(amt btcutil.Amount, coins []Coin) ([]Coin, btcutil.Amount, error) {
	var total btcutil.Amount
	for i, c := range coins {
		total += c.Value
		if total >= amt {
			out := make([]Coin, i+1)
			copy(out, coins[:i+1])
			return out, total, nil
		}
	}
	return nil, 0, errs.Wallet("insufficient funds for requested amount and fee")
}

// filterFrozen drops every coin whose outpoint is in frozen, implementing
// spec.md §4.B: "Frozen UTXOs are those locked by a still-open proposal in
// this participant's replica; they are added as unspendable".
func filterFrozen(coins []Coin, frozen map[string]bool) []Coin {
	if len(frozen) == 0 {
		return coins
	}
	out := make([]Coin, 0, len(coins))
	for _, c := range coins {
		if frozen[outpointKey(c.TxID, c.Vout)] {
			continue
		}
		out = append(out, c)
	}
	return out
}

func outpointKey(txid string, vout uint32) string {
	return txid + ":" + itoa(vout)
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
