// Package walletlib implements the Wallet Library external collaborator
// (spec.md §1, §6): descriptor parsing, PSBT construction, signing, and
// proof-of-reserve construction and verification. UTXOs are fetched by the
// Wallet Manager from the Chain Client, and PSBT combine/finalize is done
// by proposal.Finalize, not by this package.
package walletlib

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/smartvaults/svengine/chain"
)

// Coin is a spendable UTXO candidate for coin selection, grounded on
// `lnwallet/chanfunding/coin_select.go`'s `Coin` (an outpoint plus its
// output), generalized here from channel-funding P2PKH/P2SH inputs to
// taproot key-path/script-path spends.
type Coin struct {
	TxID          string
	Vout          uint32
	Value         btcutil.Amount
	ScriptPath    bool // true if spending requires a script-path witness
	LeafScriptLen int

	// Confirmations is this UTXO's depth as of the wallet's last sync, 0 if
	// unconfirmed. It only feeds relative-timelock enforcement (spec.md
	// §4.B); BuildSpend's coin selection ignores it.
	Confirmations uint32
}

// BuildParams describes a spend request (spec.md §4.B `spend`/
// `proof_of_reserve`).
type BuildParams struct {
	Descriptor       string
	Network          *chaincfg.Params
	Utxos            []Coin
	FrozenOutpoints  map[string]bool // "txid:vout" -> frozen
	ToAddress        string          // empty for proof-of-reserve
	AmountSats       int64           // -1 means drain-to-address (Amount = Max)
	FeeRateSatPerVByte float64
	PolicyPath       map[string][]int
	EnableRBF        bool
}

// BuildResult is the outcome of constructing an unsigned spend PSBT.
type BuildResult struct {
	PSBT     *psbt.Packet
	NetAmount btcutil.Amount // sent − received − fee, meaningful when AmountSats == -1
}

// Library is the collaborator the Wallet Manager depends on for every
// descriptor/PSBT operation (spec.md §6: "parse descriptor; construct
// wallet with persistence backend; list/scan UTXOs; build tx ...; sign
// PSBT with custom signers; combine and finalize PSBT; create
// proof-of-reserve PSBT; verify proof").
type Library interface {
	// ParseDescriptor validates descriptor and extracts its internal key.
	ParseDescriptor(descriptor string) (internalKey *btcec.PublicKey, err error)

	// BuildSpend constructs an unsigned PSBT for a spending proposal.
	BuildSpend(params BuildParams) (*BuildResult, error)

	// BuildProofOfReserve constructs an unsigned, unbroadcastable PSBT that
	// proves control over the vault's full balance.
	BuildProofOfReserve(descriptor string, network *chaincfg.Params, utxos []Coin) (*psbt.Packet, error)

	// SignPSBT adds this signer's partial signature(s) to pkt in place.
	SignPSBT(pkt *psbt.Packet, priv *btcec.PrivateKey) error

	// VerifyProof checks a finalized proof-of-reserve PSBT against message
	// and returns the total satisfied amount.
	VerifyProof(pkt *psbt.Packet, descriptor string, message string) (btcutil.Amount, error)
}

// ChainBackedLibrary is the psbt/btcutil-backed Library implementation. It
// holds a chain.Client, which none of its methods consult.
type ChainBackedLibrary struct {
	Chain chain.Client
}

// NewChainBackedLibrary builds a Library backed by c.
func NewChainBackedLibrary(c chain.Client) *ChainBackedLibrary {
	return &ChainBackedLibrary{Chain: c}
}
