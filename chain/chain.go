// Package chain implements the Chain Client external collaborator
// (spec.md §1, §6): tip height, UTXO/transaction lookups, broadcast, and
// fee estimation against a Bitcoin indexer.
package chain

// UTXO is one unspent output as reported by the indexer.
type UTXO struct {
	TxID       string
	Vout       uint32
	Value      int64
	Height     uint32 // 0 if unconfirmed
	ScriptHex  string
	Address    string
}

// Tx is a minimal transaction summary as reported by the indexer.
type Tx struct {
	TxID   string
	Height uint32 // 0 if unconfirmed
}

// Client is the collaborator the Wallet Manager/Wallet Library depend on
// for all on-chain data (spec.md §6: "get_tip() -> height, broadcast(tx),
// estimate_fee(target_blocks) -> sat_per_kvB, sync(wallet, options)").
type Client interface {
	// Tip returns the current best block height.
	Tip() (uint32, error)

	// Broadcast submits rawTxHex to the network and returns its txid.
	Broadcast(rawTxHex string) (string, error)

	// EstimateFee returns a fee rate, in sat/vB, that targets confirmation
	// within targetBlocks blocks.
	EstimateFee(targetBlocks int) (satPerVByte float64, err error)

	// GetUTXOs lists every unspent output paying address.
	GetUTXOs(address string) ([]UTXO, error)

	// GetAddressTxs lists every transaction touching address.
	GetAddressTxs(address string) ([]Tx, error)
}
