package testutil

import (
	"fmt"
	"sync"

	"github.com/smartvaults/svengine/chain"
)

// FakeChainClient is an in-memory chain.Client: no real Bitcoin network,
// a fixed tip height, UTXOs seeded by the test, and every broadcast
// recorded rather than sent anywhere.
type FakeChainClient struct {
	mu         sync.Mutex
	tip        uint32
	utxos      map[string][]chain.UTXO
	feeRate    float64
	Broadcasts []string
}

// NewFakeChainClient builds a FakeChainClient with a tip of 100 and a
// default fee rate of 1 sat/vB.
func NewFakeChainClient() *FakeChainClient {
	return &FakeChainClient{
		tip:     100,
		utxos:   make(map[string][]chain.UTXO),
		feeRate: 1,
	}
}

// SetTip overrides the reported tip height.
func (c *FakeChainClient) SetTip(height uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tip = height
}

// SeedUTXO adds a spendable UTXO for address, as GetUTXOs would report it.
func (c *FakeChainClient) SeedUTXO(address string, u chain.UTXO) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.utxos[address] = append(c.utxos[address], u)
}

func (c *FakeChainClient) Tip() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tip, nil
}

func (c *FakeChainClient) Broadcast(rawTxHex string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Broadcasts = append(c.Broadcasts, rawTxHex)
	return fmt.Sprintf("fake-txid-%d", len(c.Broadcasts)), nil
}

func (c *FakeChainClient) EstimateFee(targetBlocks int) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.feeRate, nil
}

func (c *FakeChainClient) GetUTXOs(address string) ([]chain.UTXO, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chain.UTXO(nil), c.utxos[address]...), nil
}

func (c *FakeChainClient) GetAddressTxs(address string) ([]chain.Tx, error) {
	return nil, nil
}

var _ chain.Client = (*FakeChainClient)(nil)
