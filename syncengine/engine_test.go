package syncengine

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/smartvaults/svengine/chain"
	"github.com/smartvaults/svengine/cryptutil"
	"github.com/smartvaults/svengine/handler"
	"github.com/smartvaults/svengine/ids"
	"github.com/smartvaults/svengine/notifier"
	"github.com/smartvaults/svengine/protocol"
	"github.com/smartvaults/svengine/relay"
	"github.com/smartvaults/svengine/store"
	"github.com/smartvaults/svengine/walletmgr"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	key, err := cryptutil.GenerateSharedKey()
	require.NoError(t, err)
	st, err := store.Open(filepath.Join(t.TempDir(), "sync.db"), key)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newIdentity(t *testing.T) (*btcec.PrivateKey, ids.PubKey) {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv, protocol.PubKeyFromPrivate(priv)
}

func TestSyncBlockHeightRespectsStaleness(t *testing.T) {
	st := newTestStore(t)
	priv, pub := newIdentity(t)
	wallets := walletmgr.New(nil, nil)
	bus := notifier.New()
	t.Cleanup(bus.Close)
	h := handler.New(st, wallets, bus, priv, nil)

	ch := &fakeChainClient{tip: 100}
	cfg := DefaultConfig()
	cfg.BlockHeightSyncInterval = time.Hour
	e := New(st, wallets, h, ch, nil, bus, pub, cfg, nil)

	msgs, cancel := bus.Subscribe()
	defer cancel()

	require.NoError(t, e.syncBlockHeight())
	require.Equal(t, 1, ch.calls)

	select {
	case m := <-msgs:
		require.Equal(t, notifier.KindBlockHeightUpdated, m.Kind)
		require.Equal(t, uint32(100), m.Height)
	case <-time.After(time.Second):
		t.Fatal("expected a BlockHeightUpdated notification")
	}

	// A second call within the interval must not re-query the chain.
	require.NoError(t, e.syncBlockHeight())
	require.Equal(t, 1, ch.calls)
}

func TestSyncVaultsWithNoVaultsIsNoop(t *testing.T) {
	st := newTestStore(t)
	priv, pub := newIdentity(t)
	wallets := walletmgr.New(nil, nil)
	bus := notifier.New()
	t.Cleanup(bus.Close)
	h := handler.New(st, wallets, bus, priv, nil)

	e := New(st, wallets, h, &fakeChainClient{}, nil, bus, pub, DefaultConfig(), nil)

	// No vaults recorded at all: nothing to do, no error.
	require.NoError(t, e.syncVaults())
}

func TestRebroadcastGatedByInterval(t *testing.T) {
	st := newTestStore(t)
	priv, pub := newIdentity(t)
	wallets := walletmgr.New(nil, nil)
	bus := notifier.New()
	t.Cleanup(bus.Close)
	h := handler.New(st, wallets, bus, priv, nil)

	b := protocol.NewBuilder()
	ev, err := b.SignerEvent(priv, pub, []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, st.SaveEvent(ev))

	r := &fakeRelayClient{url: "wss://relay.example"}
	cfg := DefaultConfig()
	cfg.RebroadcastInterval = time.Hour
	e := New(st, wallets, h, &fakeChainClient{}, []relay.Client{r}, bus, pub, cfg, nil)

	require.NoError(t, e.rebroadcast())
	require.Equal(t, 1, r.publishCount)

	// Second call within the interval must not republish.
	require.NoError(t, e.rebroadcast())
	require.Equal(t, 1, r.publishCount)
}

func TestStartStopIsIdempotentAndClean(t *testing.T) {
	st := newTestStore(t)
	priv, pub := newIdentity(t)
	wallets := walletmgr.New(nil, nil)
	bus := notifier.New()
	t.Cleanup(bus.Close)
	h := handler.New(st, wallets, bus, priv, nil)

	e := New(st, wallets, h, &fakeChainClient{}, nil, bus, pub, DefaultConfig(), nil)

	e.Start()
	e.Start() // reentrant: must not spawn a second set of tasks
	e.Stop()
	e.Stop() // idempotent: must not block or panic
}

type fakeChainClient struct {
	tip   uint32
	calls int
}

func (f *fakeChainClient) Tip() (uint32, error) {
	f.calls++
	return f.tip, nil
}
func (f *fakeChainClient) Broadcast(string) (string, error)          { return "", nil }
func (f *fakeChainClient) EstimateFee(int) (float64, error)          { return 0, nil }
func (f *fakeChainClient) GetUTXOs(string) ([]chain.UTXO, error)     { return nil, nil }
func (f *fakeChainClient) GetAddressTxs(string) ([]chain.Tx, error)  { return nil, nil }

var _ chain.Client = (*fakeChainClient)(nil)

type fakeRelayClient struct {
	url          string
	publishCount int
}

func (f *fakeRelayClient) URL() string    { return f.url }
func (f *fakeRelayClient) Connect() error { return nil }
func (f *fakeRelayClient) Close() error   { return nil }
func (f *fakeRelayClient) Publish(*protocol.Event) error {
	f.publishCount++
	return nil
}
func (f *fakeRelayClient) Subscribe(relay.Filter) (<-chan interface{}, string, error) {
	ch := make(chan interface{})
	close(ch)
	return ch, "sub", nil
}
func (f *fakeRelayClient) Unsubscribe(string) error { return nil }

var _ relay.Client = (*fakeRelayClient)(nil)
