package testutil

import (
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/smartvaults/svengine/action"
	"github.com/smartvaults/svengine/chain"
	"github.com/smartvaults/svengine/cryptutil"
	"github.com/smartvaults/svengine/handler"
	"github.com/smartvaults/svengine/ids"
	"github.com/smartvaults/svengine/notifier"
	"github.com/smartvaults/svengine/protocol"
	"github.com/smartvaults/svengine/relay"
	"github.com/smartvaults/svengine/store"
	"github.com/smartvaults/svengine/walletlib"
	"github.com/smartvaults/svengine/walletmgr"
)

// protocolKinds is every kind a real participant's Sync Engine subscribes to
// (spec.md §4.E), duplicated here rather than imported so this package never
// depends on syncengine just to drain a subscription in tests.
var protocolKinds = []protocol.Kind{
	protocol.KindVault,
	protocol.KindProposal,
	protocol.KindApprovedProposal,
	protocol.KindCompletedProposal,
	protocol.KindSharedKey,
	protocol.KindSigner,
	protocol.KindSharedSigner,
	protocol.KindLabel,
	protocol.KindDeletion,
	protocol.KindMetadata,
	protocol.KindContactList,
	protocol.KindNostrConnect,
}

// Harness wires together a shared in-memory relay and one store/action
// pair per named participant (spec.md §8's "Alice"/"Bob" scenario actors),
// generalizing lntest/harness.go's NetworkHarness: there, every
// *HarnessNode runs a real lnd process against a shared miner; here every
// Participant runs the real Action API against a shared Hub.
type Harness struct {
	T   *testing.T
	Hub *Hub

	mu           sync.Mutex
	participants map[string]*Participant
}

// Participant is one named actor in an end-to-end scenario.
type Participant struct {
	Name       string
	Priv       *btcec.PrivateKey
	Pub        ids.PubKey
	SigningKey *btcec.PrivateKey
	Store      *store.Store
	Wallets    *walletmgr.Manager
	Bus        *notifier.Bus
	Action     *action.Action
	Handler    *handler.Handler
	Relay      relay.Client

	selfCh   <-chan interface{}
	taggedCh <-chan interface{}
}

// NewHarness creates a Harness with a fresh, empty relay at url.
func NewHarness(t *testing.T, url string) *Harness {
	t.Helper()
	return &Harness{
		T:            t,
		Hub:          NewHub(url),
		participants: make(map[string]*Participant),
	}
}

// NewParticipant registers a participant named name with a fresh identity,
// an isolated on-disk store, and an Action API wired to the shared Hub and
// a no-op Chain Client (sufficient for every scenario that doesn't itself
// assert on broadcast behavior; see NewParticipantWithChain).
func (h *Harness) NewParticipant(name string) *Participant {
	return h.NewParticipantWithChain(name, NewFakeChainClient())
}

// NewParticipantWithChain is NewParticipant with an explicit Chain Client,
// for scenarios that need to assert what got broadcast (spec.md §8
// "finalization succeeds" scenarios, which call chain.Client.Broadcast).
func (h *Harness) NewParticipantWithChain(name string, chainClient chain.Client) *Participant {
	h.T.Helper()

	priv, err := btcec.NewPrivateKey()
	require.NoError(h.T, err)
	pub := protocol.PubKeyFromPrivate(priv)

	key, err := cryptutil.GenerateSharedKey()
	require.NoError(h.T, err)
	st, err := store.Open(h.T.TempDir()+"/"+name+".db", key)
	require.NoError(h.T, err)
	h.T.Cleanup(func() { _ = st.Close() })

	wallets := walletmgr.New(walletlib.NewChainBackedLibrary(chainClient), chainClient)
	bus := notifier.New()
	h.T.Cleanup(bus.Close)

	signingKey, err := btcec.NewPrivateKey()
	require.NoError(h.T, err)

	relayClient := h.Hub.Client()
	act := action.New(st, wallets, bus, []relay.Client{relayClient}, chainClient, priv, signingKey)
	hdl := handler.New(st, wallets, bus, priv, func(ev *protocol.Event) error {
		return relayClient.Publish(ev)
	})

	selfCh, _, err := relayClient.Subscribe(relay.Filter{Authors: []ids.PubKey{pub}, Kinds: protocolKinds})
	require.NoError(h.T, err)
	taggedCh, _, err := relayClient.Subscribe(relay.Filter{Tags: map[string][]string{"p": {pub.String()}}, Kinds: protocolKinds})
	require.NoError(h.T, err)

	p := &Participant{
		Name:       name,
		Priv:       priv,
		Pub:        pub,
		SigningKey: signingKey,
		Store:      st,
		Wallets:    wallets,
		Bus:        bus,
		Action:     act,
		Handler:    hdl,
		Relay:      relayClient,
		selfCh:     selfCh,
		taggedCh:   taggedCh,
	}

	h.mu.Lock()
	h.participants[name] = p
	h.mu.Unlock()
	return p
}

// Participant returns a previously registered participant by name.
func (h *Harness) Participant(name string) *Participant {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.participants[name]
}

// Deliver drains every event currently queued on p's subscriptions into p's
// Handler, the same dispatch runRelaySubscription performs per message, but
// run synchronously on demand rather than from a background goroutine —
// scenario tests call this after an action that should have produced an
// event another participant needs to see (spec.md §8).
func (h *Harness) Deliver(p *Participant) {
	h.T.Helper()
	drain(p.selfCh, p.Handler)
	drain(p.taggedCh, p.Handler)
}

func drain(ch <-chan interface{}, hdl *handler.Handler) {
	for {
		select {
		case msg := <-ch:
			if ev, ok := msg.(*protocol.Event); ok {
				_ = hdl.Handle(ev)
			}
		default:
			return
		}
	}
}
