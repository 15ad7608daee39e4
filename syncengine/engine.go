// Package syncengine implements the Sync Engine (spec.md §4.E): the set of
// long-running tasks that keep the local replica converging with the relay
// pool and the chain, all cancellable via one shared abort handle.
package syncengine

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/smartvaults/svengine/chain"
	"github.com/smartvaults/svengine/handler"
	"github.com/smartvaults/svengine/ids"
	"github.com/smartvaults/svengine/notifier"
	"github.com/smartvaults/svengine/protocol"
	"github.com/smartvaults/svengine/relay"
	"github.com/smartvaults/svengine/store"
	"github.com/smartvaults/svengine/walletmgr"
)

// subscribedKinds is "the protocol kinds plus metadata/contact-list/
// nostr-connect" (spec.md §4.E relay subscription).
var subscribedKinds = []protocol.Kind{
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

// Engine is the Sync Engine.
type Engine struct {
	store   *store.Store
	wallets *walletmgr.Manager
	handler *handler.Handler
	chain   chain.Client
	relays  []relay.Client
	bus     *notifier.Bus
	cfg     Config
	self    ids.PubKey
	metrics *metrics

	mu      sync.Mutex
	syncing bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	heightMu       sync.Mutex
	height         uint32
	lastHeightSync time.Time

	rebroadcastMu   sync.Mutex
	lastRebroadcast time.Time
}

// New constructs an Engine. reg may be nil to skip metrics registration
// (tests use this to avoid colliding with the global default registry).
func New(st *store.Store, wallets *walletmgr.Manager, h *handler.Handler, chainClient chain.Client, relays []relay.Client, bus *notifier.Bus, self ids.PubKey, cfg Config, reg prometheus.Registerer) *Engine {
	return &Engine{
		store:   st,
		wallets: wallets,
		handler: h,
		chain:   chainClient,
		relays:  relays,
		bus:     bus,
		cfg:     cfg,
		self:    self,
		metrics: newMetrics(reg),
	}
}

// Start launches every task. A second call while already syncing is a
// no-op (spec.md §4.E Cancellation: "a single boolean flag `syncing`
// guards entry into sync; a reentrant call is a no-op").
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.syncing {
		return
	}
	e.syncing = true

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.wg.Add(5 + len(e.relays))
	go e.runTicker(ctx, "block_height_sync", blockHeightTick, e.syncBlockHeight)
	go e.runTicker(ctx, "vault_chain_sync", walletSyncTick, e.syncVaults)
	go e.runTicker(ctx, "pending_replay", pendingTick, e.replayPending)
	go e.runTicker(ctx, "metadata_prefetch", metadataTick, e.prefetchMetadata)
	go e.runTicker(ctx, "rebroadcast", rebroadcastTick, e.rebroadcast)
	for _, r := range e.relays {
		go e.runRelaySubscription(ctx, r)
	}
}

// Stop aborts every task and waits for them to exit. Shutdown order is
// "stop relay pool → abort tasks → close store" (spec.md §5); Stop covers
// the middle step, and flips `syncing` off only once every task handle has
// returned.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	e.wg.Wait()
	e.mu.Lock()
	e.syncing = false
	e.cancel = nil
	e.mu.Unlock()
}

func (e *Engine) runTicker(ctx context.Context, name string, tick time.Duration, fn func() error) {
	defer e.wg.Done()
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.metrics.tick(name)
			if err := fn(); err != nil {
				e.metrics.fail(name)
			}
		}
	}
}

// --- Block-height syncer -------------------------------------------------

func (e *Engine) syncBlockHeight() error {
	e.heightMu.Lock()
	stale := time.Since(e.lastHeightSync) >= e.cfg.BlockHeightSyncInterval
	e.heightMu.Unlock()
	if !stale {
		return nil
	}
	height, err := e.chain.Tip()
	if err != nil {
		return err
	}
	e.heightMu.Lock()
	e.height = height
	e.lastHeightSync = time.Now()
	e.heightMu.Unlock()
	e.metrics.height.Set(float64(height))
	e.bus.Publish(notifier.BlockHeightUpdated(height))
	return nil
}

// --- Vault chain syncer ---------------------------------------------------

func (e *Engine) syncVaults() error {
	vaultIDs, err := e.store.ListVaultIDs()
	if err != nil {
		return err
	}
	var firstErr error
	for _, id := range vaultIDs {
		lastSync, err := e.wallets.LastSyncAt(id)
		if err != nil {
			continue // not loaded (yet): nothing to sync
		}
		if time.Since(lastSync) < e.cfg.WalletSyncInterval {
			continue
		}
		if err := e.wallets.Sync(id); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		e.bus.Publish(notifier.WalletSyncCompleted(id))
	}
	return firstErr
}

// --- Pending-event replayer ------------------------------------------------

func (e *Engine) replayPending() error {
	return e.handler.ReplayPending()
}

// --- Metadata prefetcher ---------------------------------------------------

func (e *Engine) prefetchMetadata() error {
	participants, err := e.store.ListKnownParticipants()
	if err != nil {
		return err
	}
	var stalePubkeys []ids.PubKey
	for _, pk := range participants {
		stale, err := e.store.MetadataStale(pk, e.cfg.MetadataSyncInterval)
		if err != nil {
			return err
		}
		if stale {
			stalePubkeys = append(stalePubkeys, pk)
		}
	}
	if len(stalePubkeys) == 0 {
		return nil
	}
	for _, r := range e.relays {
		ch, subID, err := r.Subscribe(relay.Filter{
			Authors: stalePubkeys,
			Kinds:   []protocol.Kind{protocol.KindMetadata},
		})
		if err != nil {
			continue
		}
		e.drainBoundedSubscription(r, ch, subID, 5*time.Second)
	}
	return nil
}

// drainBoundedSubscription feeds events to the handler for up to deadline,
// the "time-bounded deadline" §4.E calls for on a one-shot metadata
// request, then unsubscribes.
func (e *Engine) drainBoundedSubscription(r relay.Client, ch <-chan interface{}, subID string, deadline time.Duration) {
	defer r.Unsubscribe(subID)
	timeout := time.NewTimer(deadline)
	defer timeout.Stop()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			switch v := msg.(type) {
			case *protocol.Event:
				_ = e.handler.Handle(v)
			case relay.EndOfStoredEvents:
				return
			}
		case <-timeout.C:
			return
		}
	}
}

// --- Rebroadcaster ----------------------------------------------------------

func (e *Engine) rebroadcast() error {
	e.rebroadcastMu.Lock()
	stale := time.Since(e.lastRebroadcast) >= e.cfg.RebroadcastInterval
	e.rebroadcastMu.Unlock()
	if !stale {
		return nil
	}
	events, err := e.store.ListEventsForRebroadcast()
	if err != nil {
		return err
	}
	var firstErr error
	for _, r := range e.relays {
		for _, ev := range events {
			if err := r.Publish(ev); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	e.rebroadcastMu.Lock()
	e.lastRebroadcast = time.Now()
	e.rebroadcastMu.Unlock()
	return firstErr
}

// --- Relay subscription lifecycle -----------------------------------------

func (e *Engine) runRelaySubscription(ctx context.Context, r relay.Client) {
	defer e.wg.Done()
	if err := r.Connect(); err != nil {
		return
	}

	since, err := e.store.RelayLastSync(r.URL())
	if err != nil {
		since = time.Time{}
	}

	selfCh, selfSub, err := r.Subscribe(relay.Filter{Authors: []ids.PubKey{e.self}, Kinds: subscribedKinds, Since: since})
	if err != nil {
		return
	}
	defer r.Unsubscribe(selfSub)

	taggedCh, taggedSub, err := r.Subscribe(relay.Filter{Tags: map[string][]string{"p": {e.self.String()}}, Kinds: subscribedKinds, Since: since})
	if err != nil {
		return
	}
	defer r.Unsubscribe(taggedSub)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-selfCh:
			if !ok {
				return
			}
			e.dispatchSubscriptionMessage(r, msg)
		case msg, ok := <-taggedCh:
			if !ok {
				return
			}
			e.dispatchSubscriptionMessage(r, msg)
		}
	}
}

func (e *Engine) dispatchSubscriptionMessage(r relay.Client, msg interface{}) {
	switch v := msg.(type) {
	case *protocol.Event:
		_ = e.handler.Handle(v)
	case relay.EndOfStoredEvents:
		_ = e.store.SetRelayLastSync(r.URL(), time.Now())
	}
}
