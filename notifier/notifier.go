// Package notifier implements the Notification Bus (spec.md §4.G): a
// broadcast channel delivering typed messages to every subscriber. Slow
// subscribers lag but never block the engine — each subscriber gets its
// own bounded, drop-oldest queue, the same guarantee the teacher's
// `channelnotifier`/`peernotifier` packages give their listeners (see
// log.go's subsystem registrations; the packages themselves were not
// retrieved, so the fan-out below is a fresh implementation of the same
// broadcast-to-many-subscribers shape).
package notifier

import (
	"sync"

	"github.com/smartvaults/svengine/ids"
)

// Kind tags a Message's variant (spec.md §4.G).
type Kind int

const (
	KindNotification Kind = iota + 1
	KindEventHandled
	KindWalletSyncCompleted
	KindBlockHeightUpdated
)

// NotificationKind tags the originating-action variant of a KindNotification
// message (spec.md §3 Notification).
type NotificationKind int

const (
	NotificationNewVault NotificationKind = iota + 1
	NotificationNewProposal
	NotificationNewApproval
	NotificationNewCompletedProposal
	NotificationNewSharedSigner
)

func (k NotificationKind) String() string {
	switch k {
	case NotificationNewVault:
		return "NewPolicy"
	case NotificationNewProposal:
		return "NewProposal"
	case NotificationNewApproval:
		return "NewApproval"
	case NotificationNewCompletedProposal:
		return "NewCompletedProposal"
	case NotificationNewSharedSigner:
		return "NewSharedSigner"
	default:
		return "unknown"
	}
}

// Message is the tagged variant broadcast on the bus.
type Message struct {
	Kind Kind

	// KindNotification
	NotificationKind NotificationKind
	EventID          ids.EventID

	// KindEventHandled
	EventKind string

	// KindWalletSyncCompleted
	VaultID ids.VaultID

	// KindBlockHeightUpdated
	Height uint32
}

// Notification builds a KindNotification message.
func Notification(kind NotificationKind, eventID ids.EventID) Message {
	return Message{Kind: KindNotification, NotificationKind: kind, EventID: eventID}
}

// EventHandled builds a KindEventHandled message.
func EventHandled(eventKind string, id ids.EventID) Message {
	return Message{Kind: KindEventHandled, EventKind: eventKind, EventID: id}
}

// WalletSyncCompleted builds a KindWalletSyncCompleted message.
func WalletSyncCompleted(vaultID ids.VaultID) Message {
	return Message{Kind: KindWalletSyncCompleted, VaultID: vaultID}
}

// BlockHeightUpdated builds a KindBlockHeightUpdated message.
func BlockHeightUpdated(height uint32) Message {
	return Message{Kind: KindBlockHeightUpdated, Height: height}
}

// queueSize bounds each subscriber's private channel; once full, the
// oldest buffered message is dropped to make room for the newest one
// (spec.md §4.G: "a bounded queue with drop-oldest semantics is
// acceptable").
const queueSize = 256

// Bus is the Notification Bus: multiple independent subscribers may
// observe the same stream of Messages.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Message
	next int
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[int]chan Message)}
}

// Subscribe registers a new listener and returns its channel plus a
// cancel func that unregisters it.
func (b *Bus) Subscribe() (<-chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Message, queueSize)
	b.subs[id] = ch
	return ch, func() { b.unsubscribe(id) }
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers msg to every current subscriber. A subscriber whose
// queue is full has its oldest message dropped to make room, so Publish
// never blocks on a slow listener.
func (b *Bus) Publish(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- msg:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- msg:
			default:
			}
		}
	}
}

// Close unregisters and closes every subscriber channel, used on engine
// shutdown.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
