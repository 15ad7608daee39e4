package testutil

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/smartvaults/svengine/ids"
	"github.com/smartvaults/svengine/protocol"
	"github.com/smartvaults/svengine/relay"
)

func TestHubDeliversPublishedEventToMatchingSubscriber(t *testing.T) {
	hub := NewHub("mem://test")
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pub := protocol.PubKeyFromPrivate(priv)

	b := protocol.NewBuilder()
	ev, err := b.SignerEvent(priv, pub, []byte(`{}`))
	require.NoError(t, err)

	sub := hub.Client()
	ch, _, err := sub.Subscribe(relay.Filter{Authors: []ids.PubKey{pub}})
	require.NoError(t, err)

	// The backlog is empty at subscribe time: only end-of-stored-events.
	select {
	case msg := <-ch:
		_, ok := msg.(relay.EndOfStoredEvents)
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("expected end-of-stored-events marker")
	}

	pub1 := hub.Client()
	require.NoError(t, pub1.Publish(ev))

	select {
	case msg := <-ch:
		got, ok := msg.(*protocol.Event)
		require.True(t, ok)
		require.Equal(t, ev.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("expected published event to be delivered")
	}
}

func TestHubFilterByAuthorExcludesOtherAuthors(t *testing.T) {
	hub := NewHub("mem://test")
	privA, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pubA := protocol.PubKeyFromPrivate(privA)
	privB, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pubB := protocol.PubKeyFromPrivate(privB)

	b := protocol.NewBuilder()
	evB, err := b.SignerEvent(privB, pubB, []byte(`{}`))
	require.NoError(t, err)

	client := hub.Client()
	ch, _, err := client.Subscribe(relay.Filter{Authors: []ids.PubKey{pubA}})
	require.NoError(t, err)
	<-ch // end-of-stored-events

	require.NoError(t, client.Publish(evB))

	select {
	case msg := <-ch:
		t.Fatalf("expected no delivery for non-matching author, got %v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubBacklogReplaysPriorEventsOnNewSubscription(t *testing.T) {
	hub := NewHub("mem://test")
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pub := protocol.PubKeyFromPrivate(priv)

	b := protocol.NewBuilder()
	ev, err := b.SignerEvent(priv, pub, []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, hub.Client().Publish(ev))

	ch, _, err := hub.Client().Subscribe(relay.Filter{Authors: []ids.PubKey{pub}})
	require.NoError(t, err)

	select {
	case msg := <-ch:
		got, ok := msg.(*protocol.Event)
		require.True(t, ok)
		require.Equal(t, ev.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("expected backlog event before end-of-stored-events")
	}
}
