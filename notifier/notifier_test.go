package notifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/smartvaults/svengine/ids"
)

func TestBusDeliversToMultipleSubscribers(t *testing.T) {
	b := New()
	ch1, cancel1 := b.Subscribe()
	defer cancel1()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()

	var id ids.EventID
	id[0] = 0x42
	b.Publish(Notification(NotificationNewVault, id))

	for _, ch := range []<-chan Message{ch1, ch2} {
		select {
		case msg := <-ch:
			require.Equal(t, KindNotification, msg.Kind)
			require.Equal(t, NotificationNewVault, msg.NotificationKind)
			require.Equal(t, id, msg.EventID)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive message")
		}
	}
}

func TestBusDropsOldestWhenSubscriberIsSlow(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < queueSize+10; i++ {
		b.Publish(BlockHeightUpdated(uint32(i)))
	}

	// The channel never blocks the publisher and caps at queueSize.
	require.LessOrEqual(t, len(ch), queueSize)

	last := Message{}
	for {
		select {
		case msg := <-ch:
			last = msg
		default:
			goto done
		}
	}
done:
	require.Equal(t, KindBlockHeightUpdated, last.Kind)
	require.Equal(t, uint32(queueSize+9), last.Height)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()
	cancel()

	_, ok := <-ch
	require.False(t, ok)
}

func TestCloseUnregistersAllSubscribers(t *testing.T) {
	b := New()
	ch, _ := b.Subscribe()
	b.Close()

	_, ok := <-ch
	require.False(t, ok)
}
