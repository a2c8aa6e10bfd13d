package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHub_PublishReachesTopicSubscribersOnly(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	a := hub.Subscribe(4)
	defer a.Close()
	b := hub.Subscribe(4)
	defer b.Close()

	require.Equal(t, 1, a.Join("auction:1"))
	require.Equal(t, 1, b.Join("auction:2"))

	n := hub.Publish("auction:1", "new-bid", map[string]string{"amount": "56"})
	require.Equal(t, 1, n)

	select {
	case msg := <-a.C():
		require.Equal(t, "auction:1", msg.Topic)
		require.Equal(t, "new-bid", msg.Event)
	case <-time.After(time.Second):
		t.Fatal("expected message on subscriber a")
	}

	select {
	case msg := <-b.C():
		t.Fatalf("unexpected message on subscriber b: %+v", msg)
	default:
	}
}

func TestHub_FullBufferDropsWithoutBlocking(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	sub := hub.Subscribe(1)
	defer sub.Close()
	sub.Join("t")

	require.Equal(t, 1, hub.Publish("t", "e", 1))
	require.Equal(t, 0, hub.Publish("t", "e", 2))

	msg := <-sub.C()
	require.Equal(t, 1, msg.Data)
}

func TestHub_LeaveAndClose(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	sub := hub.Subscribe(2)
	sub.Join("t1")
	sub.Join("t2")
	require.Equal(t, 1, hub.SubscriberCount("t1"))

	sub.Leave("t1")
	require.Equal(t, 0, hub.SubscriberCount("t1"))
	require.Equal(t, 0, hub.Publish("t1", "e", nil))

	sub.Close()
	sub.Close()
	require.Equal(t, 0, hub.SubscriberCount("t2"))

	_, ok := <-sub.C()
	require.False(t, ok, "expected channel closed")

	// joining after close is a no-op
	require.Equal(t, 0, sub.Join("t1"))
}

func TestHub_ConcurrentPublishAndClose(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		sub := hub.Subscribe(8)
		sub.Join("busy")
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				hub.Publish("busy", "tick", j)
			}
		}()
		go func() {
			defer wg.Done()
			time.Sleep(time.Millisecond)
			sub.Close()
		}()
	}
	wg.Wait()
	require.Equal(t, 0, hub.SubscriberCount("busy"))
}
