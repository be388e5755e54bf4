// AngelaMos | 2026
// hub_test.go

package realtime

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestHubSubscribePublish(t *testing.T) {
	hub := NewHub(4)

	ch, cancel := hub.Subscribe("t1")
	defer cancel()

	if got := hub.SubscriberCount("t1"); got != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", got)
	}

	ev := Event{ThreadID: "t1", PostID: 42, Payload: []byte(`{"id":42}`)}
	hub.Publish(ev)

	select {
	case got := <-ch:
		if got.PostID != 42 {
			t.Errorf("PostID = %d, want 42", got.PostID)
		}
		if string(got.Payload) != `{"id":42}` {
			t.Errorf("Payload = %s", got.Payload)
		}
	default:
		t.Fatal("event not delivered")
	}
}

func TestHubPublishOtherThreadNotDelivered(t *testing.T) {
	hub := NewHub(4)

	ch, cancel := hub.Subscribe("t1")
	defer cancel()

	hub.Publish(Event{ThreadID: "t2", PostID: 1})

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event for thread %s", ev.ThreadID)
	default:
	}
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(2)

	ch, cancel := hub.Subscribe("t1")
	defer cancel()

	for i := int64(1); i <= 5; i++ {
		hub.Publish(Event{ThreadID: "t1", PostID: i})
	}

	// Only the first two fit; the rest were dropped, not blocked on.
	var got []int64
	for {
		select {
		case ev := <-ch:
			got = append(got, ev.PostID)
			continue
		default:
		}
		break
	}

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("delivered = %v, want first two events", got)
	}
}

func TestHubCancelRemovesSubscriber(t *testing.T) {
	hub := NewHub(4)

	ch, cancel := hub.Subscribe("t1")
	cancel()

	if got := hub.SubscriberCount("t1"); got != 0 {
		t.Errorf("SubscriberCount after cancel = %d, want 0", got)
	}

	// Canceled subscriber's channel is closed.
	if _, open := <-ch; open {
		t.Error("channel still open after cancel")
	}

	// Safe to call again.
	cancel()

	// Publishing to the now-empty thread is a no-op.
	hub.Publish(Event{ThreadID: "t1", PostID: 1})
}

func TestHubIndependentSubscribers(t *testing.T) {
	hub := NewHub(4)

	ch1, cancel1 := hub.Subscribe("t1")
	ch2, cancel2 := hub.Subscribe("t1")
	defer cancel1()
	defer cancel2()

	hub.Publish(Event{ThreadID: "t1", PostID: 7})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.PostID != 7 {
				t.Errorf("subscriber %d: PostID = %d, want 7", i, ev.PostID)
			}
		default:
			t.Errorf("subscriber %d: event not delivered", i)
		}
	}
}

func TestBridgeDropsOwnEchoes(t *testing.T) {
	hub := NewHub(4)
	bridge := NewBridge(nil, hub, slog.Default())

	ch, cancel := hub.Subscribe("t1")
	defer cancel()

	own, err := json.Marshal(envelope{
		Origin:   bridge.Origin(),
		ThreadID: "t1",
		PostID:   1,
		Payload:  json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	bridge.handleMessage(&redis.Message{
		Channel: "thread:t1:posts",
		Payload: string(own),
	})

	select {
	case <-ch:
		t.Fatal("own echo was fanned out")
	default:
	}

	remote, err := json.Marshal(envelope{
		Origin:   "other-instance",
		ThreadID: "t1",
		PostID:   2,
		Payload:  json.RawMessage(`{"id":2}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	bridge.handleMessage(&redis.Message{
		Channel: "thread:t1:posts",
		Payload: string(remote),
	})

	select {
	case ev := <-ch:
		if ev.PostID != 2 || ev.Origin != "other-instance" {
			t.Errorf("event = %+v", ev)
		}
	default:
		t.Fatal("remote event not fanned out")
	}
}

func TestBridgeMalformedMessageIgnored(t *testing.T) {
	hub := NewHub(4)
	bridge := NewBridge(nil, hub, slog.Default())

	ch, cancel := hub.Subscribe("t1")
	defer cancel()

	bridge.handleMessage(&redis.Message{
		Channel: "thread:t1:posts",
		Payload: "not json",
	})

	select {
	case <-ch:
		t.Fatal("malformed message was fanned out")
	default:
	}
}

func TestThreadIDFromChannel(t *testing.T) {
	tests := []struct {
		channel string
		want    string
	}{
		{"thread:abc-123:posts", "abc-123"},
		{"thread::posts", ""},
		{"other:abc:posts", ""},
		{"thread:abc", ""},
	}

	for _, tt := range tests {
		if got := threadIDFromChannel(tt.channel); got != tt.want {
			t.Errorf("threadIDFromChannel(%q) = %q, want %q",
				tt.channel, got, tt.want)
		}
	}
}
