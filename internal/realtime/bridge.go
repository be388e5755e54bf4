// AngelaMos | 2026
// bridge.go

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const channelPattern = "thread:*:posts"

func channelFor(threadID string) string {
	return "thread:" + threadID + ":posts"
}

type envelope struct {
	Origin   string          `json:"origin"`
	ThreadID string          `json:"thread_id"`
	PostID   int64           `json:"post_id"`
	Payload  json.RawMessage `json:"payload"`
}

// Bridge carries post events across processes through redis pub/sub.
// Every instance publishes to the thread channel and subscribes to all of
// them; events stamped with this instance's origin are dropped on receipt
// because they were already fanned out locally.
type Bridge struct {
	redis  *redis.Client
	hub    *Hub
	origin string
	logger *slog.Logger
}

func NewBridge(rdb *redis.Client, hub *Hub, logger *slog.Logger) *Bridge {
	return &Bridge{
		redis:  rdb,
		hub:    hub,
		origin: uuid.New().String(),
		logger: logger,
	}
}

// Publish fans the event out to local subscribers and broadcasts it to
// the other instances. A redis failure does not fail the publish: local
// subscribers already have the event, and remote clients recover through
// replay on reconnect.
func (b *Bridge) Publish(ctx context.Context, ev Event) {
	ev.Origin = b.origin
	b.hub.Publish(ev)

	msg, err := json.Marshal(envelope{
		Origin:   b.origin,
		ThreadID: ev.ThreadID,
		PostID:   ev.PostID,
		Payload:  ev.Payload,
	})
	if err != nil {
		b.logger.Error("marshal post event", "error", err)
		return
	}

	if err := b.redis.Publish(
		ctx, channelFor(ev.ThreadID), msg,
	).Err(); err != nil {
		b.logger.Warn("redis publish failed",
			"thread_id", ev.ThreadID, "error", err)
	}
}

// Run consumes the cross-instance channel until the context is canceled.
func (b *Bridge) Run(ctx context.Context) error {
	pubsub := b.redis.PSubscribe(ctx, channelPattern)
	defer pubsub.Close() //nolint:errcheck // shutdown path

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis pubsub channel closed")
			}
			b.handleMessage(msg)
		}
	}
}

func (b *Bridge) handleMessage(msg *redis.Message) {
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		b.logger.Warn("malformed bridge message",
			"channel", msg.Channel, "error", err)
		return
	}

	if env.Origin == b.origin {
		return
	}

	threadID := env.ThreadID
	if threadID == "" {
		threadID = threadIDFromChannel(msg.Channel)
	}
	if threadID == "" {
		return
	}

	b.hub.Publish(Event{
		ThreadID: threadID,
		PostID:   env.PostID,
		Payload:  env.Payload,
		Origin:   env.Origin,
	})
}

func threadIDFromChannel(channel string) string {
	rest, ok := strings.CutPrefix(channel, "thread:")
	if !ok {
		return ""
	}
	id, ok := strings.CutSuffix(rest, ":posts")
	if !ok {
		return ""
	}
	return id
}

// Origin exposes the instance id for logging.
func (b *Bridge) Origin() string {
	return b.origin
}
