package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Bus publishes events into per-actor rooms. The realtime transport
// subscribes on the other side and fans out to connected clients.
type Bus interface {
	Publish(ctx context.Context, room, event string, payload interface{}) error
}

// Envelope is the wire format published to a room channel.
type Envelope struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"ts"`
}

// RedisBus publishes envelopes over Redis pub/sub, one channel per room.
type RedisBus struct {
	client *redis.Client
	logger *zap.SugaredLogger
}

func NewRedisBus(client *redis.Client, logger *zap.SugaredLogger) *RedisBus {
	return &RedisBus{client: client, logger: logger}
}

func (b *RedisBus) Publish(ctx context.Context, room, event string, payload interface{}) error {
	data, err := json.Marshal(Envelope{Event: event, Data: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, room, data).Err(); err != nil {
		b.logger.Errorw("Failed to publish event", "room", room, "event", event, "error", err)
		return err
	}
	return nil
}

// Published is one recorded MemoryBus emission.
type Published struct {
	Room    string
	Event   string
	Payload interface{}
}

// MemoryBus records events in memory. Used by tests.
type MemoryBus struct {
	mu     sync.Mutex
	events []Published
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Publish(_ context.Context, room, event string, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, Published{Room: room, Event: event, Payload: payload})
	return nil
}

// Events returns a snapshot of everything published so far.
func (b *MemoryBus) Events() []Published {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Published, len(b.events))
	copy(out, b.events)
	return out
}

// ByEvent filters the recorded events by name.
func (b *MemoryBus) ByEvent(event string) []Published {
	var out []Published
	for _, e := range b.Events() {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
