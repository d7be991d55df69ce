package services

import (
	"sync"

	"github.com/rs/zerolog"
)

// Socket event names, matching what the web client listens for.
const (
	EventNewRound    = "new-round"
	EventNewPlayer   = "new-player"
	EventGameLocked  = "game-locked"
	EventGameRolled  = "game-rolled"
	EventGameSettled = "game-settled"
	EventHistory     = "add-game-to-history"
)

// Event is one broadcast message from the round engine.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// EventBus fans round events out to subscribers. Each subscriber gets its own
// buffered channel; a subscriber that falls behind loses events instead of
// blocking the engine.
type EventBus struct {
	mu      sync.Mutex
	subs    map[int]chan Event
	nextID  int
	buffer  int
	dropped int64
	logger  zerolog.Logger
}

func NewEventBus(buffer int, logger zerolog.Logger) *EventBus {
	if buffer <= 0 {
		buffer = 64
	}
	return &EventBus{
		subs:   make(map[int]chan Event),
		buffer: buffer,
		logger: logger.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. Unsubscribing closes the channel.
func (b *EventBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan Event, b.buffer)
	b.subs[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}

	return ch, unsubscribe
}

// Publish delivers the event to every subscriber without blocking.
func (b *EventBus) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			b.dropped++
			b.logger.Warn().
				Int("subscriber", id).
				Str("event", evt.Type).
				Msg("Subscriber buffer full, dropping event")
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *EventBus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
