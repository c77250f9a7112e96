package session

import (
	"sync"

	"github.com/rs/zerolog"
)

// Lifecycle event names.
const (
	EventConnect    = "session_connect"
	EventReplace    = "session_replace"
	EventDisconnect = "session_disconnect"
	EventStart      = "stream_start"
	EventReject     = "stream_reject"
	EventEnd        = "stream_end"
)

// Event is a session lifecycle event. Fields carries optional details such
// as "outcome", "duration" or "error".
type Event struct {
	Name       string
	ConsumerID string
	Fields     map[string]any
}

// EventPublisher receives registry events. Implementations must be cheap
// and non-blocking; Publish is called on stream goroutines.
type EventPublisher interface {
	Publish(Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// Publishers fans an event out to several publishers in order.
type Publishers []EventPublisher

func (ps Publishers) Publish(e Event) {
	for _, p := range ps {
		if p != nil {
			p.Publish(e)
		}
	}
}

// MemoryPublisher stores events in memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Names returns the published event names in order.
func (p *MemoryPublisher) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Name)
	}
	return out
}

// LogPublisher writes events to a zerolog logger. Stream ends are logged at
// info, everything else at debug.
type LogPublisher struct {
	Logger zerolog.Logger
}

func (p LogPublisher) Publish(e Event) {
	ev := p.Logger.Debug()
	if e.Name == EventEnd || e.Name == EventReject {
		ev = p.Logger.Info()
	}
	ev.Str("event", e.Name).Str("consumer", e.ConsumerID).Fields(e.Fields).Msg("session event")
}
