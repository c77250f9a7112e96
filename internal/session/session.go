package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"localchat/pkg/types"
)

// Channel is the consumer side of a session. Send must be safe to call
// after Close; it should then return an error.
type Channel interface {
	Send(types.StreamEvent) error
	Close() error
}

// State of a session.
type State string

const (
	StateIdle      State = "idle"
	StateStreaming State = "streaming"
	StateClosed    State = "closed"
)

// Session is one consumer connection. All channel writes and the decision
// to cancel happen under mu, so once stop returns no further chunk reaches
// the channel.
type Session struct {
	consumerID  string
	connectedAt time.Time
	ch          Channel
	log         zerolog.Logger

	mu      sync.Mutex
	state   State
	active  context.Context
	cancel  context.CancelFunc
	streams int
}

// ConsumerID returns the id the session was connected under.
func (s *Session) ConsumerID() string { return s.consumerID }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Info summarizes the session for listings.
func (s *Session) Info() types.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.SessionInfo{
		ConsumerID:  s.consumerID,
		State:       string(s.state),
		ConnectedAt: s.connectedAt.Unix(),
		Streams:     s.streams,
	}
}

// begin moves an idle session to streaming. It returns false when a stream
// is already active or the session is closed.
func (s *Session) begin(ctx context.Context, cancel context.CancelFunc) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return s.state, false
	}
	s.state = StateStreaming
	s.active, s.cancel = ctx, cancel
	s.streams++
	return s.state, true
}

// stop cancels the active stream, if any.
func (s *Session) stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// deliver writes ev unless it belongs to a cancelled stream.
func (s *Session) deliver(ctx context.Context, ev types.StreamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	if ev.Type != types.EventDone && ctx.Err() != nil {
		return
	}
	s.sendLocked(ev)
}

// finish returns the session to idle and sends the concluding done in one
// step, so a consumer that reacts to done can start again immediately.
func (s *Session) finish(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == ctx {
		s.active, s.cancel = nil, nil
	}
	if s.state == StateClosed {
		return
	}
	s.state = StateIdle
	s.sendLocked(types.Done())
}

// reply sends an out-of-band event (rejections, validation errors).
func (s *Session) reply(events ...types.StreamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	for _, ev := range events {
		s.sendLocked(ev)
	}
}

func (s *Session) sendLocked(ev types.StreamEvent) {
	if err := s.ch.Send(ev); err != nil {
		s.log.Debug().Err(err).Str("type", ev.Type).Msg("channel send failed")
	}
}

// close cancels any active stream and closes the channel. It reports
// whether this call performed the transition.
func (s *Session) close() bool {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return false
	}
	s.state = StateClosed
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	if err := s.ch.Close(); err != nil {
		s.log.Debug().Err(err).Msg("channel close failed")
	}
	return true
}
