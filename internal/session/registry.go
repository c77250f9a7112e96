package session

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"localchat/internal/ollama"
	"localchat/pkg/types"
)

// Config holds Registry dependencies. Streamer is required.
type Config struct {
	Streamer  Streamer
	Publisher EventPublisher
	Logger    *zerolog.Logger
	// BaseContext parents every stream; cancelling it stops them all.
	BaseContext context.Context
	// Now is used for connection timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Registry maps consumer ids to sessions and runs their streams.
type Registry struct {
	streamer Streamer
	pub      EventPublisher
	log      zerolog.Logger
	now      func() time.Time

	base       context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewRegistry constructs a Registry from cfg.
func NewRegistry(cfg Config) *Registry {
	parent := cfg.BaseContext
	if parent == nil {
		parent = context.Background()
	}
	base, cancel := context.WithCancel(parent)
	r := &Registry{
		streamer:   cfg.Streamer,
		pub:        cfg.Publisher,
		log:        zerolog.Nop(),
		now:        cfg.Now,
		base:       base,
		cancelBase: cancel,
		sessions:   make(map[string]*Session),
	}
	if r.pub == nil {
		r.pub = noopPublisher{}
	}
	if cfg.Logger != nil {
		r.log = *cfg.Logger
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Connect registers ch under consumerID. An existing session for the same
// id is closed and replaced.
func (r *Registry) Connect(consumerID string, ch Channel) (*Session, error) {
	consumerID = strings.TrimSpace(consumerID)
	if consumerID == "" {
		return nil, ErrMissingConsumer
	}
	s := &Session{
		consumerID:  consumerID,
		connectedAt: r.now(),
		ch:          ch,
		log:         r.log.With().Str("consumer", consumerID).Logger(),
		state:       StateIdle,
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	prev := r.sessions[consumerID]
	r.sessions[consumerID] = s
	r.mu.Unlock()

	if prev != nil {
		prev.close()
		r.pub.Publish(Event{Name: EventReplace, ConsumerID: consumerID})
	}
	r.pub.Publish(Event{Name: EventConnect, ConsumerID: consumerID})
	return s, nil
}

// Handle executes one command for s. Stream rejections are reported to the
// consumer as error events, not returned.
func (r *Registry) Handle(ctx context.Context, s *Session, cmd types.Command) error {
	switch cmd.Type {
	case types.CommandStartStream:
		return r.start(ctx, s, cmd.Payload)
	case types.CommandStopStream:
		if s.stop() {
			s.log.Debug().Msg("stream stop requested")
		}
		return nil
	default:
		return unknownCommandError{typ: cmd.Type}
	}
}

func (r *Registry) start(ctx context.Context, s *Session, payload *types.StreamRequest) error {
	if payload == nil || strings.TrimSpace(payload.Prompt) == "" {
		if s.State() == StateClosed {
			return ErrSessionClosed
		}
		s.reply(types.Failure(ollama.ErrEmptyPrompt.Error()), types.Done())
		return nil
	}
	req := *payload

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	r.wg.Add(1)
	r.mu.Unlock()

	// Keep request-scoped values but tie cancellation to the registry.
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopAfter := context.AfterFunc(r.base, cancel)

	state, ok := s.begin(sctx, cancel)
	if !ok {
		r.wg.Done()
		stopAfter()
		cancel()
		if state == StateClosed {
			return ErrSessionClosed
		}
		s.reply(types.Failure(msgStreamActive))
		r.pub.Publish(Event{Name: EventReject, ConsumerID: s.consumerID})
		return nil
	}

	r.pub.Publish(Event{Name: EventStart, ConsumerID: s.consumerID, Fields: map[string]any{"model": req.Model}})
	go func() {
		defer r.wg.Done()
		defer stopAfter()
		defer cancel()
		started := time.Now()
		out, err := r.streamer.Stream(sctx, req, forward(sctx, func(ev types.StreamEvent) {
			s.deliver(sctx, ev)
		}))
		s.finish(sctx)
		fields := map[string]any{
			"outcome":  string(out),
			"duration": time.Since(started),
		}
		if err != nil {
			fields["error"] = err.Error()
		}
		r.pub.Publish(Event{Name: EventEnd, ConsumerID: s.consumerID, Fields: fields})
	}()
	return nil
}

// Disconnect releases the session. Its mapping is removed only if it still
// belongs to s, and any active stream is cancelled.
func (r *Registry) Disconnect(s *Session) {
	r.mu.Lock()
	if cur, ok := r.sessions[s.consumerID]; ok && cur == s {
		delete(r.sessions, s.consumerID)
	}
	r.mu.Unlock()
	if s.close() {
		r.pub.Publish(Event{Name: EventDisconnect, ConsumerID: s.consumerID})
	}
}

// lookup returns the live session for consumerID.
func (r *Registry) lookup(consumerID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[consumerID]
	return s, ok
}

// Sessions returns a snapshot of live sessions ordered by consumer id.
func (r *Registry) Sessions() []types.SessionInfo {
	r.mu.Lock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.Unlock()
	out := make([]types.SessionInfo, 0, len(list))
	for _, s := range list {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConsumerID < out[j].ConsumerID })
	return out
}

// Wait blocks until every started stream has returned.
func (r *Registry) Wait() { r.wg.Wait() }

// Close disconnects every session, cancels active streams and waits for
// them until ctx expires.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	list := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		list = append(list, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	r.cancelBase()
	for _, s := range list {
		if s.close() {
			r.pub.Publish(Event{Name: EventDisconnect, ConsumerID: s.consumerID})
		}
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
