package session

import (
	"context"

	"localchat/internal/ollama"
	"localchat/pkg/types"
)

// Streamer is the chat transport. *ollama.Client implements it.
type Streamer interface {
	Stream(ctx context.Context, req types.StreamRequest, sink ollama.Sink) (ollama.Outcome, error)
}

// Run streams req through st and guarantees that emit sees exactly one done
// event, after the transport has returned. The transport's own done is
// swallowed and chunks or errors produced after ctx is cancelled are dropped.
func Run(ctx context.Context, st Streamer, req types.StreamRequest, emit func(types.StreamEvent)) (ollama.Outcome, error) {
	out, err := st.Stream(ctx, req, forward(ctx, emit))
	emit(types.Done())
	return out, err
}

func forward(ctx context.Context, emit func(types.StreamEvent)) ollama.Sink {
	return func(ev types.StreamEvent) {
		switch ev.Type {
		case types.EventDone:
			return
		case types.EventChunk, types.EventError:
			if ctx.Err() != nil {
				return
			}
		}
		emit(ev)
	}
}
