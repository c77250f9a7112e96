// Package session owns per-consumer streaming sessions.
//
// A consumer (one browser tab, one CLI invocation, one WebSocket) connects a
// Channel under its consumer id. The Registry keeps at most one live session
// per id, starts at most one transport per session and guarantees that
// every started stream is concluded by exactly one done event.
//
// Files by concern:
//
//   - registry.go: Registry, Connect/Handle/Disconnect/Close.
//   - session.go: Session state and serialized channel writes.
//   - run.go: Run, the finalization wrapper shared with one-shot callers.
//   - events.go: lifecycle events and publishers.
//   - errors.go: error values and predicates.
package session
