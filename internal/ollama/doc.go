// Package ollama talks to a local Ollama server. It is split by concern:
//
//   - client.go: Client construction, HTTP transport, tag listing and readiness ping.
//   - chat.go: Stream, the cancellable streaming chat transport.
//   - decoder.go: LineDecoder, newline framing across arbitrary read boundaries.
//   - record.go: validation and field extraction for one decoded NDJSON record.
//   - prompt.go: request body construction (messages, sampling options).
//   - errors.go: TransportError and helpers.
//
// Stream never returns a terminal event for cancellation; callers that need a
// deterministic "finished" signal wrap it (see package session).
package ollama
