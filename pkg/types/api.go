package types

// StreamRequest is the payload of a start_stream command and of POST /infer.
// Pointer fields distinguish "not supplied" from zero values so only the
// sampling options a caller actually set are forwarded to Ollama.
type StreamRequest struct {
	// Required prompt text.
	// example: Summarize this page in five bullet points.
	Prompt string `json:"prompt" example:"Summarize this page in five bullet points."`
	// Optional model identifier. Overrides the persisted default model.
	// example: llama3.1:8b-instruct
	Model string `json:"model,omitempty" example:"llama3.1:8b-instruct"`
	// Optional system instruction. Replaces the built-in preamble.
	System string `json:"system,omitempty"`
	// Sampling temperature. Defaults to 0.3 when omitted.
	// example: 0.3
	Temperature *float64 `json:"temperature,omitempty" example:"0.3"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP *float64 `json:"top_p,omitempty" example:"0.9"`
	// Maximum number of tokens to generate. Ignored unless > 0.
	// example: 512
	MaxTokens *int `json:"max_tokens,omitempty" example:"512"`
}

// Command types accepted on the session channel.
const (
	CommandStartStream = "start_stream"
	CommandStopStream  = "stop_stream"
)

// Command is a client->server message on the session channel.
type Command struct {
	// start_stream or stop_stream.
	// example: start_stream
	Type string `json:"type" example:"start_stream"`
	// Request payload, required for start_stream.
	Payload *StreamRequest `json:"payload,omitempty"`
}

// Event types emitted on the session channel and by POST /infer.
const (
	EventChunk = "chunk"
	EventDone  = "done"
	EventError = "error"
)

// StreamEvent is a server->client message. Exactly one of Data/Error is set
// for chunk/error events; done carries no payload.
type StreamEvent struct {
	// chunk, done or error.
	// example: chunk
	Type string `json:"type" example:"chunk"`
	// Text fragment for chunk events.
	// example: Hello
	Data string `json:"data,omitempty" example:"Hello"`
	// Error message for error events.
	Error string `json:"error,omitempty"`
}

// Chunk builds a chunk event.
func Chunk(text string) StreamEvent { return StreamEvent{Type: EventChunk, Data: text} }

// Done builds a done event.
func Done() StreamEvent { return StreamEvent{Type: EventDone} }

// Failure builds an error event.
func Failure(msg string) StreamEvent { return StreamEvent{Type: EventError, Error: msg} }

// ModelsResponse is returned by GET /models.
type ModelsResponse struct {
	// Normalized model identifiers.
	// example: ["llama3.1:8b","mistral:7b"]
	Models []string `json:"models" example:"llama3.1:8b,mistral:7b"`
	// Cache time-to-live in milliseconds.
	// example: 60000
	TTLMs int64 `json:"ttl_ms" example:"60000"`
	// True when the list was served from cache.
	Cached bool `json:"cached"`
	// When the list was fetched from Ollama (unix milliseconds).
	// example: 1700000000000
	FetchedAtMs int64 `json:"fetched_at_ms" example:"1700000000000"`
}

// AckResponse acknowledges a command with no other result.
type AckResponse struct {
	OK bool `json:"ok" example:"true"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// Settings are the user-adjustable values persisted between restarts.
type Settings struct {
	// Default model used when a request does not name one.
	// example: mistral:7b
	Model string `json:"model" yaml:"model" example:"mistral:7b"`
	// Verbose stream logging.
	Debug bool `json:"debug" yaml:"debug"`
}

// SessionInfo summarizes a connected consumer for GET /sessions.
type SessionInfo struct {
	// Consumer identity (tab handle).
	// example: tab-42
	ConsumerID string `json:"consumer_id" example:"tab-42"`
	// idle, streaming or closed.
	// example: streaming
	State string `json:"state" example:"streaming"`
	// Connection time (unix seconds).
	// example: 1700000000
	ConnectedAt int64 `json:"connected_unix" example:"1700000000"`
	// Streams started on this session.
	// example: 3
	Streams int `json:"streams" example:"3"`
}

// SessionsResponse is returned by GET /sessions.
type SessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// SettingsPatch is the body of PUT /settings. Omitted fields are unchanged;
// an empty model clears the persisted choice.
type SettingsPatch struct {
	// example: mistral:7b
	Model *string `json:"model,omitempty" example:"mistral:7b"`
	Debug *bool   `json:"debug,omitempty"`
}
