package types

// Defaults shared by the daemon, the CLI and tests.
const (
	// DefaultModel is used when neither the request, the persisted setting
	// nor the configuration name a model.
	DefaultModel = "llama3.1:8b-instruct"
	// DefaultOllamaURL is the standard local Ollama address.
	DefaultOllamaURL = "http://127.0.0.1:11434"
	// DefaultTemperature applies when a request omits temperature.
	DefaultTemperature = 0.3
)

// Role of a chat message sent to Ollama.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation sent to Ollama.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
