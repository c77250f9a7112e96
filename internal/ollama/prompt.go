package ollama

import (
	"strings"

	"localchat/pkg/types"
)

// DefaultSystemPrompt is sent when neither the request nor the configuration
// supplies a system instruction.
var DefaultSystemPrompt = strings.Join([]string{
	"You are a local assistant running without any cloud services.",
	"Answer concisely and in a structured way, in the language of the question.",
	"If the prompt contains 'Context:', work only with it: give a short summary (an introduction plus 5-8 bullet points), then answer the question if there is one.",
	"Keep Markdown formatting: headings, lists, code blocks (```), tables.",
	"Do not apologize and do not judge the relevance of the content; just answer the request.",
}, "\n")

// chatRequest is the body of POST /api/chat.
type chatRequest struct {
	Model    string          `json:"model"`
	Stream   bool            `json:"stream"`
	Messages []types.Message `json:"messages"`
	Options  chatOptions     `json:"options"`
}

// chatOptions only carries parameters the caller supplied; temperature is
// always present.
type chatOptions struct {
	Temperature float64  `json:"temperature"`
	TopP        *float64 `json:"top_p,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

// buildMessages returns the system+user pair for req.
func buildMessages(req types.StreamRequest, fallbackSystem string) []types.Message {
	system := req.System
	if strings.TrimSpace(system) == "" {
		system = fallbackSystem
	}
	if strings.TrimSpace(system) == "" {
		system = DefaultSystemPrompt
	}
	return []types.Message{
		{Role: types.RoleSystem, Content: system},
		{Role: types.RoleUser, Content: req.Prompt},
	}
}

// buildOptions maps request sampling parameters onto Ollama options.
func buildOptions(req types.StreamRequest, defaultTemp float64) chatOptions {
	opts := chatOptions{Temperature: defaultTemp}
	if req.Temperature != nil {
		opts.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		v := *req.TopP
		opts.TopP = &v
	}
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		opts.NumPredict = *req.MaxTokens
	}
	return opts
}
