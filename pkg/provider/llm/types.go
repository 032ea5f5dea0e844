package llm

import "unicode/utf8"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a conversation.
type Message struct {
	// Role is one of [RoleSystem], [RoleUser] or [RoleAssistant].
	Role string

	Content string
}

// ModelCapabilities describes limits of a model.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input and output together.
	ContextWindow int

	// MaxOutputTokens is the most the model can generate in one completion.
	MaxOutputTokens int
}

// DefaultCapabilities is assumed for models no adapter recognises.
var DefaultCapabilities = ModelCapabilities{
	ContextWindow:   128_000,
	MaxOutputTokens: 4_096,
}

// EstimateTokens approximates the token count of messages. Hebrew tokenises
// far worse than English in current vocabularies, so the estimate counts runes
// rather than bytes and assumes roughly two runes per token, plus a fixed
// per-message overhead.
func EstimateTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += (utf8.RuneCountInString(m.Content)+1)/2 + 4
	}
	return total
}
