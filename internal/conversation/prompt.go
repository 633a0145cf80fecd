// ABOUTME: Builds the agent prompt from recent history and the new user message
// ABOUTME: Format is "HISTORY:\n<role: content lines>\n\nUSER:\n<message>"

package conversation

import (
	"strings"

	"github.com/2389/travelmind-gateway/internal/store"
)

// HistoryWindow is the number of most recent prior messages sent to the agent
const HistoryWindow = 15

// ComposePrompt renders at most the last HistoryWindow messages of history,
// oldest first, followed by message.
func ComposePrompt(history []store.Message, message string) string {
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}

	var b strings.Builder
	b.WriteString("HISTORY:\n")
	for i, m := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	b.WriteString("\n\nUSER:\n")
	b.WriteString(message)
	return b.String()
}
