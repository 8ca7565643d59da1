package analyst

import (
	"strings"

	"stockiq/internal/types"
)

// UserAuthor marks events that echo the prompt back.
const UserAuthor = "user"

// ExtractFinalText returns the text of the most recent final, non-user event
// with non-blank content, or "" when no event qualifies.
func ExtractFinalText(events []types.Event) string {
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.Author == UserAuthor || ev.Partial {
			continue
		}
		if text := strings.TrimSpace(ev.Text); text != "" {
			return text
		}
	}
	return ""
}
