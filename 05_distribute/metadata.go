package distribute

import (
	"strings"
	"unicode/utf8"

	"autovid-pipeline/types"
)

// TruncateTitle shortens title to max characters, ending in "..." when cut.
func TruncateTitle(title string, max int) string {
	title = strings.TrimSpace(title)
	if max <= 0 || utf8.RuneCountInString(title) <= max {
		return title
	}
	if max <= 3 {
		return string([]rune(title)[:max])
	}
	return string([]rune(title)[:max-3]) + "..."
}

// Description builds the upload description from the idea
func Description(idea types.VideoIdea) string {
	var sb strings.Builder
	if idea.Hook != "" {
		sb.WriteString(idea.Hook)
		sb.WriteString("\n\n")
	}
	if len(idea.Points) > 0 {
		sb.WriteString("In this video:\n")
		for _, p := range idea.Points {
			sb.WriteString("- " + p + "\n")
		}
		sb.WriteString("\n")
	}
	if idea.CTA != "" {
		sb.WriteString(idea.CTA)
		sb.WriteString("\n\n")
	}
	sb.WriteString("#Shorts")
	return sb.String()
}
