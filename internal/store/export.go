package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ContraChat/internal/model"
)

// ExportJSON returns the conversation record as pretty-printed JSON. The
// output round-trips the stored record with full fidelity.
func (s *Store) ExportJSON(id string) (string, error) {
	conv, err := s.GetConversation(id)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal conversation: %w", err)
	}
	return string(data), nil
}

// ExportMarkdown renders the conversation as human-readable Markdown: one
// heading per message, arguments as a numbered sub-section with quality
// score and a source bullet list, and a separator between messages but not
// after the last one. Derived, read-only; never used for import.
func (s *Store) ExportMarkdown(id string) (string, error) {
	conv, err := s.GetConversation(id)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("# " + conv.Title + "\n\n")
	sb.WriteString("- **Created**: " + conv.CreatedAt.Format(time.RFC3339) + "\n")
	sb.WriteString("- **Updated**: " + conv.UpdatedAt.Format(time.RFC3339) + "\n")
	if len(conv.Tags) > 0 {
		sb.WriteString("- **Tags**: " + strings.Join(conv.Tags, ", ") + "\n")
	}
	sb.WriteString("\n")

	for i, msg := range conv.Messages {
		sb.WriteString("## " + roleHeading(msg.Role) + " (" + msg.Timestamp.Format("2006-01-02 15:04") + ")\n\n")
		sb.WriteString(msg.Content + "\n")

		if len(msg.Arguments) > 0 {
			sb.WriteString("\n### Counterarguments\n\n")
			for n, arg := range msg.Arguments {
				sb.WriteString(fmt.Sprintf("%d. **%s**", n+1, arg.Claim))
				if arg.QualityScore > 0 {
					sb.WriteString(fmt.Sprintf(" (quality: %.1f)", arg.QualityScore))
				}
				sb.WriteString("\n")
				if arg.Evidence != "" {
					sb.WriteString("\n   " + arg.Evidence + "\n")
				}
				if len(arg.Sources) > 0 {
					sb.WriteString("\n   Sources:\n")
					for _, src := range arg.Sources {
						sb.WriteString("   - " + src + "\n")
					}
				}
			}
		}

		if i < len(conv.Messages)-1 {
			sb.WriteString("\n---\n\n")
		}
	}

	return sb.String(), nil
}

func roleHeading(role model.Role) string {
	switch role {
	case model.RoleUser:
		return "You"
	case model.RoleAssistant:
		return "Assistant"
	default:
		return string(role)
	}
}
