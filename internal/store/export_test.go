package store

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContraChat/internal/model"
)

func seedConversation(t *testing.T, s *Store) *model.Conversation {
	t.Helper()
	conv, err := s.CreateConversation("Standardized testing helps students", "")
	require.NoError(t, err)

	require.NoError(t, s.AddMessage(conv.ID,
		model.NewMessage(model.RoleUser, "Standardized testing helps students")))
	require.NoError(t, s.AddMessage(conv.ID, assistantMessage("Consider the opposite.",
		model.Argument{
			Claim:        "Tests measure test-taking, not learning",
			Evidence:     "Coaching raises scores without raising mastery",
			Domain:       "education",
			QualityScore: 0.9,
			Sources:      []string{"https://example.org/study"},
		},
		model.Argument{Claim: "Narrowed curricula", Domain: "education"},
	)))

	loaded, err := s.GetConversation(conv.ID)
	require.NoError(t, err)
	return loaded
}

func TestExportJSONRoundTrip(t *testing.T) {
	s := newTestStore(t)
	conv := seedConversation(t, s)

	out, err := s.ExportJSON(conv.ID)
	require.NoError(t, err)

	var parsed model.Conversation
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, conv.ID, parsed.ID)
	assert.Equal(t, conv.Title, parsed.Title)
	require.Len(t, parsed.Messages, 2)
	assert.Equal(t, conv.Messages[1].Arguments, parsed.Messages[1].Arguments)
	assert.Equal(t, []string{"education"}, parsed.Tags)
}

func TestExportMarkdown(t *testing.T) {
	s := newTestStore(t)
	conv := seedConversation(t, s)

	out, err := s.ExportMarkdown(conv.ID)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "# "+conv.Title+"\n"))
	assert.Contains(t, out, "- **Tags**: education")
	assert.Contains(t, out, "## You (")
	assert.Contains(t, out, "## Assistant (")
	assert.Contains(t, out, "### Counterarguments")
	assert.Contains(t, out, "1. **Tests measure test-taking, not learning** (quality: 0.9)")
	assert.Contains(t, out, "2. **Narrowed curricula**")
	assert.Contains(t, out, "Coaching raises scores without raising mastery")
	assert.Contains(t, out, "   - https://example.org/study")

	// One separator between the two messages, none trailing.
	assert.Equal(t, 1, strings.Count(out, "\n---\n"))
	assert.False(t, strings.HasSuffix(strings.TrimRight(out, "\n"), "---"))
}

func TestExportMarkdownNoTagsLine(t *testing.T) {
	s := newTestStore(t)
	conv, err := s.CreateConversation("belief", "")
	require.NoError(t, err)

	out, err := s.ExportMarkdown(conv.ID)
	require.NoError(t, err)
	assert.NotContains(t, out, "**Tags**")
}

func TestExportNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ExportJSON("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.ExportMarkdown("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}
