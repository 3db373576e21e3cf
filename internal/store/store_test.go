package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContraChat/internal/model"
	"ContraChat/internal/telemetry"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := telemetry.InitDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, nil)
}

func assistantMessage(content string, args ...model.Argument) model.Message {
	msg := model.NewMessage(model.RoleAssistant, content)
	msg.Arguments = args
	return msg
}

func TestCreateAndGetConversation(t *testing.T) {
	s := newTestStore(t)

	conv, err := s.CreateConversation("Remote work is always better", "")
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, "Remote work is always better", conv.Title)
	assert.Empty(t, conv.Messages)
	assert.Empty(t, conv.Tags)

	loaded, err := s.GetConversation(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, loaded.ID)
	assert.Equal(t, conv.Title, loaded.Title)
	assert.Equal(t, 0, loaded.MessageCount)
}

func TestCreateConversationWithExplicitID(t *testing.T) {
	s := newTestStore(t)
	conv, err := s.CreateConversation("belief", "fixed-id")
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", conv.ID)
}

func TestGetConversationNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetConversation("missing")
	assert.True(t, errors.Is(err, ErrNotFound), "expected ErrNotFound, got %v", err)
}

func TestAddMessageUpdatesRecord(t *testing.T) {
	s := newTestStore(t)
	conv, err := s.CreateConversation("belief", "")
	require.NoError(t, err)

	require.NoError(t, s.AddMessage(conv.ID, model.NewMessage(model.RoleUser, "belief")))
	require.NoError(t, s.AddMessage(conv.ID, assistantMessage("counter",
		model.Argument{Claim: "a", Domain: "economics"},
		model.Argument{Claim: "b", Domain: "ethics"},
	)))

	loaded, err := s.GetConversation(conv.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Messages, 2)
	assert.Equal(t, 2, loaded.MessageCount)
	assert.Equal(t, []string{"economics", "ethics"}, loaded.Tags)
	assert.False(t, loaded.UpdatedAt.Before(loaded.CreatedAt))
}

func TestAddMessageNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.AddMessage("missing", model.NewMessage(model.RoleUser, "x"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUpdateTitle(t *testing.T) {
	s := newTestStore(t)
	conv, err := s.CreateConversation("old title", "")
	require.NoError(t, err)

	require.NoError(t, s.UpdateTitle(conv.ID, "new title"))
	loaded, err := s.GetConversation(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "new title", loaded.Title)

	err = s.UpdateTitle("missing", "x")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestToggleBookmark(t *testing.T) {
	s := newTestStore(t)
	conv, err := s.CreateConversation("belief", "")
	require.NoError(t, err)

	marked, err := s.ToggleBookmark(conv.ID)
	require.NoError(t, err)
	assert.True(t, marked)

	marked, err = s.ToggleBookmark(conv.ID)
	require.NoError(t, err)
	assert.False(t, marked)

	_, err = s.ToggleBookmark("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteConversationCascades(t *testing.T) {
	s := newTestStore(t)
	conv, err := s.CreateConversation("belief", "")
	require.NoError(t, err)
	require.NoError(t, s.SaveArgument(conv.ID, model.Argument{ID: "arg-1", Claim: "a"}))

	require.NoError(t, s.DeleteConversation(conv.ID))

	_, err = s.GetConversation(conv.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	args, err := s.ListSavedArguments(conv.ID)
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestDeleteConversationMissingIsNoError(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.DeleteConversation("missing"))
}

func TestGetAllConversationsOrderedByRecency(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, title := range []string{"oldest", "middle", "newest"} {
		at := base.Add(time.Duration(i) * time.Hour)
		s.SetNowFunc(func() time.Time { return at })
		_, err := s.CreateConversation(title, "")
		require.NoError(t, err)
	}

	convs, err := s.GetAllConversations()
	require.NoError(t, err)
	require.Len(t, convs, 3)
	assert.Equal(t, "newest", convs[0].Title)
	assert.Equal(t, "middle", convs[1].Title)
	assert.Equal(t, "oldest", convs[2].Title)
}

func TestSearchConversations(t *testing.T) {
	s := newTestStore(t)

	c1, err := s.CreateConversation("Nuclear energy is too dangerous", "")
	require.NoError(t, err)
	require.NoError(t, s.AddMessage(c1.ID, model.NewMessage(model.RoleUser, "Nuclear energy is too dangerous")))

	c2, err := s.CreateConversation("Cats make better pets", "")
	require.NoError(t, err)
	require.NoError(t, s.AddMessage(c2.ID, assistantMessage("Consider this",
		model.Argument{Claim: "Dogs offer protective value", Evidence: "Working breeds deter intruders"},
	)))

	// Case-insensitive title match.
	results, err := s.SearchConversations("NUCLEAR")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, c1.ID, results[0].ID)

	// Match inside argument evidence.
	results, err = s.SearchConversations("intruders")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, c2.ID, results[0].ID)

	// Match inside argument claim.
	results, err = s.SearchConversations("protective")
	require.NoError(t, err)
	require.Len(t, results, 1)

	results, err = s.SearchConversations("no such text")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSaveAndListArguments(t *testing.T) {
	s := newTestStore(t)
	conv, err := s.CreateConversation("belief", "")
	require.NoError(t, err)

	arg := model.Argument{ID: "arg-1", Claim: "claim", Evidence: "evidence", Domain: "ethics", QualityScore: 0.8}
	require.NoError(t, s.SaveArgument(conv.ID, arg))
	// Saving the same argument twice replaces, not duplicates.
	require.NoError(t, s.SaveArgument(conv.ID, arg))

	args, err := s.ListSavedArguments(conv.ID)
	require.NoError(t, err)
	require.Len(t, args, 1)
	assert.Equal(t, arg, args[0])

	err = s.SaveArgument("missing", arg)
	assert.True(t, errors.Is(err, ErrNotFound))
}
