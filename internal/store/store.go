// Package store implements the durable multi-conversation database on
// SQLite. The conversation record is the unit of persistence: mutations
// load the record, change it in memory, and write the whole row back.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ContraChat/internal/model"
)

// ErrNotFound is returned for operations targeting a conversation id that
// does not exist. Use errors.Is(err, ErrNotFound).
var ErrNotFound = &StoreError{Message: "conversation not found"}

// StoreError is a store-level error comparable with errors.Is.
type StoreError struct {
	Message string
}

func (e *StoreError) Error() string {
	return e.Message
}

func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// Store persists conversations, saved arguments, and analytics records.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// New creates a store over an initialized database handle.
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger, now: time.Now}
}

// SetNowFunc overrides the clock. Intended for tests.
func (s *Store) SetNowFunc(now func() time.Time) {
	s.now = now
}

// CreateConversation builds and persists a new conversation. The title is
// derived from firstMessage; the message list starts empty. Pass id == ""
// to generate one.
func (s *Store) CreateConversation(firstMessage, id string) (*model.Conversation, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := s.now()
	conv := &model.Conversation{
		ID:        id,
		Title:     model.GenerateTitle(firstMessage),
		Messages:  []model.Message{},
		CreatedAt: now,
		UpdatedAt: now,
		Tags:      []string{},
	}
	if err := s.insert(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// GetConversation loads one conversation by id.
func (s *Store) GetConversation(id string) (*model.Conversation, error) {
	row := s.db.QueryRow(
		`SELECT id, title, messages, created_at, updated_at, tags, is_bookmarked, message_count
		 FROM conversations WHERE id = ?`, id)
	return scanConversation(row)
}

// AddMessage appends a message, recomputes the denormalized message count
// and the tag set, bumps updatedAt, and writes the record back whole.
func (s *Store) AddMessage(id string, msg model.Message) error {
	conv, err := s.GetConversation(id)
	if err != nil {
		return err
	}
	conv.Messages = append(conv.Messages, msg)
	conv.MessageCount = len(conv.Messages)
	conv.RecomputeTags()
	conv.UpdatedAt = s.now()
	return s.update(conv)
}

// UpdateTitle replaces the title and bumps updatedAt.
func (s *Store) UpdateTitle(id, title string) error {
	conv, err := s.GetConversation(id)
	if err != nil {
		return err
	}
	conv.Title = title
	conv.UpdatedAt = s.now()
	return s.update(conv)
}

// ToggleBookmark flips the bookmark flag, bumps updatedAt, and returns the
// new state.
func (s *Store) ToggleBookmark(id string) (bool, error) {
	conv, err := s.GetConversation(id)
	if err != nil {
		return false, err
	}
	conv.IsBookmarked = !conv.IsBookmarked
	conv.UpdatedAt = s.now()
	if err := s.update(conv); err != nil {
		return false, err
	}
	return conv.IsBookmarked, nil
}

// DeleteConversation removes a conversation and cascades to its saved
// arguments. Deleting a missing id is not an error.
func (s *Store) DeleteConversation(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM conversations WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM saved_arguments WHERE conversation_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete saved arguments: %w", err)
	}
	return tx.Commit()
}

// GetAllConversations returns every conversation ordered by updatedAt
// descending. The ordering is a contract: callers group by recency.
func (s *Store) GetAllConversations() ([]model.Conversation, error) {
	rows, err := s.db.Query(
		`SELECT id, title, messages, created_at, updated_at, tags, is_bookmarked, message_count
		 FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var convs []model.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			s.logger.Warn("skipping unreadable conversation row", "error", err)
			continue
		}
		convs = append(convs, *conv)
	}
	return convs, rows.Err()
}

// SearchConversations returns conversations whose title, any message
// content, or any attached argument claim or evidence contains the query,
// case-insensitively. Result order carries no relevance meaning.
func (s *Store) SearchConversations(query string) ([]model.Conversation, error) {
	all, err := s.GetAllConversations()
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(query)
	var results []model.Conversation
	for _, conv := range all {
		if matchesQuery(&conv, query) {
			results = append(results, conv)
		}
	}
	return results, nil
}

func matchesQuery(conv *model.Conversation, lowerQuery string) bool {
	if strings.Contains(strings.ToLower(conv.Title), lowerQuery) {
		return true
	}
	for _, msg := range conv.Messages {
		if strings.Contains(strings.ToLower(msg.Content), lowerQuery) {
			return true
		}
		for _, arg := range msg.Arguments {
			if strings.Contains(strings.ToLower(arg.Claim), lowerQuery) ||
				strings.Contains(strings.ToLower(arg.Evidence), lowerQuery) {
				return true
			}
		}
	}
	return false
}

// SaveArgument stores an argument the user kept, tied to a conversation.
func (s *Store) SaveArgument(conversationID string, arg model.Argument) error {
	if _, err := s.GetConversation(conversationID); err != nil {
		return err
	}
	data, err := json.Marshal(arg)
	if err != nil {
		return fmt.Errorf("failed to marshal argument: %w", err)
	}
	id := arg.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO saved_arguments (id, conversation_id, argument, saved_at) VALUES (?, ?, ?, ?)",
		id, conversationID, string(data), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save argument: %w", err)
	}
	return nil
}

// ListSavedArguments returns the saved arguments for a conversation.
func (s *Store) ListSavedArguments(conversationID string) ([]model.Argument, error) {
	rows, err := s.db.Query(
		"SELECT argument FROM saved_arguments WHERE conversation_id = ? ORDER BY saved_at",
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved arguments: %w", err)
	}
	defer rows.Close()

	var args []model.Argument
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan argument: %w", err)
		}
		var arg model.Argument
		if err := json.Unmarshal([]byte(raw), &arg); err != nil {
			s.logger.Warn("skipping unreadable saved argument", "error", err)
			continue
		}
		args = append(args, arg)
	}
	return args, rows.Err()
}

// insert writes a brand-new conversation row.
func (s *Store) insert(conv *model.Conversation) error {
	messages, tags, err := marshalRecord(conv)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO conversations (id, title, messages, created_at, updated_at, tags, is_bookmarked, message_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.Title, messages,
		conv.CreatedAt.UnixMilli(), conv.UpdatedAt.UnixMilli(),
		tags, boolToInt(conv.IsBookmarked), conv.MessageCount)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

// update writes the whole record back; there are no partial writes.
func (s *Store) update(conv *model.Conversation) error {
	messages, tags, err := marshalRecord(conv)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE conversations
		 SET title = ?, messages = ?, updated_at = ?, tags = ?, is_bookmarked = ?, message_count = ?
		 WHERE id = ?`,
		conv.Title, messages, conv.UpdatedAt.UnixMilli(),
		tags, boolToInt(conv.IsBookmarked), conv.MessageCount, conv.ID)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalRecord(conv *model.Conversation) (messages, tags string, err error) {
	msgData, err := json.Marshal(conv.Messages)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal messages: %w", err)
	}
	tagData, err := json.Marshal(conv.Tags)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal tags: %w", err)
	}
	return string(msgData), string(tagData), nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*model.Conversation, error) {
	var (
		conv         model.Conversation
		messages     string
		tags         string
		createdAt    int64
		updatedAt    int64
		isBookmarked int
	)
	err := row.Scan(&conv.ID, &conv.Title, &messages, &createdAt, &updatedAt,
		&tags, &isBookmarked, &conv.MessageCount)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}
	if err := json.Unmarshal([]byte(messages), &conv.Messages); err != nil {
		return nil, fmt.Errorf("failed to parse messages: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &conv.Tags); err != nil {
		return nil, fmt.Errorf("failed to parse tags: %w", err)
	}
	conv.CreatedAt = time.UnixMilli(createdAt)
	conv.UpdatedAt = time.UnixMilli(updatedAt)
	conv.IsBookmarked = isBookmarked != 0
	return &conv, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
