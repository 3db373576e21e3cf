package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"ContraChat/internal/util"
)

// Role identifies the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Argument is one structured counterargument attached to an assistant message.
type Argument struct {
	ID           string   `json:"id"`
	Claim        string   `json:"claim"`
	Evidence     string   `json:"evidence,omitempty"`
	Domain       string   `json:"domain,omitempty"`
	QualityScore float64  `json:"quality_score,omitempty"`
	Sources      []string `json:"sources,omitempty"`
}

// Message represents a single turn in a conversation.
// Content starts empty for a streaming assistant message and grows until
// finalized; Timestamp is set once at creation and never mutated.
type Message struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Arguments []Argument `json:"arguments,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewMessage creates a message with a generated ID and the current time.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// Conversation is a durable, named container of messages.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Tags         []string  `json:"tags"`
	IsBookmarked bool      `json:"isBookmarked"`
	MessageCount int       `json:"messageCount"`
}

// TitleMaxRunes caps derived conversation titles.
const TitleMaxRunes = 50

// GenerateTitle derives a conversation title from the first user message.
// Titles longer than TitleMaxRunes runes are truncated with an ellipsis
// marker; newlines are collapsed to spaces.
func GenerateTitle(firstMessage string) string {
	title := strings.ReplaceAll(firstMessage, "\n", " ")
	title = strings.ReplaceAll(title, "\r", "")
	title = strings.TrimSpace(title)
	if title == "" {
		return "New conversation"
	}
	return util.TruncateRunes(title, TitleMaxRunes)
}

// RecomputeTags rebuilds the tag set from scratch as the deduplicated union
// of every argument domain on every message. Full recomputation on each
// append is the contract; tags are never patched incrementally.
func (c *Conversation) RecomputeTags() {
	seen := make(map[string]struct{})
	tags := []string{}
	for _, msg := range c.Messages {
		for _, arg := range msg.Arguments {
			if arg.Domain == "" {
				continue
			}
			if _, ok := seen[arg.Domain]; ok {
				continue
			}
			seen[arg.Domain] = struct{}{}
			tags = append(tags, arg.Domain)
		}
	}
	c.Tags = tags
}

// Duration returns the time between the first and last message.
// Conversations with fewer than two messages have zero duration.
func (c *Conversation) Duration() time.Duration {
	if len(c.Messages) < 2 {
		return 0
	}
	first := c.Messages[0].Timestamp
	last := c.Messages[len(c.Messages)-1].Timestamp
	return last.Sub(first)
}
