// Package cache implements the single-slot active-conversation snapshot.
// The snapshot lets the most recent session resume after a restart; it is
// best-effort and expires after RetentionWindow.
package cache

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"ContraChat/internal/model"
)

const (
	// KeyMessages holds the serialized message list.
	KeyMessages = "contrachat.active.messages"
	// KeySavedAt holds the snapshot time in milliseconds since epoch.
	KeySavedAt = "contrachat.active.savedAt"

	// RetentionWindow is the maximum snapshot age honored at read time.
	RetentionWindow = 24 * time.Hour
)

// Storage is the flat key/value port backing the cache. Implementations
// report absence via the bool return; the expiry rule lives in the Cache,
// not in the port.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string)
}

// Cache persists and restores the active conversation snapshot.
type Cache struct {
	storage Storage
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a cache over the given storage port.
func New(storage Storage, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
}

// SetNowFunc overrides the clock. Intended for tests.
func (c *Cache) SetNowFunc(now func() time.Time) {
	c.now = now
}

// Save writes the full message list and the current time. Failures are
// logged and swallowed; durability is best-effort and never interrupts the
// session.
func (c *Cache) Save(messages []model.Message) {
	data, err := json.Marshal(messages)
	if err != nil {
		c.logger.Warn("failed to serialize active conversation", "error", err)
		return
	}
	if err := c.storage.Set(KeyMessages, string(data)); err != nil {
		c.logger.Warn("failed to save active conversation", "error", err)
		return
	}
	savedAt := strconv.FormatInt(c.now().UnixMilli(), 10)
	if err := c.storage.Set(KeySavedAt, savedAt); err != nil {
		c.logger.Warn("failed to save active conversation timestamp", "error", err)
	}
}

// Load returns the cached message list, or (nil, false) when no usable
// snapshot exists. A snapshot older than RetentionWindow is eagerly cleared
// and reported absent; expiry is enforced here at read time, there is no
// background sweeper.
func (c *Cache) Load() ([]model.Message, bool) {
	raw, ok := c.storage.Get(KeyMessages)
	if !ok {
		return nil, false
	}
	savedAtRaw, ok := c.storage.Get(KeySavedAt)
	if !ok {
		return nil, false
	}

	savedAt, err := strconv.ParseInt(savedAtRaw, 10, 64)
	if err != nil {
		c.logger.Warn("invalid active conversation timestamp", "error", err)
		return nil, false
	}

	age := c.now().Sub(time.UnixMilli(savedAt))
	if age > RetentionWindow {
		c.logger.Info("active conversation expired", "age", age)
		c.Clear()
		return nil, false
	}

	var messages []model.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		c.logger.Warn("failed to parse active conversation", "error", err)
		return nil, false
	}
	return messages, true
}

// Clear removes both snapshot keys. Idempotent; tolerates absence.
func (c *Cache) Clear() {
	c.storage.Remove(KeyMessages)
	c.storage.Remove(KeySavedAt)
}
