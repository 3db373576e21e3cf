package cache

import (
	"path/filepath"
	"testing"
	"time"

	"ContraChat/internal/model"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	c := New(NewMemoryStorage(), nil)

	messages := []model.Message{
		model.NewMessage(model.RoleUser, "Social media is harmful"),
		model.NewMessage(model.RoleAssistant, "Consider the counterevidence."),
	}
	c.Save(messages)

	restored, ok := c.Load()
	if !ok {
		t.Fatal("Expected snapshot to load")
	}
	if len(restored) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(restored))
	}
	if restored[0].Content != messages[0].Content || restored[1].ID != messages[1].ID {
		t.Errorf("Round trip lost data: %+v", restored)
	}
}

func TestLoadAbsent(t *testing.T) {
	c := New(NewMemoryStorage(), nil)
	if _, ok := c.Load(); ok {
		t.Error("Expected no snapshot on empty storage")
	}
}

func TestLoadMissingTimestamp(t *testing.T) {
	storage := NewMemoryStorage()
	c := New(storage, nil)
	storage.Set(KeyMessages, "[]")
	if _, ok := c.Load(); ok {
		t.Error("Snapshot without a timestamp must read absent")
	}
}

func TestLoadInvalidTimestamp(t *testing.T) {
	storage := NewMemoryStorage()
	c := New(storage, nil)
	storage.Set(KeyMessages, "[]")
	storage.Set(KeySavedAt, "not-a-number")
	if _, ok := c.Load(); ok {
		t.Error("Snapshot with a bad timestamp must read absent")
	}
}

func TestLoadExpiryBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	storage := NewMemoryStorage()
	c := New(storage, nil)
	c.SetNowFunc(fixedClock(now.Add(-RetentionWindow)))
	c.Save([]model.Message{model.NewMessage(model.RoleUser, "belief")})

	// Exactly at the window the snapshot is still honored.
	c.SetNowFunc(fixedClock(now))
	if _, ok := c.Load(); !ok {
		t.Error("Snapshot exactly at the retention window must still load")
	}

	// One millisecond past the window it is expired and eagerly cleared.
	c.SetNowFunc(fixedClock(now.Add(time.Millisecond)))
	if _, ok := c.Load(); ok {
		t.Error("Snapshot past the retention window must read absent")
	}
	if _, ok := storage.Get(KeyMessages); ok {
		t.Error("Expired snapshot must be cleared from storage")
	}
	if _, ok := storage.Get(KeySavedAt); ok {
		t.Error("Expired timestamp must be cleared from storage")
	}
}

func TestClearIdempotent(t *testing.T) {
	c := New(NewMemoryStorage(), nil)
	c.Clear()
	c.Save([]model.Message{model.NewMessage(model.RoleUser, "belief")})
	c.Clear()
	c.Clear()
	if _, ok := c.Load(); ok {
		t.Error("Expected no snapshot after Clear")
	}
}

func TestFileStorage(t *testing.T) {
	storage, err := NewFileStorage(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("NewFileStorage failed: %v", err)
	}

	if _, ok := storage.Get("missing"); ok {
		t.Error("Expected absent key")
	}
	if err := storage.Set("k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if v, ok := storage.Get("k"); !ok || v != "v" {
		t.Errorf("Expected (v, true), got (%q, %v)", v, ok)
	}
	storage.Remove("k")
	storage.Remove("k")
	if _, ok := storage.Get("k"); ok {
		t.Error("Expected key removed")
	}
}

func TestCacheOverFileStorage(t *testing.T) {
	storage, err := NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage failed: %v", err)
	}
	c := New(storage, nil)

	c.Save([]model.Message{model.NewMessage(model.RoleUser, "persisted belief")})
	restored, ok := c.Load()
	if !ok || len(restored) != 1 || restored[0].Content != "persisted belief" {
		t.Errorf("File-backed round trip failed: ok=%v messages=%+v", ok, restored)
	}
}
