// Package activity keeps a bounded, newest-first feed of recent marketplace
// actions.  The server owns a Store; there is no package-level state.
package activity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MaxEntries bounds every Store.
const MaxEntries = 100

// Entry is one feed item.
type Entry struct {
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	Model     string    `json:"model"`
	ObjectID  uint64    `json:"object_id"`
}

// NewEntry builds an entry like "Purchased Payment with ID 7".  An empty user
// is recorded as System.
func NewEntry(user, action, model string, objectID uint64, at time.Time) Entry {
	if user == "" {
		user = "System"
	}
	return Entry{
		Type:      strings.ToLower(action),
		Text:      fmt.Sprintf("%s %s with ID %d", title(action), title(model), objectID),
		Timestamp: at.UTC(),
		User:      user,
		Model:     strings.ToLower(model),
		ObjectID:  objectID,
	}
}

func title(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToLower(s)
	return strings.ToUpper(s[:1]) + s[1:]
}

// Store appends entries and lists the newest ones first.
type Store interface {
	Add(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxEntries {
		return MaxEntries
	}
	return limit
}

// MemoryStore is a bounded in-process ring, newest first.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	max     int
}

// NewMemoryStore keeps at most max entries in process.
func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 || max > MaxEntries {
		max = MaxEntries
	}
	return &MemoryStore{max: max}
}

func (m *MemoryStore) Add(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append([]Entry{e}, m.entries...)
	if len(m.entries) > m.max {
		m.entries = m.entries[:m.max]
	}
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = clampLimit(limit)
	if limit > len(m.entries) {
		limit = len(m.entries)
	}
	out := make([]Entry, limit)
	copy(out, m.entries[:limit])
	return out, nil
}
