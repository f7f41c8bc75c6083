package activity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntryText(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	e := NewEntry("", "PURCHASED", "payment", 7, at)
	assert.Equal(t, "purchased", e.Type)
	assert.Equal(t, "Purchased Payment with ID 7", e.Text)
	assert.Equal(t, "System", e.User)
	assert.Equal(t, "payment", e.Model)
}

func TestMemoryStoreNewestFirstAndBounded(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, s.Add(ctx, Entry{ObjectID: i}))
	}
	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(5), got[0].ObjectID)
	assert.Equal(t, uint64(3), got[2].ObjectID)

	got, _ = s.Recent(ctx, 1)
	assert.Len(t, got, 1)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, MaxEntries, clampLimit(0))
	assert.Equal(t, MaxEntries, clampLimit(1000))
	assert.Equal(t, 10, clampLimit(10))
}
