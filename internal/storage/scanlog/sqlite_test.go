package scanlog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "scanlog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{ScannedAt: base, ChatID: 1, UID: "75120354", Outcome: OutcomeConfirmed},
		{ScannedAt: base.Add(time.Minute), ChatID: 2, UID: "75120354", Outcome: OutcomeExpired, Message: "ExpiredCode"},
		{ScannedAt: base.Add(2 * time.Minute), ChatID: 1, UID: "75120354", Outcome: OutcomeFailed, Message: "system busy"},
	}
	for _, entry := range entries {
		require.NoError(t, store.Record(entry))
	}

	recent, err := store.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	// Most recent first.
	assert.Equal(t, OutcomeFailed, recent[0].Outcome)
	assert.Equal(t, "system busy", recent[0].Message)
	assert.Equal(t, OutcomeExpired, recent[1].Outcome)
	assert.Equal(t, base.Add(time.Minute), recent[1].ScannedAt)
}

func TestRecordFillsTimestamp(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Record(Entry{ChatID: 1, UID: "75120354", Outcome: OutcomeConfirmed}))

	recent, err := store.Recent(1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.False(t, recent[0].ScannedAt.IsZero())
}

func TestCountByOutcome(t *testing.T) {
	store := newTestStore(t)

	for _, outcome := range []string{OutcomeConfirmed, OutcomeConfirmed, OutcomeInvalid} {
		require.NoError(t, store.Record(Entry{ChatID: 1, UID: "75120354", Outcome: outcome}))
	}

	counts, err := store.CountByOutcome()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{OutcomeConfirmed: 2, OutcomeInvalid: 1}, counts)
}

func TestRecentOnEmptyStore(t *testing.T) {
	store := newTestStore(t)

	recent, err := store.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, recent)

	counts, err := store.CountByOutcome()
	require.NoError(t, err)
	assert.Empty(t, counts)
}
