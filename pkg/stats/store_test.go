package stats

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndAggregate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordSession(ctx, SessionRecord{
		ID: "s1", Role: "Backend Engineer", Seniority: "senior",
		StartedAt: base, DurationSeconds: 600, TurnCount: 12, OverallScore: 7,
	}))
	require.NoError(t, store.RecordSession(ctx, SessionRecord{
		ID: "s2", Role: "Backend Engineer", Seniority: "senior",
		StartedAt: base.Add(time.Hour), DurationSeconds: 300, TurnCount: 6, OverallScore: 9,
	}))
	// Aborted session, never scored.
	require.NoError(t, store.RecordSession(ctx, SessionRecord{
		ID: "s3", Role: "SRE", Seniority: "mid",
		StartedAt: base.Add(2 * time.Hour), DurationSeconds: 45,
	}))

	totals, err := store.TotalStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, totals.Sessions)
	require.EqualValues(t, 945, totals.PracticeSeconds)
	require.InDelta(t, 8.0, totals.AverageScore, 0.001)
}

func TestRecentSessionsOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, store.RecordSession(ctx, SessionRecord{
			ID: id, Role: "Backend Engineer", Seniority: "senior",
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	recs, err := store.RecentSessions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "new", recs[0].ID)
	require.Equal(t, "mid", recs[1].ID)
}

func TestRecordRejectsMissingID(t *testing.T) {
	store := openTestStore(t)
	require.Error(t, store.RecordSession(context.Background(), SessionRecord{}))
}

func TestDuplicateIDFails(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	rec := SessionRecord{ID: "dup", Role: "Backend Engineer", Seniority: "senior", StartedAt: time.Now()}
	require.NoError(t, store.RecordSession(ctx, rec))
	require.Error(t, store.RecordSession(ctx, rec))
}
