package runstore

import (
	"context"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) Store {
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func TestRecordAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	older := Run{
		StartedAt:  time.Unix(1724500000, 0),
		Posted:     false,
		StatusCode: 200,
		Target:     "/goodsave?src=mail",
		Payload:    url.Values{"fr_Project": {"PRJ-7"}},
	}
	newer := Run{
		StartedAt:  time.Unix(1724500060, 0),
		Posted:     true,
		StatusCode: 200,
		Target:     "/forms/goodsave/submit?qs_template=stage",
		Payload:    url.Values{"fr_Project": {"PRJ-7"}, "fr_SubmittedBy": {"Jane Tester"}},
	}

	require.NoError(t, store.Record(ctx, older))
	require.NoError(t, store.Record(ctx, newer))

	runs, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, newer.Target, runs[0].Target)
	require.Equal(t, older.Target, runs[1].Target)

	require.True(t, runs[0].Posted)
	require.True(t, runs[0].StartedAt.Equal(newer.StartedAt))
	require.Equal(t, newer.Payload, runs[0].Payload)
}

func TestRecentLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := store.Record(ctx, Run{
			StartedAt:  time.Unix(1724500000+int64(i), 0),
			StatusCode: 200,
			Target:     "/goodsave",
			Payload:    url.Values{},
		})
		require.NoError(t, err)
	}

	runs, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.True(t, runs[0].StartedAt.After(runs[1].StartedAt))
}

func TestRecentEmpty(t *testing.T) {
	store := openTestStore(t)
	runs, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, runs)
}
