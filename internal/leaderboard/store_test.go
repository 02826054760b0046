package leaderboard

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every Store must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	top, err := s.Top(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, top)

	for _, name := range []string{"alice", "bob", "alice", "carol", "alice", "bob"} {
		require.NoError(t, s.RecordWin(ctx, name))
	}
	require.ErrorIs(t, s.RecordWin(ctx, "   "), ErrEmptyName)

	top, err = s.Top(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Name: "alice", Score: 3},
		{Name: "bob", Score: 2},
		{Name: "carol", Score: 1},
	}, top)

	top, err = s.Top(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_ConcurrentWins(t *testing.T) {
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.RecordWin(context.Background(), "alice")
		}()
	}
	wg.Wait()

	top, err := s.Top(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Name: "alice", Score: 50}}, top)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "wins.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	exerciseStore(t, s)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wins.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordWin(context.Background(), "alice"))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	top, err := s.Top(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Name: "alice", Score: 1}}, top)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TETRIS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TETRIS_TEST_DATABASE_URL not set")
	}
	s, err := OpenPostgres(dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.db.Exec("DELETE FROM leaderboard_wins")
		s.Close()
	})
	require.NoError(t, s.db.Exec("DELETE FROM leaderboard_wins").Error)

	exerciseStore(t, s)
}

func TestNormalizeLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{-1, DefaultLimit},
		{0, DefaultLimit},
		{5, 5},
		{MaxLimit + 1, MaxLimit},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, NormalizeLimit(tc.in), "limit %d", tc.in)
	}
}

func TestOpen(t *testing.T) {
	s, err := Open("", "", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(DriverSQLite, filepath.Join(t.TempDir(), "x.db"), "")
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open("mongo", "", "")
	require.ErrorIs(t, err, ErrUnknownDriver)
}
