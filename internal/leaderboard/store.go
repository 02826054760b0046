// Package leaderboard keeps per-username win counts.
package leaderboard

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var ErrEmptyName = errors.New("leaderboard: empty name")

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

type Entry struct {
	Name  string
	Score int
}

type Store interface {
	RecordWin(ctx context.Context, name string) error
	Top(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// NormalizeLimit maps a requested limit into [1, MaxLimit], using DefaultLimit for n <= 0.
func NormalizeLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	return min(n, MaxLimit)
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	return name, nil
}

// rank orders by score descending, then name.
func rank(a, b Entry) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return strings.Compare(a.Name, b.Name)
}

type MemoryStore struct {
	mu   sync.Mutex
	wins map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{wins: map[string]int{}}
}

func (m *MemoryStore) RecordWin(_ context.Context, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wins[name]++
	return nil
}

func (m *MemoryStore) Top(_ context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	out := make([]Entry, 0, len(m.wins))
	for name, wins := range m.wins {
		out = append(out, Entry{Name: name, Score: wins})
	}
	m.mu.Unlock()

	slices.SortFunc(out, rank)
	if n := NormalizeLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var ErrUnknownDriver = errors.New("leaderboard: unknown driver")

// Open picks a Store by driver name. sqlitePath and dsn are only read by the
// driver that needs them.
func Open(driver, sqlitePath, dsn string) (Store, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		s, err := OpenSQLite(sqlitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		s, err := OpenPostgres(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
