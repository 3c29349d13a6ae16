package goodsave

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"os"

	"github.com/mazen160/go-random"
)

// HeaderSet is one candidate set of request headers.
type HeaderSet map[string]string

// how many past selections are remembered to avoid immediate reuse
const recencyWindow = 3

const DefaultRecentHeadersFile = "recent_headers.json"

// RecencyStore persists the most recently selected header sets across runs.
type RecencyStore struct {
	path string
}

func NewRecencyStore(path string) RecencyStore {
	if path == "" {
		path = DefaultRecentHeadersFile
	}
	return RecencyStore{path: path}
}

func (s RecencyStore) Load() []HeaderSet {
	contents, err := os.ReadFile(s.path)
	if err != nil {
		slog.Debug("no recent headers file", "path", s.path)
		return nil
	}
	var recent []HeaderSet
	err = json.Unmarshal(contents, &recent)
	if err != nil {
		slog.Warn("discarding unreadable recent headers file", "path", s.path, "err", err)
		return nil
	}
	return recent
}

func (s RecencyStore) Save(recent []HeaderSet) error {
	contents, err := json.Marshal(recent)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, contents, 0644)
}

// SelectHeaders draws one header set uniformly at random from pool,
// rejecting any of the last 3 selections, then pushes the choice onto the
// persisted recency list. The pool must be larger than the recency window
// for the draw to terminate; this is a precondition, not enforced.
func SelectHeaders(store RecencyStore, pool []HeaderSet) (HeaderSet, error) {
	if len(pool) == 0 {
		return nil, fmt.Errorf("header pool is empty")
	}

	recent := store.Load()
	var candidate HeaderSet
	for {
		idx, err := random.IntRange(0, len(pool))
		if err != nil {
			return nil, err
		}
		candidate = pool[idx]
		if !containsHeaderSet(recent, candidate) {
			break
		}
	}

	recent = append([]HeaderSet{candidate}, recent...)
	if len(recent) > recencyWindow {
		recent = recent[:recencyWindow]
	}
	err := store.Save(recent)
	if err != nil {
		return nil, fmt.Errorf("failed to persist recent headers: %w", err)
	}

	slog.Debug("selected request headers", "user_agent", candidate["User-Agent"])
	return candidate, nil
}

func containsHeaderSet(list []HeaderSet, h HeaderSet) bool {
	for _, r := range list {
		if maps.Equal(r, h) {
			return true
		}
	}
	return false
}
