package goodsave

import (
	"fmt"
	"maps"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testHeaderPool(n int) []HeaderSet {
	pool := make([]HeaderSet, n)
	for i := range pool {
		pool[i] = HeaderSet{
			"User-Agent":      fmt.Sprintf("agent-%d", i),
			"Accept-Language": "en-US,en;q=0.9",
		}
	}
	return pool
}

func TestSelectHeadersAvoidsRecent(t *testing.T) {
	store := NewRecencyStore(filepath.Join(t.TempDir(), "recent_headers.json"))
	pool := testHeaderPool(5)

	var last []HeaderSet
	for i := 0; i < 50; i++ {
		selected, err := SelectHeaders(store, pool)
		require.NoError(t, err)

		for _, recent := range last {
			require.False(
				t, maps.Equal(recent, selected),
				"selection %d repeated one of the last 3 header sets", i,
			)
		}

		last = append([]HeaderSet{selected}, last...)
		if len(last) > 3 {
			last = last[:3]
		}
		require.Equal(t, last, store.Load())
	}
}

func TestRecencyStoreMissingFile(t *testing.T) {
	store := NewRecencyStore(filepath.Join(t.TempDir(), "recent_headers.json"))
	require.Nil(t, store.Load())
}

func TestSelectHeadersEmptyPool(t *testing.T) {
	store := NewRecencyStore(filepath.Join(t.TempDir(), "recent_headers.json"))
	_, err := SelectHeaders(store, nil)
	require.Error(t, err)
}
