package xquery

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingLoader(doc string, loads *atomic.Int64) LoadFunc {
	return func() ([]byte, error) {
		loads.Add(1)
		return []byte(doc), nil
	}
}

func TestCacheParsesOnce(t *testing.T) {
	c := NewCache()
	var loads atomic.Int64
	load := countingLoader(cropsDoc, &loads)

	first, err := c.Tree("ds1", 1, load)
	require.NoError(t, err)
	second, err := c.Tree("ds1", 1, load)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), loads.Load())
}

func TestCacheInvalidateForcesReparse(t *testing.T) {
	c := NewCache()
	var loads atomic.Int64

	_, err := c.Tree("ds1", 1, countingLoader(cropsDoc, &loads))
	require.NoError(t, err)

	c.Invalidate("ds1")

	updated := `<crops><record><Season>Zaid</Season></record></crops>`
	tree, err := c.Tree("ds1", 2, countingLoader(updated, &loads))
	require.NoError(t, err)
	assert.Equal(t, int64(2), loads.Load())

	got := selectTexts(t, tree, "//Season")
	assert.Equal(t, []string{"Zaid"}, got, "post-invalidation queries see the new record set")
}

func TestCacheGenerationMismatchReparses(t *testing.T) {
	c := NewCache()
	var loads atomic.Int64
	load := countingLoader(cropsDoc, &loads)

	_, err := c.Tree("ds1", 1, load)
	require.NoError(t, err)
	_, err = c.Tree("ds1", 2, load)
	require.NoError(t, err)
	assert.Equal(t, int64(2), loads.Load())
}

func TestCacheEntriesAreIndependent(t *testing.T) {
	c := NewCache()
	var loads atomic.Int64
	load := countingLoader(cropsDoc, &loads)

	_, err := c.Tree("ds1", 1, load)
	require.NoError(t, err)
	_, err = c.Tree("ds2", 1, load)
	require.NoError(t, err)

	c.Invalidate("ds1")
	_, err = c.Tree("ds2", 1, load)
	require.NoError(t, err)
	assert.Equal(t, int64(2), loads.Load(), "invalidating ds1 does not touch ds2")
}

func TestCacheInvalidateUnknownDataset(t *testing.T) {
	c := NewCache()
	c.Invalidate("never-seen")
	c.Drop("never-seen")
}

func TestCacheConcurrentReads(t *testing.T) {
	c := NewCache()
	var loads atomic.Int64
	load := countingLoader(cropsDoc, &loads)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tree, err := c.Tree("ds1", 1, load)
			assert.NoError(t, err)
			q, err := Parse("count(//record)")
			assert.NoError(t, err)
			assert.Len(t, q.Select(tree), 4)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), loads.Load(), "concurrent first reads parse exactly once")
}

func TestCacheDrop(t *testing.T) {
	c := NewCache()
	var loads atomic.Int64
	load := countingLoader(cropsDoc, &loads)

	_, err := c.Tree("ds1", 1, load)
	require.NoError(t, err)
	c.Drop("ds1")
	_, err = c.Tree("ds1", 1, load)
	require.NoError(t, err)
	assert.Equal(t, int64(2), loads.Load())
}
