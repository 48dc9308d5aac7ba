package cache

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"strconv"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"gonum.org/v1/gonum/mat"

	"github.com/TruWeaveTrader/cointeg/internal/johansen"
	"github.com/TruWeaveTrader/cointeg/internal/models"
)

// Cache memoises Johansen estimations by input fingerprint
type Cache struct {
	results *gocache.Cache
	ttl     time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache creates a new cache instance
func NewCache(ttl time.Duration) *Cache {
	// Use go-cache with default expiration and cleanup interval
	return &Cache{
		results: gocache.New(ttl, ttl*2),
		ttl:     ttl,
	}
}

// Key fingerprints the matrix contents together with the estimation parameters
func Key(x mat.Matrix, lags int, sig models.Significance) string {
	h := fnv.New64a()
	r, c := x.Dims()
	var buf [8]byte
	for _, v := range []int{r, c, lags, int(sig)} {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x.At(i, j)))
			h.Write(buf[:])
		}
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// GetResult retrieves a cached estimation
func (c *Cache) GetResult(key string) (*johansen.Result, bool) {
	if val, found := c.results.Get(key); found {
		if res, ok := val.(*johansen.Result); ok {
			return res, true
		}
	}
	return nil, false
}

// SetResult caches an estimation
func (c *Cache) SetResult(key string, res *johansen.Result) {
	c.results.Set(key, res, c.ttl)
}

// Estimate returns the cached result for the inputs, running johansen.Estimate
// on a miss. Failures are not cached.
func (c *Cache) Estimate(x mat.Matrix, lags int, sig models.Significance) (*johansen.Result, error) {
	key := Key(x, lags, sig)
	if res, ok := c.GetResult(key); ok {
		c.hits.Add(1)
		return res, nil
	}
	c.misses.Add(1)

	res, err := johansen.Estimate(x, lags, sig)
	if err != nil {
		return nil, err
	}
	c.SetResult(key, res)
	return res, nil
}

// Clear removes all cached data
func (c *Cache) Clear() {
	c.results.Flush()
}

// Stats returns cache statistics
type Stats struct {
	ResultCount int
	Hits        int64
	Misses      int64
}

// GetStats returns current cache statistics
func (c *Cache) GetStats() Stats {
	return Stats{
		ResultCount: c.results.ItemCount(),
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
	}
}
