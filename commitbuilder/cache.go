package commitbuilder

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto"

	"github.com/rowline/rowline/store"
)

// existsCache remembers which content hashes this process has already
// confirmed are stored, so a commit build skips re-querying the store for
// rows an earlier build (or an earlier table in the same build) already
// proved exist. Mirrors the commitCache pattern in the versioning history
// layer this package was modeled on.
var (
	existsCache *ristretto.Cache
	cacheMu     sync.RWMutex
)

func init() {
	cache, _ := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e6,
		MaxCost:     1 << 26, // 64MiB
		BufferItems: 64,
	})
	existsCache = cache
}

// cacheKey scopes a hash to the store it was confirmed against: the cache
// is process-wide, but a hash proven to exist in one *store.DB says
// nothing about another (a second dataset's store in the same process,
// or a test's own throwaway database).
func cacheKey(db *store.DB, hash string) string {
	return fmt.Sprintf("%p:%s", db, hash)
}

// filterUnknownHashes splits hashes into those the cache already confirms
// exist in db and those that still need a store round trip.
func filterUnknownHashes(db *store.DB, hashes []string) (known map[string]bool, unknown []string) {
	known = make(map[string]bool)
	cacheMu.RLock()
	defer cacheMu.RUnlock()
	for _, h := range hashes {
		if _, ok := existsCache.Get(cacheKey(db, h)); ok {
			known[h] = true
			continue
		}
		unknown = append(unknown, h)
	}
	return known, unknown
}

// markExists records hashes now known to exist in db, populated after
// every successful exists check and every upsert.
func markExists(db *store.DB, hashes []string) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	for _, h := range hashes {
		existsCache.Set(cacheKey(db, h), true, 1)
	}
}
