// Package store provides in-memory deduplication and caching for resolution batches.
package store

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"tubematch/internal/core"
)

// dedupStore is a thread-safe set of catalog track URIs with a Bloom filter in
// front of an LRU-bounded map.
type dedupStore struct {
	uris      map[string]struct{}
	bloom     *bloom.BloomFilter
	lru       *lru.Cache[string, struct{}]
	mutex     sync.RWMutex
	maxTracks int
}

// newDedupStore creates a store holding up to maxTracks URIs.
func newDedupStore(maxTracks int, bloomFalsePositiveRate float64) *dedupStore {
	if maxTracks <= 0 || maxTracks > int(^uint(0)>>1) {
		panic("maxTracks value out of range for uint conversion")
	}

	lruCache, _ := lru.New[string, struct{}](maxTracks)

	return &dedupStore{
		uris:      make(map[string]struct{}),
		bloom:     bloom.NewWithEstimates(uint(maxTracks), bloomFalsePositiveRate),
		lru:       lruCache,
		maxTracks: maxTracks,
	}
}

// has reports whether uri is in the store.
func (ds *dedupStore) has(uri string) bool {
	ds.mutex.RLock()
	defer ds.mutex.RUnlock()

	if !ds.bloom.TestString(uri) {
		return false
	}

	_, exists := ds.uris[uri]
	return exists
}

// add inserts uri and reports whether it was new.
func (ds *dedupStore) add(uri string) bool {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	if _, exists := ds.uris[uri]; exists {
		return false
	}

	ds.uris[uri] = struct{}{}
	ds.bloom.AddString(uri)
	ds.lru.Add(uri, struct{}{})

	if len(ds.uris) > ds.maxTracks {
		ds.evictOldest()
	}
	return true
}

func (ds *dedupStore) evictOldest() {
	oldestKey, _, ok := ds.lru.GetOldest()
	if !ok {
		return
	}

	delete(ds.uris, oldestKey)
	ds.lru.Remove(oldestKey)
}

// UniqueMatches flattens the matched tracks of results, dropping repeated
// URIs. Order follows results, then tracklist order within an item.
func UniqueMatches(results []core.ItemResult) []core.CandidateTrack {
	capacity := 1
	for i := range results {
		capacity += len(results[i].Result.Matches) + 1
	}

	seen := newDedupStore(capacity, 0.001)
	tracks := make([]core.CandidateTrack, 0, capacity)
	for i := range results {
		for _, track := range results[i].Result.MatchedTracks() {
			key := track.URI
			if key == "" {
				key = track.ExternalURL
			}
			if seen.add(key) {
				tracks = append(tracks, track)
			}
		}
	}
	return tracks
}
