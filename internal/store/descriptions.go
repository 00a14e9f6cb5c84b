package store

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DescriptionCache memoizes video descriptions across batches. Entries expire
// after the configured TTL so edited descriptions are picked up eventually.
type DescriptionCache struct {
	lru *expirable.LRU[string, string]
}

// NewDescriptionCache creates a cache holding up to size descriptions for ttl.
func NewDescriptionCache(size int, ttl time.Duration) *DescriptionCache {
	return &DescriptionCache{
		lru: expirable.NewLRU[string, string](size, nil, ttl),
	}
}

// Get returns the cached description of videoID.
func (c *DescriptionCache) Get(videoID string) (string, bool) {
	return c.lru.Get(videoID)
}

// Put stores the description of videoID.
func (c *DescriptionCache) Put(videoID, description string) {
	c.lru.Add(videoID, description)
}

// Len returns the number of cached descriptions.
func (c *DescriptionCache) Len() int {
	return c.lru.Len()
}
