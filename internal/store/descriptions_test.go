package store

import (
	"testing"
	"time"
)

func TestDescriptionCache(t *testing.T) {
	cache := NewDescriptionCache(2, time.Hour)

	if _, ok := cache.Get("video1"); ok {
		t.Error("Empty cache should miss")
	}

	cache.Put("video1", "00:00 Intro")
	cache.Put("video2", "")

	if desc, ok := cache.Get("video1"); !ok || desc != "00:00 Intro" {
		t.Errorf("Get(video1) = (%q, %v), want (%q, true)", desc, ok, "00:00 Intro")
	}

	if desc, ok := cache.Get("video2"); !ok || desc != "" {
		t.Errorf("Get(video2) = (%q, %v), empty descriptions should be cached", desc, ok)
	}

	cache.Put("video3", "third")
	if cache.Len() != 2 {
		t.Errorf("Cache should be bounded to 2 entries, got %d", cache.Len())
	}
}

func TestDescriptionCache_Expiry(t *testing.T) {
	cache := NewDescriptionCache(10, 10*time.Millisecond)
	cache.Put("video1", "desc")

	time.Sleep(50 * time.Millisecond)

	if _, ok := cache.Get("video1"); ok {
		t.Error("Entry should have expired")
	}
}
