package core

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Resolver.MatchStrategy != MatchStrategyContainment {
		t.Errorf("Expected default match strategy %s, got %s", MatchStrategyContainment, config.Resolver.MatchStrategy)
	}

	if config.Resolver.Workers != DefaultWorkers {
		t.Errorf("Expected default workers %d, got %d", DefaultWorkers, config.Resolver.Workers)
	}

	if config.YouTube.Backend != YouTubeBackendDataAPI {
		t.Errorf("Expected default YouTube backend %s, got %s", YouTubeBackendDataAPI, config.YouTube.Backend)
	}

	if config.Spotify.Market != "" {
		t.Errorf("Expected no default market, got %q", config.Spotify.Market)
	}
}

func TestConfigConstants(t *testing.T) {
	if DefaultCallTimeout <= 0 {
		t.Error("DefaultCallTimeout should be positive")
	}

	if DefaultRetryAttempts < 1 {
		t.Error("DefaultRetryAttempts should allow at least one attempt")
	}

	if DefaultServerPort <= 0 || DefaultServerPort > 65535 {
		t.Error("DefaultServerPort should be a valid port number")
	}

	if DefaultSimilarityThreshold <= 0 || DefaultSimilarityThreshold > 1 {
		t.Error("DefaultSimilarityThreshold should be in (0, 1]")
	}
}
