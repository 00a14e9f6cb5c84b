// Package youtube lists playlist items and fetches video descriptions.
package youtube

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tubematch/internal/core"
	"tubematch/internal/retry"
)

const (
	// ServiceName labels YouTube failures in errors and metrics
	ServiceName = "youtube"
	// rateBurst is the number of calls allowed back to back
	rateBurst = 5
)

var (
	playlistIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{2,64}$`)

	// ErrInvalidPlaylistID is returned when no playlist ID can be read from the input.
	ErrInvalidPlaylistID = errors.New("invalid playlist id")
)

// NewPlatform returns the video-platform client for the configured backend.
func NewPlatform(config *core.YouTubeConfig, policy retry.Policy, logger *zap.Logger) (core.VideoPlatform, error) {
	switch config.Backend {
	case core.YouTubeBackendDataAPI, "":
		if config.APIKey == "" {
			return nil, fmt.Errorf("youtube API key is required for the %s backend", core.YouTubeBackendDataAPI)
		}
		return NewDataAPIClient(config, policy, logger), nil
	case core.YouTubeBackendScrape:
		return NewScrapeClient(config, policy, logger), nil
	default:
		return nil, fmt.Errorf("unsupported youtube backend: %s", config.Backend)
	}
}

func newLimiter(requestsPerSecond float64) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, rateBurst)
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), rateBurst)
}

// ExtractPlaylistID reads a playlist ID from a bare ID, a playlist or watch
// URL carrying list=, or a raw query string such as "list=PL..." or "q=PL...".
func ExtractPlaylistID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidPlaylistID
	}

	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		if !isYouTubeHost(u.Hostname()) {
			return "", fmt.Errorf("%w: not a YouTube URL", ErrInvalidPlaylistID)
		}
		return validPlaylistID(u.Query().Get("list"))
	}

	if strings.Contains(raw, "=") {
		values, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidPlaylistID, err)
		}
		for _, key := range []string{"list", "q", "playlist", "id"} {
			if v := values.Get(key); v != "" {
				return ExtractPlaylistID(v)
			}
		}
		return "", ErrInvalidPlaylistID
	}

	return validPlaylistID(raw)
}

func validPlaylistID(id string) (string, error) {
	if !playlistIDRegex.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlaylistID, id)
	}
	return id, nil
}

func isYouTubeHost(hostname string) bool {
	switch strings.ToLower(hostname) {
	case "youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com", "youtu.be":
		return true
	}
	return false
}
