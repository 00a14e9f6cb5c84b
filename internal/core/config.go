package core

import (
	"time"
)

const (
	// DefaultServerPort is the HTTP port used when none is configured
	DefaultServerPort = 8080
	// DefaultWorkers is the size of the per-batch worker pool
	DefaultWorkers = 8
	// DefaultCallTimeout bounds every single collaborator call
	DefaultCallTimeout = 15 * time.Second
	// DefaultRetryAttempts is the number of attempts for transient upstream failures
	DefaultRetryAttempts = 3
	// DefaultSimilarityThreshold is the Jaro-Winkler threshold of the similarity strategy
	DefaultSimilarityThreshold = 0.85
	// DefaultFloodLimit is the number of resolve requests a client may issue per flood window
	DefaultFloodLimit = 30
	// DefaultFloodWindow is the sliding window of the per-client request limit
	DefaultFloodWindow = time.Minute

	// YouTubeBackendDataAPI uses the YouTube Data API v3 with an API key
	YouTubeBackendDataAPI = "data-api"
	// YouTubeBackendScrape uses the public watch/playlist pages
	YouTubeBackendScrape = "scrape"

	// MatchStrategyContainment is the substring rule set
	MatchStrategyContainment = "containment"
	// MatchStrategySimilarity scores candidates with Jaro-Winkler similarity
	MatchStrategySimilarity = "similarity"
)

type Config struct {
	YouTube  YouTubeConfig
	Spotify  SpotifyConfig
	Resolver ResolverConfig
	Retry    RetryConfig
	Cache    CacheConfig
	Server   ServerConfig
	Log      LogConfig
}

type YouTubeConfig struct {
	Backend           string
	APIKey            string
	BaseURL           string
	PageSize          int
	RequestsPerSecond float64
}

type SpotifyConfig struct {
	ClientID          string
	ClientSecret      string
	TokenURL          string
	APIBaseURL        string
	Market            string
	RequestsPerSecond float64
}

type ResolverConfig struct {
	Workers             int
	CallTimeout         time.Duration
	MatchStrategy       string
	SimilarityThreshold float64
}

type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type CacheConfig struct {
	DescriptionSize int
	DescriptionTTL  time.Duration
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	FloodLimit   int
	FloodWindow  time.Duration
	// TrustForwardedFor keys the flood limit on X-Forwarded-For, for deployments behind a proxy
	TrustForwardedFor bool
}

type LogConfig struct {
	Level  string
	Format string
}

func DefaultConfig() *Config {
	return &Config{
		YouTube: YouTubeConfig{
			Backend:           YouTubeBackendDataAPI,
			BaseURL:           "https://www.googleapis.com/youtube/v3",
			PageSize:          50,
			RequestsPerSecond: 20,
		},
		Spotify: SpotifyConfig{
			TokenURL:          "https://accounts.spotify.com/api/token",
			APIBaseURL:        "https://api.spotify.com/v1/",
			RequestsPerSecond: 10,
		},
		Resolver: ResolverConfig{
			Workers:             DefaultWorkers,
			CallTimeout:         DefaultCallTimeout,
			MatchStrategy:       MatchStrategyContainment,
			SimilarityThreshold: DefaultSimilarityThreshold,
		},
		Retry: RetryConfig{
			MaxAttempts:     DefaultRetryAttempts,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
		},
		Cache: CacheConfig{
			DescriptionSize: 1024,
			DescriptionTTL:  30 * time.Minute,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         DefaultServerPort,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 5 * time.Minute,
			FloodLimit:   DefaultFloodLimit,
			FloodWindow:  DefaultFloodWindow,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
