// Package main provides the tubematch CLI application entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"tubematch/internal/core"
	"tubematch/internal/flood"
	httpserver "tubematch/internal/http"
	"tubematch/internal/match"
	"tubematch/internal/resolver"
	"tubematch/internal/retry"
	"tubematch/internal/spotify"
	"tubematch/internal/store"
	"tubematch/internal/youtube"
	"tubematch/pkg/query"
)

const (
	envPrefix = "TUBEMATCH"
	version   = "1.0.0"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tubematch",
	Short: "tubematch - YouTube playlist → Spotify track resolver",
	Long: `tubematch resolves the entries of a YouTube playlist to Spotify catalog tracks.
Single-track videos are matched by their "Artist - Track" title, compilation videos
are expanded through the timestamped tracklist in their description.`,
	RunE: runTubematch,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := core.DefaultConfig()
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&cfgFile, "config", "", "config file (default is .env)")
	flags.String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	flags.String("log-format", defaults.Log.Format, "log format (json, console)")

	flags.String("youtube-backend", defaults.YouTube.Backend, "YouTube backend (data-api, scrape)")
	flags.String("youtube-api-key", "", "YouTube Data API key")
	flags.String("youtube-base-url", defaults.YouTube.BaseURL, "YouTube Data API base URL")
	flags.Int("youtube-page-size", defaults.YouTube.PageSize, "Playlist items per page (max 50)")
	flags.Float64("youtube-requests-per-second", defaults.YouTube.RequestsPerSecond, "YouTube request rate (0 disables the limit)")

	flags.String("spotify-client-id", "", "Spotify client ID")
	flags.String("spotify-client-secret", "", "Spotify client secret")
	flags.String("spotify-market", "", "Spotify market (ISO 3166-1 alpha-2) applied to every search")
	flags.String("spotify-token-url", defaults.Spotify.TokenURL, "Spotify token endpoint")
	flags.String("spotify-api-base-url", defaults.Spotify.APIBaseURL, "Spotify Web API base URL")
	flags.Float64("spotify-requests-per-second", defaults.Spotify.RequestsPerSecond, "Spotify search rate (0 disables the limit)")

	flags.Int("resolver-workers", defaults.Resolver.Workers, "Items resolved in parallel per playlist")
	flags.Duration("resolver-call-timeout", defaults.Resolver.CallTimeout, "Timeout of every upstream call")
	flags.String("resolver-match-strategy", defaults.Resolver.MatchStrategy, "Match strategy (containment, similarity)")
	flags.Float64("resolver-similarity-threshold", defaults.Resolver.SimilarityThreshold, "Jaro-Winkler threshold of the similarity strategy")

	flags.Int("retry-max-attempts", defaults.Retry.MaxAttempts, "Attempts per upstream call for 429/5xx failures")
	flags.Duration("retry-initial-interval", defaults.Retry.InitialInterval, "First retry backoff")
	flags.Duration("retry-max-interval", defaults.Retry.MaxInterval, "Maximum retry backoff")

	flags.Int("cache-description-size", defaults.Cache.DescriptionSize, "Cached video descriptions (0 disables the cache)")
	flags.Duration("cache-description-ttl", defaults.Cache.DescriptionTTL, "Lifetime of a cached description")

	flags.String("server-host", defaults.Server.Host, "HTTP server host")
	flags.Int("server-port", defaults.Server.Port, "HTTP server port")
	flags.Duration("server-read-timeout", defaults.Server.ReadTimeout, "HTTP read timeout")
	flags.Duration("server-write-timeout", defaults.Server.WriteTimeout, "HTTP write timeout")
	flags.Int("server-flood-limit", defaults.Server.FloodLimit, "Resolve requests per client per flood window (0 disables the limit)")
	flags.Duration("server-flood-window", defaults.Server.FloodWindow, "Sliding window of the per-client limit")
	flags.Bool("server-trust-forwarded-for", defaults.Server.TrustForwardedFor, "Key the per-client limit on X-Forwarded-For (only behind a trusted proxy)")

	flags.Bool("generate-env-example", false, "Generate .env.example file from current configuration and exit")

	if err := viper.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(config.Log.Level, config.Log.Format)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	configureYouTube(cfg)
	configureSpotify(cfg)
	configureResolver(cfg)
	configureRetry(cfg)
	configureServer(cfg)

	cfg.Cache.DescriptionSize = viper.GetInt("cache-description-size")
	cfg.Cache.DescriptionTTL = viper.GetDuration("cache-description-ttl")
	cfg.Log.Level = viper.GetString("log-level")
	cfg.Log.Format = viper.GetString("log-format")

	return cfg
}

func configureYouTube(cfg *core.Config) {
	cfg.YouTube.Backend = strings.ToLower(viper.GetString("youtube-backend"))
	cfg.YouTube.APIKey = viper.GetString("youtube-api-key")
	cfg.YouTube.BaseURL = viper.GetString("youtube-base-url")
	cfg.YouTube.PageSize = viper.GetInt("youtube-page-size")
	cfg.YouTube.RequestsPerSecond = viper.GetFloat64("youtube-requests-per-second")
}

func configureSpotify(cfg *core.Config) {
	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")
	cfg.Spotify.Market = strings.ToUpper(viper.GetString("spotify-market"))
	cfg.Spotify.TokenURL = viper.GetString("spotify-token-url")
	cfg.Spotify.APIBaseURL = viper.GetString("spotify-api-base-url")
	if !strings.HasSuffix(cfg.Spotify.APIBaseURL, "/") {
		cfg.Spotify.APIBaseURL += "/"
	}
	cfg.Spotify.RequestsPerSecond = viper.GetFloat64("spotify-requests-per-second")
}

func configureResolver(cfg *core.Config) {
	cfg.Resolver.Workers = viper.GetInt("resolver-workers")
	if cfg.Resolver.Workers <= 0 {
		fmt.Printf("Warning: Invalid worker count (%d), using default (%d)\n",
			cfg.Resolver.Workers, core.DefaultWorkers)
		cfg.Resolver.Workers = core.DefaultWorkers
	}
	cfg.Resolver.CallTimeout = viper.GetDuration("resolver-call-timeout")
	if cfg.Resolver.CallTimeout <= 0 {
		fmt.Printf("Warning: Invalid call timeout (%s), using default (%s)\n",
			cfg.Resolver.CallTimeout, core.DefaultCallTimeout)
		cfg.Resolver.CallTimeout = core.DefaultCallTimeout
	}
	cfg.Resolver.MatchStrategy = strings.ToLower(viper.GetString("resolver-match-strategy"))
	cfg.Resolver.SimilarityThreshold = viper.GetFloat64("resolver-similarity-threshold")
}

func configureRetry(cfg *core.Config) {
	cfg.Retry.MaxAttempts = viper.GetInt("retry-max-attempts")
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 1
	}
	cfg.Retry.InitialInterval = viper.GetDuration("retry-initial-interval")
	cfg.Retry.MaxInterval = viper.GetDuration("retry-max-interval")
}

func configureServer(cfg *core.Config) {
	cfg.Server.Host = viper.GetString("server-host")
	cfg.Server.Port = viper.GetInt("server-port")
	cfg.Server.ReadTimeout = viper.GetDuration("server-read-timeout")
	cfg.Server.WriteTimeout = viper.GetDuration("server-write-timeout")
	cfg.Server.FloodLimit = viper.GetInt("server-flood-limit")
	cfg.Server.FloodWindow = viper.GetDuration("server-flood-window")
	cfg.Server.TrustForwardedFor = viper.GetBool("server-trust-forwarded-for")
}

func buildLogger(level, format string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if strings.EqualFold(format, "console") {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runTubematch(cmd *cobra.Command, _ []string) error {
	if viper.GetBool("generate-env-example") {
		return generateEnvExample(cmd)
	}

	defer func() {
		_ = logger.Sync()
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting tubematch",
		zap.String("version", version),
		zap.String("youtube_backend", config.YouTube.Backend),
		zap.String("match_strategy", config.Resolver.MatchStrategy),
		zap.Int("workers", config.Resolver.Workers))

	if err := validateConfig(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	svcs, err := initializeServices()
	if err != nil {
		return err
	}

	return runServices(ctx, svcs)
}

type services struct {
	httpServer *httpserver.Server
	floodgate  *flood.Floodgate
}

func initializeServices() (*services, error) {
	policy := retry.FromConfig(config.Retry)

	platform, err := youtube.NewPlatform(&config.YouTube, policy, logger.Named("youtube"))
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube client: %w", err)
	}
	var cache *store.DescriptionCache
	if config.Cache.DescriptionSize > 0 {
		cache = store.NewDescriptionCache(config.Cache.DescriptionSize, config.Cache.DescriptionTTL)
		platform = youtube.NewCachingPlatform(platform, cache, logger.Named("youtube"))
	}

	strategy, err := match.New(config.Resolver.MatchStrategy, config.Resolver.SimilarityThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to create match strategy: %w", err)
	}

	items := resolver.NewItemResolver(
		query.NewBuilder(config.Spotify.Market),
		strategy,
		config.Resolver.CallTimeout,
		logger.Named("resolver"),
	)

	var floodgate *flood.Floodgate
	if config.Server.FloodLimit > 0 {
		floodgate = flood.New(config.Server.FloodLimit, config.Server.FloodWindow)
	}

	httpServer := httpserver.NewServer(&config.Server, httpserver.Dependencies{
		Platform:         platform,
		Catalog:          spotify.NewClient(&config.Spotify, policy, logger.Named("spotify")),
		Resolver:         resolver.NewConcurrentResolver(items, config.Resolver.Workers, config.Resolver.CallTimeout, logger.Named("resolver")),
		Floodgate:        floodgate,
		DescriptionCache: cache,
	}, logger.Named("http"))

	return &services{
		httpServer: httpServer,
		floodgate:  floodgate,
	}, nil
}

func runServices(ctx context.Context, svcs *services) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svcs.httpServer.Start(gCtx)
	})

	logger.Info("tubematch started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	err := g.Wait()
	if svcs.floodgate != nil {
		svcs.floodgate.Stop()
	}
	if err != nil {
		logger.Error("tubematch stopped with error", zap.Error(err))
		return err
	}

	logger.Info("tubematch stopped gracefully")
	return nil
}

func validateConfig(cfg *core.Config) error {
	if err := validateSpotifyConfig(cfg); err != nil {
		return err
	}

	if err := validateYouTubeConfig(cfg); err != nil {
		return err
	}

	if err := validateServerConfig(cfg); err != nil {
		return err
	}

	return validateResolverConfig(cfg)
}

func validateServerConfig(cfg *core.Config) error {
	if cfg.Server.FloodLimit > 0 && cfg.Server.FloodWindow <= 0 {
		return fmt.Errorf("server flood window must be positive, got %s", cfg.Server.FloodWindow)
	}
	return nil
}

func validateSpotifyConfig(cfg *core.Config) error {
	if cfg.Spotify.ClientID == "" {
		return errors.New("spotify client ID is required")
	}

	if cfg.Spotify.ClientSecret == "" {
		return errors.New("spotify client secret is required")
	}

	if cfg.Spotify.Market != "" && len(cfg.Spotify.Market) != 2 {
		return fmt.Errorf("spotify market must be a two-letter country code, got %q", cfg.Spotify.Market)
	}

	return nil
}

func validateYouTubeConfig(cfg *core.Config) error {
	switch cfg.YouTube.Backend {
	case core.YouTubeBackendDataAPI:
		if cfg.YouTube.APIKey == "" {
			return fmt.Errorf("YouTube API key is required for the %s backend", core.YouTubeBackendDataAPI)
		}
	case core.YouTubeBackendScrape:
	default:
		return fmt.Errorf("unsupported YouTube backend: %s", cfg.YouTube.Backend)
	}
	return nil
}

func validateResolverConfig(cfg *core.Config) error {
	switch cfg.Resolver.MatchStrategy {
	case core.MatchStrategyContainment:
	case core.MatchStrategySimilarity:
		if cfg.Resolver.SimilarityThreshold <= 0 || cfg.Resolver.SimilarityThreshold > 1 {
			return fmt.Errorf("similarity threshold must be in (0, 1], got %v", cfg.Resolver.SimilarityThreshold)
		}
	default:
		return fmt.Errorf("unsupported match strategy: %s", cfg.Resolver.MatchStrategy)
	}
	return nil
}
