package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kkdai/youtube/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tubematch/internal/core"
	"tubematch/internal/retry"
)

// ScrapeClient reads playlists and videos from the public YouTube pages, for
// deployments without a Data API key.
type ScrapeClient struct {
	client  *youtube.Client
	limiter *rate.Limiter
	retry   retry.Policy
	logger  *zap.Logger
}

func NewScrapeClient(config *core.YouTubeConfig, policy retry.Policy, logger *zap.Logger) *ScrapeClient {
	return &ScrapeClient{
		client:  &youtube.Client{HTTPClient: &http.Client{}},
		limiter: newLimiter(config.RequestsPerSecond),
		retry:   policy,
		logger:  logger,
	}
}

// ListPlaylistItems returns the playlist entries in playlist order. The
// library follows continuation pages itself, sequentially.
func (c *ScrapeClient) ListPlaylistItems(ctx context.Context, playlistID string) ([]core.SourceItem, error) {
	var playlist *youtube.Playlist
	err := retry.Do(ctx, c.retry, c.logger, "youtube.playlist", func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		p, err := c.client.GetPlaylistContext(ctx, playlistID)
		if err != nil {
			return classifyScrapeError(ctx, err)
		}
		playlist = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list playlist %s: %w", playlistID, err)
	}

	items := make([]core.SourceItem, 0, len(playlist.Videos))
	for _, entry := range playlist.Videos {
		if entry == nil || entry.ID == "" {
			continue
		}
		items = append(items, core.SourceItem{ID: entry.ID, RawTitle: entry.Title})
	}

	c.logger.Info("Listed playlist items",
		zap.String("playlistID", playlistID),
		zap.String("title", playlist.Title),
		zap.Int("count", len(items)))

	return items, nil
}

// GetVideoDescription fetches the description of one video.
func (c *ScrapeClient) GetVideoDescription(ctx context.Context, videoID string) core.DescriptionResult {
	var video *youtube.Video
	err := retry.Do(ctx, c.retry, c.logger, "youtube.video", func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		v, err := c.client.GetVideoContext(ctx, videoID)
		if err != nil {
			return classifyScrapeError(ctx, err)
		}
		video = v
		return nil
	})
	if err != nil {
		return descriptionFailure(fmt.Errorf("video %s: %w", videoID, err))
	}

	return core.Found(video.Description)
}

func classifyScrapeError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}

	if errors.Is(err, youtube.ErrVideoPrivate) {
		return fmt.Errorf("%w: %w", core.ErrNotFound, err)
	}

	var status youtube.ErrUnexpectedStatusCode
	if errors.As(err, &status) {
		if int(status) == http.StatusNotFound {
			return fmt.Errorf("%w: %w", core.ErrNotFound, err)
		}
		return core.NewUpstreamError(ServiceName, int(status), err)
	}

	return core.NewUpstreamError(ServiceName, 0, err)
}
