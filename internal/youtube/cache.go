package youtube

import (
	"context"

	"go.uber.org/zap"

	"tubematch/internal/core"
	"tubematch/internal/store"
)

// CachingPlatform serves video descriptions from a cache before asking the
// wrapped platform. Only found descriptions are cached.
type CachingPlatform struct {
	core.VideoPlatform
	cache  *store.DescriptionCache
	logger *zap.Logger
}

func NewCachingPlatform(platform core.VideoPlatform, cache *store.DescriptionCache, logger *zap.Logger) *CachingPlatform {
	return &CachingPlatform{
		VideoPlatform: platform,
		cache:         cache,
		logger:        logger,
	}
}

func (c *CachingPlatform) GetVideoDescription(ctx context.Context, videoID string) core.DescriptionResult {
	if text, ok := c.cache.Get(videoID); ok {
		c.logger.Debug("Description cache hit", zap.String("videoID", videoID))
		return core.Found(text)
	}

	result := c.VideoPlatform.GetVideoDescription(ctx, videoID)
	if result.Status == core.DescriptionFound {
		c.cache.Put(videoID, result.Text)
	}
	return result
}
