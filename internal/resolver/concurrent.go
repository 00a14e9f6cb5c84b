package resolver

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tubematch/internal/core"
)

// ConcurrentResolver fans a batch of items out over a bounded worker pool.
type ConcurrentResolver struct {
	items       *ItemResolver
	workers     int
	callTimeout time.Duration
	logger      *zap.Logger
}

func NewConcurrentResolver(items *ItemResolver, workers int, callTimeout time.Duration, logger *zap.Logger) *ConcurrentResolver {
	if workers < 1 {
		workers = core.DefaultWorkers
	}
	return &ConcurrentResolver{
		items:       items,
		workers:     workers,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// ResolveAll exchanges the catalog credential once, then resolves every item
// on the worker pool. Results arrive in completion order, one per item. The
// only returned error is a credential failure, which aborts before dispatch.
func (c *ConcurrentResolver) ResolveAll(
	ctx context.Context,
	items []core.SourceItem,
	descriptions core.DescriptionFetcher,
	catalog core.Catalog,
) ([]core.ItemResult, error) {
	exchangeCtx, cancel := c.withCallTimeout(ctx)
	cred, err := catalog.ExchangeCredential(exchangeCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("resolve batch: %w", err)
	}

	results := make(chan core.ItemResult, len(items))

	var g errgroup.Group
	g.SetLimit(c.workers)

	for _, item := range items {
		g.Go(func() error {
			results <- c.resolveOne(ctx, item, descriptions, catalog, cred)
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	collected := make([]core.ItemResult, 0, len(items))
	for result := range results {
		collected = append(collected, result)
	}

	c.logger.Info("Resolved batch",
		zap.Int("items", len(items)),
		zap.Int("results", len(collected)),
		zap.Bool("canceled", ctx.Err() != nil))

	return collected, nil
}

func (c *ConcurrentResolver) resolveOne(
	ctx context.Context,
	item core.SourceItem,
	descriptions core.DescriptionFetcher,
	catalog core.Catalog,
	cred core.Credential,
) (result core.ItemResult) {
	result.Item = item

	defer func() {
		if p := recover(); p != nil {
			c.logger.Error("Item resolution panicked",
				zap.String("videoID", item.ID),
				zap.Any("panic", p),
				zap.Stack("stack"))
			result.Result = core.Failed(core.KindInternal, fmt.Sprintf("resolution panicked: %v", p))
		}
	}()

	if err := ctx.Err(); err != nil {
		result.Result = core.Failed(core.KindCanceled, err.Error())
		return result
	}

	description, failed := c.fetchDescription(ctx, item, descriptions)
	if failed != nil {
		result.Result = *failed
		return result
	}

	result.Result = c.items.Resolve(ctx, item, description, catalog, cred)
	return result
}

// fetchDescription returns the item's description, or the error result when
// the fetch failed. A missing description resolves the item as a single track.
func (c *ConcurrentResolver) fetchDescription(ctx context.Context, item core.SourceItem, descriptions core.DescriptionFetcher) (string, *core.ResolutionResult) {
	callCtx, cancel := c.withCallTimeout(ctx)
	defer cancel()

	fetched := descriptions.GetVideoDescription(callCtx, item.ID)
	switch fetched.Status {
	case core.DescriptionFound:
		return fetched.Text, nil
	case core.DescriptionNotFound:
		c.logger.Debug("Description not found, resolving as single track",
			zap.String("videoID", item.ID),
			zap.Error(fetched.Err))
		return "", nil
	}

	if err := ctx.Err(); err != nil {
		failed := core.Failed(core.KindCanceled, err.Error())
		return "", &failed
	}

	c.logger.Warn("Description fetch failed",
		zap.String("videoID", item.ID),
		zap.Int("status", fetched.HTTPStatus),
		zap.Error(fetched.Err))

	detail := "description fetch failed"
	if fetched.Err != nil {
		detail = fmt.Sprintf("%s: %v", detail, fetched.Err)
	}
	failed := core.Failed(core.KindUpstream, detail)
	return "", &failed
}

func (c *ConcurrentResolver) withCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.callTimeout)
}
