// Package resolver turns playlist items into catalog match results.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tubematch/internal/core"
	"tubematch/internal/match"
	"tubematch/pkg/fuzzy"
	"tubematch/pkg/query"
	"tubematch/pkg/text"
)

// titleSeparator splits the artist from the track in titles and tracklist lines.
const titleSeparator = " - "

// ItemResolver resolves a single source item against the catalog.
type ItemResolver struct {
	normalizer  *fuzzy.Normalizer
	extractor   *text.Extractor
	builder     *query.Builder
	strategy    match.Strategy
	callTimeout time.Duration
	logger      *zap.Logger
}

func NewItemResolver(
	builder *query.Builder,
	strategy match.Strategy,
	callTimeout time.Duration,
	logger *zap.Logger,
) *ItemResolver {
	return &ItemResolver{
		normalizer:  fuzzy.NewNormalizer(),
		extractor:   text.NewExtractor(),
		builder:     builder,
		strategy:    strategy,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// Resolve classifies the item by its description and resolves it through the
// single-track or compilation path. Failures are returned as error results.
func (r *ItemResolver) Resolve(
	ctx context.Context,
	item core.SourceItem,
	description string,
	searcher core.TrackSearcher,
	cred core.Credential,
) core.ResolutionResult {
	entries := r.extractor.Extract(description)
	if len(entries) == 0 {
		return r.resolveSingle(ctx, item, searcher, cred)
	}
	return r.resolveCompilation(ctx, item, entries, searcher, cred)
}

func (r *ItemResolver) resolveSingle(
	ctx context.Context,
	item core.SourceItem,
	searcher core.TrackSearcher,
	cred core.Credential,
) core.ResolutionResult {
	artist, track, err := r.normalizer.Split(item.RawTitle)
	if err != nil {
		r.logger.Debug("Unparseable title", zap.String("videoID", item.ID), zap.String("title", item.RawTitle))
		return core.Failed(core.KindParse, err.Error())
	}

	outcome, err := r.matchPair(ctx, artist, track, core.ItemKindSingle, searcher, cred)
	if err != nil {
		return failure(err)
	}

	if !outcome.Found {
		r.logger.Debug("No catalog match",
			zap.String("videoID", item.ID),
			zap.String("artist", artist),
			zap.String("track", track),
			zap.Int("examined", len(outcome.Diagnostics)))
		return core.NoMatch(outcome)
	}
	return core.SingleMatch(outcome)
}

func (r *ItemResolver) resolveCompilation(
	ctx context.Context,
	item core.SourceItem,
	entries []text.Entry,
	searcher core.TrackSearcher,
	cred core.Credential,
) core.ResolutionResult {
	fallbackArtist, _, _ := strings.Cut(item.RawTitle, titleSeparator)
	fallbackArtist = strings.TrimSpace(fallbackArtist)

	outcomes := make([]core.MatchOutcome, 0, len(entries))
	for _, entry := range entries {
		line := repairArtist(entry.Title, fallbackArtist)

		artist, track, err := r.normalizer.Split(line)
		if err != nil {
			r.logger.Debug("Skipping unparseable tracklist line",
				zap.String("videoID", item.ID),
				zap.String("line", line))
			continue
		}

		outcome, err := r.matchPair(ctx, artist, track, core.ItemKindCompilation, searcher, cred)
		if err != nil {
			return failure(err)
		}
		outcome.Timestamp = entry.Offset.String()
		outcomes = append(outcomes, outcome)
	}

	r.logger.Debug("Resolved compilation",
		zap.String("videoID", item.ID),
		zap.Int("lines", len(entries)),
		zap.Int("outcomes", len(outcomes)))

	return core.CompilationMatches(outcomes)
}

// matchPair runs the primary search, the fallback search once when the
// primary comes back empty, and the match strategy.
func (r *ItemResolver) matchPair(
	ctx context.Context,
	artist, track string,
	kind core.ItemKind,
	searcher core.TrackSearcher,
	cred core.Credential,
) (core.MatchOutcome, error) {
	source := r.normalizer.ComparisonPair(artist, track)

	candidates, err := r.search(ctx, searcher, cred, r.builder.Build(r.normalizer.QueryPair(artist, track), kind))
	if err != nil {
		return core.MatchOutcome{}, err
	}

	usedFallback := false
	if len(candidates) == 0 {
		usedFallback = true
		candidates, err = r.search(ctx, searcher, cred, r.builder.Fallback(track, kind))
		if err != nil {
			return core.MatchOutcome{}, err
		}
	}

	outcome := r.strategy.Match(source, candidates)
	outcome.UsedFallback = usedFallback
	return outcome, nil
}

func (r *ItemResolver) search(
	ctx context.Context,
	searcher core.TrackSearcher,
	cred core.Credential,
	q core.SearchQuery,
) ([]core.CandidateTrack, error) {
	if r.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
	}
	return searcher.SearchTracks(ctx, cred, q)
}

// repairArtist prefixes line with artist when the line has no separator of its own.
func repairArtist(line, artist string) string {
	if strings.Contains(line, titleSeparator) || artist == "" {
		return line
	}
	return artist + titleSeparator + line
}

func failure(err error) core.ResolutionResult {
	kind := core.KindOf(err)
	if errors.Is(err, context.DeadlineExceeded) && kind != core.KindCanceled {
		return core.Failed(core.KindUpstream, fmt.Sprintf("call timed out: %v", err))
	}
	return core.Failed(kind, err.Error())
}
