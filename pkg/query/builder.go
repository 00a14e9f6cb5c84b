// Package query builds structured catalog search queries from normalized titles.
package query

import (
	"strings"

	"tubematch/internal/core"
)

const (
	// SingleLimit is the number of candidates requested for single-track items
	SingleLimit = 10
	// CompilationLimit is the number of candidates requested per tracklist entry
	CompilationLimit = 20
)

// Builder turns normalized pairs into catalog queries. Market is optional and
// applied to every query when set.
type Builder struct {
	market string
}

func NewBuilder(market string) *Builder {
	return &Builder{market: strings.TrimSpace(market)}
}

// Build returns the primary field-filtered query for pair, which must be the
// query variant.
func (b *Builder) Build(pair core.NormalizedPair, kind core.ItemKind) core.SearchQuery {
	var sb strings.Builder
	sb.WriteString("track:")
	sb.WriteString(pair.Track)
	if pair.Artist != "" {
		sb.WriteString(" artist:")
		sb.WriteString(pair.Artist)
	}

	return core.SearchQuery{
		Text:   sb.String(),
		Limit:  LimitFor(kind),
		Market: b.market,
	}
}

// Fallback returns the unconstrained query used once the primary query came
// back empty: the raw track text with no artist filter.
func (b *Builder) Fallback(rawTrack string, kind core.ItemKind) core.SearchQuery {
	return core.SearchQuery{
		Text:   strings.TrimSpace(rawTrack),
		Limit:  LimitFor(kind),
		Market: b.market,
	}
}

// LimitFor returns the candidate count requested for an item kind.
func LimitFor(kind core.ItemKind) int {
	if kind == core.ItemKindCompilation {
		return CompilationLimit
	}
	return SingleLimit
}
