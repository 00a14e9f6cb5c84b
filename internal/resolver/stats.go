package resolver

import (
	"time"

	"tubematch/internal/core"
)

// Summarize counts the item kinds and matched tracks of a batch.
func Summarize(results []core.ItemResult, duration time.Duration) core.BatchStats {
	stats := core.BatchStats{Items: len(results), Duration: duration}
	for i := range results {
		switch results[i].Result.Kind {
		case core.ResultCompilationMatches:
			stats.Compilations++
		case core.ResultError:
			stats.Errors++
		}
		stats.Matched += len(results[i].Result.MatchedTracks())
	}
	return stats
}
