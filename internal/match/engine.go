// Package match decides whether catalog candidates match a source title.
package match

import (
	"fmt"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"tubematch/internal/core"
	"tubematch/pkg/fuzzy"
)

// collaborationSeparator splits a source artist listing several performers.
const collaborationSeparator = ", "

// Strategy picks the first matching candidate out of an ordered candidate list.
// Source must be the comparison variant.
type Strategy interface {
	Match(source core.NormalizedPair, candidates []core.CandidateTrack) core.MatchOutcome
}

// New returns the strategy registered under name.
func New(name string, threshold float64) (Strategy, error) {
	switch name {
	case core.MatchStrategyContainment, "":
		return NewContainment(), nil
	case core.MatchStrategySimilarity:
		if threshold <= 0 || threshold > 1 {
			return nil, fmt.Errorf("similarity threshold must be in (0, 1], got %v", threshold)
		}
		return NewSimilarity(threshold), nil
	default:
		return nil, fmt.Errorf("unsupported match strategy: %s", name)
	}
}

// Containment matches on bidirectional substring checks. Candidates are
// evaluated in catalog order and the first one satisfying any rule wins.
type Containment struct {
	normalizer *fuzzy.Normalizer
}

func NewContainment() *Containment {
	return &Containment{normalizer: fuzzy.NewNormalizer()}
}

func (c *Containment) Match(source core.NormalizedPair, candidates []core.CandidateTrack) core.MatchOutcome {
	return firstMatch(c.normalizer, source, candidates, c.matches)
}

func (c *Containment) matches(source, candidate core.NormalizedPair) bool {
	trackMatches := eitherContains(source.Track, candidate.Track)

	if trackMatches && eitherContains(source.Artist, candidate.Artist) {
		return true
	}

	if source.Artist == candidate.Artist && source.Track == candidate.Track && source.Artist != "" {
		return true
	}

	return trackMatches && anyCollaboratorIn(source.Artist, candidate.Artist, strings.Contains)
}

// Similarity matches when both artist and track reach a Jaro-Winkler
// similarity threshold. The collaboration rule applies to the artist half.
type Similarity struct {
	normalizer *fuzzy.Normalizer
	metric     strutil.StringMetric
	threshold  float64
}

func NewSimilarity(threshold float64) *Similarity {
	return &Similarity{
		normalizer: fuzzy.NewNormalizer(),
		metric:     metrics.NewJaroWinkler(),
		threshold:  threshold,
	}
}

func (s *Similarity) Match(source core.NormalizedPair, candidates []core.CandidateTrack) core.MatchOutcome {
	return firstMatch(s.normalizer, source, candidates, s.matches)
}

func (s *Similarity) matches(source, candidate core.NormalizedPair) bool {
	if !s.similar(source.Track, candidate.Track) {
		return false
	}

	if s.similar(source.Artist, candidate.Artist) {
		return true
	}

	return anyCollaboratorIn(source.Artist, candidate.Artist, s.similar)
}

func (s *Similarity) similar(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strutil.Similarity(a, b, s.metric) >= s.threshold
}

func firstMatch(
	normalizer *fuzzy.Normalizer,
	source core.NormalizedPair,
	candidates []core.CandidateTrack,
	matches func(source, candidate core.NormalizedPair) bool,
) core.MatchOutcome {
	diagnostics := make([]core.NormalizedPair, 0, len(candidates))

	for i := range candidates {
		pair := normalizer.ComparisonPair(candidates[i].ArtistName, candidates[i].Title)
		diagnostics = append(diagnostics, pair)

		if matches(source, pair) {
			candidate := candidates[i]
			return core.MatchOutcome{
				Source:      source,
				Found:       true,
				MatchIndex:  i,
				Candidate:   &candidate,
				Diagnostics: diagnostics,
			}
		}
	}

	return core.NotFound(source, diagnostics)
}

// eitherContains reports whether a is a substring of b or b of a. Empty
// strings never match.
func eitherContains(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// anyCollaboratorIn applies test to each name of a comma-separated source
// artist. Single-name artists are not collaborations.
func anyCollaboratorIn(sourceArtist, candidateArtist string, test func(candidate, name string) bool) bool {
	names := strings.Split(sourceArtist, collaborationSeparator)
	if len(names) < 2 {
		return false
	}

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name != "" && candidateArtist != "" && test(candidateArtist, name) {
			return true
		}
	}
	return false
}
