// Package fuzzy provides title splitting and the two normalizations used for
// catalog queries and match comparison.
package fuzzy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"

	"tubematch/internal/core"
)

// Separator splits an "Artist - Track" title.
const Separator = " - "

var (
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)

	apostropheReplacer = strings.NewReplacer("’", "'")
)

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Split splits raw on the first " - ". Both halves are trimmed and must be non-empty.
func (n *Normalizer) Split(raw string) (artist, track string, err error) {
	artist, track, ok := strings.Cut(raw, Separator)
	if !ok {
		return "", "", fmt.Errorf("split %q: %w", raw, core.ErrParse)
	}

	artist = strings.TrimSpace(artist)
	track = strings.TrimSpace(track)
	if artist == "" || track == "" {
		return "", "", fmt.Errorf("split %q: empty artist or track: %w", raw, core.ErrParse)
	}

	return artist, track, nil
}

// NormalizeForComparison composes, lowercases, trims and maps the typographic
// apostrophe to ASCII. Diacritics, punctuation and emoji are kept.
func (n *Normalizer) NormalizeForComparison(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(s)
	s = norm.NFC.String(s)
	s = strings.TrimSpace(s)
	return apostropheReplacer.Replace(s)
}

// NormalizeForQuery is NormalizeForComparison followed by ASCII
// transliteration and removal of everything that is not a letter, digit or
// space.
func (n *Normalizer) NormalizeForQuery(s string) string {
	s = n.NormalizeForComparison(s)
	s = unidecode.Unidecode(s)

	s = punctRegex.ReplaceAllString(s, "")
	s = whitespaceRegex.ReplaceAllString(s, " ")

	s = strings.ToLower(s)
	return strings.TrimSpace(s)
}

// ComparisonPair builds the comparison variant of an (artist, track) pair.
func (n *Normalizer) ComparisonPair(artist, track string) core.NormalizedPair {
	return core.NormalizedPair{
		Artist:  n.NormalizeForComparison(artist),
		Track:   n.NormalizeForComparison(track),
		Variant: core.VariantComparison,
	}
}

// QueryPair builds the query variant of an (artist, track) pair.
func (n *Normalizer) QueryPair(artist, track string) core.NormalizedPair {
	return core.NormalizedPair{
		Artist:  n.NormalizeForQuery(artist),
		Track:   n.NormalizeForQuery(track),
		Variant: core.VariantQuery,
	}
}
