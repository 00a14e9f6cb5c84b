package match

import (
	"testing"

	"tubematch/internal/core"
	"tubematch/pkg/fuzzy"
)

func source(artist, track string) core.NormalizedPair {
	return fuzzy.NewNormalizer().ComparisonPair(artist, track)
}

func candidate(artist, title string) core.CandidateTrack {
	return core.CandidateTrack{
		Title:       title,
		ArtistName:  artist,
		ExternalURL: "https://open.spotify.com/track/" + title,
		URI:         "spotify:track:" + title,
	}
}

func TestContainment_Match(t *testing.T) {
	engine := NewContainment()

	tests := []struct {
		name          string
		source        core.NormalizedPair
		candidates    []core.CandidateTrack
		expectedFound bool
		expectedIndex int
	}{
		{
			name:          "Candidate track contains source track",
			source:        source("Lofty", "In My Head"),
			candidates:    []core.CandidateTrack{candidate("Lofty", "In My Head (feat. Ayeon)")},
			expectedFound: true,
			expectedIndex: 0,
		},
		{
			name:          "Source track contains candidate track",
			source:        source("Lofty", "In My Head (Official Video)"),
			candidates:    []core.CandidateTrack{candidate("Lofty", "In My Head")},
			expectedFound: true,
			expectedIndex: 0,
		},
		{
			name:          "Candidate artist contains source artist",
			source:        source("Lofty", "Nights"),
			candidates:    []core.CandidateTrack{candidate("Lofty & Friends", "Nights")},
			expectedFound: true,
			expectedIndex: 0,
		},
		{
			name:          "Source artist contains candidate artist",
			source:        source("Lofty & Friends", "Nights"),
			candidates:    []core.CandidateTrack{candidate("Lofty", "Nights")},
			expectedFound: true,
			expectedIndex: 0,
		},
		{
			name:          "Exact match ignores case and apostrophe style",
			source:        source("Queen", "Don’t Stop Me Now"),
			candidates:    []core.CandidateTrack{candidate("QUEEN", "Don't Stop Me Now")},
			expectedFound: true,
			expectedIndex: 0,
		},
		{
			name:   "First match wins",
			source: source("Lofty", "In My Head"),
			candidates: []core.CandidateTrack{
				candidate("Someone Else", "Elsewhere"),
				candidate("Lofty", "In My Head - Remix"),
				candidate("Lofty", "In My Head"),
			},
			expectedFound: true,
			expectedIndex: 1,
		},
		{
			name:          "Collaboration artist",
			source:        source("A, B", "Song"),
			candidates:    []core.CandidateTrack{candidate("B", "Song (Radio Edit)")},
			expectedFound: true,
			expectedIndex: 0,
		},
		{
			name:          "Collaboration needs the track half",
			source:        source("A, B", "Song"),
			candidates:    []core.CandidateTrack{candidate("B", "Different")},
			expectedFound: false,
			expectedIndex: -1,
		},
		{
			name:   "Track matches but artist does not",
			source: source("Lofty", "Intro"),
			candidates: []core.CandidateTrack{
				candidate("Other", "Intro"),
			},
			expectedFound: false,
			expectedIndex: -1,
		},
		{
			name:          "Empty candidate artist never matches",
			source:        source("Lofty", "Intro"),
			candidates:    []core.CandidateTrack{candidate("", "Intro")},
			expectedFound: false,
			expectedIndex: -1,
		},
		{
			name:          "Diacritics are not folded",
			source:        source("Bjork", "Joga"),
			candidates:    []core.CandidateTrack{candidate("Björk", "Jóga")},
			expectedFound: false,
			expectedIndex: -1,
		},
		{
			name:          "No candidates",
			source:        source("Lofty", "In My Head"),
			candidates:    nil,
			expectedFound: false,
			expectedIndex: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := engine.Match(tt.source, tt.candidates)
			if outcome.Found != tt.expectedFound {
				t.Fatalf("Match() found = %v, want %v", outcome.Found, tt.expectedFound)
			}
			if outcome.MatchIndex != tt.expectedIndex {
				t.Errorf("Match() matchIndex = %d, want %d", outcome.MatchIndex, tt.expectedIndex)
			}
			if tt.expectedFound {
				if outcome.Candidate == nil || *outcome.Candidate != tt.candidates[tt.expectedIndex] {
					t.Errorf("Match() candidate = %+v, want %+v", outcome.Candidate, tt.candidates[tt.expectedIndex])
				}
			} else if outcome.Candidate != nil {
				t.Errorf("Match() candidate = %+v, want nil", outcome.Candidate)
			}
		})
	}
}

func TestContainment_Symmetry(t *testing.T) {
	engine := NewContainment()

	pairs := []struct {
		short string
		long  string
	}{
		{"head", "in my head"},
		{"lofty", "lofty feat. ayeon"},
		{"ß", "straße"},
	}

	for _, p := range pairs {
		t.Run(p.short+"/"+p.long, func(t *testing.T) {
			forward := engine.Match(source(p.short, p.short), []core.CandidateTrack{candidate(p.long, p.long)})
			backward := engine.Match(source(p.long, p.long), []core.CandidateTrack{candidate(p.short, p.short)})
			if !forward.Found || !backward.Found {
				t.Errorf("containment not symmetric: forward=%v backward=%v", forward.Found, backward.Found)
			}
		})
	}
}

func TestContainment_Diagnostics(t *testing.T) {
	engine := NewContainment()

	candidates := []core.CandidateTrack{
		candidate("Other Artist", "Other Song"),
		candidate("Ανδρέας", "Τραγούδι’s"),
	}
	outcome := engine.Match(source("Lofty", "In My Head"), candidates)

	if outcome.Found || outcome.MatchIndex != -1 || outcome.Candidate != nil {
		t.Fatalf("Match() = %+v, want not found", outcome)
	}

	if len(outcome.Diagnostics) != len(candidates) {
		t.Fatalf("Match() diagnostics = %d entries, want %d", len(outcome.Diagnostics), len(candidates))
	}

	expected := core.NormalizedPair{Artist: "ανδρέας", Track: "τραγούδι's", Variant: core.VariantComparison}
	if outcome.Diagnostics[1] != expected {
		t.Errorf("Match() diagnostics[1] = %+v, want %+v", outcome.Diagnostics[1], expected)
	}
}

func TestSimilarity_Match(t *testing.T) {
	engine := NewSimilarity(0.9)

	tests := []struct {
		name          string
		source        core.NormalizedPair
		candidates    []core.CandidateTrack
		expectedIndex int
	}{
		{
			name:          "Exact strings",
			source:        source("Lofty", "In My Head"),
			candidates:    []core.CandidateTrack{candidate("Lofty", "In My Head")},
			expectedIndex: 0,
		},
		{
			name:          "Small typo",
			source:        source("Loftyy", "In My Head"),
			candidates:    []core.CandidateTrack{candidate("Other", "Unrelated"), candidate("Lofty", "In My Head")},
			expectedIndex: 1,
		},
		{
			name:          "Collaboration",
			source:        source("A Band, Lofty", "In My Head"),
			candidates:    []core.CandidateTrack{candidate("Lofty", "In My Head")},
			expectedIndex: 0,
		},
		{
			name:          "Unrelated",
			source:        source("Lofty", "In My Head"),
			candidates:    []core.CandidateTrack{candidate("Zed", "Quartz")},
			expectedIndex: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := engine.Match(tt.source, tt.candidates)
			if outcome.MatchIndex != tt.expectedIndex {
				t.Errorf("Match() matchIndex = %d, want %d", outcome.MatchIndex, tt.expectedIndex)
			}
			if outcome.Found != (tt.expectedIndex >= 0) {
				t.Errorf("Match() found = %v", outcome.Found)
			}
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		strategy  string
		threshold float64
		wantErr   bool
	}{
		{"default", "", 0, false},
		{"containment", core.MatchStrategyContainment, 0, false},
		{"similarity", core.MatchStrategySimilarity, 0.85, false},
		{"similarity bad threshold", core.MatchStrategySimilarity, 1.5, true},
		{"unknown", "levenshtein", 0.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strategy, err := New(tt.strategy, tt.threshold)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && strategy == nil {
				t.Error("New() returned nil strategy")
			}
		})
	}
}
