package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestResolutionResult_MatchedTracks(t *testing.T) {
	hit := CandidateTrack{Title: "In My Head", ArtistName: "Lofty", URI: "spotify:track:1"}
	other := CandidateTrack{Title: "Second", ArtistName: "B", URI: "spotify:track:2"}

	tests := []struct {
		name     string
		result   ResolutionResult
		expected int
	}{
		{
			name:     "single match",
			result:   SingleMatch(MatchOutcome{Found: true, Candidate: &hit}),
			expected: 1,
		},
		{
			name:     "no match",
			result:   NoMatch(NotFound(NormalizedPair{}, nil)),
			expected: 0,
		},
		{
			name: "compilation skips unmatched lines",
			result: CompilationMatches([]MatchOutcome{
				{Found: true, Candidate: &hit},
				NotFound(NormalizedPair{}, nil),
				{Found: true, Candidate: &other},
			}),
			expected: 2,
		},
		{
			name:     "error",
			result:   Failed(KindUpstream, "boom"),
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(tt.result.MatchedTracks()); got != tt.expected {
				t.Errorf("MatchedTracks() returned %d tracks, want %d", got, tt.expected)
			}
		})
	}
}

func TestFailed(t *testing.T) {
	result := Failed(KindParse, "no separator")

	if result.Kind != ResultError {
		t.Fatalf("Kind = %q, want %q", result.Kind, ResultError)
	}
	if result.Error == nil || result.Error.Kind != KindParse || result.Error.Detail != "no separator" {
		t.Fatalf("Error = %+v, want parse_error with detail", result.Error)
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	want := `{"kind":"error","error":{"kind":"parse_error","detail":"no separator"}}`
	if string(data) != want {
		t.Errorf("json.Marshal() = %s, want %s", data, want)
	}
}

func TestNotFound(t *testing.T) {
	outcome := NotFound(NormalizedPair{Artist: "a", Track: "b"}, nil)
	if outcome.Found || outcome.MatchIndex != -1 || outcome.Candidate != nil {
		t.Errorf("NotFound() = %+v, want found=false, matchIndex=-1, candidate=nil", outcome)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorKind
	}{
		{"parse", fmt.Errorf("split %q: %w", "x", ErrParse), KindParse},
		{"not found", fmt.Errorf("video: %w", ErrNotFound), KindNotFound},
		{"credential", fmt.Errorf("token: %w", ErrCredential), KindCredential},
		{"upstream", NewUpstreamError("spotify", http.StatusBadGateway, nil), KindUpstream},
		{"canceled", fmt.Errorf("search: %w", context.Canceled), KindCanceled},
		{"unknown", errors.New("boom"), KindUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.expected {
				t.Errorf("KindOf() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestUpstreamError_Transient(t *testing.T) {
	tests := []struct {
		status   int
		expected bool
	}{
		{0, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := NewUpstreamError("youtube", tt.status, errors.New("failure"))
			if got := err.Transient(); got != tt.expected {
				t.Errorf("Transient() for %d = %v, want %v", tt.status, got, tt.expected)
			}
			if !errors.Is(err, ErrUpstream) {
				t.Error("UpstreamError should match ErrUpstream")
			}
		})
	}
}
