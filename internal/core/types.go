package core

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// SourceItem is one entry of the source playlist.
type SourceItem struct {
	ID       string `json:"id"`
	RawTitle string `json:"title"`
}

// ItemKind tells whether an item is a single track or a compilation.
type ItemKind int

const (
	// ItemKindSingle is a video that maps to one catalog track
	ItemKindSingle ItemKind = iota
	// ItemKindCompilation is a video whose description embeds a tracklist
	ItemKindCompilation
)

func (k ItemKind) String() string {
	if k == ItemKindCompilation {
		return "compilation"
	}
	return "single"
}

// PairVariant records which normalization produced a NormalizedPair.
type PairVariant int

const (
	// VariantComparison is apostrophe-normalized only and used by the match engine
	VariantComparison PairVariant = iota
	// VariantQuery is ASCII-transliterated and punctuation-stripped, used for catalog queries
	VariantQuery
)

// NormalizedPair is a lower-cased, unicode-canonical (artist, track) split of a title.
type NormalizedPair struct {
	Artist  string      `json:"artist"`
	Track   string      `json:"track"`
	Variant PairVariant `json:"-"`
}

// CandidateTrack is one catalog search result.
type CandidateTrack struct {
	Title       string `json:"title"`
	ArtistName  string `json:"artist"`
	ExternalURL string `json:"url"`
	URI         string `json:"uri"`
}

// MatchOutcome is the result of matching one source pair against a candidate list.
type MatchOutcome struct {
	Source       NormalizedPair   `json:"source"`
	Found        bool             `json:"found"`
	MatchIndex   int              `json:"matchIndex"`
	Candidate    *CandidateTrack  `json:"candidate"`
	Diagnostics  []NormalizedPair `json:"diagnostics,omitempty"`
	UsedFallback bool             `json:"usedFallback"`

	// Timestamp is the tracklist position of a compilation entry, e.g. "3m20s"
	Timestamp string `json:"timestamp,omitempty"`
}

// NotFound returns an outcome with no match and the given diagnostics.
func NotFound(source NormalizedPair, diagnostics []NormalizedPair) MatchOutcome {
	return MatchOutcome{
		Source:      source,
		MatchIndex:  -1,
		Diagnostics: diagnostics,
	}
}

// ResultKind tags a ResolutionResult.
type ResultKind string

const (
	// ResultSingleMatch wraps the outcome of a matched single-track item
	ResultSingleMatch ResultKind = "single_match"
	// ResultCompilationMatches wraps the per-line outcomes of a compilation
	ResultCompilationMatches ResultKind = "compilation_matches"
	// ResultNoMatch is a valid terminal state when nothing matched
	ResultNoMatch ResultKind = "no_match"
	// ResultError carries an ErrorKind and detail
	ResultError ResultKind = "error"
)

// ResolutionResult is the final per-item output. Exactly one of the payload
// fields is meaningful, selected by Kind.
type ResolutionResult struct {
	Kind    ResultKind     `json:"kind"`
	Outcome *MatchOutcome  `json:"outcome,omitempty"`
	Matches []MatchOutcome `json:"matches,omitempty"`
	Error   *ResultFailure `json:"error,omitempty"`
}

// ResultFailure describes a failed resolution.
type ResultFailure struct {
	Kind   ErrorKind `json:"kind"`
	Detail string    `json:"detail"`
}

// SingleMatch wraps a found single-track outcome.
func SingleMatch(outcome MatchOutcome) ResolutionResult {
	return ResolutionResult{Kind: ResultSingleMatch, Outcome: &outcome}
}

// NoMatch wraps a single-track outcome that found nothing. The outcome keeps
// its diagnostics.
func NoMatch(outcome MatchOutcome) ResolutionResult {
	return ResolutionResult{Kind: ResultNoMatch, Outcome: &outcome}
}

// CompilationMatches wraps the ordered outcomes of a compilation.
func CompilationMatches(outcomes []MatchOutcome) ResolutionResult {
	return ResolutionResult{Kind: ResultCompilationMatches, Matches: outcomes}
}

// Failed builds an error result.
func Failed(kind ErrorKind, detail string) ResolutionResult {
	return ResolutionResult{Kind: ResultError, Error: &ResultFailure{Kind: kind, Detail: detail}}
}

// MatchedTracks returns the candidates of all found outcomes, in order.
// Outcomes with Found=false are left out.
func (r ResolutionResult) MatchedTracks() []CandidateTrack {
	var tracks []CandidateTrack
	switch r.Kind {
	case ResultSingleMatch:
		if r.Outcome != nil && r.Outcome.Found && r.Outcome.Candidate != nil {
			tracks = append(tracks, *r.Outcome.Candidate)
		}
	case ResultCompilationMatches:
		for i := range r.Matches {
			if r.Matches[i].Found && r.Matches[i].Candidate != nil {
				tracks = append(tracks, *r.Matches[i].Candidate)
			}
		}
	}
	return tracks
}

// ItemResult pairs a source item with its resolution.
type ItemResult struct {
	Item   SourceItem       `json:"item"`
	Result ResolutionResult `json:"result"`
}

// Credential is the catalog access token, fetched once per batch and shared read-only.
type Credential struct {
	Token *oauth2.Token
}

// Valid reports whether the credential carries a usable access token.
func (c Credential) Valid() bool {
	return c.Token != nil && c.Token.AccessToken != ""
}

// SearchQuery is a structured catalog search request.
type SearchQuery struct {
	Text   string
	Limit  int
	Market string
}

// DescriptionStatus tags a DescriptionResult.
type DescriptionStatus int

const (
	// DescriptionFound carries the description text (possibly empty)
	DescriptionFound DescriptionStatus = iota
	// DescriptionNotFound means the video or its description is missing
	DescriptionNotFound
	// DescriptionUpstream means the platform answered with a failure
	DescriptionUpstream
)

// DescriptionResult is the tagged result of a description fetch.
type DescriptionResult struct {
	Status     DescriptionStatus
	Text       string
	HTTPStatus int
	Err        error
}

// Found builds a DescriptionFound result.
func Found(text string) DescriptionResult {
	return DescriptionResult{Status: DescriptionFound, Text: text}
}

// Missing builds a DescriptionNotFound result.
func Missing(err error) DescriptionResult {
	return DescriptionResult{Status: DescriptionNotFound, Err: err}
}

// UpstreamFailure builds a DescriptionUpstream result.
func UpstreamFailure(status int, err error) DescriptionResult {
	return DescriptionResult{Status: DescriptionUpstream, HTTPStatus: status, Err: err}
}

// PlaylistLister lists the items of a playlist in order.
type PlaylistLister interface {
	ListPlaylistItems(ctx context.Context, playlistID string) ([]SourceItem, error)
}

// DescriptionFetcher fetches the description of a single video.
type DescriptionFetcher interface {
	GetVideoDescription(ctx context.Context, videoID string) DescriptionResult
}

// VideoPlatform is the full video-platform collaborator.
type VideoPlatform interface {
	PlaylistLister
	DescriptionFetcher
}

// TrackSearcher runs a catalog search with an already-exchanged credential.
type TrackSearcher interface {
	SearchTracks(ctx context.Context, cred Credential, q SearchQuery) ([]CandidateTrack, error)
}

// Catalog is the full catalog collaborator.
type Catalog interface {
	TrackSearcher
	ExchangeCredential(ctx context.Context) (Credential, error)
}

// BatchStats summarizes one ResolveAll run.
type BatchStats struct {
	Items        int
	Compilations int
	Matched      int
	Errors       int
	Duration     time.Duration
}
