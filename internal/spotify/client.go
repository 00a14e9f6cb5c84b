// Package spotify provides Spotify Web API integration for credential exchange and track search.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"tubematch/internal/core"
	"tubematch/internal/retry"
)

const (
	// ServiceName labels Spotify failures in errors and metrics
	ServiceName = "spotify"
	// ExternalURLKey is the key of the web player link in a track's external URLs
	ExternalURLKey = "spotify"
	// rateBurst is the number of searches allowed back to back
	rateBurst = 1
)

type Client struct {
	config      *core.SpotifyConfig
	logger      *zap.Logger
	credentials *clientcredentials.Config
	httpClient  *http.Client
	limiter     *rate.Limiter
	retry       retry.Policy
}

func NewClient(config *core.SpotifyConfig, policy retry.Policy, logger *zap.Logger) *Client {
	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	return &Client{
		config: config,
		logger: logger,
		credentials: &clientcredentials.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			TokenURL:     config.TokenURL,
		},
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(limit, rateBurst),
		retry:      policy,
	}
}

// ExchangeCredential runs the client-credentials grant once. The token is
// never refreshed; callers share it read-only for the whole batch.
func (c *Client) ExchangeCredential(ctx context.Context) (core.Credential, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.credentials.Token(ctx)
	if err != nil {
		c.logger.Error("Spotify credential exchange failed", zap.Error(err))
		return core.Credential{}, fmt.Errorf("%w: %w", core.ErrCredential, err)
	}

	if token.AccessToken == "" {
		return core.Credential{}, fmt.Errorf("%w: empty access token", core.ErrCredential)
	}

	c.logger.Info("Exchanged Spotify credential", zap.Time("expiry", token.Expiry))
	return core.Credential{Token: token}, nil
}

// SearchTracks runs one catalog search and converts the results to candidates
// in catalog order.
func (c *Client) SearchTracks(ctx context.Context, cred core.Credential, q core.SearchQuery) ([]core.CandidateTrack, error) {
	if !cred.Valid() {
		return nil, fmt.Errorf("%w: no access token", core.ErrCredential)
	}

	api := spotify.New(c.authorizedClient(cred), spotify.WithBaseURL(c.config.APIBaseURL))

	opts := []spotify.RequestOption{spotify.Limit(q.Limit)}
	if q.Market != "" {
		opts = append(opts, spotify.Market(q.Market))
	}

	var results *spotify.SearchResult
	err := retry.Do(ctx, c.retry, c.logger, "spotify.search", func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		res, err := api.Search(ctx, q.Text, spotify.SearchTypeTrack, opts...)
		if err != nil {
			return classifyError(ctx, err)
		}
		results = res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q.Text, err)
	}

	if results.Tracks == nil {
		return nil, core.NewUpstreamError(ServiceName, http.StatusOK, errors.New("search response has no tracks page"))
	}

	candidates := make([]core.CandidateTrack, 0, len(results.Tracks.Tracks))
	for i := range results.Tracks.Tracks {
		candidate, ok := convertSpotifyTrack(&results.Tracks.Tracks[i])
		if !ok {
			c.logger.Debug("Skipping malformed search result", zap.String("trackID", string(results.Tracks.Tracks[i].ID)))
			continue
		}
		candidates = append(candidates, candidate)
	}

	c.logger.Debug("Spotify search completed",
		zap.String("query", q.Text),
		zap.Int("limit", q.Limit),
		zap.Int("results", len(candidates)))

	return candidates, nil
}

func (c *Client) authorizedClient(cred core.Credential) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(cred.Token),
			Base:   c.httpClient.Transport,
		},
	}
}

func convertSpotifyTrack(track *spotify.FullTrack) (core.CandidateTrack, bool) {
	if track.Name == "" {
		return core.CandidateTrack{}, false
	}

	artist := ""
	if len(track.Artists) > 0 {
		artist = track.Artists[0].Name
	}

	return core.CandidateTrack{
		Title:       track.Name,
		ArtistName:  artist,
		ExternalURL: track.ExternalURLs[ExternalURLKey],
		URI:         string(track.URI),
	}, true
}

func classifyError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}

	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return core.NewUpstreamError(ServiceName, apiErr.Status, err)
	}
	return core.NewUpstreamError(ServiceName, 0, err)
}
