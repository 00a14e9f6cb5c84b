package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tubematch/internal/core"
	"tubematch/internal/retry"
)

const (
	// maxResponseSize limits how much of a Data API response is read
	maxResponseSize = 4 << 20
	// maxPages guards against a continuation token loop
	maxPages = 200
)

type playlistItemsResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		Snippet struct {
			Title      string `json:"title"`
			ResourceID struct {
				VideoID string `json:"videoId"`
			} `json:"resourceId"`
		} `json:"snippet"`
	} `json:"items"`
}

type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Description string `json:"description"`
		} `json:"snippet"`
	} `json:"items"`
}

// DataAPIClient talks to the YouTube Data API v3 with an API key.
type DataAPIClient struct {
	baseURL    string
	apiKey     string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      retry.Policy
	logger     *zap.Logger
}

func NewDataAPIClient(config *core.YouTubeConfig, policy retry.Policy, logger *zap.Logger) *DataAPIClient {
	pageSize := config.PageSize
	if pageSize <= 0 || pageSize > 50 {
		pageSize = 50
	}

	return &DataAPIClient{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		pageSize:   pageSize,
		httpClient: &http.Client{},
		limiter:    newLimiter(config.RequestsPerSecond),
		retry:      policy,
		logger:     logger,
	}
}

// ListPlaylistItems fetches every page of the playlist sequentially, following
// the continuation token until it is absent.
func (c *DataAPIClient) ListPlaylistItems(ctx context.Context, playlistID string) ([]core.SourceItem, error) {
	var items []core.SourceItem
	pageToken := ""

	for page := 0; page < maxPages; page++ {
		params := url.Values{}
		params.Set("part", "snippet")
		params.Set("playlistId", playlistID)
		params.Set("maxResults", strconv.Itoa(c.pageSize))
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var resp playlistItemsResponse
		if err := c.get(ctx, "playlistItems", params, &resp); err != nil {
			return nil, fmt.Errorf("list playlist %s: %w", playlistID, err)
		}

		for i := range resp.Items {
			snippet := resp.Items[i].Snippet
			if snippet.ResourceID.VideoID == "" {
				return nil, core.NewUpstreamError(ServiceName, http.StatusOK,
					fmt.Errorf("playlist item %d on page %d has no video id", i, page))
			}
			items = append(items, core.SourceItem{ID: snippet.ResourceID.VideoID, RawTitle: snippet.Title})
		}

		if resp.NextPageToken == "" {
			c.logger.Info("Listed playlist items",
				zap.String("playlistID", playlistID),
				zap.Int("pages", page+1),
				zap.Int("count", len(items)))
			return items, nil
		}
		pageToken = resp.NextPageToken
	}

	return nil, core.NewUpstreamError(ServiceName, http.StatusOK,
		fmt.Errorf("playlist %s exceeded %d pages", playlistID, maxPages))
}

// GetVideoDescription fetches the description of one video.
func (c *DataAPIClient) GetVideoDescription(ctx context.Context, videoID string) core.DescriptionResult {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("id", videoID)

	var resp videosResponse
	if err := c.get(ctx, "videos", params, &resp); err != nil {
		return descriptionFailure(err)
	}

	for i := range resp.Items {
		if resp.Items[i].ID == videoID {
			return core.Found(resp.Items[i].Snippet.Description)
		}
	}

	return core.Missing(fmt.Errorf("video %s: %w", videoID, core.ErrNotFound))
}

func (c *DataAPIClient) get(ctx context.Context, resource string, params url.Values, dest interface{}) error {
	params.Set("key", c.apiKey)
	reqURL := c.baseURL + "/" + resource + "?" + params.Encode()

	return retry.Do(ctx, c.retry, c.logger, "youtube."+resource, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// url.Error carries the request URL, which includes the API key
			var urlErr *url.Error
			if errors.As(err, &urlErr) {
				err = urlErr.Err
			}
			return core.NewUpstreamError(ServiceName, 0, err)
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return core.NewUpstreamError(ServiceName, 0, fmt.Errorf("failed to read response body: %w", err))
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%s: %w", resource, core.ErrNotFound)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return core.NewUpstreamError(ServiceName, resp.StatusCode, errors.New(apiErrorMessage(body, resp.StatusCode)))
		}

		if err := json.Unmarshal(body, dest); err != nil {
			return core.NewUpstreamError(ServiceName, resp.StatusCode, fmt.Errorf("failed to decode %s response: %w", resource, err))
		}
		return nil
	})
}

func apiErrorMessage(body []byte, status int) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return http.StatusText(status)
}

func descriptionFailure(err error) core.DescriptionResult {
	if errors.Is(err, core.ErrNotFound) {
		return core.Missing(err)
	}

	var upstream *core.UpstreamError
	if errors.As(err, &upstream) {
		return core.UpstreamFailure(upstream.Status, err)
	}
	return core.UpstreamFailure(0, err)
}
