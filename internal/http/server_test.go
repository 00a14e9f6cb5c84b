package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"tubematch/internal/core"
	"tubematch/internal/flood"
	"tubematch/internal/match"
	"tubematch/internal/resolver"
	"tubematch/internal/store"
	"tubematch/pkg/query"
)

type fakePlatform struct {
	items        []core.SourceItem
	listErr      error
	descriptions map[string]string
}

func (f *fakePlatform) ListPlaylistItems(_ context.Context, _ string) ([]core.SourceItem, error) {
	return f.items, f.listErr
}

func (f *fakePlatform) GetVideoDescription(_ context.Context, videoID string) core.DescriptionResult {
	if text, ok := f.descriptions[videoID]; ok {
		return core.Found(text)
	}
	return core.Missing(core.ErrNotFound)
}

type fakeCatalog struct {
	credErr   error
	responses map[string][]core.CandidateTrack
}

func (f *fakeCatalog) ExchangeCredential(_ context.Context) (core.Credential, error) {
	if f.credErr != nil {
		return core.Credential{}, f.credErr
	}
	return core.Credential{Token: &oauth2.Token{AccessToken: "token"}}, nil
}

func (f *fakeCatalog) SearchTracks(_ context.Context, _ core.Credential, q core.SearchQuery) ([]core.CandidateTrack, error) {
	return f.responses[q.Text], nil
}

var (
	loftyTrack  = core.CandidateTrack{Title: "In My Head (feat. Ayeon)", ArtistName: "Lofty", URI: "spotify:track:abc"}
	keralaTrack = core.CandidateTrack{Title: "Kerala", ArtistName: "Bonobo", URI: "spotify:track:kerala"}
)

func newTestServer(t *testing.T, platform *fakePlatform, catalog *fakeCatalog, floodLimit int) *httptest.Server {
	t.Helper()

	items := resolver.NewItemResolver(query.NewBuilder(""), match.NewContainment(), time.Second, zap.NewNop())

	deps := Dependencies{
		Platform: platform,
		Catalog:  catalog,
		Resolver: resolver.NewConcurrentResolver(items, 4, time.Second, zap.NewNop()),

		DescriptionCache: store.NewDescriptionCache(8, time.Minute),
	}
	if floodLimit > 0 {
		deps.Floodgate = flood.New(floodLimit, time.Minute)
		t.Cleanup(deps.Floodgate.Stop)
	}

	server := NewServer(&core.ServerConfig{Host: "127.0.0.1", Port: 0}, deps, zap.NewNop())
	ts := httptest.NewServer(server.handler())
	t.Cleanup(ts.Close)
	return ts
}

func defaultFakes() (*fakePlatform, *fakeCatalog) {
	platform := &fakePlatform{
		items: []core.SourceItem{
			{ID: "v1", RawTitle: "Lofty - In My Head"},
			{ID: "v2", RawTitle: "Bonobo - Live Mix"},
			{ID: "v3", RawTitle: "Just a vlog"},
		},
		descriptions: map[string]string{
			"v2": "0:00 Lofty - In My Head\n3:20 Kerala",
		},
	}
	catalog := &fakeCatalog{responses: map[string][]core.CandidateTrack{
		"track:in my head artist:lofty": {loftyTrack},
		"track:kerala artist:bonobo":    {keralaTrack},
	}}
	return platform, catalog
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp, body
}

func TestCreateHTTPServer(t *testing.T) {
	config := &core.ServerConfig{
		Host:         "0.0.0.0",
		Port:         9090,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	mux := http.NewServeMux()
	server := createHTTPServer(config, mux)

	if server.Addr != "0.0.0.0:9090" {
		t.Errorf("createHTTPServer() Addr = %q, expected %q", server.Addr, "0.0.0.0:9090")
	}
	if server.Handler != mux {
		t.Errorf("createHTTPServer() Handler mismatch")
	}
	if server.ReadTimeout != config.ReadTimeout || server.WriteTimeout != config.WriteTimeout {
		t.Errorf("createHTTPServer() timeouts = %v/%v", server.ReadTimeout, server.WriteTimeout)
	}
}

func TestStatusEndpoints(t *testing.T) {
	platform, catalog := defaultFakes()
	ts := newTestServer(t, platform, catalog, 0)

	tests := []struct {
		path     string
		expected string
	}{
		{path: "/healthz", expected: `{"status":"ok","service":"tubematch"}`},
		{path: "/readyz", expected: `{"status":"ready","service":"tubematch"}`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := get(t, ts.URL+tt.path)
			if resp.StatusCode != http.StatusOK {
				t.Errorf("%s returned status %d", tt.path, resp.StatusCode)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("%s Content-Type = %q", tt.path, ct)
			}
			if string(body) != tt.expected {
				t.Errorf("%s body = %q, expected %q", tt.path, body, tt.expected)
			}
		})
	}
}

func TestHomeHandler(t *testing.T) {
	handler := homeHandler(zap.NewNop())

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html" {
		t.Errorf("Expected Content-Type text/html, got %q", ct)
	}
	for _, element := range []string{"<!DOCTYPE html>", "<title>tubematch</title>", "/youtube/", "/metrics", "/healthz", "/readyz"} {
		if !strings.Contains(rec.Body.String(), element) {
			t.Errorf("Expected body to contain %q", element)
		}
	}

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/unknown", http.NoBody))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path returned %d, want 404", rec.Code)
	}
}

func TestResolveHandler_Playlist(t *testing.T) {
	platform, catalog := defaultFakes()
	ts := newTestServer(t, platform, catalog, 0)

	resp, body := get(t, ts.URL+"/youtube/playlist?q=PL123")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	if resp.Header.Get(batchIDHeader) == "" {
		t.Error("response has no batch ID header")
	}

	var results []core.ItemResult
	if err := json.Unmarshal(body, &results); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("response has %d results, want 3", len(results))
	}

	kinds := make(map[string]core.ResultKind, len(results))
	for _, r := range results {
		kinds[r.Item.ID] = r.Result.Kind
	}
	expected := map[string]core.ResultKind{
		"v1": core.ResultSingleMatch,
		"v2": core.ResultCompilationMatches,
		"v3": core.ResultError,
	}
	for id, kind := range expected {
		if kinds[id] != kind {
			t.Errorf("item %s kind = %q, want %q", id, kinds[id], kind)
		}
	}
}

func TestResolveHandler_MatchedView(t *testing.T) {
	platform, catalog := defaultFakes()
	ts := newTestServer(t, platform, catalog, 0)

	resp, body := get(t, ts.URL+"/youtube/playlist?list=PL123&view=matched")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}

	var tracks []core.CandidateTrack
	if err := json.Unmarshal(body, &tracks); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("matched view has %d tracks, want 2 unique tracks: %+v", len(tracks), tracks)
	}
	uris := map[string]bool{tracks[0].URI: true, tracks[1].URI: true}
	if !uris[loftyTrack.URI] || !uris[keralaTrack.URI] {
		t.Errorf("matched view = %+v", tracks)
	}
}

func TestResolveHandler_Errors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		listErr  error
		credErr  error
		expected int
	}{
		{name: "missing playlist id", path: "/youtube/playlist", expected: http.StatusBadRequest},
		{name: "invalid playlist id", path: "/youtube/playlist?q=not%20valid!", expected: http.StatusBadRequest},
		{name: "playlist not found", path: "/youtube/playlist?q=PL404", listErr: fmt.Errorf("list: %w", core.ErrNotFound), expected: http.StatusNotFound},
		{
			name:     "playlist upstream failure",
			path:     "/youtube/playlist?q=PL123",
			listErr:  core.NewUpstreamError("youtube", http.StatusForbidden, errors.New("quota exceeded")),
			expected: http.StatusBadGateway,
		},
		{name: "credential failure", path: "/youtube/playlist?q=PL123", credErr: core.ErrCredential, expected: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			platform, catalog := defaultFakes()
			platform.listErr = tt.listErr
			catalog.credErr = tt.credErr
			ts := newTestServer(t, platform, catalog, 0)

			resp, body := get(t, ts.URL+tt.path)
			if resp.StatusCode != tt.expected {
				t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, tt.expected, body)
			}

			var payload map[string]string
			if err := json.Unmarshal(body, &payload); err != nil || payload["error"] == "" {
				t.Errorf("error body = %s", body)
			}
		})
	}
}

func TestResolveHandler_FloodLimit(t *testing.T) {
	platform, catalog := defaultFakes()
	ts := newTestServer(t, platform, catalog, 2)

	for i := 0; i < 2; i++ {
		if resp, _ := get(t, ts.URL+"/youtube/playlist?q=PL123"); resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, resp.StatusCode)
		}
	}
	if resp, _ := get(t, ts.URL+"/youtube/playlist?q=PL123"); resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", resp.StatusCode)
	}

	_, body := get(t, ts.URL+"/metrics")
	for _, metric := range []string{"tubematch_flood_active_clients 1", "tubematch_flood_rejected_total 1"} {
		if !strings.Contains(string(body), metric) {
			t.Errorf("/metrics does not contain %q", metric)
		}
	}
}

func TestClientAddress(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		trust      bool
		expected   string
	}{
		{name: "peer address", remoteAddr: "10.0.0.1:4242", expected: "10.0.0.1"},
		{name: "ipv6 peer address", remoteAddr: "[::1]:4242", expected: "::1"},
		{name: "forwarded header ignored when untrusted", remoteAddr: "10.0.0.1:4242", forwarded: "203.0.113.7", expected: "10.0.0.1"},
		{name: "first forwarded hop when trusted", remoteAddr: "10.0.0.1:4242", forwarded: "203.0.113.7, 10.0.0.1", trust: true, expected: "203.0.113.7"},
		{name: "malformed forwarded hop falls back to peer", remoteAddr: "10.0.0.1:4242", forwarded: "unknown", trust: true, expected: "10.0.0.1"},
		{name: "peer without port", remoteAddr: "pipe", expected: "pipe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/youtube/playlist?q=PL123", http.NoBody)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}

			if got := clientAddress(r, tt.trust); got != tt.expected {
				t.Errorf("clientAddress() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestResolveHandler_FloodLimitPerForwardedClient(t *testing.T) {
	platform, catalog := defaultFakes()
	items := resolver.NewItemResolver(query.NewBuilder(""), match.NewContainment(), time.Second, zap.NewNop())
	deps := Dependencies{
		Platform:  platform,
		Catalog:   catalog,
		Resolver:  resolver.NewConcurrentResolver(items, 4, time.Second, zap.NewNop()),
		Floodgate: flood.New(1, time.Minute),
	}
	t.Cleanup(deps.Floodgate.Stop)
	server := NewServer(&core.ServerConfig{TrustForwardedFor: true}, deps, zap.NewNop())

	status := func(forwardedFor string) int {
		r := httptest.NewRequest(http.MethodGet, "/youtube/playlist?q=PL123", http.NoBody)
		r.Header.Set("X-Forwarded-For", forwardedFor)
		w := httptest.NewRecorder()
		server.handler().ServeHTTP(w, r)
		return w.Code
	}

	if code := status("203.0.113.7"); code != http.StatusOK {
		t.Fatalf("first client status = %d, want 200", code)
	}
	if code := status("203.0.113.8"); code != http.StatusOK {
		t.Errorf("second client behind the same proxy status = %d, want 200", code)
	}
	if code := status("203.0.113.7"); code != http.StatusTooManyRequests {
		t.Errorf("repeated client status = %d, want 429", code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	platform, catalog := defaultFakes()
	ts := newTestServer(t, platform, catalog, 0)

	get(t, ts.URL+"/youtube/playlist?q=PL123")

	resp, body := get(t, ts.URL+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics returned status %d", resp.StatusCode)
	}
	for _, metric := range []string{
		`tubematch_resolutions_total{kind="single_match"} 1`,
		`tubematch_resolutions_total{kind="compilation_matches"} 1`,
		`tubematch_errors_total{component="resolver",type="parse_error"} 1`,
		"tubematch_matched_tracks_total 3",
		"tubematch_batch_duration_seconds",
		"tubematch_description_cache_entries 0",
	} {
		if !strings.Contains(string(body), metric) {
			t.Errorf("/metrics does not contain %q", metric)
		}
	}
}

func TestPlaylistIDFromRequest(t *testing.T) {
	tests := []struct {
		target   string
		expected string
		wantErr  bool
	}{
		{target: "/youtube/playlist?q=PL123", expected: "PL123"},
		{target: "/youtube/playlist?list=PL123&view=matched", expected: "PL123"},
		{target: "/youtube/playlist?PL123", expected: "PL123"},
		{target: "/youtube/playlist?PL123&view=matched", expected: "PL123"},
		{target: "/youtube/x?q=https%3A%2F%2Fwww.youtube.com%2Fplaylist%3Flist%3DPL123", expected: "PL123"},
		{target: "/youtube/playlist", wantErr: true},
		{target: "/youtube/playlist?view=matched", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			id, err := playlistIDFromRequest(httptest.NewRequest(http.MethodGet, tt.target, http.NoBody))
			if (err != nil) != tt.wantErr {
				t.Fatalf("playlistIDFromRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if id != tt.expected {
				t.Errorf("playlistIDFromRequest() = %q, want %q", id, tt.expected)
			}
		})
	}
}
