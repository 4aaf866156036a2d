// Package sonarr implements library.Client against a Sonarr-compatible
// v3 API.
package sonarr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/showkeeper/showkeeper/internal/library"
)

const (
	defaultTimeout = 10 * time.Second
	//nolint:gosec // header name constant, not a credential
	apiKeyHeader = "X-Api-Key"
)

// Client provides HTTP communication with a Sonarr-compatible server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// ClientConfig contains configuration for creating a new client.
type ClientConfig struct {
	URL     string
	APIKey  string
	Timeout int // seconds
	Logger  zerolog.Logger
}

// NewClient creates a new library manager HTTP client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("library URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("library API key is required")
	}

	baseURL := strings.TrimSuffix(cfg.URL, "/")

	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	logger := cfg.Logger.With().
		Str("component", "library-client").
		Str("url", baseURL).
		Logger()

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// do executes an HTTP request with the API key header.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	reqURL := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(apiKeyHeader, c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Msg("executing request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// doJSON executes a request and decodes the JSON response into result.
func (c *Client) doJSON(ctx context.Context, method, path string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	resp, err := c.do(ctx, method, path, reqBody)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("body", string(bodyBytes)).
			Msg("request returned error status")
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// ListSeries returns every series known to the library manager.
func (c *Client) ListSeries(ctx context.Context) ([]library.Series, error) {
	var out []seriesResource
	if err := c.doJSON(ctx, http.MethodGet, "/api/v3/series", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}

	series := make([]library.Series, 0, len(out))
	for _, s := range out {
		series = append(series, s.toSeries())
	}
	return series, nil
}

// GetSeries returns a single series by id.
func (c *Client) GetSeries(ctx context.Context, seriesID int64) (*library.Series, error) {
	var out seriesResource
	path := fmt.Sprintf("/api/v3/series/%d", seriesID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get series %d: %w", seriesID, err)
	}
	s := out.toSeries()
	return &s, nil
}

// ListEpisodes returns all episodes for a series.
func (c *Client) ListEpisodes(ctx context.Context, seriesID int64) ([]library.Episode, error) {
	var out []episodeResource
	path := fmt.Sprintf("/api/v3/episode?seriesId=%d", seriesID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list episodes for series %d: %w", seriesID, err)
	}

	episodes := make([]library.Episode, 0, len(out))
	for _, e := range out {
		episodes = append(episodes, e.toEpisode())
	}
	return episodes, nil
}

// ListEpisodeFiles returns all on-disk episode files for a series.
func (c *Client) ListEpisodeFiles(ctx context.Context, seriesID int64) ([]library.EpisodeFile, error) {
	var out []episodeFileResource
	path := fmt.Sprintf("/api/v3/episodefile?seriesId=%d", seriesID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list episode files for series %d: %w", seriesID, err)
	}

	files := make([]library.EpisodeFile, 0, len(out))
	for _, f := range out {
		files = append(files, f.toEpisodeFile())
	}
	return files, nil
}

// SetMonitored flips the monitored flag for the given episode ids.
func (c *Client) SetMonitored(ctx context.Context, episodeIDs []int64, monitored bool) error {
	if len(episodeIDs) == 0 {
		return nil
	}

	body := monitorRequest{EpisodeIDs: episodeIDs, Monitored: monitored}
	if err := c.doJSON(ctx, http.MethodPut, "/api/v3/episode/monitor", body, nil); err != nil {
		return fmt.Errorf("failed to set monitored=%v: %w", monitored, err)
	}

	c.logger.Debug().
		Ints64("episodeIds", episodeIDs).
		Bool("monitored", monitored).
		Msg("updated episode monitoring")
	return nil
}

// TriggerSearch asks the library manager to search for the given episodes.
func (c *Client) TriggerSearch(ctx context.Context, episodeIDs []int64) error {
	if len(episodeIDs) == 0 {
		return nil
	}

	body := commandRequest{Name: "EpisodeSearch", EpisodeIDs: episodeIDs}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v3/command", body, nil); err != nil {
		return fmt.Errorf("failed to trigger episode search: %w", err)
	}

	c.logger.Debug().
		Ints64("episodeIds", episodeIDs).
		Msg("episode search command sent")
	return nil
}

// DeleteEpisodeFile deletes one episode file by file id.
func (c *Client) DeleteEpisodeFile(ctx context.Context, fileID int64) error {
	path := fmt.Sprintf("/api/v3/episodefile/%d", fileID)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to delete episode file %d: %w", fileID, err)
	}
	return nil
}

// DiskSpace returns the largest volume the library manager reports.
func (c *Client) DiskSpace(ctx context.Context) (*library.DiskSpace, error) {
	var out []diskSpaceResource
	if err := c.doJSON(ctx, http.MethodGet, "/api/v3/diskspace", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get disk space: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("library manager reported no disk volumes")
	}

	main := out[0]
	for _, d := range out[1:] {
		if d.TotalSpace > main.TotalSpace {
			main = d
		}
	}

	const gb = 1024 * 1024 * 1024
	return &library.DiskSpace{
		Path:    main.Path,
		TotalGB: float64(main.TotalSpace) / gb,
		FreeGB:  float64(main.FreeSpace) / gb,
	}, nil
}
