// Package tmdb provides a minimal TMDB client used to fetch alternate
// series titles for webhook title matching.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://api.themoviedb.org/3"

var (
	ErrAPIKeyMissing  = errors.New("TMDB API key is not configured")
	ErrSeriesNotFound = errors.New("series not found")
	ErrAPIError       = errors.New("TMDB API error")
	ErrRateLimited    = errors.New("TMDB API rate limited")
)

// Client is a TMDB API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     zerolog.Logger
}

// ClientConfig contains configuration for creating a new client.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Timeout int // seconds
	Logger  zerolog.Logger
}

// NewClient creates a new TMDB client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := 10 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		logger:     cfg.Logger.With().Str("component", "tmdb").Logger(),
	}
}

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// AlternativeTitles returns the alternative titles registered for a TV
// series, including regional variants.
func (c *Client) AlternativeTitles(ctx context.Context, tmdbID int64) ([]string, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	endpoint := fmt.Sprintf("%s/tv/%d/alternative_titles", c.baseURL, tmdbID)
	params := url.Values{}
	params.Set("api_key", c.apiKey)

	var response alternativeTitlesResponse
	if err := c.doRequest(ctx, endpoint, params, &response); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(response.Results))
	for _, t := range response.Results {
		if t.Title != "" {
			names = append(names, t.Title)
		}
	}
	return names, nil
}

func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	reqURL := endpoint
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", endpoint).Msg("HTTP request failed")
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			c.logger.Error().
				Int("status", resp.StatusCode).
				Str("message", errResp.StatusMessage).
				Msg("TMDB API error")
		}

		switch resp.StatusCode {
		case http.StatusNotFound:
			return ErrSeriesNotFound
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: invalid API key", ErrAPIError)
		case http.StatusTooManyRequests:
			return ErrRateLimited
		default:
			return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

type alternativeTitlesResponse struct {
	Results []alternativeTitle `json:"results"`
}

type alternativeTitle struct {
	Title string `json:"title"`
}

type errorResponse struct {
	StatusMessage string `json:"status_message"`
}
