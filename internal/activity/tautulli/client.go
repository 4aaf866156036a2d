// Package tautulli implements activity.Source against a
// Tautulli-compatible playback-history API.
package tautulli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/showkeeper/showkeeper/internal/activity"
	"github.com/showkeeper/showkeeper/internal/titles"
)

const defaultTimeout = 10 * time.Second

// Client queries a Tautulli-compatible API for watch history.
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

// NewClient creates a new Tautulli history client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("tautulli URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("tautulli API key is required")
	}

	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     cfg.Logger.With().Str("component", "tautulli-client").Logger(),
	}, nil
}

// Name implements activity.Source.
func (c *Client) Name() string { return "tautulli" }

// LastWatched returns the most recent episode watch record whose series
// title matches, trying a few title variations against the history
// search endpoint.
func (c *Client) LastWatched(ctx context.Context, seriesTitle string, complete bool) (*activity.Record, error) {
	wanted := titles.Normalize(seriesTitle)

	// Cap the variations to keep the number of upstream calls bounded.
	variations := titles.Variations(seriesTitle)
	if len(variations) > 3 {
		variations = variations[:3]
	}

	for _, search := range variations {
		entry, err := c.mostRecentHistory(ctx, search)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue
		}

		got := titles.Normalize(entry.GrandparentTitle)
		if got != wanted && !strings.Contains(got, wanted) && !strings.Contains(wanted, got) {
			continue
		}

		ts := entry.Date.Int()
		if ts <= 0 {
			continue
		}

		rec := &activity.Record{Timestamp: time.Unix(ts, 0).UTC()}
		if complete {
			rec.Season = int(entry.ParentMediaIndex.Int())
			rec.Episode = int(entry.MediaIndex.Int())
			if rec.Season <= 0 || rec.Episode <= 0 {
				// History rows without a position still count as a watch.
				rec.Season, rec.Episode = 1, 1
			}
		}

		c.logger.Debug().
			Str("series", entry.GrandparentTitle).
			Int("season", rec.Season).
			Int("episode", rec.Episode).
			Time("timestamp", rec.Timestamp).
			Msg("found watch history")
		return rec, nil
	}

	return nil, nil
}

// mostRecentHistory fetches the single newest episode history row for a
// search term.
func (c *Client) mostRecentHistory(ctx context.Context, search string) (*historyEntry, error) {
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("cmd", "get_history")
	params.Set("media_type", "episode")
	params.Set("search", search)
	params.Set("length", "1")

	reqURL := c.baseURL + "/api/v2?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history request returned status %d", resp.StatusCode)
	}

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode history response: %w", err)
	}

	if envelope.Response.Result != "success" || len(envelope.Response.Data.Data) == 0 {
		return nil, nil
	}

	return &envelope.Response.Data.Data[0], nil
}

// flexInt tolerates the API's habit of returning numbers as either JSON
// numbers or strings.
type flexInt string

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	*f = flexInt(s)
	return nil
}

func (f flexInt) Int() int64 {
	v, err := strconv.ParseInt(string(f), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

type apiResponse struct {
	Response struct {
		Result string `json:"result"`
		Data   struct {
			Data []historyEntry `json:"data"`
		} `json:"data"`
	} `json:"response"`
}

type historyEntry struct {
	GrandparentTitle string  `json:"grandparent_title"`
	Date             flexInt `json:"date"`
	ParentMediaIndex flexInt `json:"parent_media_index"`
	MediaIndex       flexInt `json:"media_index"`
}
