// Package jellyfin implements activity.Source and activity.SessionSource
// against a Jellyfin server.
package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/showkeeper/showkeeper/internal/activity"
	"github.com/showkeeper/showkeeper/internal/titles"
)

const (
	defaultTimeout = 10 * time.Second
	tokenHeader    = "X-Emby-Token" //nolint:gosec // header name, not a credential
)

// Client queries a Jellyfin server for playback state and history.
type Client struct {
	baseURL    string
	apiKey     string
	username   string
	httpClient *http.Client
	logger     zerolog.Logger

	mu     sync.Mutex
	userID string
}

// ClientConfig contains configuration for creating a new client.
type ClientConfig struct {
	URL      string
	APIKey   string
	Username string
	Timeout  int // seconds
	Logger   zerolog.Logger
}

// NewClient creates a new Jellyfin client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("jellyfin URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("jellyfin API key is required")
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("jellyfin username is required")
	}

	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		username:   cfg.Username,
		httpClient: &http.Client{Timeout: timeout},
		logger:     cfg.Logger.With().Str("component", "jellyfin-client").Logger(),
	}, nil
}

// Name implements activity.Source.
func (c *Client) Name() string { return "jellyfin" }

func (c *Client) doJSON(ctx context.Context, path string, params url.Values, out any) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(tokenHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request to %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// resolveUser maps the configured username to its Jellyfin user ID.
// The ID is cached after the first successful lookup.
func (c *Client) resolveUser(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID != "" {
		return c.userID, nil
	}

	var users []userResource
	if err := c.doJSON(ctx, "/Users", nil, &users); err != nil {
		return "", err
	}

	for _, u := range users {
		if strings.EqualFold(u.Name, c.username) {
			c.userID = u.ID
			return c.userID, nil
		}
	}
	return "", fmt.Errorf("jellyfin user %q not found", c.username)
}

// LastWatched returns the newest played episode of the series for the
// configured user. When no episode-level history exists it falls back
// to the series item's LastPlayedDate, reported as S1E1.
func (c *Client) LastWatched(ctx context.Context, seriesTitle string, complete bool) (*activity.Record, error) {
	userID, err := c.resolveUser(ctx)
	if err != nil {
		return nil, err
	}

	wanted := titles.Normalize(seriesTitle)

	params := url.Values{}
	params.Set("IncludeItemTypes", "Episode")
	params.Set("Recursive", "true")
	params.Set("IsPlayed", "true")
	params.Set("SortBy", "DatePlayed")
	params.Set("SortOrder", "Descending")
	params.Set("Limit", "50")
	params.Set("Fields", "UserData,SeriesName")

	var episodes itemsResponse
	if err := c.doJSON(ctx, "/Users/"+userID+"/Items", params, &episodes); err != nil {
		return nil, err
	}

	for _, item := range episodes.Items {
		if titles.Normalize(item.SeriesName) != wanted {
			continue
		}
		ts := item.UserData.lastPlayed()
		if ts.IsZero() {
			continue
		}

		rec := &activity.Record{Timestamp: ts}
		if complete {
			rec.Season = item.ParentIndexNumber
			rec.Episode = item.IndexNumber
			if rec.Season <= 0 || rec.Episode <= 0 {
				rec.Season, rec.Episode = 1, 1
			}
		}

		c.logger.Debug().
			Str("series", item.SeriesName).
			Int("season", rec.Season).
			Int("episode", rec.Episode).
			Time("timestamp", rec.Timestamp).
			Msg("found episode watch history")
		return rec, nil
	}

	return c.lastWatchedSeries(ctx, userID, wanted, complete)
}

func (c *Client) lastWatchedSeries(ctx context.Context, userID, wanted string, complete bool) (*activity.Record, error) {
	params := url.Values{}
	params.Set("IncludeItemTypes", "Series")
	params.Set("Recursive", "true")
	params.Set("Fields", "UserData")

	var series itemsResponse
	if err := c.doJSON(ctx, "/Users/"+userID+"/Items", params, &series); err != nil {
		return nil, err
	}

	for _, item := range series.Items {
		if titles.Normalize(item.Name) != wanted {
			continue
		}
		ts := item.UserData.lastPlayed()
		if ts.IsZero() {
			continue
		}

		rec := &activity.Record{Timestamp: ts}
		if complete {
			// Series-level history carries no episode position.
			rec.Season, rec.Episode = 1, 1
		}

		c.logger.Debug().
			Str("series", item.Name).
			Time("timestamp", rec.Timestamp).
			Msg("found series-level watch history")
		return rec, nil
	}

	return nil, nil
}

// ActiveSessions implements activity.SessionSource. It reports every
// session currently playing an episode, with playback progress derived
// from position and runtime ticks.
func (c *Client) ActiveSessions(ctx context.Context) ([]activity.Session, error) {
	var raw []sessionResource
	if err := c.doJSON(ctx, "/Sessions", nil, &raw); err != nil {
		return nil, err
	}

	var sessions []activity.Session
	for _, s := range raw {
		item := s.NowPlayingItem
		if item == nil || item.Type != "Episode" || item.SeriesName == "" {
			continue
		}

		progress := 0.0
		if item.RunTimeTicks > 0 {
			progress = float64(s.PlayState.PositionTicks) / float64(item.RunTimeTicks) * 100
		}

		sessions = append(sessions, activity.Session{
			ID:              s.ID,
			User:            s.UserName,
			Series:          item.SeriesName,
			Season:          item.ParentIndexNumber,
			Episode:         item.IndexNumber,
			EpisodeTitle:    item.Name,
			ProgressPercent: progress,
			Paused:          s.PlayState.IsPaused,
		})
	}
	return sessions, nil
}
