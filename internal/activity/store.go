package activity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SeriesActivity is the authoritative per-series watch record. Once a
// complete record is stored it overrides every external provider.
type SeriesActivity struct {
	SeriesID     int64
	ActivityDate time.Time
	LastSeason   int
	LastEpisode  int
}

// Complete reports whether the stored record carries a watch position.
func (a SeriesActivity) Complete() bool {
	return a.LastSeason > 0 && a.LastEpisode > 0
}

// Store persists SeriesActivity records in the settings database.
type Store struct {
	db *sql.DB
}

// NewStore creates an activity store on top of an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the stored activity for a series, or ErrNotFound.
func (s *Store) Get(ctx context.Context, seriesID int64) (*SeriesActivity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT series_id, activity_date, COALESCE(last_season, 0), COALESCE(last_episode, 0)
		FROM series_activity
		WHERE series_id = ?`, seriesID)

	var a SeriesActivity
	var epoch int64
	if err := row.Scan(&a.SeriesID, &epoch, &a.LastSeason, &a.LastEpisode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get activity for series %d: %w", seriesID, err)
	}

	a.ActivityDate = time.Unix(epoch, 0).UTC()
	return &a, nil
}

// Put upserts the activity record for a series. Newer writes supersede
// older ones unconditionally; records are never deleted.
func (s *Store) Put(ctx context.Context, a SeriesActivity) error {
	var season, episode any
	if a.LastSeason > 0 {
		season = a.LastSeason
	}
	if a.LastEpisode > 0 {
		episode = a.LastEpisode
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO series_activity (series_id, activity_date, last_season, last_episode, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (series_id) DO UPDATE SET
			activity_date = excluded.activity_date,
			last_season = excluded.last_season,
			last_episode = excluded.last_episode,
			updated_at = CURRENT_TIMESTAMP`,
		a.SeriesID, a.ActivityDate.Unix(), season, episode)
	if err != nil {
		return fmt.Errorf("failed to store activity for series %d: %w", a.SeriesID, err)
	}
	return nil
}
