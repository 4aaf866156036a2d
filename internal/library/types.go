// Package library defines the capability interface the retention engine
// needs from an external library manager, plus the data types crossing
// that boundary. Concrete implementations live in sub-packages.
package library

import (
	"context"
	"sort"
)

// Series is a show known to the library manager.
type Series struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Year   int    `json:"year,omitempty"`
	TmdbID int64  `json:"tmdbId,omitempty"`
	TvdbID int64  `json:"tvdbId,omitempty"`
}

// Episode is a single episode entry. EpisodeFileID is zero when the
// episode has no file on disk.
type Episode struct {
	ID            int64 `json:"id"`
	SeriesID      int64 `json:"seriesId"`
	SeasonNumber  int   `json:"seasonNumber"`
	EpisodeNumber int   `json:"episodeNumber"`
	HasFile       bool  `json:"hasFile"`
	EpisodeFileID int64 `json:"episodeFileId,omitempty"`
	Monitored     bool  `json:"monitored"`
}

// EpisodeFile is an on-disk file for one or more episodes.
type EpisodeFile struct {
	ID           int64  `json:"id"`
	SeriesID     int64  `json:"seriesId"`
	SeasonNumber int    `json:"seasonNumber"`
	DateAdded    string `json:"dateAdded"`
	Size         int64  `json:"size,omitempty"`
}

// DiskSpace describes one storage volume reported by the library manager.
type DiskSpace struct {
	Path    string  `json:"path"`
	TotalGB float64 `json:"totalGb"`
	FreeGB  float64 `json:"freeGb"`
}

// Client is the capability interface for a library manager.
// Episode listings are always fetched fresh: file presence changes as a
// side effect of this engine's own deletions, so callers must not cache
// them across evaluations.
type Client interface {
	ListSeries(ctx context.Context) ([]Series, error)
	GetSeries(ctx context.Context, seriesID int64) (*Series, error)
	ListEpisodes(ctx context.Context, seriesID int64) ([]Episode, error)
	ListEpisodeFiles(ctx context.Context, seriesID int64) ([]EpisodeFile, error)
	SetMonitored(ctx context.Context, episodeIDs []int64, monitored bool) error
	TriggerSearch(ctx context.Context, episodeIDs []int64) error
	DeleteEpisodeFile(ctx context.Context, fileID int64) error
	DiskSpace(ctx context.Context) (*DiskSpace, error)
}

// SortEpisodes returns a copy of episodes ordered by (season, episode)
// ascending. The input slice is left untouched so callers can hand the
// same listing to several evaluations.
func SortEpisodes(episodes []Episode) []Episode {
	sorted := make([]Episode, len(episodes))
	copy(sorted, episodes)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].SeasonNumber != sorted[j].SeasonNumber {
			return sorted[i].SeasonNumber < sorted[j].SeasonNumber
		}
		return sorted[i].EpisodeNumber < sorted[j].EpisodeNumber
	})
	return sorted
}
