// Package librarytest provides a function-field fake library.Client for
// tests. Only the fields a test assigns need to be set; unassigned
// operations return zero values.
package librarytest

import (
	"context"
	"sync"

	"github.com/showkeeper/showkeeper/internal/library"
)

// Fake implements library.Client with overridable functions and records
// mutation calls for assertions.
type Fake struct {
	ListSeriesFunc       func(ctx context.Context) ([]library.Series, error)
	GetSeriesFunc        func(ctx context.Context, seriesID int64) (*library.Series, error)
	ListEpisodesFunc     func(ctx context.Context, seriesID int64) ([]library.Episode, error)
	ListEpisodeFilesFunc func(ctx context.Context, seriesID int64) ([]library.EpisodeFile, error)
	DiskSpaceFunc        func(ctx context.Context) (*library.DiskSpace, error)
	DeleteFunc           func(ctx context.Context, fileID int64) error

	mu           sync.Mutex
	monitored    []int64
	unmonitored  []int64
	searched     []int64
	deletedFiles []int64
}

var _ library.Client = (*Fake)(nil)

func (f *Fake) ListSeries(ctx context.Context) ([]library.Series, error) {
	if f.ListSeriesFunc != nil {
		return f.ListSeriesFunc(ctx)
	}
	return nil, nil
}

func (f *Fake) GetSeries(ctx context.Context, seriesID int64) (*library.Series, error) {
	if f.GetSeriesFunc != nil {
		return f.GetSeriesFunc(ctx, seriesID)
	}
	return &library.Series{ID: seriesID}, nil
}

func (f *Fake) ListEpisodes(ctx context.Context, seriesID int64) ([]library.Episode, error) {
	if f.ListEpisodesFunc != nil {
		return f.ListEpisodesFunc(ctx, seriesID)
	}
	return nil, nil
}

func (f *Fake) ListEpisodeFiles(ctx context.Context, seriesID int64) ([]library.EpisodeFile, error) {
	if f.ListEpisodeFilesFunc != nil {
		return f.ListEpisodeFilesFunc(ctx, seriesID)
	}
	return nil, nil
}

func (f *Fake) SetMonitored(ctx context.Context, episodeIDs []int64, monitored bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if monitored {
		f.monitored = append(f.monitored, episodeIDs...)
	} else {
		f.unmonitored = append(f.unmonitored, episodeIDs...)
	}
	return nil
}

func (f *Fake) TriggerSearch(ctx context.Context, episodeIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searched = append(f.searched, episodeIDs...)
	return nil
}

func (f *Fake) DeleteEpisodeFile(ctx context.Context, fileID int64) error {
	if f.DeleteFunc != nil {
		if err := f.DeleteFunc(ctx, fileID); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedFiles = append(f.deletedFiles, fileID)
	return nil
}

func (f *Fake) DiskSpace(ctx context.Context) (*library.DiskSpace, error) {
	if f.DiskSpaceFunc != nil {
		return f.DiskSpaceFunc(ctx)
	}
	return &library.DiskSpace{Path: "/tv", TotalGB: 1000, FreeGB: 500}, nil
}

// Monitored returns the episode ids passed to SetMonitored(true).
func (f *Fake) Monitored() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.monitored...)
}

// Unmonitored returns the episode ids passed to SetMonitored(false).
func (f *Fake) Unmonitored() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.unmonitored...)
}

// Searched returns the episode ids passed to TriggerSearch.
func (f *Fake) Searched() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.searched...)
}

// DeletedFiles returns the file ids passed to DeleteEpisodeFile.
func (f *Fake) DeletedFiles() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.deletedFiles...)
}
