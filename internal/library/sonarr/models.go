package sonarr

import "github.com/showkeeper/showkeeper/internal/library"

type seriesResource struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Year   int    `json:"year"`
	TmdbID int64  `json:"tmdbId"`
	TvdbID int64  `json:"tvdbId"`
}

func (s seriesResource) toSeries() library.Series {
	return library.Series{
		ID:     s.ID,
		Title:  s.Title,
		Year:   s.Year,
		TmdbID: s.TmdbID,
		TvdbID: s.TvdbID,
	}
}

type episodeResource struct {
	ID            int64 `json:"id"`
	SeriesID      int64 `json:"seriesId"`
	SeasonNumber  int   `json:"seasonNumber"`
	EpisodeNumber int   `json:"episodeNumber"`
	HasFile       bool  `json:"hasFile"`
	EpisodeFileID int64 `json:"episodeFileId"`
	Monitored     bool  `json:"monitored"`
}

func (e episodeResource) toEpisode() library.Episode {
	return library.Episode{
		ID:            e.ID,
		SeriesID:      e.SeriesID,
		SeasonNumber:  e.SeasonNumber,
		EpisodeNumber: e.EpisodeNumber,
		HasFile:       e.HasFile,
		EpisodeFileID: e.EpisodeFileID,
		Monitored:     e.Monitored,
	}
}

type episodeFileResource struct {
	ID           int64  `json:"id"`
	SeriesID     int64  `json:"seriesId"`
	SeasonNumber int    `json:"seasonNumber"`
	DateAdded    string `json:"dateAdded"`
	Size         int64  `json:"size"`
}

func (f episodeFileResource) toEpisodeFile() library.EpisodeFile {
	return library.EpisodeFile{
		ID:           f.ID,
		SeriesID:     f.SeriesID,
		SeasonNumber: f.SeasonNumber,
		DateAdded:    f.DateAdded,
		Size:         f.Size,
	}
}

type diskSpaceResource struct {
	Path       string `json:"path"`
	FreeSpace  int64  `json:"freeSpace"`
	TotalSpace int64  `json:"totalSpace"`
}

type monitorRequest struct {
	EpisodeIDs []int64 `json:"episodeIds"`
	Monitored  bool    `json:"monitored"`
}

type commandRequest struct {
	Name       string  `json:"name"`
	EpisodeIDs []int64 `json:"episodeIds"`
}
