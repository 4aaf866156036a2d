package activity

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/showkeeper/showkeeper/internal/library"
)

// Resolver walks activity sources in priority order: primary store,
// then playback-history providers, then library file-added dates.
type Resolver struct {
	store   *Store
	lib     library.Client
	sources []Source
	logger  zerolog.Logger
}

// NewResolver creates a resolver. Sources are consulted in the order
// given; a nil or empty slice skips straight to file dates.
func NewResolver(store *Store, lib library.Client, sources []Source, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:   store,
		lib:     lib,
		sources: sources,
		logger:  logger.With().Str("component", "activity-resolver").Logger(),
	}
}

// Resolve returns the activity record for a series, consulting each
// source until one succeeds. When complete is true the result always
// carries a watch position (providers and the file-date fallback default
// to S1E1 when their data has none). Returns ErrNotFound when every
// source comes up empty.
//
// Every successful resolution that carries a position is written back to
// the primary store, so later calls never fall through to external
// providers again for that series.
func (r *Resolver) Resolve(ctx context.Context, seriesID int64, seriesTitle string, complete bool) (*Result, error) {
	log := r.logger.With().Int64("seriesId", seriesID).Str("title", seriesTitle).Logger()

	// Primary store wins outright unless the caller needs a position the
	// stored record does not have.
	stored, err := r.store.Get(ctx, seriesID)
	if err == nil {
		if !complete || stored.Complete() {
			log.Debug().
				Time("activityDate", stored.ActivityDate).
				Int("season", stored.LastSeason).
				Int("episode", stored.LastEpisode).
				Msg("resolved from primary store")
			return &Result{
				Record: Record{
					Timestamp: stored.ActivityDate,
					Season:    stored.LastSeason,
					Episode:   stored.LastEpisode,
				},
				Source: "store",
			}, nil
		}
		log.Debug().Msg("primary store has activity date but no watch position, consulting external sources")
	}

	if seriesTitle == "" {
		seriesTitle = r.lookupTitle(ctx, seriesID)
	}

	if seriesTitle != "" {
		for _, src := range r.sources {
			rec, err := src.LastWatched(ctx, seriesTitle, complete)
			if err != nil {
				// Provider unavailable is not an error, just the next source's turn.
				log.Warn().Err(err).Str("source", src.Name()).Msg("activity source unavailable")
				continue
			}
			if rec == nil {
				log.Debug().Str("source", src.Name()).Msg("no watch history from source")
				continue
			}

			log.Info().
				Str("source", src.Name()).
				Time("timestamp", rec.Timestamp).
				Int("season", rec.Season).
				Int("episode", rec.Episode).
				Msg("resolved from playback-history provider")
			r.writeBack(ctx, seriesID, *rec, log)
			return &Result{Record: *rec, Source: src.Name()}, nil
		}
	} else {
		log.Debug().Msg("no series title available, skipping playback-history providers")
	}

	if rec := r.latestFileDate(ctx, seriesID, complete, log); rec != nil {
		log.Info().
			Time("timestamp", rec.Timestamp).
			Msg("resolved from library file dates")
		r.writeBack(ctx, seriesID, *rec, log)
		return &Result{Record: *rec, Source: "library-files"}, nil
	}

	log.Debug().Msg("no activity date found from any source")
	return nil, ErrNotFound
}

// lookupTitle fetches the series title from the library manager when the
// caller did not supply one.
func (r *Resolver) lookupTitle(ctx context.Context, seriesID int64) string {
	series, err := r.lib.GetSeries(ctx, seriesID)
	if err != nil {
		r.logger.Warn().Err(err).Int64("seriesId", seriesID).Msg("failed to look up series title")
		return ""
	}
	return series.Title
}

// latestFileDate returns the newest dateAdded among the series' episode
// files, or nil. File dates carry no watch position, so a complete
// request defaults to S1E1.
func (r *Resolver) latestFileDate(ctx context.Context, seriesID int64, complete bool, log zerolog.Logger) *Record {
	files, err := r.lib.ListEpisodeFiles(ctx, seriesID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to list episode files")
		return nil
	}
	if len(files) == 0 {
		return nil
	}

	var latest time.Time
	for _, f := range files {
		added, err := parseDate(f.DateAdded)
		if err != nil {
			log.Debug().Str("dateAdded", f.DateAdded).Int64("fileId", f.ID).Msg("unparseable file date")
			continue
		}
		if added.After(latest) {
			latest = added
		}
	}
	if latest.IsZero() {
		return nil
	}

	rec := &Record{Timestamp: latest}
	if complete {
		rec.Season, rec.Episode = 1, 1
	}
	return rec
}

// writeBack persists a record carrying a position, making the primary
// store authoritative for future calls.
func (r *Resolver) writeBack(ctx context.Context, seriesID int64, rec Record, log zerolog.Logger) {
	if !rec.Complete() {
		return
	}
	err := r.store.Put(ctx, SeriesActivity{
		SeriesID:     seriesID,
		ActivityDate: rec.Timestamp,
		LastSeason:   rec.Season,
		LastEpisode:  rec.Episode,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to write activity back to primary store")
	}
}

// parseDate handles the date-format variants library managers emit:
// RFC3339 with or without fractional seconds, and a bare local form
// taken as UTC.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", s, time.UTC)
}
