package intake

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/showkeeper/showkeeper/internal/library"
	"github.com/showkeeper/showkeeper/internal/titles"
)

// ErrSeriesNotMatched is returned when no library series matches an
// incoming title.
var ErrSeriesNotMatched = errors.New("no library series matched the title")

// AlternateTitleSource looks up alternate names for a series, used as a
// fallback matching step. *tmdb.Client satisfies it.
type AlternateTitleSource interface {
	AlternativeTitles(ctx context.Context, tmdbID int64) ([]string, error)
}

// Matcher resolves incoming event titles to library series. Match
// attempts, in order: exact normalized title, year-stripped title,
// alternate titles from the metadata provider, then best partial
// containment. A title that survives all steps is logged with its
// closest fuzzy candidates for operator review.
type Matcher struct {
	lib    library.Client
	titles AlternateTitleSource
	logger zerolog.Logger
}

// NewMatcher creates a matcher. titleSource may be nil when no metadata
// provider is configured; the alternate-title step is then skipped.
func NewMatcher(lib library.Client, titleSource AlternateTitleSource, logger zerolog.Logger) *Matcher {
	return &Matcher{
		lib:    lib,
		titles: titleSource,
		logger: logger.With().Str("component", "matcher").Logger(),
	}
}

// Match finds the library series for a title, or ErrSeriesNotMatched.
func (m *Matcher) Match(ctx context.Context, title string) (*library.Series, error) {
	series, err := m.lib.ListSeries(ctx)
	if err != nil {
		return nil, err
	}

	wanted := titles.Normalize(title)

	for i := range series {
		if titles.Normalize(series[i].Title) == wanted {
			return &series[i], nil
		}
	}

	stripped := titles.Normalize(titles.StripYear(title))
	for i := range series {
		if titles.Normalize(titles.StripYear(series[i].Title)) == stripped {
			m.logger.Debug().Str("title", title).Str("matched", series[i].Title).Msg("matched after stripping year")
			return &series[i], nil
		}
	}

	if s := m.matchAlternateTitles(ctx, series, wanted); s != nil {
		return s, nil
	}

	if s := m.matchPartial(series, title); s != nil {
		return s, nil
	}

	m.logMissing(title, series)
	return nil, ErrSeriesNotMatched
}

func (m *Matcher) matchAlternateTitles(ctx context.Context, series []library.Series, wanted string) *library.Series {
	if m.titles == nil {
		return nil
	}
	for i := range series {
		if series[i].TmdbID == 0 {
			continue
		}
		alternates, err := m.titles.AlternativeTitles(ctx, series[i].TmdbID)
		if err != nil {
			m.logger.Debug().Err(err).Str("series", series[i].Title).Msg("alternate title lookup failed")
			continue
		}
		for _, alt := range alternates {
			if titles.Normalize(alt) == wanted {
				m.logger.Debug().
					Str("matched", series[i].Title).
					Str("alternate", alt).
					Msg("matched via alternate title")
				return &series[i]
			}
		}
	}
	return nil
}

// matchPartial accepts a containment match in either direction,
// preferring the longest library title when several contain each other.
func (m *Matcher) matchPartial(series []library.Series, title string) *library.Series {
	var best *library.Series
	matches := 0
	for i := range series {
		if !titles.Contains(series[i].Title, title) {
			continue
		}
		matches++
		if best == nil || len(series[i].Title) > len(best.Title) {
			best = &series[i]
		}
	}
	if best == nil {
		return nil
	}
	if matches > 1 {
		m.logger.Warn().
			Str("title", title).
			Str("matched", best.Title).
			Int("candidates", matches).
			Msg("ambiguous partial title match, picked longest")
	} else {
		m.logger.Debug().Str("title", title).Str("matched", best.Title).Msg("matched by partial containment")
	}
	return best
}

// logMissing records an unmatched title along with its closest fuzzy
// candidates, so an operator can spot renamed or missing series.
func (m *Matcher) logMissing(title string, series []library.Series) {
	names := make([]string, len(series))
	for i := range series {
		names[i] = series[i].Title
	}
	closest := titles.CloseMatches(title, names, 0.8, 3)
	candidates := make([]string, len(closest))
	for i, c := range closest {
		candidates[i] = fmt.Sprintf("%s (%.2f)", c.Title, c.Score)
	}
	m.logger.Warn().
		Str("title", title).
		Strs("closest", candidates).
		Msg("no library series matched watch event title")
}
