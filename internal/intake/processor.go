package intake

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/showkeeper/showkeeper/internal/retention"
)

// Processor is the downstream shared by every event producer: dedup,
// series matching, then retention processing. Webhooks and pollers for
// the same episode funnel through the same suppression window.
type Processor struct {
	matcher   *Matcher
	dedup     *Deduper
	retention *retention.Service
	logger    zerolog.Logger
}

// NewProcessor creates the shared event processor.
func NewProcessor(matcher *Matcher, dedup *Deduper, retentionSvc *retention.Service, logger zerolog.Logger) *Processor {
	return &Processor{
		matcher:   matcher,
		dedup:     dedup,
		retention: retentionSvc,
		logger:    logger.With().Str("component", "intake").Logger(),
	}
}

// HandleWatch processes one confirmed watch event. Suppressed
// duplicates and unmatched titles are not errors: they are logged and
// dropped.
func (p *Processor) HandleWatch(ctx context.Context, seriesTitle string, season, episode int) error {
	log := p.logger.With().
		Str("series", seriesTitle).
		Int("season", season).
		Int("episode", episode).
		Logger()

	if !p.dedup.ShouldProcess(seriesTitle, season, episode) {
		log.Debug().Msg("watch event suppressed by dedup window")
		return nil
	}

	series, err := p.matcher.Match(ctx, seriesTitle)
	if errors.Is(err, ErrSeriesNotMatched) {
		return nil
	}
	if err != nil {
		return err
	}

	log.Info().Int64("series_id", series.ID).Msg("processing watch event")
	return p.retention.ProcessEvent(ctx, series.ID, retention.Position{Season: season, Episode: episode})
}
