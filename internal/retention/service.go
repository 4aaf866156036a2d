package retention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/showkeeper/showkeeper/internal/activity"
	"github.com/showkeeper/showkeeper/internal/library"
	"github.com/showkeeper/showkeeper/internal/rules"
)

// DryRunFunc reports whether global dry-run mode is currently enabled.
// It is consulted on every event so a settings change takes effect
// without a restart. A nil func means no global override.
type DryRunFunc func(ctx context.Context) bool

// Service applies a series' rule when a watch event arrives: records the
// activity, prepares upcoming episodes, and trims episodes that fell out
// of the keep block.
type Service struct {
	lib          library.Client
	rules        *rules.Store
	activity     *activity.Store
	globalDryRun DryRunFunc
	logger       zerolog.Logger
}

// NewService creates a retention service.
func NewService(lib library.Client, ruleStore *rules.Store, activityStore *activity.Store, globalDryRun DryRunFunc, logger zerolog.Logger) *Service {
	return &Service{
		lib:          lib,
		rules:        ruleStore,
		activity:     activityStore,
		globalDryRun: globalDryRun,
		logger:       logger.With().Str("component", "retention").Logger(),
	}
}

// ProcessEvent handles a confirmed watch of pos for the given series.
// Errors from individual library calls are collected so one failure
// does not stop the remaining steps.
func (s *Service) ProcessEvent(ctx context.Context, seriesID int64, pos Position) error {
	rule, err := s.rules.RuleForSeries(ctx, seriesID)
	if errors.Is(err, rules.ErrNotFound) {
		s.logger.Debug().Int64("series_id", seriesID).Msg("series has no rule assigned, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load rule for series %d: %w", seriesID, err)
	}

	if err := s.activity.Put(ctx, activity.SeriesActivity{
		SeriesID:     seriesID,
		ActivityDate: time.Now().UTC(),
		LastSeason:   pos.Season,
		LastEpisode:  pos.Episode,
	}); err != nil {
		return fmt.Errorf("failed to record activity for series %d: %w", seriesID, err)
	}

	episodes, err := s.lib.ListEpisodes(ctx, seriesID)
	if err != nil {
		return fmt.Errorf("failed to list episodes for series %d: %w", seriesID, err)
	}

	dryRun := rule.DryRun
	if s.globalDryRun != nil && s.globalDryRun(ctx) {
		dryRun = true
	}
	log := s.logger.With().
		Int64("series_id", seriesID).
		Str("rule", rule.Name).
		Int("season", pos.Season).
		Int("episode", pos.Episode).
		Bool("dry_run", dryRun).
		Logger()

	var errs []error

	if !rule.MonitorWatched {
		if err := s.unmonitorWatched(ctx, log, episodes, pos, dryRun); err != nil {
			errs = append(errs, err)
		}
	}

	if err := s.prepareNext(ctx, log, episodes, pos, rule, dryRun); err != nil {
		errs = append(errs, err)
	}

	if err := s.trimKeepBlock(ctx, log, episodes, pos, rule, dryRun); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (s *Service) unmonitorWatched(ctx context.Context, log zerolog.Logger, episodes []library.Episode, pos Position, dryRun bool) error {
	var ids []int64
	for _, e := range episodes {
		if e.Monitored && pos.atOrBefore(e) {
			ids = append(ids, e.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	if dryRun {
		log.Info().Ints64("episode_ids", ids).Msg("dry run: would unmonitor watched episodes")
		return nil
	}
	if err := s.lib.SetMonitored(ctx, ids, false); err != nil {
		return fmt.Errorf("failed to unmonitor watched episodes: %w", err)
	}
	log.Info().Int("count", len(ids)).Msg("unmonitored watched episodes")
	return nil
}

func (s *Service) prepareNext(ctx context.Context, log zerolog.Logger, episodes []library.Episode, pos Position, rule *rules.Rule, dryRun bool) error {
	ids := FetchNext(episodes, pos, rule.Get)
	if len(ids) == 0 {
		log.Debug().Msg("no upcoming episodes to prepare")
		return nil
	}
	if dryRun {
		log.Info().
			Ints64("episode_ids", ids).
			Str("action", string(rule.Action)).
			Msg("dry run: would prepare upcoming episodes")
		return nil
	}

	if err := s.lib.SetMonitored(ctx, ids, true); err != nil {
		return fmt.Errorf("failed to monitor upcoming episodes: %w", err)
	}
	if rule.Action == rules.ActionSearch {
		if err := s.lib.TriggerSearch(ctx, ids); err != nil {
			return fmt.Errorf("failed to trigger search for upcoming episodes: %w", err)
		}
	}
	log.Info().
		Int("count", len(ids)).
		Str("action", string(rule.Action)).
		Msg("prepared upcoming episodes")
	return nil
}

// trimKeepBlock deletes files that fell out of the keep window. This
// runs on every watch event and is not gated by storage.
func (s *Service) trimKeepBlock(ctx context.Context, log zerolog.Logger, episodes []library.Episode, pos Position, rule *rules.Rule, dryRun bool) error {
	leaving := KeepBlock(episodes, pos, rule.Keep)
	if len(leaving) == 0 {
		return nil
	}

	var errs []error
	deleted := 0
	for _, e := range leaving {
		if e.EpisodeFileID == 0 {
			continue
		}
		if dryRun {
			log.Info().
				Int("season", e.SeasonNumber).
				Int("episode", e.EpisodeNumber).
				Msg("dry run: would delete episode file")
			continue
		}
		if err := s.lib.DeleteEpisodeFile(ctx, e.EpisodeFileID); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete file for S%02dE%02d: %w", e.SeasonNumber, e.EpisodeNumber, err))
			continue
		}
		deleted++
	}
	if deleted > 0 {
		log.Info().Int("deleted", deleted).Msg("trimmed episodes outside keep block")
	}
	return errors.Join(errs...)
}
