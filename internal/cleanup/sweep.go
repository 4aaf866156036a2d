package cleanup

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/showkeeper/showkeeper/internal/activity"
	"github.com/showkeeper/showkeeper/internal/library"
	"github.com/showkeeper/showkeeper/internal/retention"
	"github.com/showkeeper/showkeeper/internal/rules"
)

// ErrSweepRunning is returned when a sweep is triggered while another
// one is still in progress.
var ErrSweepRunning = errors.New("a cleanup sweep is already running")

// PhaseResult summarizes one sweep phase.
type PhaseResult struct {
	Series       int `json:"series"`
	FilesDeleted int `json:"files_deleted"`
}

// Result summarizes a completed sweep.
type Result struct {
	RunID          string      `json:"run_id"`
	DryRun         bool        `json:"dry_run"`
	Dormant        PhaseResult `json:"dormant"`
	GraceWatched   PhaseResult `json:"grace_watched"`
	GraceUnwatched PhaseResult `json:"grace_unwatched"`
	Halted         bool        `json:"halted"`
	HaltReason     string      `json:"halt_reason,omitempty"`
	StartedAt      time.Time   `json:"started_at"`
	FinishedAt     time.Time   `json:"finished_at"`
}

// ruleSource is the slice of the rule store the sweeper consumes.
type ruleSource interface {
	List(ctx context.Context) ([]rules.Rule, error)
	SeriesForRule(ctx context.Context, name string) ([]int64, error)
}

// Sweeper runs the three cleanup phases in priority order: dormant
// series first, then watched episodes past their grace period, then
// unwatched ones.
type Sweeper struct {
	lib      library.Client
	rules    ruleSource
	resolver *activity.Resolver
	settings *Settings
	gate     *Gate
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
}

// NewSweeper creates a sweep orchestrator.
func NewSweeper(lib library.Client, ruleStore ruleSource, resolver *activity.Resolver, settings *Settings, gate *Gate, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		lib:      lib,
		rules:    ruleStore,
		resolver: resolver,
		settings: settings,
		gate:     gate,
		logger:   logger.With().Str("component", "cleanup").Logger(),
	}
}

// Running reports whether a sweep is currently in progress.
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Run executes one full sweep. Only one sweep runs at a time; a second
// trigger while one is in flight returns ErrSweepRunning.
func (s *Sweeper) Run(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrSweepRunning
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:     uuid.New().String()[:8],
		DryRun:    settings.DryRunMode,
		StartedAt: time.Now().UTC(),
	}
	log := s.logger.With().Str("run_id", result.RunID).Logger()
	gated := settings.StorageMinGB != nil

	if gated {
		status, err := s.gate.check(ctx, settings)
		if err != nil {
			return nil, err
		}
		if !status.Allowed {
			result.Halted = true
			result.HaltReason = status.Reason
			result.FinishedAt = time.Now().UTC()
			log.Info().Str("reason", status.Reason).Msg("storage gate closed, skipping sweep")
			return result, nil
		}
	}

	ruleList, err := s.rules.List(ctx)
	if err != nil {
		return nil, err
	}

	log.Info().Int("rules", len(ruleList)).Bool("gated", gated).Msg("starting cleanup sweep")

	phases := []struct {
		name string
		run  func(context.Context, zerolog.Logger, GlobalSettings, []rules.Rule, *Result) error
	}{
		{"dormant", s.runDormant},
		{"grace-watched", s.runGraceWatched},
		{"grace-unwatched", s.runGraceUnwatched},
	}

	for i, phase := range phases {
		phaseLog := log.With().Str("phase", phase.name).Logger()
		if err := phase.run(ctx, phaseLog, settings, ruleList, result); err != nil {
			return nil, err
		}
		if result.Halted {
			break
		}
		// With a floor configured, stop as soon as it is satisfied.
		if gated && i < len(phases)-1 {
			status, err := s.gate.check(ctx, settings)
			if err != nil {
				return nil, err
			}
			if !status.Allowed {
				result.Halted = true
				result.HaltReason = status.Reason
				phaseLog.Info().Str("reason", status.Reason).Msg("storage floor satisfied, stopping sweep")
				break
			}
		}
	}

	result.FinishedAt = time.Now().UTC()
	log.Info().
		Int("dormant_deleted", result.Dormant.FilesDeleted).
		Int("grace_watched_deleted", result.GraceWatched.FilesDeleted).
		Int("grace_unwatched_deleted", result.GraceUnwatched.FilesDeleted).
		Bool("halted", result.Halted).
		Msg("cleanup sweep finished")
	return result, nil
}

type dormantCandidate struct {
	seriesID int64
	rule     rules.Rule
	ageDays  float64
}

// runDormant purges every file of series inactive past their rule's
// dormancy threshold. Candidates across all rules are processed most
// abandoned first so a storage gate reclaims the most valuable space
// before closing.
func (s *Sweeper) runDormant(ctx context.Context, log zerolog.Logger, settings GlobalSettings, ruleList []rules.Rule, result *Result) error {
	now := time.Now().UTC()
	var candidates []dormantCandidate

	for _, rule := range ruleList {
		if rule.DormantDays == nil {
			continue
		}
		seriesIDs, err := s.rules.SeriesForRule(ctx, rule.Name)
		if err != nil {
			log.Warn().Err(err).Str("rule", rule.Name).Msg("failed to load rule assignments, skipping rule")
			continue
		}
		for _, id := range seriesIDs {
			res, err := s.resolver.Resolve(ctx, id, "", false)
			if errors.Is(err, activity.ErrNotFound) {
				log.Debug().Int64("series_id", id).Msg("no activity date resolvable, skipping")
				continue
			}
			if err != nil {
				log.Warn().Err(err).Int64("series_id", id).Msg("activity resolution failed, skipping series")
				continue
			}
			age := now.Sub(res.Record.Timestamp).Hours() / 24
			if age > float64(*rule.DormantDays) {
				candidates = append(candidates, dormantCandidate{seriesID: id, rule: rule, ageDays: age})
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ageDays > candidates[j].ageDays
	})

	gated := settings.StorageMinGB != nil
	for _, c := range candidates {
		if gated && result.Dormant.FilesDeleted > 0 {
			status, err := s.gate.check(ctx, settings)
			if err != nil {
				return err
			}
			if !status.Allowed {
				result.Halted = true
				result.HaltReason = status.Reason
				log.Info().Str("reason", status.Reason).Msg("storage floor satisfied mid-phase, stopping")
				return nil
			}
		}

		files, err := s.lib.ListEpisodeFiles(ctx, c.seriesID)
		if err != nil {
			log.Warn().Err(err).Int64("series_id", c.seriesID).Msg("failed to list episode files, skipping series")
			continue
		}
		if len(files) == 0 {
			continue
		}

		dryRun := settings.DryRunMode || c.rule.DryRun
		deleted := 0
		for _, f := range files {
			if dryRun {
				continue
			}
			if err := s.lib.DeleteEpisodeFile(ctx, f.ID); err != nil {
				log.Warn().Err(err).Int64("series_id", c.seriesID).Int64("file_id", f.ID).Msg("failed to delete episode file")
				continue
			}
			deleted++
		}
		result.Dormant.Series++
		result.Dormant.FilesDeleted += deleted
		log.Info().
			Int64("series_id", c.seriesID).
			Str("rule", c.rule.Name).
			Float64("age_days", c.ageDays).
			Int("files", len(files)).
			Int("deleted", deleted).
			Bool("dry_run", dryRun).
			Msg("purged dormant series")
	}
	return nil
}

func (s *Sweeper) runGraceWatched(ctx context.Context, log zerolog.Logger, settings GlobalSettings, ruleList []rules.Rule, result *Result) error {
	return s.runGrace(ctx, log, settings, ruleList, &result.GraceWatched, true)
}

func (s *Sweeper) runGraceUnwatched(ctx context.Context, log zerolog.Logger, settings GlobalSettings, ruleList []rules.Rule, result *Result) error {
	return s.runGrace(ctx, log, settings, ruleList, &result.GraceUnwatched, false)
}

// runGrace deletes on-disk episodes on one side of the last-watched
// position for series inactive past the rule's grace threshold. watched
// selects episodes at or before the position; otherwise those strictly
// after it.
func (s *Sweeper) runGrace(ctx context.Context, log zerolog.Logger, settings GlobalSettings, ruleList []rules.Rule, phase *PhaseResult, watched bool) error {
	now := time.Now().UTC()

	for _, rule := range ruleList {
		var threshold *int
		if watched {
			threshold = rule.GraceWatchedDays
		} else {
			threshold = rule.GraceUnwatchedDays
		}
		if threshold == nil {
			continue
		}

		seriesIDs, err := s.rules.SeriesForRule(ctx, rule.Name)
		if err != nil {
			log.Warn().Err(err).Str("rule", rule.Name).Msg("failed to load rule assignments, skipping rule")
			continue
		}

		for _, id := range seriesIDs {
			res, err := s.resolver.Resolve(ctx, id, "", true)
			if errors.Is(err, activity.ErrNotFound) {
				log.Debug().Int64("series_id", id).Msg("no activity date resolvable, skipping")
				continue
			}
			if err != nil {
				log.Warn().Err(err).Int64("series_id", id).Msg("activity resolution failed, skipping series")
				continue
			}
			if !res.Record.Complete() {
				log.Debug().Int64("series_id", id).Msg("no watch position available, skipping")
				continue
			}
			if age := now.Sub(res.Record.Timestamp).Hours() / 24; age <= float64(*threshold) {
				continue
			}

			episodes, err := s.lib.ListEpisodes(ctx, id)
			if err != nil {
				log.Warn().Err(err).Int64("series_id", id).Msg("failed to list episodes, skipping series")
				continue
			}

			pos := retention.Position{Season: res.Record.Season, Episode: res.Record.Episode}
			before, after := retention.Watched(episodes, pos)
			targets := before
			if !watched {
				targets = after
			}
			if len(targets) == 0 {
				continue
			}

			dryRun := settings.DryRunMode || rule.DryRun
			deleted := 0
			for _, e := range targets {
				if e.EpisodeFileID == 0 {
					continue
				}
				if dryRun {
					continue
				}
				if err := s.lib.DeleteEpisodeFile(ctx, e.EpisodeFileID); err != nil {
					log.Warn().Err(err).
						Int64("series_id", id).
						Int("season", e.SeasonNumber).
						Int("episode", e.EpisodeNumber).
						Msg("failed to delete episode file")
					continue
				}
				deleted++
			}
			phase.Series++
			phase.FilesDeleted += deleted
			log.Info().
				Int64("series_id", id).
				Str("rule", rule.Name).
				Int("candidates", len(targets)).
				Int("deleted", deleted).
				Bool("dry_run", dryRun).
				Msg("cleaned series past grace period")
		}
	}
	return nil
}
