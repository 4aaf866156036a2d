package intake

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/showkeeper/showkeeper/internal/activity"
)

// PollerConfig controls the interval session poller.
type PollerConfig struct {
	// Interval between session sweeps.
	Interval time.Duration
	// TriggerPercent is the playback progress at which a session counts
	// as a watch.
	TriggerPercent float64
}

// Poller periodically lists live playback sessions and feeds sessions
// past the trigger percentage into watch processing. Paused sessions
// are skipped; the dedup window keeps repeated polls of the same
// episode from double-processing.
type Poller struct {
	source    activity.SessionSource
	processor *Processor
	dedup     *Deduper
	cfg       PollerConfig
	logger    zerolog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewPoller creates a session poller.
func NewPoller(source activity.SessionSource, processor *Processor, dedup *Deduper, cfg PollerConfig, logger zerolog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.TriggerPercent <= 0 {
		cfg.TriggerPercent = 50
	}
	return &Poller{
		source:    source,
		processor: processor,
		dedup:     dedup,
		cfg:       cfg,
		logger:    logger.With().Str("component", "poller").Logger(),
	}
}

// Start launches the polling loop. Calling Start on a running poller is
// a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(p.stop, p.done)
	p.logger.Info().
		Dur("interval", p.cfg.Interval).
		Float64("trigger_percent", p.cfg.TriggerPercent).
		Msg("session poller started")
}

// Stop signals the loop to exit and waits for the current iteration to
// finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stop, done := p.stop, p.done
	p.mu.Unlock()

	close(stop)
	<-done
	p.logger.Info().Msg("session poller stopped")
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.poll(context.Background())
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	sessions, err := p.source.ActiveSessions(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("failed to list active sessions")
		return
	}

	for _, s := range sessions {
		if s.Paused {
			continue
		}
		if s.ProgressPercent < p.cfg.TriggerPercent {
			continue
		}
		if err := p.processor.HandleWatch(ctx, s.Series, s.Season, s.Episode); err != nil {
			p.logger.Error().Err(err).
				Str("series", s.Series).
				Int("season", s.Season).
				Int("episode", s.Episode).
				Msg("failed to process polled watch event")
		}
	}

	if removed := p.dedup.Evict(); removed > 0 {
		p.logger.Debug().Int("removed", removed).Msg("evicted stale dedup entries")
	}
}
