package intake

import (
	"context"
	"sync"
	"testing"

	"github.com/showkeeper/showkeeper/internal/activity"
	"github.com/showkeeper/showkeeper/internal/library"
	"github.com/showkeeper/showkeeper/internal/library/librarytest"
	"github.com/showkeeper/showkeeper/internal/retention"
	"github.com/showkeeper/showkeeper/internal/rules"
	"github.com/showkeeper/showkeeper/internal/testutil"
)

type fakeSessionSource struct {
	mu       sync.Mutex
	sessions []activity.Session
}

func (f *fakeSessionSource) ActiveSessions(ctx context.Context) ([]activity.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]activity.Session(nil), f.sessions...), nil
}

// newTestProcessor wires a processor over a ten-episode series with a
// simple rule, returning the fake library for assertions.
func newTestProcessor(t *testing.T) (*Processor, *Deduper, *librarytest.Fake) {
	t.Helper()

	tdb := testutil.NewTestDB(t)
	fake := &librarytest.Fake{
		ListSeriesFunc: func(ctx context.Context) ([]library.Series, error) {
			return []library.Series{{ID: 42, Title: "Slow Burn"}}, nil
		},
		ListEpisodesFunc: func(ctx context.Context, seriesID int64) ([]library.Episode, error) {
			eps := make([]library.Episode, 0, 10)
			for i := 1; i <= 10; i++ {
				eps = append(eps, library.Episode{
					ID: int64(i), SeriesID: 42, SeasonNumber: 1, EpisodeNumber: i,
					HasFile: true, EpisodeFileID: int64(100 + i),
				})
			}
			return eps, nil
		},
	}

	ruleStore := rules.NewStore(tdb.Conn)
	activityStore := activity.NewStore(tdb.Conn)
	ctx := context.Background()
	rule := &rules.Rule{
		Name:   "burn",
		Get:    rules.Selector{Type: rules.SelectorEpisodes, Count: 2},
		Keep:   rules.Selector{Type: rules.SelectorAll},
		Action: rules.ActionMonitor,
	}
	if err := ruleStore.Save(ctx, rule); err != nil {
		t.Fatalf("Save rule failed: %v", err)
	}
	if err := ruleStore.AssignSeries(ctx, 42, "burn"); err != nil {
		t.Fatalf("AssignSeries failed: %v", err)
	}

	svc := retention.NewService(fake, ruleStore, activityStore, nil, tdb.Logger)
	dedup := NewDeduper()
	matcher := NewMatcher(fake, nil, tdb.Logger)
	return NewProcessor(matcher, dedup, svc, tdb.Logger), dedup, fake
}

func TestPollerTriggersAtThreshold(t *testing.T) {
	processor, dedup, fake := newTestProcessor(t)
	source := &fakeSessionSource{sessions: []activity.Session{
		{ID: "a", Series: "Slow Burn", Season: 1, Episode: 3, ProgressPercent: 75},
		{ID: "b", Series: "Slow Burn", Season: 1, Episode: 5, ProgressPercent: 20},
		{ID: "c", Series: "Slow Burn", Season: 1, Episode: 7, ProgressPercent: 90, Paused: true},
	}}

	p := NewPoller(source, processor, dedup, PollerConfig{TriggerPercent: 50}, testutil.NewTestLogger(t))
	p.poll(context.Background())

	// Only session "a" crosses the trigger unpaused: the rule monitors
	// the next two episodes after S1E3.
	if got := fake.Monitored(); len(got) != 2 || got[0] != 4 || got[1] != 5 {
		t.Errorf("monitored %v, want [4 5]", got)
	}
}

func TestPollerRepeatPollIsSuppressed(t *testing.T) {
	processor, dedup, fake := newTestProcessor(t)
	source := &fakeSessionSource{sessions: []activity.Session{
		{ID: "a", Series: "Slow Burn", Season: 1, Episode: 3, ProgressPercent: 60},
	}}

	p := NewPoller(source, processor, dedup, PollerConfig{TriggerPercent: 50}, testutil.NewTestLogger(t))
	p.poll(context.Background())
	p.poll(context.Background())

	if got := fake.Monitored(); len(got) != 2 {
		t.Errorf("second poll re-processed the same episode: monitored %v", got)
	}
}

func TestPollerStartStop(t *testing.T) {
	processor, dedup, _ := newTestProcessor(t)
	source := &fakeSessionSource{}

	p := NewPoller(source, processor, dedup, PollerConfig{}, testutil.NewTestLogger(t))
	p.Start()
	if !p.Running() {
		t.Error("poller should report running after Start")
	}
	p.Start() // no-op

	p.Stop()
	if p.Running() {
		t.Error("poller should report stopped after Stop")
	}
	p.Stop() // no-op
}
