package cleanup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/showkeeper/showkeeper/internal/activity"
	"github.com/showkeeper/showkeeper/internal/library"
	"github.com/showkeeper/showkeeper/internal/library/librarytest"
	"github.com/showkeeper/showkeeper/internal/rules"
	"github.com/showkeeper/showkeeper/internal/testutil"
)

type sweepFixture struct {
	sweeper   *Sweeper
	fake      *librarytest.Fake
	rules     *rules.Store
	activity  *activity.Store
	settings  *Settings
	episodes  map[int64][]library.Episode
	files     map[int64][]library.EpisodeFile
	mu        sync.Mutex
	freeSpace float64
	freedPer  float64
}

// newSweepFixture builds a sweeper over in-memory library data. Each
// deletion grows the reported free space by freedPer, so tests can
// drive the storage gate.
func newSweepFixture(t *testing.T, freeSpace, freedPer float64) *sweepFixture {
	t.Helper()

	tdb := testutil.NewTestDB(t)
	f := &sweepFixture{
		rules:     rules.NewStore(tdb.Conn),
		activity:  activity.NewStore(tdb.Conn),
		settings:  NewSettings(tdb.Conn),
		episodes:  make(map[int64][]library.Episode),
		files:     make(map[int64][]library.EpisodeFile),
		freeSpace: freeSpace,
		freedPer:  freedPer,
	}

	f.fake = &librarytest.Fake{
		ListEpisodesFunc: func(ctx context.Context, seriesID int64) ([]library.Episode, error) {
			return f.episodes[seriesID], nil
		},
		ListEpisodeFilesFunc: func(ctx context.Context, seriesID int64) ([]library.EpisodeFile, error) {
			return f.files[seriesID], nil
		},
		DiskSpaceFunc: func(ctx context.Context) (*library.DiskSpace, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			return &library.DiskSpace{Path: "/tv", TotalGB: 1000, FreeGB: f.freeSpace}, nil
		},
		DeleteFunc: func(ctx context.Context, fileID int64) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.freeSpace += f.freedPer
			return nil
		},
	}

	resolver := activity.NewResolver(f.activity, f.fake, nil, tdb.Logger)
	gate := NewGate(f.fake, f.settings)
	f.sweeper = NewSweeper(f.fake, f.rules, resolver, f.settings, gate, tdb.Logger)
	return f
}

// addSeries registers a series with count on-disk episodes and an
// activity record ageDays old at the given position.
func (f *sweepFixture) addSeries(t *testing.T, seriesID int64, ruleName string, count int, ageDays int, season, episode int) {
	t.Helper()
	ctx := context.Background()

	var eps []library.Episode
	var files []library.EpisodeFile
	for i := 1; i <= count; i++ {
		fileID := seriesID*100 + int64(i)
		eps = append(eps, library.Episode{
			ID:            seriesID*10 + int64(i),
			SeriesID:      seriesID,
			SeasonNumber:  1,
			EpisodeNumber: i,
			HasFile:       true,
			EpisodeFileID: fileID,
		})
		files = append(files, library.EpisodeFile{ID: fileID, SeriesID: seriesID, SeasonNumber: 1})
	}
	f.episodes[seriesID] = eps
	f.files[seriesID] = files

	if err := f.rules.AssignSeries(ctx, seriesID, ruleName); err != nil {
		t.Fatalf("AssignSeries failed: %v", err)
	}
	err := f.activity.Put(ctx, activity.SeriesActivity{
		SeriesID:     seriesID,
		ActivityDate: time.Now().UTC().Add(-time.Duration(ageDays) * 24 * time.Hour),
		LastSeason:   season,
		LastEpisode:  episode,
	})
	if err != nil {
		t.Fatalf("activity Put failed: %v", err)
	}
}

func (f *sweepFixture) saveRule(t *testing.T, rule *rules.Rule) {
	t.Helper()
	if err := f.rules.Save(context.Background(), rule); err != nil {
		t.Fatalf("Save rule failed: %v", err)
	}
}

func dormantRule(name string, days int) *rules.Rule {
	return &rules.Rule{
		Name:        name,
		Get:         rules.Selector{Type: rules.SelectorEpisodes, Count: 1},
		Keep:        rules.Selector{Type: rules.SelectorAll},
		DormantDays: &days,
		Action:      rules.ActionMonitor,
	}
}

func TestSweepDormantPurgesAbandonedSeries(t *testing.T) {
	f := newSweepFixture(t, 500, 0)
	f.saveRule(t, dormantRule("purge", 30))
	f.addSeries(t, 1, "purge", 3, 90, 1, 2) // dormant
	f.addSeries(t, 2, "purge", 3, 5, 1, 2)  // recently active

	result, err := f.sweeper.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Dormant.Series != 1 || result.Dormant.FilesDeleted != 3 {
		t.Errorf("dormant phase = %+v, want 1 series and 3 files", result.Dormant)
	}
	deleted := f.fake.DeletedFiles()
	if len(deleted) != 3 {
		t.Fatalf("deleted %d files, want 3", len(deleted))
	}
	for _, id := range deleted {
		if id < 100 || id > 103 {
			t.Errorf("deleted file %d belongs to the active series", id)
		}
	}
}

func TestSweepGateClosedSkipsEverything(t *testing.T) {
	f := newSweepFixture(t, 500, 0)
	floor := 100.0
	cfg := defaultSettings()
	cfg.StorageMinGB = &floor
	if err := f.settings.Save(context.Background(), cfg); err != nil {
		t.Fatalf("Save settings failed: %v", err)
	}

	f.saveRule(t, dormantRule("purge", 30))
	f.addSeries(t, 1, "purge", 3, 90, 1, 2)

	result, err := f.sweeper.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Halted {
		t.Error("sweep should halt when free space already satisfies the floor")
	}
	if got := f.fake.DeletedFiles(); len(got) != 0 {
		t.Errorf("deleted %v with a closed gate", got)
	}
}

func TestSweepDormantProcessesMostAbandonedFirst(t *testing.T) {
	// 60 GB free, 100 GB floor, 30 GB reclaimed per file: the gate
	// closes after the second deletion, so only the older series is
	// purged.
	f := newSweepFixture(t, 60, 30)
	floor := 100.0
	cfg := defaultSettings()
	cfg.StorageMinGB = &floor
	if err := f.settings.Save(context.Background(), cfg); err != nil {
		t.Fatalf("Save settings failed: %v", err)
	}

	f.saveRule(t, dormantRule("purge", 30))
	f.addSeries(t, 1, "purge", 2, 60, 1, 1)
	f.addSeries(t, 2, "purge", 2, 300, 1, 1) // far more abandoned

	result, err := f.sweeper.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	deleted := f.fake.DeletedFiles()
	if len(deleted) != 2 {
		t.Fatalf("deleted %v, want exactly the older series' 2 files", deleted)
	}
	for _, id := range deleted {
		if id < 200 {
			t.Errorf("file %d from the newer series deleted before the older one finished", id)
		}
	}
	if !result.Halted {
		t.Error("sweep should report halting once the floor is satisfied")
	}
}

func TestSweepGracePhasesAreDisjoint(t *testing.T) {
	f := newSweepFixture(t, 500, 0)
	graceW, graceU := 7, 14
	f.saveRule(t, &rules.Rule{
		Name:               "grace",
		Get:                rules.Selector{Type: rules.SelectorEpisodes, Count: 1},
		Keep:               rules.Selector{Type: rules.SelectorAll},
		GraceWatchedDays:   &graceW,
		GraceUnwatchedDays: &graceU,
		Action:             rules.ActionMonitor,
	})
	// 6 episodes, watched through S1E3, inactive for 30 days.
	f.addSeries(t, 1, "grace", 6, 30, 1, 3)

	result, err := f.sweeper.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.GraceWatched.FilesDeleted != 3 {
		t.Errorf("grace-watched deleted %d, want 3", result.GraceWatched.FilesDeleted)
	}
	if result.GraceUnwatched.FilesDeleted != 3 {
		t.Errorf("grace-unwatched deleted %d, want 3", result.GraceUnwatched.FilesDeleted)
	}

	// Together the phases cover every on-disk file exactly once.
	deleted := f.fake.DeletedFiles()
	seen := make(map[int64]bool)
	for _, id := range deleted {
		if seen[id] {
			t.Errorf("file %d deleted twice", id)
		}
		seen[id] = true
	}
	if len(seen) != 6 {
		t.Errorf("deleted %d distinct files, want 6", len(seen))
	}
}

func TestSweepSkipsSeriesWithoutActivity(t *testing.T) {
	f := newSweepFixture(t, 500, 0)
	f.saveRule(t, dormantRule("purge", 30))

	// Assigned series with files but no resolvable activity date.
	f.episodes[1] = []library.Episode{{ID: 11, SeriesID: 1, SeasonNumber: 1, EpisodeNumber: 1, HasFile: true, EpisodeFileID: 101}}
	f.files[1] = []library.EpisodeFile{{ID: 101, SeriesID: 1}}
	if err := f.rules.AssignSeries(context.Background(), 1, "purge"); err != nil {
		t.Fatalf("AssignSeries failed: %v", err)
	}

	result, err := f.sweeper.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Dormant.Series != 0 {
		t.Errorf("dormant phase touched %d series, want 0", result.Dormant.Series)
	}
	if got := f.fake.DeletedFiles(); len(got) != 0 {
		t.Errorf("deleted %v for a series with no activity", got)
	}
}

// failingAssignments errors the assignment lookup for one rule name.
type failingAssignments struct {
	*rules.Store
	ruleName string
}

func (f *failingAssignments) SeriesForRule(ctx context.Context, name string) ([]int64, error) {
	if name == f.ruleName {
		return nil, context.DeadlineExceeded
	}
	return f.Store.SeriesForRule(ctx, name)
}

func TestSweepSkipsRuleWithBrokenAssignments(t *testing.T) {
	f := newSweepFixture(t, 500, 0)
	f.saveRule(t, dormantRule("broken", 30))
	f.saveRule(t, dormantRule("purge", 30))
	f.addSeries(t, 1, "purge", 3, 90, 1, 2)

	log := testutil.NewTestLogger(t)
	resolver := activity.NewResolver(f.activity, f.fake, nil, log)
	gate := NewGate(f.fake, f.settings)
	sweeper := NewSweeper(f.fake, &failingAssignments{Store: f.rules, ruleName: "broken"}, resolver, f.settings, gate, log)

	result, err := sweeper.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Halted {
		t.Error("sweep should not halt on a per-rule assignment failure")
	}
	if result.Dormant.Series != 1 || result.Dormant.FilesDeleted != 3 {
		t.Errorf("dormant phase = %+v, want the healthy rule still processed", result.Dormant)
	}
}

func TestSweepDryRunDeletesNothing(t *testing.T) {
	f := newSweepFixture(t, 500, 0)
	cfg := defaultSettings()
	cfg.DryRunMode = true
	if err := f.settings.Save(context.Background(), cfg); err != nil {
		t.Fatalf("Save settings failed: %v", err)
	}

	f.saveRule(t, dormantRule("purge", 30))
	f.addSeries(t, 1, "purge", 3, 90, 1, 2)

	result, err := f.sweeper.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.DryRun {
		t.Error("result should report dry-run mode")
	}
	if result.Dormant.Series != 1 {
		t.Errorf("dry run should still evaluate candidates, got %+v", result.Dormant)
	}
	if got := f.fake.DeletedFiles(); len(got) != 0 {
		t.Errorf("dry run deleted %v", got)
	}
}
