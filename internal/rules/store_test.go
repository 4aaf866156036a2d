package rules_test

import (
	"context"
	"errors"
	"testing"

	"github.com/showkeeper/showkeeper/internal/rules"
	"github.com/showkeeper/showkeeper/internal/testutil"
)

func newStore(t *testing.T) *rules.Store {
	t.Helper()
	return rules.NewStore(testutil.NewTestDB(t).Conn)
}

func sampleRule(name string) *rules.Rule {
	grace := 14
	return &rules.Rule{
		Name:             name,
		Get:              rules.Selector{Type: rules.SelectorEpisodes, Count: 3},
		Keep:             rules.Selector{Type: rules.SelectorSeasons, Count: 1},
		GraceWatchedDays: &grace,
		MonitorWatched:   true,
		Action:           rules.ActionSearch,
	}
}

func TestStoreSaveAndGet(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	rule := sampleRule("anime")
	if err := store.Save(ctx, rule); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(ctx, "anime")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Get != rule.Get || got.Keep != rule.Keep {
		t.Errorf("selectors round-tripped as get=%+v keep=%+v", got.Get, got.Keep)
	}
	if got.GraceWatchedDays == nil || *got.GraceWatchedDays != 14 {
		t.Errorf("GraceWatchedDays = %v, want 14", got.GraceWatchedDays)
	}
	if got.GraceUnwatchedDays != nil || got.DormantDays != nil {
		t.Errorf("unset thresholds should stay nil, got %v and %v", got.GraceUnwatchedDays, got.DormantDays)
	}
	if !got.MonitorWatched || got.Action != rules.ActionSearch {
		t.Errorf("flags round-tripped as monitorWatched=%v action=%q", got.MonitorWatched, got.Action)
	}
}

func TestStoreSaveUpdatesExisting(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	rule := sampleRule("default")
	if err := store.Save(ctx, rule); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	rule.Get = rules.Selector{Type: rules.SelectorAll}
	rule.DryRun = true
	if err := store.Save(ctx, rule); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	got, err := store.Get(ctx, "default")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Get.All() || !got.DryRun {
		t.Errorf("update not applied: get=%+v dryRun=%v", got.Get, got.DryRun)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 rule after upsert, got %d", len(all))
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := newStore(t)

	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, rules.ErrNotFound) {
		t.Errorf("Get of missing rule returned %v, want ErrNotFound", err)
	}
}

func TestStoreAssignments(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, sampleRule("a")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, sampleRule("b")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.AssignSeries(ctx, 1, "a"); err != nil {
		t.Fatalf("AssignSeries failed: %v", err)
	}
	if err := store.AssignSeries(ctx, 2, "a"); err != nil {
		t.Fatalf("AssignSeries failed: %v", err)
	}

	got, err := store.RuleForSeries(ctx, 1)
	if err != nil {
		t.Fatalf("RuleForSeries failed: %v", err)
	}
	if got.Name != "a" {
		t.Errorf("RuleForSeries = %q, want a", got.Name)
	}

	// Reassignment replaces the old binding.
	if err := store.AssignSeries(ctx, 1, "b"); err != nil {
		t.Fatalf("reassign failed: %v", err)
	}
	got, err = store.RuleForSeries(ctx, 1)
	if err != nil {
		t.Fatalf("RuleForSeries failed: %v", err)
	}
	if got.Name != "b" {
		t.Errorf("after reassign RuleForSeries = %q, want b", got.Name)
	}

	ids, err := store.SeriesForRule(ctx, "a")
	if err != nil {
		t.Fatalf("SeriesForRule failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != 2 {
		t.Errorf("SeriesForRule(a) = %v, want [2]", ids)
	}

	assignments, err := store.Assignments(ctx)
	if err != nil {
		t.Fatalf("Assignments failed: %v", err)
	}
	if len(assignments) != 2 || assignments[1] != "b" || assignments[2] != "a" {
		t.Errorf("Assignments = %v", assignments)
	}
}

func TestStoreDeleteCascadesAssignments(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, sampleRule("gone")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.AssignSeries(ctx, 7, "gone"); err != nil {
		t.Fatalf("AssignSeries failed: %v", err)
	}

	if err := store.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := store.RuleForSeries(ctx, 7); !errors.Is(err, rules.ErrNotFound) {
		t.Errorf("assignment survived rule deletion: %v", err)
	}
	if err := store.Delete(ctx, "gone"); !errors.Is(err, rules.ErrNotFound) {
		t.Errorf("second Delete returned %v, want ErrNotFound", err)
	}
}
