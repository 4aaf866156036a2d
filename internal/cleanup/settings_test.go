package cleanup

import (
	"context"
	"testing"

	"github.com/showkeeper/showkeeper/internal/testutil"
)

func TestSettingsDefaultsPersistedOnFirstLoad(t *testing.T) {
	settings := NewSettings(testutil.NewTestDB(t).Conn)
	ctx := context.Background()

	got, err := settings.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.StorageMinGB != nil || got.DryRunMode || got.CleanupIntervalHours != 6 {
		t.Errorf("defaults = %+v", got)
	}

	// The defaults must now exist as a row, not just in memory.
	var count int
	db := settings.db
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM settings WHERE key = ?`, settingsKey).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("settings row count = %d, want 1", count)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	settings := NewSettings(testutil.NewTestDB(t).Conn)
	ctx := context.Background()

	floor := 250.0
	err := settings.Save(ctx, GlobalSettings{
		StorageMinGB:         &floor,
		DryRunMode:           true,
		CleanupIntervalHours: 12,
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := settings.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.StorageMinGB == nil || *got.StorageMinGB != 250 {
		t.Errorf("StorageMinGB = %v, want 250", got.StorageMinGB)
	}
	if !got.DryRunMode || got.CleanupIntervalHours != 12 {
		t.Errorf("got %+v", got)
	}
}
