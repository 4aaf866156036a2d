package cleanup

import (
	"context"
	"testing"

	"github.com/showkeeper/showkeeper/internal/library"
	"github.com/showkeeper/showkeeper/internal/library/librarytest"
	"github.com/showkeeper/showkeeper/internal/testutil"
)

func newGate(t *testing.T, free float64, floor *float64) *Gate {
	t.Helper()

	tdb := testutil.NewTestDB(t)
	settings := NewSettings(tdb.Conn)
	cfg := defaultSettings()
	cfg.StorageMinGB = floor
	if err := settings.Save(context.Background(), cfg); err != nil {
		t.Fatalf("Failed to save settings: %v", err)
	}

	fake := &librarytest.Fake{
		DiskSpaceFunc: func(ctx context.Context) (*library.DiskSpace, error) {
			return &library.DiskSpace{Path: "/tv", TotalGB: 1000, FreeGB: free}, nil
		},
	}
	return NewGate(fake, settings)
}

func TestGateNoFloorAlwaysAllowed(t *testing.T) {
	gate := newGate(t, 500, nil)

	status, err := gate.Check(context.Background())
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !status.Allowed {
		t.Errorf("gate closed with no floor configured: %+v", status)
	}
	if status.ThresholdGB != nil {
		t.Errorf("ThresholdGB = %v, want nil", status.ThresholdGB)
	}
}

func TestGateOpenBelowFloor(t *testing.T) {
	floor := 100.0
	gate := newGate(t, 80, &floor)

	status, err := gate.Check(context.Background())
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !status.Allowed {
		t.Errorf("gate should be open at 80 GB free with a 100 GB floor: %+v", status)
	}
}

func TestGateClosedAtFloor(t *testing.T) {
	floor := 100.0
	gate := newGate(t, 120, &floor)

	status, err := gate.Check(context.Background())
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if status.Allowed {
		t.Errorf("gate should be closed at 120 GB free with a 100 GB floor: %+v", status)
	}
	if status.FreeGB != 120 {
		t.Errorf("FreeGB = %v, want 120", status.FreeGB)
	}
}
