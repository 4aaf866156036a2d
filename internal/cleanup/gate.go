package cleanup

import (
	"context"
	"fmt"

	"github.com/showkeeper/showkeeper/internal/library"
)

// GateStatus is the result of a storage gate check.
type GateStatus struct {
	// Allowed reports whether sweep deletions may proceed.
	Allowed bool `json:"allowed"`
	// ThresholdGB is the configured floor, nil when no gate is set.
	ThresholdGB *float64 `json:"threshold_gb,omitempty"`
	// FreeGB is the current free space, zero when no gate is set.
	FreeGB float64 `json:"free_gb,omitempty"`
	Reason string  `json:"reason"`
}

// Gate compares free disk space against the configured floor. With no
// floor, cleanup is always allowed. With a floor, cleanup runs only
// while free space is still below it; once the floor is satisfied the
// gate closes and the sweep stops reclaiming space.
type Gate struct {
	lib      library.Client
	settings *Settings
}

// NewGate creates a storage gate.
func NewGate(lib library.Client, settings *Settings) *Gate {
	return &Gate{lib: lib, settings: settings}
}

// Check evaluates the gate. The comparison is instantaneous, with no
// hysteresis: callers re-check whenever deletions may have changed the
// answer.
func (g *Gate) Check(ctx context.Context) (GateStatus, error) {
	settings, err := g.settings.Load(ctx)
	if err != nil {
		return GateStatus{}, err
	}
	return g.check(ctx, settings)
}

func (g *Gate) check(ctx context.Context, settings GlobalSettings) (GateStatus, error) {
	if settings.StorageMinGB == nil {
		return GateStatus{
			Allowed: true,
			Reason:  "no storage floor configured, cleanup always allowed",
		}, nil
	}

	disk, err := g.lib.DiskSpace(ctx)
	if err != nil {
		return GateStatus{}, fmt.Errorf("failed to check disk space: %w", err)
	}

	threshold := *settings.StorageMinGB
	status := GateStatus{ThresholdGB: &threshold, FreeGB: disk.FreeGB}
	if disk.FreeGB < threshold {
		status.Allowed = true
		status.Reason = fmt.Sprintf("%.1f GB free is below the %.1f GB floor", disk.FreeGB, threshold)
	} else {
		status.Reason = fmt.Sprintf("%.1f GB free satisfies the %.1f GB floor", disk.FreeGB, threshold)
	}
	return status, nil
}
