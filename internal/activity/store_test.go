package activity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/showkeeper/showkeeper/internal/activity"
	"github.com/showkeeper/showkeeper/internal/testutil"
)

func TestStorePutAndGet(t *testing.T) {
	store := activity.NewStore(testutil.NewTestDB(t).Conn)
	ctx := context.Background()

	when := time.Date(2026, 8, 1, 20, 30, 0, 0, time.UTC)
	err := store.Put(ctx, activity.SeriesActivity{
		SeriesID:     7,
		ActivityDate: when,
		LastSeason:   2,
		LastEpisode:  4,
	})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, 7)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.ActivityDate.Equal(when) {
		t.Errorf("ActivityDate = %v, want %v", got.ActivityDate, when)
	}
	if got.LastSeason != 2 || got.LastEpisode != 4 {
		t.Errorf("position = S%02dE%02d, want S02E04", got.LastSeason, got.LastEpisode)
	}
	if !got.Complete() {
		t.Error("record with position should be complete")
	}
}

func TestStorePutWithoutPosition(t *testing.T) {
	store := activity.NewStore(testutil.NewTestDB(t).Conn)
	ctx := context.Background()

	err := store.Put(ctx, activity.SeriesActivity{
		SeriesID:     9,
		ActivityDate: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, 9)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Complete() {
		t.Errorf("record without position reported complete: %+v", got)
	}
}

func TestStoreNewerWriteSupersedes(t *testing.T) {
	store := activity.NewStore(testutil.NewTestDB(t).Conn)
	ctx := context.Background()

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := store.Put(ctx, activity.SeriesActivity{SeriesID: 3, ActivityDate: old, LastSeason: 1, LastEpisode: 1}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	newer := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := store.Put(ctx, activity.SeriesActivity{SeriesID: 3, ActivityDate: newer, LastSeason: 1, LastEpisode: 8}); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	got, err := store.Get(ctx, 3)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.ActivityDate.Equal(newer) || got.LastEpisode != 8 {
		t.Errorf("got %+v, want newer record", got)
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := activity.NewStore(testutil.NewTestDB(t).Conn)

	if _, err := store.Get(context.Background(), 404); !errors.Is(err, activity.ErrNotFound) {
		t.Errorf("Get of missing series returned %v, want ErrNotFound", err)
	}
}
