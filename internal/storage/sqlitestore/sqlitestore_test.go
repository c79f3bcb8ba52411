package sqlitestore

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/seismonet/noisecc/internal/types"
)

func TestStoreAndLoadDailyStack(t *testing.T) {
	ctx := context.Background()
	store, err := New(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer store.Close()

	stack := &types.DailyStack{
		Pair:       "BE.STA1_BE.STA2",
		Components: "ZZ",
		FilterID:   1,
		Day:        "2020-01-01",
		SampleRate: 2.0,
		NCorr:      48,
		Data:       []float64{0.1, -0.5, 1.0, -0.5, 0.1},
	}
	if err := store.StoreDailyStack(ctx, stack); err != nil {
		t.Fatalf("StoreDailyStack: %v", err)
	}

	got, err := store.GetDailyStack(ctx, stack.Pair, stack.Components, stack.FilterID, stack.Day)
	if err != nil {
		t.Fatalf("GetDailyStack: %v", err)
	}
	if got.NCorr != stack.NCorr || got.SampleCount != len(stack.Data) {
		t.Errorf("got ncorr=%d count=%d, want ncorr=%d count=%d",
			got.NCorr, got.SampleCount, stack.NCorr, len(stack.Data))
	}
	for i := range stack.Data {
		if math.Abs(got.Data[i]-stack.Data[i]) > 1e-15 {
			t.Fatalf("data[%d] = %v, want %v", i, got.Data[i], stack.Data[i])
		}
	}

	// Re-storing the same key must upsert, not fail.
	stack.NCorr = 47
	if err := store.StoreDailyStack(ctx, stack); err != nil {
		t.Fatalf("StoreDailyStack upsert: %v", err)
	}
	got, err = store.GetDailyStack(ctx, stack.Pair, stack.Components, stack.FilterID, stack.Day)
	if err != nil {
		t.Fatalf("GetDailyStack: %v", err)
	}
	if got.NCorr != 47 {
		t.Errorf("ncorr after upsert = %d, want 47", got.NCorr)
	}
}

func TestStoreWindowCorrelation(t *testing.T) {
	ctx := context.Background()
	store, err := New(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer store.Close()

	w := &types.WindowCorrelation{
		Pair:        "BE.STA1_BE.STA2",
		Components:  "ZZ",
		FilterID:    1,
		Day:         "2020-01-01",
		WindowStart: time.Date(2020, 1, 1, 0, 30, 0, 0, time.UTC),
		SampleRate:  2.0,
		Data:        []float64{1, 2, 3},
	}
	if err := store.StoreWindowCorrelation(ctx, w); err != nil {
		t.Fatalf("StoreWindowCorrelation: %v", err)
	}
	if err := store.StoreWindowCorrelation(ctx, w); err != nil {
		t.Fatalf("StoreWindowCorrelation upsert: %v", err)
	}
}
