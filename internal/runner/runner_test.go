package runner

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/seismonet/noisecc/internal/jobstore"
	"github.com/seismonet/noisecc/internal/types"
	"github.com/seismonet/noisecc/internal/waveform"
)

var day = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeSource builds synthetic one-day bundles for the requested stations.
type fakeSource struct {
	fs       float64
	duration float64 // seconds of data per channel
	comps    []string
	gapped   map[string]bool // stations whose channels get internal gaps
	empty    bool
}

func (f *fakeSource) GetBundle(_ context.Context, stations []string, components []string, _ string) (*waveform.Bundle, error) {
	if f.empty {
		return &waveform.Bundle{}, nil
	}

	comps := f.comps
	if comps == nil {
		comps = components
	}

	bundle := &waveform.Bundle{}
	for _, sta := range stations {
		for _, comp := range comps {
			id := waveform.ChannelID{Network: "BE", Station: sta[3:], Location: "00", Channel: "HH" + comp}
			bundle.Channels = append(bundle.Channels, waveform.Channel{
				ID:       id,
				Segments: f.segments(id),
			})
		}
	}
	return bundle, nil
}

func (f *fakeSource) segments(id waveform.ChannelID) []waveform.Segment {
	h := fnv.New64a()
	h.Write([]byte(id.String()))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	sample := func(i int) float64 {
		return rng.NormFloat64() + math.Sin(2*math.Pi*0.2*float64(i)/f.fs)
	}

	if f.gapped[id.Station] {
		// Short bursts with holes between them: every analysis window sees
		// more than one segment.
		var segs []waveform.Segment
		burst := 400.0
		hole := 100.0
		for t := 0.0; t < f.duration; t += burst + hole {
			n := int(burst * f.fs)
			data := make([]float64, n)
			for i := range data {
				data[i] = sample(i)
			}
			segs = append(segs, waveform.Segment{
				Start:      day.Add(time.Duration(t * float64(time.Second))),
				SampleRate: f.fs,
				Data:       data,
			})
		}
		return segs
	}

	n := int(f.duration * f.fs)
	data := make([]float64, n)
	for i := range data {
		data[i] = sample(i)
	}
	return []waveform.Segment{{Start: day, SampleRate: f.fs, Data: data}}
}

// memSink collects results in memory.
type memSink struct {
	mu      sync.Mutex
	stacks  map[types.CCFKey]*types.DailyStack
	windows []*types.WindowCorrelation
}

func newMemSink() *memSink {
	return &memSink{stacks: make(map[types.CCFKey]*types.DailyStack)}
}

func (m *memSink) StoreDailyStack(_ context.Context, s *types.DailyStack) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stacks[types.CCFKey{Pair: s.Pair, Components: s.Components, FilterID: s.FilterID}] = s
	return nil
}

func (m *memSink) StoreWindowCorrelation(_ context.Context, w *types.WindowCorrelation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windows = append(m.windows, w)
	return nil
}

func testConfig() *types.Config {
	return &types.Config{
		Database: "unused",
		Params: types.Params{
			SamplingRate:     2.0,
			AnalysisDuration: 86400,
			Overlap:          0,
			MaxLag:           50,
			CorrDuration:     1800,
			Windsorizing:     3,
			Whitening:        types.WhitenNone,
			KeepAll:          false,
			KeepDays:         true,
			StackMethod:      types.StackLinear,
			PWSTimegate:      10,
			PWSPower:         2,
			Components:       []string{"ZZ"},
			AutoCorr:         false,
		},
		Filters: []types.FilterBand{{ID: 1, Low: 0.1, High: 0.5}},
	}
}

func openJobStore(t *testing.T) *jobstore.Store {
	t.Helper()
	store, err := jobstore.Open(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("jobstore.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func enqueue(t *testing.T, store *jobstore.Store, pairs ...string) {
	t.Helper()
	ctx := context.Background()
	for _, pair := range pairs {
		if err := store.Enqueue(ctx, "2020-01-01", pair, jobstore.TypeCC, jobstore.StateTodo); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
}

func runToCompletion(t *testing.T, store *jobstore.Store, source BundleSource, sink Sink, cfg *types.Config) {
	t.Helper()
	r, err := New(store, source, sink, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestFullDayLinearStack(t *testing.T) {
	store := openJobStore(t)
	enqueue(t, store, "BE.STA1_BE.STA2")
	sink := newMemSink()
	source := &fakeSource{fs: 2.0, duration: 86400}

	runToCompletion(t, store, source, sink, testConfig())

	if len(sink.stacks) != 1 {
		t.Fatalf("got %d daily stacks, want 1", len(sink.stacks))
	}
	stack := sink.stacks[types.CCFKey{Pair: "BE.STA1_BE.STA2", Components: "ZZ", FilterID: 1}]
	if stack == nil {
		t.Fatal("missing the ZZ stack for the pair")
	}
	if stack.NCorr != 48 {
		t.Errorf("ncorr = %d, want 48 (one day of non-overlapping 1800s windows)", stack.NCorr)
	}
	// 2*ceil(maxlag/dt)+1 = 2*100+1
	if stack.SampleCount != 201 || len(stack.Data) != 201 {
		t.Errorf("sample count = %d (len %d), want 201", stack.SampleCount, len(stack.Data))
	}
	if stack.Day != "2020-01-01" {
		t.Errorf("stack day = %s, want 2020-01-01", stack.Day)
	}

	ctx := context.Background()
	counts, err := store.CountByState(ctx, jobstore.TypeCC)
	if err != nil {
		t.Fatalf("CountByState: %v", err)
	}
	if counts[jobstore.StateDone] != 1 || counts[jobstore.StateTodo] != 0 {
		t.Errorf("CC job counts = %v, want the job done", counts)
	}
	stackCounts, err := store.CountByState(ctx, jobstore.TypeSTACK)
	if err != nil {
		t.Fatalf("CountByState: %v", err)
	}
	if stackCounts[jobstore.StateTodo] != 1 {
		t.Errorf("STACK job counts = %v, want one todo follow-up", stackCounts)
	}
}

func TestGappedChannelExcluded(t *testing.T) {
	store := openJobStore(t)
	enqueue(t, store, "BE.STA1_BE.STA2", "BE.STA1_BE.STA3", "BE.STA2_BE.STA3")
	sink := newMemSink()
	source := &fakeSource{fs: 2.0, duration: 86400, gapped: map[string]bool{"STA3": true}}

	runToCompletion(t, store, source, sink, testConfig())

	if len(sink.stacks) != 1 {
		t.Fatalf("got %d daily stacks, want only the STA1-STA2 stack", len(sink.stacks))
	}
	if sink.stacks[types.CCFKey{Pair: "BE.STA1_BE.STA2", Components: "ZZ", FilterID: 1}] == nil {
		t.Fatal("missing the stack for the two intact stations")
	}

	// All three CC jobs finish; pairs without data simply persist nothing.
	counts, err := store.CountByState(context.Background(), jobstore.TypeCC)
	if err != nil {
		t.Fatalf("CountByState: %v", err)
	}
	if counts[jobstore.StateDone] != 3 {
		t.Errorf("CC job counts = %v, want all 3 done", counts)
	}
}

func TestWhiteningComponentsDifferent(t *testing.T) {
	store := openJobStore(t)
	enqueue(t, store, "BE.STA1_BE.STA2")
	sink := newMemSink()
	// Short day keeps the whitened-path test fast: 4 windows.
	source := &fakeSource{fs: 2.0, duration: 7200, comps: []string{"Z", "N"}}

	cfg := testConfig()
	cfg.Params.AnalysisDuration = 7200
	cfg.Params.Whitening = types.WhitenComponentsDifferent
	cfg.Params.Components = []string{"ZZ", "ZN"}

	runToCompletion(t, store, source, sink, cfg)

	zz := sink.stacks[types.CCFKey{Pair: "BE.STA1_BE.STA2", Components: "ZZ", FilterID: 1}]
	if zz == nil {
		t.Fatal("missing ZZ stack (whitening skipped for same components)")
	}
	var zn *types.DailyStack
	for key, s := range sink.stacks {
		if key.Components == "ZN" {
			zn = s
		}
	}
	if zn == nil {
		t.Fatal("missing ZN stack (whitening applied to both channels)")
	}
	if zz.NCorr != 4 || zn.NCorr != 4 {
		t.Errorf("ncorr = %d (ZZ), %d (ZN), want 4", zz.NCorr, zn.NCorr)
	}
}

func TestEmptyBundleMarksJobsDone(t *testing.T) {
	store := openJobStore(t)
	enqueue(t, store, "BE.STA1_BE.STA2", "BE.STA1_BE.STA3")
	sink := newMemSink()
	source := &fakeSource{empty: true}

	runToCompletion(t, store, source, sink, testConfig())

	if len(sink.stacks) != 0 || len(sink.windows) != 0 {
		t.Fatalf("got %d stacks and %d windows from an empty bundle, want none",
			len(sink.stacks), len(sink.windows))
	}

	ctx := context.Background()
	counts, err := store.CountByState(ctx, jobstore.TypeCC)
	if err != nil {
		t.Fatalf("CountByState: %v", err)
	}
	if counts[jobstore.StateDone] != 2 || counts[jobstore.StateTodo] != 0 {
		t.Errorf("CC job counts = %v, want both done", counts)
	}
	// No data means no STACK follow-up either.
	stackCounts, err := store.CountByState(ctx, jobstore.TypeSTACK)
	if err != nil {
		t.Fatalf("CountByState: %v", err)
	}
	if stackCounts[jobstore.StateTodo] != 0 {
		t.Errorf("STACK job counts = %v, want none", stackCounts)
	}
}

func TestKeepAllStoresWindowCorrelations(t *testing.T) {
	store := openJobStore(t)
	enqueue(t, store, "BE.STA1_BE.STA2")
	sink := newMemSink()
	source := &fakeSource{fs: 2.0, duration: 7200}

	cfg := testConfig()
	cfg.Params.AnalysisDuration = 7200
	cfg.Params.KeepAll = true

	runToCompletion(t, store, source, sink, cfg)

	if len(sink.windows) != 4 {
		t.Fatalf("got %d window correlations, want 4", len(sink.windows))
	}
	for _, w := range sink.windows {
		if len(w.Data) != 201 {
			t.Errorf("window CCF length %d, want 201", len(w.Data))
		}
	}
}

func TestNewRequiresFilters(t *testing.T) {
	store := openJobStore(t)
	cfg := testConfig()
	cfg.Filters = nil
	if _, err := New(store, &fakeSource{}, newMemSink(), cfg); err == nil {
		t.Fatal("New accepted a configuration without filter bands")
	}
}

func TestExpandComponents(t *testing.T) {
	got := expandComponents([]string{"ZZ", "RR", "TT"})
	want := map[string]bool{"Z": true, "E": true, "N": true}
	if len(got) != len(want) {
		t.Fatalf("expandComponents = %v, want Z, E, N", got)
	}
	for _, c := range got {
		if !want[c] {
			t.Errorf("unexpected component %q", c)
		}
	}
}
