// Package runner implements the per-day cross-correlation job loop.
package runner

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seismonet/noisecc/internal/cc"
	"github.com/seismonet/noisecc/internal/jobstore"
	"github.com/seismonet/noisecc/internal/log"
	"github.com/seismonet/noisecc/internal/types"
	"github.com/seismonet/noisecc/internal/waveform"
)

// BundleSource produces one-day multichannel waveform bundles. An empty
// bundle means no data for the day, which is not an error.
type BundleSource interface {
	GetBundle(ctx context.Context, stations []string, components []string, day string) (*waveform.Bundle, error)
}

// Sink receives computed results. *storage.Manager satisfies it.
type Sink interface {
	StoreDailyStack(ctx context.Context, s *types.DailyStack) error
	StoreWindowCorrelation(ctx context.Context, w *types.WindowCorrelation) error
}

// Runner claims day batches of CC jobs from the job store and processes
// them. Multiple Runner instances (in separate processes) may run
// concurrently; the claim operation is the sole serialization point.
type Runner struct {
	id      string
	store   *jobstore.Store
	source  BundleSource
	sink    Sink
	params  *types.Params
	filters []types.FilterBand
	logger  *zap.SugaredLogger
}

// New creates a Runner. It fails when no filter bands are configured: that
// is a configuration error and fatal for the whole run.
func New(store *jobstore.Store, source BundleSource, sink Sink, cfg *types.Config) (*Runner, error) {
	if len(cfg.Filters) == 0 {
		return nil, fmt.Errorf("no filter bands defined")
	}
	id := uuid.NewString()
	return &Runner{
		id:      id,
		store:   store,
		source:  source,
		sink:    sink,
		params:  &cfg.Params,
		filters: cfg.Filters,
		logger:  log.GetSugaredLogger().With("worker", id),
	}, nil
}

// Run processes day batches until no Todo CC jobs remain or the context is
// cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Infof("will compute %v", r.params.Components)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pending, err := r.store.HasPending(ctx, jobstore.TypeCC)
		if err != nil {
			return err
		}
		if !pending {
			break
		}

		jobs, err := r.store.ClaimNextDay(ctx, jobstore.TypeCC, r.id)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			// Another worker won the day between the pending check and
			// the claim.
			continue
		}

		if err := r.processDay(ctx, jobs); err != nil {
			return err
		}
	}

	r.logger.Info("no CC jobs left to do")
	return nil
}

// windowCCF is one window's correlation for a result key.
type windowCCF struct {
	start time.Time
	data  []float64
}

func (r *Runner) processDay(ctx context.Context, jobs []jobstore.Job) error {
	day := jobs[0].Day
	stations := stationsOf(jobs)
	components := expandComponents(r.params.Components)

	r.logger.Infof("new CC job: %s (%d pairs with %d stations)", day, len(jobs), len(stations))
	jobStart := time.Now()

	bundle, err := r.source.GetBundle(ctx, stations, components, day)
	if err != nil {
		return fmt.Errorf("get bundle for %s: %w", day, err)
	}

	minWindow := int(r.params.CorrDuration * r.params.SamplingRate)
	if bundle.Empty() || bundle.MaxSamples() < minWindow {
		r.logger.Infof("not enough data for %s, marking jobs done", day)
		return r.store.MarkMany(ctx, jobs, jobstore.StateDone)
	}
	processStart := time.Now()

	acc := r.correlateDay(bundle)

	if r.params.KeepAll {
		for key, ccfs := range acc {
			for _, w := range ccfs {
				corr := &types.WindowCorrelation{
					Pair:        key.Pair,
					Components:  key.Components,
					FilterID:    key.FilterID,
					Day:         day,
					WindowStart: w.start,
					SampleRate:  r.params.SamplingRate,
					Data:        w.data,
				}
				if err := r.sink.StoreWindowCorrelation(ctx, corr); err != nil {
					return err
				}
			}
		}
	}

	if r.params.KeepDays {
		cache := cc.NewFFTCache()
		for key, ccfs := range acc {
			corrs := make([][]float64, len(ccfs))
			for i, w := range ccfs {
				corrs[i] = w.data
			}
			stacked := cc.Stack(corrs, r.params, cache)
			if stacked == nil {
				log.Debugf("no data to stack for %s %s filter %d", key.Pair, key.Components, key.FilterID)
				continue
			}
			stack := &types.DailyStack{
				Pair:        key.Pair,
				Components:  key.Components,
				FilterID:    key.FilterID,
				Day:         day,
				SampleRate:  r.params.SamplingRate,
				SampleCount: len(stacked),
				NCorr:       len(corrs),
				Data:        stacked,
			}
			if err := r.sink.StoreDailyStack(ctx, stack); err != nil {
				return err
			}
		}
	}

	if err := r.store.MarkMany(ctx, jobs, jobstore.StateDone); err != nil {
		return err
	}
	for _, job := range jobs {
		if err := r.store.Enqueue(ctx, job.Day, job.Pair, jobstore.TypeSTACK, jobstore.StateTodo); err != nil {
			return err
		}
	}

	r.logger.Infof("job finished, it took %.2fs (preprocess %.2fs, process %.2fs)",
		time.Since(jobStart).Seconds(),
		processStart.Sub(jobStart).Seconds(),
		time.Since(processStart).Seconds())
	return nil
}

// correlateDay runs the window pipeline over the bundle and returns the
// window-level correlations grouped by result key. The FFT plan cache lives
// exactly as long as this call: window lengths vary, so plans are never kept
// across days.
func (r *Runner) correlateDay(bundle *waveform.Bundle) map[types.CCFKey][]windowCCF {
	params := r.params
	fs := params.SamplingRate
	dt := 1 / fs
	lagSamples := int(math.Ceil(params.MaxLag * fs))

	compSet := make(map[string]bool, len(params.Components))
	for _, comp := range params.Components {
		compSet[comp] = true
	}

	cache := cc.NewFFTCache()
	acc := make(map[types.CCFKey][]windowCCF)

	for _, win := range waveform.Slice(bundle, params.CorrDuration, params.Overlap, params.AnalysisDuration) {
		frames := waveform.SelectFrames(waveform.Frames(bundle, win), params.MaxLag)
		if frames == nil {
			continue
		}
		log.Debugf("processing %s - %s (%d channels)", win.Start, win.End, len(frames))

		for _, f := range frames {
			cc.Windsorize(f.Data, params.Windsorizing)
			cc.Taper(f.Data)
		}

		pairs := cc.EnumeratePairs(frames, compSet, params.AutoCorr)
		if len(pairs) == 0 {
			continue
		}

		nfft := cc.NextFastLen(len(frames[0].Data))
		specs := make([][]complex128, len(frames))
		mags := make([][]float64, len(frames))
		rawEnergy := make([]float64, len(frames))
		for i, f := range frames {
			specs[i] = cc.Spectrum(f.Data, nfft, cache)
			mags[i] = cc.AmplitudeSpectrum(f.Data, fs, nfft, cache)
			rawEnergy[i] = paddedRMS(f.Data, nfft)
		}
		cc.PoolHorizontalMagnitudes(frames, mags)

		for _, band := range r.filters {
			bins, ok := cc.BandBins(band, nfft, dt)
			if !ok {
				log.Debugf("filter %d holds no FFT bins at nfft=%d, skipping", band.ID, nfft)
				continue
			}

			// Whitened variants are computed at most once per channel and
			// band, then shared read-only by all pairs.
			white := make([][]complex128, len(frames))
			whiteEnergy := make([]float64, len(frames))
			whitened := func(i int) ([]complex128, float64) {
				if white[i] == nil {
					white[i] = cc.Whiten(specs[i], mags[i], bins)
					whiteEnergy[i] = cc.SignalEnergy(white[i], nfft, cache)
				}
				return white[i], whiteEnergy[i]
			}

			for _, p := range pairs {
				specA, energyA := specs[p.A], rawEnergy[p.A]
				specB, energyB := specs[p.B], rawEnergy[p.B]
				if cc.ShouldWhiten(params.Whitening, frames[p.A].ID, frames[p.B].ID) {
					specA, energyA = whitened(p.A)
					specB, energyB = whitened(p.B)
				}

				corr := cc.Correlate(specA, specB, energyA, energyB, lagSamples, nfft, cache)
				key := types.CCFKey{Pair: p.Name, Components: p.Components, FilterID: band.ID}
				acc[key] = append(acc[key], windowCCF{start: win.Start, data: corr})
			}
		}
	}
	return acc
}

func paddedRMS(data []float64, nfft int) float64 {
	sum := 0.0
	for _, v := range data {
		sum += v * v
	}
	return math.Sqrt(sum / float64(nfft))
}

// stationsOf returns the unique net.sta identifiers over all job pairs.
func stationsOf(jobs []jobstore.Job) []string {
	seen := make(map[string]bool)
	var stations []string
	for _, job := range jobs {
		s1, s2 := job.Stations()
		for _, s := range []string{s1, s2} {
			if s != "" && !seen[s] {
				seen[s] = true
				stations = append(stations, s)
			}
		}
	}
	sort.Strings(stations)
	return stations
}

// expandComponents returns the unique single components needed to compute
// the configured component pairs. Rotation-derived components (R, T) need
// both horizontals.
func expandComponents(pairs []string) []string {
	seen := make(map[string]bool)
	var comps []string
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			comps = append(comps, c)
		}
	}
	for _, pair := range pairs {
		for _, c := range pair {
			switch c {
			case 'R', 'T':
				add("E")
				add("N")
			default:
				add(string(c))
			}
		}
	}
	sort.Strings(comps)
	return comps
}
