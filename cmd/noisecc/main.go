// Command noisecc computes daily ambient-noise cross-correlation functions,
// working through the pending CC jobs in the shared job database until none
// remain.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/seismonet/noisecc/internal/config"
	"github.com/seismonet/noisecc/internal/controllers/statusserver"
	"github.com/seismonet/noisecc/internal/jobstore"
	"github.com/seismonet/noisecc/internal/log"
	"github.com/seismonet/noisecc/internal/preprocess"
	"github.com/seismonet/noisecc/internal/runner"
	"github.com/seismonet/noisecc/internal/storage"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	cfgFile := flag.String("config", "", "Path to YAML config file")
	dbFile := flag.String("db", "", "Path to SQLite database holding config and jobs")
	workers := flag.Int("workers", 1, "Number of parallel worker loops")
	statusAddr := flag.String("status-addr", "", "Listen address for the status HTTP server (disabled if empty)")
	dataDir := flag.String("data-dir", "", "Directory holding preprocessed waveform archives")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	if err := log.Init(*debug); err != nil {
		fmt.Printf("can't initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Infof("*** starting noisecc %s ***", version)

	cfg, err := config.Load(*cfgFile, *dbFile)
	if err != nil {
		log.Errorf("error loading configuration. Run with -h for help: %v", err)
		os.Exit(1)
	}
	if len(cfg.Filters) == 0 {
		log.Errorf("no filters defined, exiting")
		os.Exit(1)
	}

	store, err := jobstore.Open(cfg.Database)
	if err != nil {
		log.Errorf("could not open job database: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink, err := storage.NewManager(ctx, &cfg.Storage)
	if err != nil {
		log.Errorf("could not create storage manager: %v", err)
		os.Exit(1)
	}
	defer sink.Close()

	source := preprocess.NewArchiveSource(*dataDir, &cfg.Params)

	// The status server joins its own WaitGroup: it only exits on context
	// cancellation, so waiting for it alongside the workers would deadlock
	// once the queue drains.
	var statusWg sync.WaitGroup
	if *statusAddr != "" {
		ctrl := statusserver.NewController(ctx, &statusWg, store, *statusAddr, log.GetSugaredLogger())
		ctrl.Start()
	}

	// Watch for shutdown signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("shutdown signal received, stopping workers...")
		cancel()
	}()

	// Launch the worker loops with staggered startup. The jitter only
	// reduces claim collisions; correctness rests on the claim atomicity.
	var workerWg sync.WaitGroup
	errs := make(chan error, *workers)
	for i := 0; i < *workers; i++ {
		workerWg.Add(1)
		delay := time.Duration(i)*time.Second + time.Duration(rand.Intn(250))*time.Millisecond
		go func(delay time.Duration) {
			defer workerWg.Done()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}

			r, err := runner.New(store, source, sink, cfg)
			if err != nil {
				errs <- err
				return
			}
			if err := r.Run(ctx); err != nil && err != context.Canceled {
				errs <- err
			}
		}(delay)
	}

	workerWg.Wait()
	cancel()
	statusWg.Wait()
	close(errs)
	failed := false
	for err := range errs {
		log.Errorf("worker failed: %v", err)
		failed = true
	}
	if failed {
		os.Exit(1)
	}

	log.Info("*** finished: compute CC ***")
}
