// Package statusserver exposes a small HTTP endpoint with queue health for
// operators running several workers against one job database.
package statusserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/seismonet/noisecc/internal/jobstore"
	"github.com/seismonet/noisecc/internal/log"
)

// Controller represents the status server controller
type Controller struct {
	ctx    context.Context
	wg     *sync.WaitGroup
	store  *jobstore.Store
	Server http.Server
	logger *zap.SugaredLogger
}

type jobCounts struct {
	Todo       int `json:"todo"`
	InProgress int `json:"in_progress"`
	Done       int `json:"done"`
}

// NewController creates a new status server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, store *jobstore.Store, addr string, logger *zap.SugaredLogger) *Controller {
	ctrl := &Controller{
		ctx:    ctx,
		wg:     wg,
		store:  store,
		logger: logger,
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", ctrl.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/jobs", ctrl.handleJobs).Methods(http.MethodGet)

	ctrl.Server = http.Server{
		Addr:    addr,
		Handler: router,
	}

	return ctrl
}

// Start runs the HTTP server until the controller context is cancelled
func (c *Controller) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.logger.Infof("status server listening on %s", c.Server.Addr)
		if err := c.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("status server error: %v", err)
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		<-c.ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("status server shutdown: %v", err)
		}
	}()
}

func (c *Controller) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (c *Controller) handleJobs(w http.ResponseWriter, r *http.Request) {
	response := make(map[string]jobCounts, 2)
	for _, jobType := range []string{jobstore.TypeCC, jobstore.TypeSTACK} {
		counts, err := c.store.CountByState(r.Context(), jobType)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		response[jobType] = jobCounts{
			Todo:       counts[jobstore.StateTodo],
			InProgress: counts[jobstore.StateInProgress],
			Done:       counts[jobstore.StateDone],
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
