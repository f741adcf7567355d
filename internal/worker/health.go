package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aescanero/dago-node-jsonrender/internal/render"
)

const checkTimeout = 2 * time.Second

// Check probes one dependency of the worker
type Check func(ctx context.Context) error

// HealthServer serves liveness, readiness and registry endpoints
type HealthServer struct {
	port   int
	env    *render.Environment
	checks map[string]Check
	logger *zap.Logger
	server *http.Server
}

// NewHealthServer creates a health server that checks redisClient and reports
// the contents of env
func NewHealthServer(port int, redisClient *redis.Client, env *render.Environment, logger *zap.Logger) *HealthServer {
	hs := &HealthServer{
		port:   port,
		env:    env,
		checks: make(map[string]Check),
		logger: logger,
	}
	hs.AddCheck("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	return hs
}

// AddCheck registers a named dependency check. It must be called before Start.
func (hs *HealthServer) AddCheck(name string, check Check) {
	hs.checks[name] = check
}

// Start listens in the background
func (hs *HealthServer) Start() error {
	hs.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", hs.port),
		Handler:           hs.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	hs.logger.Info("starting health server", zap.Int("port", hs.port))

	go func() {
		if err := hs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			hs.logger.Error("health server error", zap.Error(err))
		}
	}()

	return nil
}

// Handler returns the routes served by the health server
func (hs *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", hs.handleHealth)
	mux.HandleFunc("/ready", hs.handleReady)
	mux.HandleFunc("/registry", hs.handleRegistry)
	return mux
}

// Stop shuts the server down, waiting briefly for open requests
func (hs *HealthServer) Stop() error {
	if hs.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hs.logger.Info("stopping health server")
	return hs.server.Shutdown(ctx)
}

// HealthResponse is the body of /health and /ready
type HealthResponse struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks,omitempty"`
	Helpers  int               `json:"helpers"`
	Partials int               `json:"partials"`
}

// RegistryResponse is the body of /registry
type RegistryResponse struct {
	Helpers  []string `json:"helpers"`
	Partials []string `json:"partials"`
}

// runChecks runs every check and reports whether all passed
func (hs *HealthServer) runChecks(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	names := make([]string, 0, len(hs.checks))
	for name := range hs.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		if err := hs.checks[name](ctx); err != nil {
			results[name] = "unhealthy: " + err.Error()
			healthy = false
			continue
		}
		results[name] = "healthy"
	}
	return results, healthy
}

func (hs *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	results, healthy := hs.runChecks(r.Context())

	response := HealthResponse{
		Status:   "healthy",
		Checks:   results,
		Helpers:  len(hs.env.HelperNames()),
		Partials: len(hs.env.PartialNames()),
	}
	status := http.StatusOK
	if !healthy {
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	hs.respondJSON(w, status, response)
}

func (hs *HealthServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, ok := hs.runChecks(r.Context()); !ok {
		hs.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "not ready"})
		return
	}
	hs.respondJSON(w, http.StatusOK, HealthResponse{Status: "ready"})
}

func (hs *HealthServer) handleRegistry(w http.ResponseWriter, _ *http.Request) {
	hs.respondJSON(w, http.StatusOK, RegistryResponse{
		Helpers:  hs.env.HelperNames(),
		Partials: hs.env.PartialNames(),
	})
}

func (hs *HealthServer) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		hs.logger.Error("failed to encode response", zap.Error(err))
	}
}
