package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/beacon/pkg/manager"
	"github.com/cuemby/beacon/pkg/metrics"
	"github.com/cuemby/beacon/pkg/registry"
)

// HealthServer provides HTTP health check endpoints
type HealthServer struct {
	manager *manager.Manager
	version string
	mux     *http.ServeMux
	server  *http.Server
}

// NewHealthServer creates a new health check HTTP server
func NewHealthServer(mgr *manager.Manager, version string) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		manager: mgr,
		version: version,
		mux:     mux,
	}

	mux.HandleFunc("/health", hs.healthHandler)
	mux.HandleFunc("/ready", hs.readyHandler)
	mux.Handle("/metrics", metrics.Handler())

	return hs
}

// Start starts the health check HTTP server
func (hs *HealthServer) Start(addr string) error {
	hs.server = &http.Server{
		Addr:         addr,
		Handler:      hs.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	err := hs.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop closes the HTTP server
func (hs *HealthServer) Stop() error {
	if hs.server == nil {
		return nil
	}
	return hs.server.Close()
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// healthHandler implements the /health endpoint
// This is a simple liveness check - returns 200 if the process is alive
func (hs *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   hs.version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// readyHandler implements the /ready endpoint
// This checks if the registry is ready to accept commands
func (hs *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	checks := make(map[string]string)
	ready := true
	var message string

	notReady := func(msg string) {
		ready = false
		if message == "" {
			message = msg
		}
	}

	if hs.manager == nil {
		checks["raft"] = "not initialized"
		checks["storage"] = "not initialized"
		checks["registry"] = "not initialized"
		notReady("Manager not initialized")
	} else {
		if hs.manager.IsLeader() {
			checks["raft"] = "leader"
		} else if leaderAddr := hs.manager.LeaderAddr(); leaderAddr != "" {
			checks["raft"] = fmt.Sprintf("follower (leader: %s)", leaderAddr)
		} else {
			checks["raft"] = "no leader elected"
			notReady("Waiting for leader election")
		}

		if err := hs.manager.CheckStorage(); err != nil {
			checks["storage"] = fmt.Sprintf("error: %v", err)
			notReady("Storage not accessible")
		} else {
			checks["storage"] = "ok"
		}

		cfg, err := hs.manager.Config()
		switch {
		case err == nil:
			checks["registry"] = fmt.Sprintf("initialized (owner: %s)", cfg.Owner)
		case errors.Is(err, registry.ErrNotInitialized):
			checks["registry"] = "not initialized"
			notReady("Registry has no owner")
		default:
			checks["registry"] = fmt.Sprintf("error: %v", err)
			notReady("Registry config not readable")
		}
	}

	status := "ready"
	statusCode := http.StatusOK

	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadyResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
		Message:   message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// GetHandler returns the HTTP handler for embedding in other servers
func (hs *HealthServer) GetHandler() http.Handler {
	return hs.mux
}
