// Package sandbox is a self-contained stand-in for the home network appliance. It
// serves the appliance's JSON API from a sqlite database so the dashboard can be used
// and developed without real hardware.
package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/monorkin/home-network-monitor/appliance/api"
	"github.com/monorkin/home-network-monitor/internal/version"
)

const (
	APP_NAME        = "home-network-monitor sandbox"
	DEFAULT_NETWORK = "192.168.1.0/24"

	SHUTDOWN_TIMEOUT = 5 * time.Second
)

type Server struct {
	db      *gorm.DB
	logger  *slog.Logger
	scanner Scanner
	now     func() time.Time
	network string

	// scanMutex serializes scans like the appliance's single scanner does.
	scanMutex sync.Mutex
}

type Option func(*Server)

func WithScanner(scanner Scanner) Option {
	return func(server *Server) {
		server.scanner = scanner
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(server *Server) {
		server.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(server *Server) {
		server.now = now
	}
}

// WithNetwork sets the CIDR block scans report. Hosts outside it are dropped.
func WithNetwork(network string) Option {
	return func(server *Server) {
		server.network = network
	}
}

func New(db *gorm.DB, opts ...Option) *Server {
	server := &Server{
		db:      db,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		scanner: DefaultRoster(),
		now:     time.Now,
		network: DEFAULT_NETWORK,
	}
	for _, opt := range opts {
		opt(server)
	}
	return server
}

func (server *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/status", server.handleStatus)

	mux.HandleFunc("GET /api/devices", server.handleListDevices)
	mux.HandleFunc("POST /api/devices", server.handleAddDevice)
	mux.HandleFunc("PUT /api/devices/{id}", server.handleUpdateDevice)
	mux.HandleFunc("DELETE /api/devices/{id}", server.handleDeleteDevice)
	mux.HandleFunc("POST /api/devices/wol/{mac}", server.handleWake)

	mux.HandleFunc("GET /api/network/scan", server.handleScan)
	mux.HandleFunc("GET /api/network/last-scan", server.handleLastScan)
	mux.HandleFunc("GET /api/network/scan-stats", server.handleScanStats)
	mux.HandleFunc("GET /api/network/disconnected", server.handleDisconnected)
	mux.HandleFunc("GET /api/network/history", server.handleHistory)
	mux.HandleFunc("GET /api/network/events", server.handleEvents)

	mux.HandleFunc("GET /api/tailscale/config", server.handleVPNConfig)
	mux.HandleFunc("POST /api/tailscale/config", server.handleSaveVPNConfig)
	mux.HandleFunc("GET /api/tailscale/devices", server.handleVPNDevices)
	mux.HandleFunc("POST /api/tailscale/devices/{id}/rename", server.handleRenameVPNDevice)
	mux.HandleFunc("POST /api/tailscale/devices/{id}/authorize", server.handleAuthorizeVPNDevice)
	mux.HandleFunc("DELETE /api/tailscale/devices/{id}", server.handleDeleteVPNDevice)
	mux.HandleFunc("GET /api/tailscale/routes", server.handleVPNRoutes)
	mux.HandleFunc("GET /api/tailscale/acl", server.handleVPNACL)
	mux.HandleFunc("POST /api/tailscale/auto-sync", server.handleVPNAutoSync)

	return server.logRequests(mux)
}

// ListenAndServe serves until ctx ends, then shuts down gracefully.
func (server *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{Addr: addr, Handler: server.Handler()}

	errs := make(chan error, 1)
	go func() {
		server.logger.Info("Sandbox appliance listening", "addr", addr)
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_TIMEOUT)
		defer cancel()
		server.logger.Info("Sandbox appliance shutting down")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (server *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		server.logger.Debug("Sandbox request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", r.Header.Get(api.REQUEST_ID_HEADER),
			"duration", time.Since(started),
		)
	})
}

func (server *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeData(w, api.SystemStatus{
		AppName: APP_NAME,
		Version: version.GetVersion(),
		Server:  "sandbox",
		Debug:   true,
		Storage: "sqlite",
	})
}

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, response{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, response{Success: true, Message: message, Data: data})
}

// writeFailure reports an application-level failure. The appliance answers these with
// HTTP 200 and success=false.
func writeFailure(w http.ResponseWriter, message, kind string) {
	writeJSON(w, http.StatusOK, response{Success: false, Message: message, Error: kind})
}

func (server *Server) writeInternal(w http.ResponseWriter, msg string, err error) {
	server.logger.Error(msg, "error", err)
	writeJSON(w, http.StatusInternalServerError, response{Success: false, Message: msg})
}

func decodeBody(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}
