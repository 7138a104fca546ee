package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/audiolibrelab/deskcapture/internal/archive"
	"github.com/audiolibrelab/deskcapture/internal/audio"
	"github.com/audiolibrelab/deskcapture/internal/capture"
	"github.com/audiolibrelab/deskcapture/internal/config"
	"github.com/audiolibrelab/deskcapture/internal/permission"
	"github.com/audiolibrelab/deskcapture/internal/process"
	"github.com/audiolibrelab/deskcapture/internal/screenshot"
)

// maxAudioBody caps one pushed PCM request
const maxAudioBody = 16 << 20

// Capturer is the orchestrator surface exposed over HTTP
type Capturer interface {
	CheckPermissions(ctx context.Context) permission.Status
	RequestMicrophonePermission(ctx context.Context) permission.MicrophoneResult
	OpenPlatformSettings(ctx context.Context, section string) permission.SettingsResult
	Start(ctx context.Context) (capture.StartResult, error)
	Stop(ctx context.Context) (capture.StopResult, error)
	Feed(data []byte) (int, error)
	CaptureScreenshot(ctx context.Context, opts screenshot.Options) screenshot.Result
	Platform() config.Platform
	StrategyName() string
	Config() config.AudioConfig
	UpdateConfig(patch config.AudioPatch) (config.AudioConfig, error)
	Status() capture.Status
}

// SourceLister lists loopback capture targets
type SourceLister interface {
	ListSources(ctx context.Context) ([]audio.PulseSource, error)
}

// SessionLister lists archived sessions
type SessionLister interface {
	Sessions() ([]archive.SessionMeta, error)
}

// Server represents the HTTP facade over one capture orchestrator
type Server struct {
	capturer      Capturer
	sources       SourceLister
	sessions      SessionLister
	port          string
	activeProfile string
}

// StatusResponse represents the JSON response for status endpoint
type StatusResponse struct {
	Success       bool               `json:"success"`
	Status        capture.Status     `json:"status"`
	Config        config.AudioConfig `json:"config"`
	ChunkSize     int                `json:"chunk_size"`
	ActiveProfile string             `json:"active_profile,omitempty"`
}

// SettingsRequest selects a settings pane
type SettingsRequest struct {
	Section string `json:"section"`
}

// New creates a new server. sources and sessions may be nil.
func New(capturer Capturer, sources SourceLister, sessions SessionLister, port, activeProfile string) *Server {
	return &Server{
		capturer:      capturer,
		sources:       sources,
		sessions:      sessions,
		port:          port,
		activeProfile: activeProfile,
	}
}

// Handler returns the routed endpoints
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/platform", s.handlePlatform)
	mux.HandleFunc("/permissions", s.handlePermissions)
	mux.HandleFunc("/permissions/microphone", s.handleRequestMicrophone)
	mux.HandleFunc("/settings/open", s.handleOpenSettings)
	mux.HandleFunc("/capture/start", s.handleStart)
	mux.HandleFunc("/capture/stop", s.handleStop)
	mux.HandleFunc("/capture/audio", s.handleAudio)
	mux.HandleFunc("/screenshot", s.handleScreenshot)
	mux.HandleFunc("/config", s.handleConfig)
	mux.HandleFunc("/sources", s.handleSources)
	mux.HandleFunc("/sessions", s.handleSessions)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	localIP := getLocalIP()
	slog.Info("Starting DeskCapture server",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%s", localIP, s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", s.port))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		slog.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// handleIndex lists the endpoints
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.sendErrorResponse(w, http.StatusNotFound, "Not found", "path", r.URL.Path)
		return
	}
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"endpoints": []string{
			"GET /status", "GET /platform", "GET /permissions",
			"POST /permissions/microphone", "POST /settings/open",
			"POST /capture/start", "POST /capture/stop", "POST /capture/audio",
			"POST /screenshot", "GET|POST /config", "GET /sources", "GET /sessions",
		},
	})
}

// handleStatus returns the state machine and audio config
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	cfg := s.capturer.Config()
	writeJSON(w, http.StatusOK, StatusResponse{
		Success:       true,
		Status:        s.capturer.Status(),
		Config:        cfg,
		ChunkSize:     cfg.ChunkSizeBytes(),
		ActiveProfile: s.activeProfile,
	})
}

func (s *Server) handlePlatform(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"platform": s.capturer.Platform(),
		"strategy": s.capturer.StrategyName(),
	})
}

func (s *Server) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"permissions": s.capturer.CheckPermissions(r.Context()),
	})
}

func (s *Server) handleRequestMicrophone(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	res := s.capturer.RequestMicrophonePermission(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": res.Error == "",
		"granted": res.Granted,
		"status":  res.Status,
		"error":   res.Error,
	})
}

func (s *Server) handleOpenSettings(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req SettingsRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.sendErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err), "operation", "open_settings")
			return
		}
	}
	if req.Section == "" {
		req.Section = r.URL.Query().Get("section")
	}

	res := s.capturer.OpenPlatformSettings(r.Context(), req.Section)
	writeJSON(w, http.StatusOK, res)
}

// handleStart transitions Idle -> Capturing
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	res, err := s.capturer.Start(r.Context())
	if err != nil {
		code, kind := classifyStartError(err)
		slog.Error("Sending error response to client", "error_message", err.Error(), "status_code", code, "operation", "start_capture")
		body := map[string]interface{}{
			"success":    false,
			"error":      err.Error(),
			"error_type": kind,
		}
		var permErr *capture.PermissionError
		if errors.As(err, &permErr) {
			body["permissions"] = permErr.Status
		}
		writeJSON(w, code, body)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// handleStop transitions Capturing -> Idle and returns the drained chunks
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	res, err := s.capturer.Stop(r.Context())
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to stop capture: %v", err),
			"operation", "stop_capture")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleAudio accepts raw PCM from a delegated capture collaborator
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAudioBody))
	if err != nil {
		s.sendErrorResponse(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Failed to read audio: %v", err), "operation", "feed_audio")
		return
	}

	n, err := s.capturer.Feed(data)
	if err != nil {
		s.sendErrorResponse(w, http.StatusConflict, err.Error(), "operation", "feed_audio", "bytes", len(data))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"chunks":  n,
	})
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var opts screenshot.Options
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
			s.sendErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err), "operation", "screenshot")
			return
		}
	}
	if q := r.URL.Query().Get("quality"); q != "" && opts.Quality == "" {
		opts.Quality = screenshot.Quality(q)
	}

	// Failures are reported in the body, never as transport errors
	writeJSON(w, http.StatusOK, s.capturer.CaptureScreenshot(r.Context(), opts))
}

// handleConfig returns the audio config on GET and merges a partial update on POST
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg := s.capturer.Config()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":    true,
			"config":     cfg,
			"chunk_size": cfg.ChunkSizeBytes(),
		})
	case http.MethodPost, http.MethodPatch:
		var patch config.AudioPatch
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&patch); err != nil {
			s.sendErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid config patch: %v", err), "operation", "update_config")
			return
		}
		updated, err := s.capturer.UpdateConfig(patch)
		if err != nil {
			s.sendErrorResponse(w, http.StatusUnprocessableEntity, err.Error(), "operation", "update_config")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":    true,
			"config":     updated,
			"chunk_size": updated.ChunkSizeBytes(),
		})
	default:
		methodNotAllowed(w)
	}
}

// handleSources lists loopback capture targets
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.sources == nil {
		s.sendErrorResponse(w, http.StatusNotImplemented, "Source listing is not available on this platform", "operation", "list_sources")
		return
	}

	sources, err := s.sources.ListSources(r.Context())
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list sources: %v", err), "operation", "list_sources")
		return
	}
	if sources == nil {
		sources = []audio.PulseSource{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"sources": sources,
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.sessions == nil {
		s.sendErrorResponse(w, http.StatusNotImplemented, "Session archive is disabled", "operation", "list_sessions")
		return
	}

	sessions, err := s.sessions.Sessions()
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list sessions: %v", err), "operation", "list_sessions")
		return
	}
	if sessions == nil {
		sessions = []archive.SessionMeta{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"sessions": sessions,
	})
}

func classifyStartError(err error) (int, string) {
	var permErr *capture.PermissionError
	var notFound *process.BinaryNotFoundError
	var spawnErr *process.ProcessSpawnError
	switch {
	case errors.As(err, &permErr):
		return http.StatusForbidden, "permission"
	case errors.As(err, &notFound):
		return http.StatusServiceUnavailable, "binary_not_found"
	case errors.As(err, &spawnErr):
		return http.StatusInternalServerError, "spawn_failed"
	}
	return http.StatusInternalServerError, "capture_failed"
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		methodNotAllowed(w)
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
		"success": false,
		"error":   "Method not allowed",
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to encode response", "error", err)
	}
}

// sendErrorResponse logs the error and sends a JSON error response to the client
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	// Log the error with structured context
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	slog.Error("Sending error response to client", logFields...)

	writeJSON(w, statusCode, map[string]interface{}{
		"success": false,
		"error":   errorMsg,
	})
}

func getLocalIP() string {
	// Try to connect to a remote address to determine local IP
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
