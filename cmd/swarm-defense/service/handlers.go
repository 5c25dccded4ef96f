package service

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/oapi-codegen/runtime"
	"github.com/paulmach/orb"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/config"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/reporting"
	"github.com/picogrid/swarm-defense/pkg/logger"
	"github.com/picogrid/swarm-defense/pkg/models"
)

const maxRequestBody = 1 << 20

// Server exposes a Manager over HTTP
type Server struct {
	manager  *Manager
	mux      *http.ServeMux
	upgrader websocket.Upgrader
}

// NewServer registers every route
func NewServer(manager *Manager) *Server {
	s := &Server{
		manager:  manager,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}

	s.mux.HandleFunc("POST /api/simulation/start", s.handleStart(KindStatic))
	s.mux.HandleFunc("GET /api/simulation/{id}/status", s.handleStatus(KindStatic))
	s.mux.HandleFunc("GET /api/simulation/{id}/data", s.handleData(KindStatic))
	s.mux.HandleFunc("GET /api/simulation/{id}/analytics", s.handleAnalytics)
	s.mux.HandleFunc("GET /api/simulation/{id}/stream", s.handleStream)
	s.mux.HandleFunc("GET /api/simulation/{id}/geojson", s.handleGeoJSON)
	s.mux.HandleFunc("POST /api/simulation/{id}/cancel", s.handleCancel)

	s.mux.HandleFunc("POST /api/dynamic/start", s.handleStart(KindDynamic))
	s.mux.HandleFunc("GET /api/dynamic/{id}/status", s.handleStatus(KindDynamic))
	s.mux.HandleFunc("GET /api/dynamic/{id}/data", s.handleData(KindDynamic))

	s.mux.HandleFunc("GET /api/scenarios", s.handleRecords)
	s.mux.HandleFunc("GET /api/scenarios/presets", s.handlePresets)
	s.mux.HandleFunc("GET /api/algorithms", s.handleAlgorithms)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/debug/simulations", s.handleDebug)
	return s
}

// Handler returns the routes wrapped with CORS and request logging
func (s *Server) Handler() http.Handler {
	return withLogging(withCORS(s.mux))
}

// ListenAndServe serves until ctx is cancelled, then shuts the listener down
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Job service listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("Shutting down job service")
		return srv.Shutdown(shutdownCtx)
	}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working through the recorder
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debugf("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}

// writeManagerError maps manager errors onto HTTP statuses
func writeManagerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrScenarioNotFound):
		writeError(w, http.StatusNotFound, "Simulation not found")
	case errors.Is(err, ErrScenarioNotStarted):
		writeError(w, http.StatusBadRequest, "Simulation not started")
	case errors.Is(err, ErrInvalidScenario):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrShuttingDown):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// scenarioID parses the {id} path value. Malformed ids are unknown scenarios.
func scenarioID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, ErrScenarioNotFound
	}
	return id, nil
}

// scenarioOfKind resolves {id} and hides scenarios of another kind
func (s *Server) scenarioOfKind(r *http.Request, kind string) (uuid.UUID, error) {
	id, err := scenarioID(r)
	if err != nil {
		return uuid.Nil, err
	}
	got, err := s.manager.Kind(id)
	if err != nil {
		return uuid.Nil, err
	}
	if got != kind {
		return uuid.Nil, ErrScenarioNotFound
	}
	return id, nil
}

func bindInt(r *http.Request, name string, dest **int) error {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest); err != nil {
		return fmt.Errorf("invalid %s parameter: %w", name, err)
	}
	return nil
}

func bindFloat(r *http.Request, name string, dest **float64) error {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest); err != nil {
		return fmt.Errorf("invalid %s parameter: %w", name, err)
	}
	return nil
}

func (s *Server) handleStart(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		cfg, err := config.DecodeRequest(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		id, err := s.manager.Start(r.Context(), kind, cfg)
		if err != nil {
			writeManagerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, models.StartSimulationResponse{SimulationID: id})
	}
}

func (s *Server) handleStatus(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.scenarioOfKind(r, kind)
		if err != nil {
			writeManagerError(w, err)
			return
		}
		status, err := s.manager.Status(id)
		if err != nil {
			writeManagerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func (s *Server) handleData(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.scenarioOfKind(r, kind)
		if err != nil {
			writeManagerError(w, err)
			return
		}

		var start, end *int
		if err := bindInt(r, "start", &start); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := bindInt(r, "end", &end); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		from, to := 0, -1
		if start != nil {
			from = *start
		}
		if end != nil {
			to = *end
		}

		data, err := s.manager.Data(id, from, to)
		if err != nil {
			writeManagerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, data)
	}
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	id, err := scenarioID(r)
	if err != nil {
		writeManagerError(w, err)
		return
	}
	analytics, err := s.manager.Analytics(r.Context(), id)
	if err != nil {
		writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func (s *Server) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	id, err := scenarioID(r)
	if err != nil {
		writeManagerError(w, err)
		return
	}

	var index *int
	var lon, lat *float64
	for _, bind := range []func() error{
		func() error { return bindInt(r, "frame", &index) },
		func() error { return bindFloat(r, "lon", &lon) },
		func() error { return bindFloat(r, "lat", &lat) },
	} {
		if err := bind(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	i := -1
	if index != nil {
		i = *index
	}
	frame, err := s.manager.Frame(id, i)
	if err != nil {
		writeManagerError(w, err)
		return
	}

	origin := reporting.DefaultOrigin
	if lon != nil && lat != nil {
		origin = orb.Point{*lon, *lat}
	}
	data, err := reporting.FrameToGeoJSON(frame, origin).MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := scenarioID(r)
	if err != nil {
		writeManagerError(w, err)
		return
	}
	if err := s.manager.Cancel(id); err != nil {
		writeManagerError(w, err)
		return
	}
	status, _ := s.manager.Status(id)
	writeJSON(w, http.StatusAccepted, status)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	var offset, limit *int
	if err := bindInt(r, "offset", &offset); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := bindInt(r, "limit", &limit); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page := models.NewPageRequest(offset, limit)

	records, err := s.manager.Records(r.Context(), page.Offset, page.Limit)
	if err != nil {
		writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.Page(page, records))
}

func (s *Server) handlePresets(w http.ResponseWriter, _ *http.Request) {
	presets := config.ScenarioPresets()
	out := make(map[string]models.Preset, len(presets))
	for name, p := range presets {
		assets := make([]models.PresetAsset, len(p.Assets))
		for i, a := range p.Assets {
			assets[i] = models.PresetAsset{Position: a.Position.Array(), Value: a.Value}
		}
		out[name] = models.Preset{
			Name:              p.Name,
			Label:             p.Label,
			FriendlyCount:     p.FriendlyCount,
			EnemyCount:        p.EnemyCount,
			GroundAttackRatio: p.GroundAttackRatio,
			MaxTime:           p.MaxTime,
			MaxSpeed:          p.MaxSpeed,
			WeaponRange:       p.WeaponRange,
			DetectionRange:    p.DetectionRange,
			Assets:            assets,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAlgorithms(w http.ResponseWriter, _ *http.Request) {
	algos := s.manager.Factory().Algorithms()
	out := make([]models.Algorithm, len(algos))
	for i, a := range algos {
		out[i] = models.Algorithm{Value: a.Value, Label: a.Label, Description: a.Description}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.Health{
		Status:            "healthy",
		ActiveSimulations: s.manager.Count(),
		Version:           Version,
	})
}

func (s *Server) handleDebug(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Summaries())
}
