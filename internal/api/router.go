// Package api serves persisted hotspot runs over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/dining-hotspots/internal/export"
	"github.com/sells-group/dining-hotspots/internal/geo"
	"github.com/sells-group/dining-hotspots/internal/model"
	"github.com/sells-group/dining-hotspots/internal/scorer"
	"github.com/sells-group/dining-hotspots/internal/store"
	"github.com/sells-group/dining-hotspots/internal/zone"
)

// Response cache sizing for run lookups.
const (
	cacheEntries = 1000
	cacheTTL     = 10 * time.Minute
)

// Handler wires HTTP routes to a run store.
type Handler struct {
	store   store.Store
	cache   *responseCache
	limiter *clientLimiter
}

// NewRouter returns the HTTP handler for the run API.
func NewRouter(s store.Store, allowedOrigins []string, opts ...Option) http.Handler {
	h := &Handler{store: s, cache: newResponseCache(cacheEntries, cacheTTL)}
	for _, opt := range opts {
		opt(h)
	}

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Type"},
		MaxAge:         300,
	}))
	if h.limiter != nil {
		r.Use(h.limiter.middleware)
	}

	r.Get("/health", h.health)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", h.listRuns)
		r.Group(func(r chi.Router) {
			r.Use(h.cache.middleware)
			r.Get("/{id}", h.getRun)
			r.Get("/{id}/hotspots", h.runHotspots)
		})
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "cache": h.cache.stats()})
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	var filter store.RunFilter
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since")
			return
		}
		filter.Since = t
	}

	runs, err := h.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// runHotspots returns a run's hotspots as GeoJSON. Query parameters:
// top=K keeps the K best, bbox=minLng,minLat,maxLng,maxLat keeps hotspots
// whose centroid falls inside the box.
func (h *Handler) runHotspots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var region geo.Region
	if v := q.Get("bbox"); v != "" {
		b, err := parseBBox(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid bbox")
			return
		}
		region = b
	}
	top := 0
	if v := q.Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid top")
			return
		}
		top = n
	}

	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	hotspots := run.Hotspots
	if region != nil {
		hotspots = within(hotspots, region)
	}
	if top > 0 {
		hotspots = scorer.TopK(hotspots, top)
	}

	w.Header().Set("Content-Type", "application/geo+json")
	if err := export.WriteGeoJSON(w, hotspots); err != nil {
		zap.L().Error("api: encode hotspots", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (*model.Run, bool) {
	id := chi.URLParam(r, "id")
	run, err := h.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		zap.L().Error("api: get run", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get run failed")
		return nil, false
	}
	return run, true
}

func within(hotspots []model.Hotspot, region geo.Region) []model.Hotspot {
	var out []model.Hotspot
	for _, h := range hotspots {
		if h.Geometry == nil {
			continue
		}
		c, err := zone.Centroid(h.Geometry)
		if err != nil {
			continue
		}
		if region.Contains(c.Lng, c.Lat) {
			out = append(out, h)
		}
	}
	return out
}

func parseBBox(v string) (geo.BBoxRegion, error) {
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return geo.BBoxRegion{}, errors.New("bbox needs four values")
	}
	var f [4]float64
	for i, p := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geo.BBoxRegion{}, err
		}
		f[i] = n
	}
	if f[0] > f[2] || f[1] > f[3] {
		return geo.BBoxRegion{}, errors.New("bbox min exceeds max")
	}
	return geo.NewBBoxRegion(f[0], f[1], f[2], f[3]), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
