// internal/server/api.go
//
// Ops API.
//
// Context
// -------
// `harvest serve` exposes a small chi router next to the scheduler:
//
//   GET  /healthz   – liveness plus the active rule-set version
//   GET  /metrics   – Prometheus exposition
//   POST /validate  – raw XML body in, JSON Result out
//   GET  /runs      – recent harvest runs, newest first (?limit=N)
//
// /validate memoises verdicts in an LRU keyed by rule-set version and the
// SHA-256 of the body, so a reload never serves a verdict from the old
// rules.  Identical requests in flight share one evaluation through
// singleflight.
//
// Notes
// -----
//   • Bodies above MaxBody are rejected with 413.
//   • Oxford commas, two spaces after periods.

package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/harvest/internal/cache"
	"github.com/yanizio/harvest/internal/metrics"
	"github.com/yanizio/harvest/internal/middleware"
	"github.com/yanizio/harvest/internal/rules"
	"github.com/yanizio/harvest/internal/ruleset"
	"github.com/yanizio/harvest/internal/state"
)

const (
	// MaxBody caps a /validate upload.
	MaxBody = 16 << 20

	defaultRuns = 20
	maxRuns     = 500
)

// API serves the ops endpoints.
type API struct {
	rules   *ruleset.Store
	runs    state.Store
	log     *zap.SugaredLogger
	verdict *cache.LRU[string, rules.Result]
	group   singleflight.Group
}

// NewAPI wires the handlers.  cacheSize < 1 falls back to 1024 and log may
// be nil.
func NewAPI(rs *ruleset.Store, runs state.Store, cacheSize int, log *zap.SugaredLogger) *API {
	if cacheSize < 1 {
		cacheSize = 1024
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &API{
		rules:   rs,
		runs:    runs,
		log:     log,
		verdict: cache.New[string, rules.Result](cacheSize),
	}
}

// Routes returns the router.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.AccessLog(a.log))
	r.Use(middleware.Security)

	r.Get("/healthz", a.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/validate", a.validate)
	r.Get("/runs", a.listRuns)
	return r
}

func (a *API) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"ruleset": a.rules.Current().Version,
	})
}

func (a *API) validate(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBody))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	set := a.rules.Current()
	sum := sha256.Sum256(raw)
	key := set.Version + ":" + hex.EncodeToString(sum[:])

	if res, ok := a.verdict.Get(key); ok {
		metrics.ValidateCacheTotal.WithLabelValues("hit").Inc()
		w.Header().Set("X-Ruleset-Version", set.Version)
		writeJSON(w, http.StatusOK, res)
		return
	}
	metrics.ValidateCacheTotal.WithLabelValues("miss").Inc()

	v, _, _ := a.group.Do(key, func() (any, error) {
		res := set.Validator.Validate(raw)
		a.verdict.Add(key, res)
		return res, nil
	})
	w.Header().Set("X-Ruleset-Version", set.Version)
	writeJSON(w, http.StatusOK, v.(rules.Result))
}

func (a *API) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRuns
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRuns)
	}

	runs, err := a.runs.Recent(r.Context(), limit)
	if err != nil {
		a.log.Errorw("list runs", "err", err)
		writeError(w, http.StatusInternalServerError, "run history unavailable")
		return
	}
	if runs == nil {
		runs = []state.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
