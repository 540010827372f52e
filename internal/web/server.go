package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elys-network/crabfarm/internal/farm"
	"github.com/elys-network/crabfarm/internal/feedist"
	"github.com/elys-network/crabfarm/internal/logger"
	"github.com/elys-network/crabfarm/internal/metrics"
	"github.com/elys-network/crabfarm/internal/state"
	"github.com/elys-network/crabfarm/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// CallerHeader names the identity a request acts as.
const CallerHeader = "X-Caller"

// WebServer exposes the farm over HTTP: reads, user staking calls and the admin surface.
type WebServer struct {
	router  *mux.Router
	port    string
	server  *http.Server
	started time.Time

	engine *farm.Engine
	store  state.Store
	fees   *feedist.Distributor
}

// NewWebServer creates a new web server instance. fees may be nil, which disables fee distribution.
func NewWebServer(port string, engine *farm.Engine, store state.Store, fees *feedist.Distributor) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:  mux.NewRouter(),
		port:    port,
		started: time.Now(),
		engine:  engine,
		store:   store,
		fees:    fees,
	}

	server.setupRoutes()
	server.server = &http.Server{
		Addr:         ":" + port,
		Handler:      server.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/params", ws.handleGetParams).Methods("GET")
	api.HandleFunc("/pools", ws.handleGetPools).Methods("GET")
	api.HandleFunc("/pools/{pid:[0-9]+}", ws.handleGetPool).Methods("GET")
	api.HandleFunc("/pools/{pid:[0-9]+}/users/{user}", ws.handleGetUser).Methods("GET")
	api.HandleFunc("/pools/{pid:[0-9]+}/snapshots", ws.handleGetSnapshots).Methods("GET")
	api.HandleFunc("/events", ws.handleGetEvents).Methods("GET")
	api.HandleFunc("/events/summary", ws.handleGetEventSummary).Methods("GET")

	// User calls
	api.HandleFunc("/pools/{pid:[0-9]+}/deposit", ws.handleDeposit).Methods("POST")
	api.HandleFunc("/pools/{pid:[0-9]+}/withdraw", ws.handleWithdraw).Methods("POST")
	api.HandleFunc("/pools/{pid:[0-9]+}/emergency-withdraw", ws.handleEmergencyWithdraw).Methods("POST")
	api.HandleFunc("/pools/{pid:[0-9]+}/update", ws.handleUpdatePool).Methods("POST")

	// Admin calls; the engine checks the caller
	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/pools", ws.handleAddPool).Methods("POST")
	admin.HandleFunc("/pools/mass-update", ws.handleMassUpdate).Methods("POST")
	admin.HandleFunc("/pools/{pid:[0-9]+}", ws.handleSetPool).Methods("POST")
	admin.HandleFunc("/pools/{pid:[0-9]+}/strategy/queue", ws.handleQueueStrategy).Methods("POST")
	admin.HandleFunc("/pools/{pid:[0-9]+}/strategy/finalize", ws.handleFinalizeStrategy).Methods("POST")
	admin.HandleFunc("/emission", ws.handleUpdateEmission).Methods("POST")
	admin.HandleFunc("/fee-address", ws.handleSetFeeAddress).Methods("POST")
	admin.HandleFunc("/dev-address", ws.handleSetDevAddress).Methods("POST")
	admin.HandleFunc("/owner", ws.handleTransferOwnership).Methods("POST")
	admin.HandleFunc("/recover", ws.handleRecoverAsset).Methods("POST")
	admin.HandleFunc("/fees/distribute", ws.handleDistributeFees).Methods("POST")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler returns the routed handler, for tests and embedding.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start starts the web server and blocks until it stops.
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server; Start then returns nil.
func (ws *WebServer) Shutdown(ctx context.Context) error {
	return ws.server.Shutdown(ctx)
}

// handleHealth reports store reachability and runtime stats
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	storeHealthy := true
	if err := ws.store.Ping(r.Context()); err != nil {
		webLogger.Warn().Err(err).Msg("Store ping failed")
		storeHealthy = false
	}

	pools, poolsErr := ws.engine.PoolLength(r.Context())

	overallStatus := "OK"
	statusCode := http.StatusOK
	if !storeHealthy || poolsErr != nil {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.started).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "crabfarm",
			"version": "1.0.0",
		},
		"farm_status": map[string]interface{}{
			"store_healthy": storeHealthy,
			"pools":         pools,
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

func (ws *WebServer) handleGetParams(w http.ResponseWriter, r *http.Request) {
	params, err := ws.engine.Params(r.Context())
	if err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, params)
}

func (ws *WebServer) handleGetPools(w http.ResponseWriter, r *http.Request) {
	pools, err := ws.engine.Pools(r.Context())
	if err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"pools": pools,
		"count": len(pools),
	})
}

// PoolView is a pool with its live exchange rate.
type PoolView struct {
	types.Pool
	PricePerFullShare               sdkmath.Int `json:"price_per_full_share"`
	UnderlyingBalanceWithInvestment sdkmath.Int `json:"underlying_balance_with_investment"`
}

func (ws *WebServer) handleGetPool(w http.ResponseWriter, r *http.Request) {
	pid, ok := ws.poolID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	pool, err := ws.engine.Pool(ctx, pid)
	if err != nil {
		ws.writeEngineError(w, err)
		return
	}
	view := PoolView{Pool: pool}
	if view.PricePerFullShare, err = ws.engine.PricePerFullShare(ctx, pid); err != nil {
		ws.writeEngineError(w, err)
		return
	}
	if view.UnderlyingBalanceWithInvestment, err = ws.engine.UnderlyingBalanceWithInvestment(ctx, pid); err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, view)
}

// UserView is a user's position with what it is currently worth.
type UserView struct {
	types.UserPosition
	User          string      `json:"user"`
	PendingReward sdkmath.Int `json:"pending_reward"`
	StakeValue    sdkmath.Int `json:"stake_value"`
}

func (ws *WebServer) handleGetUser(w http.ResponseWriter, r *http.Request) {
	pid, ok := ws.poolID(w, r)
	if !ok {
		return
	}
	ctx, user := r.Context(), mux.Vars(r)["user"]
	pos, err := ws.engine.UserInfo(ctx, pid, user)
	if err != nil {
		ws.writeEngineError(w, err)
		return
	}
	view := UserView{UserPosition: pos, User: user}
	if view.PendingReward, err = ws.engine.PendingReward(ctx, pid, user); err != nil {
		ws.writeEngineError(w, err)
		return
	}
	if view.StakeValue, err = ws.engine.StakeValue(ctx, pid, user); err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, view)
}

func (ws *WebServer) handleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	pid, ok := ws.poolID(w, r)
	if !ok {
		return
	}
	limit := queryLimit(r)
	snapshots, err := ws.store.RecentSnapshots(r.Context(), pid, limit)
	if err != nil {
		webLogger.Error().Err(err).Uint64("poolId", uint64(pid)).Msg("Failed to get snapshots")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve snapshots")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"snapshots": snapshots,
		"count":     len(snapshots),
		"limit":     limit,
	})
}

func (ws *WebServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r)
	events, err := ws.engine.RecentEvents(r.Context(), limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent events")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
		"limit":  limit,
	})
}

func (ws *WebServer) handleGetEventSummary(w http.ResponseWriter, r *http.Request) {
	var pool *types.PoolID
	if raw := r.URL.Query().Get("pool"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid pool ID")
			return
		}
		pid := types.PoolID(id)
		pool = &pid
	}
	events, err := ws.engine.RecentEvents(r.Context(), queryLimit(r))
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent events")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, state.SummarizeEvents(events, pool))
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// writeEngineError maps the error taxonomy onto HTTP status codes.
func (ws *WebServer) writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, types.ErrInvalidPool):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrPreconditionViolation):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrTimelockViolation), errors.Is(err, types.ErrReentrantCall):
		status = http.StatusConflict
	case errors.Is(err, types.ErrExternalCallFailure):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		webLogger.Error().Err(err).Msg("Engine call failed")
	}
	ws.writeErrorResponse(w, status, err.Error())
}

func (ws *WebServer) poolID(w http.ResponseWriter, r *http.Request) (types.PoolID, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["pid"], 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid pool ID")
		return 0, false
	}
	return types.PoolID(id), true
}

// queryLimit reads ?limit=; the store clamps it.
func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return limit
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+CallerHeader)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests and counts them per route template
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapper.statusCode)).Inc()

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("caller", r.Header.Get(CallerHeader)).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
