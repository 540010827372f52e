package web

import (
	"context"
	"encoding/json"
	"net/http"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/crabfarm/internal/farm"
	"github.com/elys-network/crabfarm/internal/token"
	"github.com/elys-network/crabfarm/internal/types"
)

type depositRequest struct {
	Amount sdkmath.Int `json:"amount"`
	// Beneficiary defaults to the caller.
	Beneficiary string `json:"beneficiary,omitempty"`
}

type withdrawRequest struct {
	Shares sdkmath.Int `json:"shares"`
}

type addPoolRequest struct {
	LPToken        string      `json:"lp_token"`
	AllocPoint     uint64      `json:"alloc_point"`
	DepositFeeBP   uint32      `json:"deposit_fee_bp"`
	UnderlyingUnit sdkmath.Int `json:"underlying_unit"`
	WithUpdate     bool        `json:"with_update"`
}

type setPoolRequest struct {
	AllocPoint   uint64 `json:"alloc_point"`
	DepositFeeBP uint32 `json:"deposit_fee_bp"`
	WithUpdate   bool   `json:"with_update"`
}

type strategyRequest struct {
	Name string `json:"name"`
}

type emissionRequest struct {
	RewardPerBlock sdkmath.Int `json:"reward_per_block"`
}

type addressRequest struct {
	Address string `json:"address"`
}

type recoverRequest struct {
	Denom  string      `json:"denom"`
	Amount sdkmath.Int `json:"amount"`
	To     string      `json:"to"`
}

type distributeRequest struct {
	Asset  string      `json:"asset"`
	MinOut sdkmath.Int `json:"min_out"`
}

// caller returns the acting identity or writes 401.
func (ws *WebServer) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	who := r.Header.Get(CallerHeader)
	if who == "" {
		ws.writeErrorResponse(w, http.StatusUnauthorized, "Missing "+CallerHeader+" header")
		return "", false
	}
	return who, true
}

// decode reads a JSON body into v, rejecting unknown fields. An empty body leaves v untouched.
func (ws *WebServer) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func (ws *WebServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	pid, ok := ws.poolID(w, r)
	if !ok {
		return
	}
	who, ok := ws.caller(w, r)
	if !ok {
		return
	}
	var req depositRequest
	if !ws.decode(w, r, &req) {
		return
	}
	if req.Beneficiary == "" {
		req.Beneficiary = who
	}
	res, err := ws.engine.Deposit(r.Context(), pid, who, req.Beneficiary, req.Amount)
	if err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, res)
}

func (ws *WebServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	pid, ok := ws.poolID(w, r)
	if !ok {
		return
	}
	who, ok := ws.caller(w, r)
	if !ok {
		return
	}
	var req withdrawRequest
	if !ws.decode(w, r, &req) {
		return
	}
	res, err := ws.engine.Withdraw(r.Context(), pid, who, req.Shares)
	if err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, res)
}

func (ws *WebServer) handleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	pid, ok := ws.poolID(w, r)
	if !ok {
		return
	}
	who, ok := ws.caller(w, r)
	if !ok {
		return
	}
	res, err := ws.engine.EmergencyWithdraw(r.Context(), pid, who)
	if err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, res)
}

func (ws *WebServer) handleUpdatePool(w http.ResponseWriter, r *http.Request) {
	pid, ok := ws.poolID(w, r)
	if !ok {
		return
	}
	if err := ws.engine.UpdatePool(r.Context(), pid); err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeOK(w)
}

func (ws *WebServer) handleAddPool(w http.ResponseWriter, r *http.Request) {
	who, ok := ws.caller(w, r)
	if !ok {
		return
	}
	var req addPoolRequest
	if !ws.decode(w, r, &req) {
		return
	}
	pid, err := ws.engine.AddPool(r.Context(), who, farm.PoolConfig{
		LPToken:        req.LPToken,
		AllocPoint:     req.AllocPoint,
		DepositFeeBP:   req.DepositFeeBP,
		UnderlyingUnit: req.UnderlyingUnit,
	}, req.WithUpdate)
	if err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusCreated, map[string]interface{}{"pool_id": pid})
}

func (ws *WebServer) handleSetPool(w http.ResponseWriter, r *http.Request) {
	pid, ok := ws.poolID(w, r)
	if !ok {
		return
	}
	who, ok := ws.caller(w, r)
	if !ok {
		return
	}
	var req setPoolRequest
	if !ws.decode(w, r, &req) {
		return
	}
	if err := ws.engine.SetPool(r.Context(), who, pid, req.AllocPoint, req.DepositFeeBP, req.WithUpdate); err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeOK(w)
}

func (ws *WebServer) handleMassUpdate(w http.ResponseWriter, r *http.Request) {
	if err := ws.engine.MassUpdatePools(r.Context()); err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeOK(w)
}

func (ws *WebServer) handleQueueStrategy(w http.ResponseWriter, r *http.Request) {
	ws.strategyCall(w, r, ws.engine.QueueStrategy)
}

func (ws *WebServer) handleFinalizeStrategy(w http.ResponseWriter, r *http.Request) {
	ws.strategyCall(w, r, ws.engine.FinalizeStrategy)
}

func (ws *WebServer) strategyCall(w http.ResponseWriter, r *http.Request, call func(ctx context.Context, caller string, pid types.PoolID, name string) error) {
	pid, ok := ws.poolID(w, r)
	if !ok {
		return
	}
	who, ok := ws.caller(w, r)
	if !ok {
		return
	}
	var req strategyRequest
	if !ws.decode(w, r, &req) {
		return
	}
	if err := call(r.Context(), who, pid, req.Name); err != nil {
		ws.writeEngineError(w, err)
		return
	}
	pool, err := ws.engine.Pool(r.Context(), pid)
	if err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, pool.Strategy)
}

func (ws *WebServer) handleUpdateEmission(w http.ResponseWriter, r *http.Request) {
	who, ok := ws.caller(w, r)
	if !ok {
		return
	}
	var req emissionRequest
	if !ws.decode(w, r, &req) {
		return
	}
	if err := ws.engine.UpdateEmissionRate(r.Context(), who, req.RewardPerBlock); err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeOK(w)
}

func (ws *WebServer) handleSetFeeAddress(w http.ResponseWriter, r *http.Request) {
	ws.addressCall(w, r, ws.engine.SetFeeAddress)
}

func (ws *WebServer) handleSetDevAddress(w http.ResponseWriter, r *http.Request) {
	ws.addressCall(w, r, ws.engine.SetDevAddress)
}

func (ws *WebServer) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	ws.addressCall(w, r, ws.engine.TransferOwnership)
}

func (ws *WebServer) addressCall(w http.ResponseWriter, r *http.Request, call func(ctx context.Context, caller, addr string) error) {
	who, ok := ws.caller(w, r)
	if !ok {
		return
	}
	var req addressRequest
	if !ws.decode(w, r, &req) {
		return
	}
	if err := call(r.Context(), who, req.Address); err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeOK(w)
}

func (ws *WebServer) handleRecoverAsset(w http.ResponseWriter, r *http.Request) {
	who, ok := ws.caller(w, r)
	if !ok {
		return
	}
	var req recoverRequest
	if !ws.decode(w, r, &req) {
		return
	}
	if err := ws.engine.RecoverAsset(r.Context(), who, token.Coin(req.Denom, req.Amount), req.To); err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeOK(w)
}

// handleDistributeFees is owner-only; the distributor itself has no notion of callers.
func (ws *WebServer) handleDistributeFees(w http.ResponseWriter, r *http.Request) {
	if ws.fees == nil {
		ws.writeErrorResponse(w, http.StatusNotImplemented, "Fee distribution is not configured")
		return
	}
	who, ok := ws.caller(w, r)
	if !ok {
		return
	}
	params, err := ws.engine.Params(r.Context())
	if err != nil {
		ws.writeEngineError(w, err)
		return
	}
	if who != params.Owner {
		ws.writeEngineError(w, types.ErrUnauthorized)
		return
	}
	var req distributeRequest
	if !ws.decode(w, r, &req) {
		return
	}
	res, err := ws.fees.Distribute(r.Context(), req.Asset, req.MinOut)
	if err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, res)
}

func (ws *WebServer) writeOK(w http.ResponseWriter) {
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"ok": true})
}
