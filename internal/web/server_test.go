package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/crabfarm/internal/chain"
	"github.com/elys-network/crabfarm/internal/farm"
	"github.com/elys-network/crabfarm/internal/feedist"
	"github.com/elys-network/crabfarm/internal/state"
	"github.com/elys-network/crabfarm/internal/strategy"
	"github.com/elys-network/crabfarm/internal/token"
)

type testServer struct {
	t    *testing.T
	bank *token.MemBank
	fake *clockwork.FakeClock
	dir  *strategy.Directory
	ws   *WebServer
}

func newTestServer(t *testing.T, withFees bool) *testServer {
	t.Helper()
	store, err := state.OpenMemLevelStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ts := &testServer{t: t, bank: token.NewMemBank(), fake: clockwork.NewFakeClock(), dir: strategy.NewDirectory()}
	engine, err := farm.NewEngine(farm.Config{
		Bank:           ts.bank,
		Clock:          chain.NewBlockClock(ts.fake, time.Second, 100),
		Store:          store,
		Strategies:     ts.dir,
		VaultAddress:   "vault",
		Owner:          "owner",
		DevAddress:     "dev",
		FeeAddress:     "feecollector",
		RewardDenom:    "ucrab",
		RewardPerBlock: sdkmath.NewInt(10),
	})
	require.NoError(t, err)
	require.NoError(t, engine.Restore(context.Background()))

	var fees *feedist.Distributor
	if withFees {
		x := feedist.NewRateExchange(ts.bank)
		require.NoError(t, x.SetRate("ulp", "ucrab", sdkmath.LegacyNewDec(2)))
		fees, err = feedist.NewDistributor(feedist.Config{
			Bank: ts.bank, Exchange: x, Ledger: engine, Account: "feecollector", Recipient: "vault", RewardDenom: "ucrab",
		})
		require.NoError(t, err)
	}
	ts.ws = NewWebServer("", engine, store, fees)
	return ts
}

func (ts *testServer) do(method, path, caller, body string) (int, map[string]interface{}) {
	ts.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if caller != "" {
		req.Header.Set(CallerHeader, caller)
	}
	rec := httptest.NewRecorder()
	ts.ws.Handler().ServeHTTP(rec, req)

	out := map[string]interface{}{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func (ts *testServer) fund(user, denom string, amount int64) {
	ts.t.Helper()
	require.NoError(ts.t, ts.bank.Mint(context.Background(), user, token.Coin(denom, sdkmath.NewInt(amount))))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, false)
	code, body := ts.do("GET", "/health", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", body["status"])

	code, _ = ts.do("GET", "/api/health", "", "")
	require.Equal(t, http.StatusOK, code)
}

func TestStakingRoundTrip(t *testing.T) {
	ts := newTestServer(t, false)

	code, _ := ts.do("POST", "/api/admin/pools", "", `{"lp_token":"ulp","alloc_point":100}`)
	require.Equal(t, http.StatusUnauthorized, code)
	code, _ = ts.do("POST", "/api/admin/pools", "alice", `{"lp_token":"ulp","alloc_point":100}`)
	require.Equal(t, http.StatusForbidden, code)
	code, body := ts.do("POST", "/api/admin/pools", "owner", `{"lp_token":"ulp","alloc_point":100}`)
	require.Equal(t, http.StatusCreated, code)
	assert.EqualValues(t, 0, body["pool_id"])

	ts.fund("alice", "ulp", 100)
	code, body = ts.do("POST", "/api/pools/0/deposit", "alice", `{"amount":"100"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "100", body["shares"])

	ts.fake.Advance(10 * time.Second)
	code, body = ts.do("GET", "/api/pools/0/users/alice", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "100", body["amount"])
	assert.Equal(t, "100", body["pending_reward"])
	assert.Equal(t, "100", body["stake_value"])

	code, body = ts.do("GET", "/api/pools/0", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1000000000000", body["price_per_full_share"])
	assert.Equal(t, "ulp", body["lp_token"])

	code, _ = ts.do("POST", "/api/pools/0/withdraw", "alice", `{"shares":"101"}`)
	require.Equal(t, http.StatusBadRequest, code)

	code, body = ts.do("POST", "/api/pools/0/withdraw", "alice", `{"shares":"100"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "100", body["payout"])
	assert.Equal(t, "100", body["reward"])
	assert.True(t, ts.bank.Balance("alice", "ucrab").Equal(sdkmath.NewInt(100)))

	code, body = ts.do("GET", "/api/events?limit=2", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body["count"])
	events := body["events"].([]interface{})
	assert.Equal(t, "WITHDRAW", events[0].(map[string]interface{})["kind"])

	code, body = ts.do("GET", "/api/events/summary?pool=0", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "100", body["deposited"])
	assert.Equal(t, "100", body["withdrawn"])
	assert.EqualValues(t, 2, body["unique_users"], "owner added the pool, alice staked")
}

func TestRequestErrors(t *testing.T) {
	ts := newTestServer(t, false)
	code, _ := ts.do("GET", "/api/pools/9", "", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = ts.do("POST", "/api/pools/9/deposit", "alice", `{"amount":"1"}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = ts.do("POST", "/api/admin/pools", "owner", `{"lp_token":"ulp","weight":1}`)
	assert.Equal(t, http.StatusBadRequest, code, "unknown field")

	code, _ = ts.do("POST", "/api/admin/emission", "owner", `{"reward_per_block":"-5"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do("GET", "/api/events/summary?pool=x", "", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStrategyAdminRoutes(t *testing.T) {
	ts := newTestServer(t, false)
	lend, err := strategy.NewLending(strategy.LendingConfig{
		Name: "lend", Underlying: "ulp", Account: "lend-account", Market: "lend-market", Vault: "vault",
	}, ts.bank)
	require.NoError(t, err)
	require.NoError(t, ts.dir.Register(lend))

	code, _ := ts.do("POST", "/api/admin/pools", "owner", `{"lp_token":"ulp","alloc_point":100}`)
	require.Equal(t, http.StatusCreated, code)

	code, body := ts.do("POST", "/api/admin/pools/0/strategy/queue", "owner", `{"name":"lend"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["pending"])
	assert.Equal(t, "lend", body["next"])

	code, _ = ts.do("POST", "/api/admin/pools/0/strategy/finalize", "owner", `{"name":"lend"}`)
	assert.Equal(t, http.StatusConflict, code, "timelock")

	ts.fake.Advance(strategy.SwitchDelay)
	code, body = ts.do("POST", "/api/admin/pools/0/strategy/finalize", "owner", `{"name":"lend"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "lend", body["active"])
	assert.Equal(t, false, body["pending"])
}

func TestAddressRoutes(t *testing.T) {
	ts := newTestServer(t, false)
	code, _ := ts.do("POST", "/api/admin/fee-address", "feecollector", `{"address":"treasury"}`)
	require.Equal(t, http.StatusOK, code)
	code, _ = ts.do("POST", "/api/admin/owner", "owner", `{"address":"alice"}`)
	require.Equal(t, http.StatusOK, code)

	code, body := ts.do("GET", "/api/params", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice", body["owner"])
	assert.Equal(t, "treasury", body["fee_address"])
}

func TestDistributeFees(t *testing.T) {
	ts := newTestServer(t, false)
	code, _ := ts.do("POST", "/api/admin/fees/distribute", "owner", `{"asset":"ulp"}`)
	assert.Equal(t, http.StatusNotImplemented, code)

	ts = newTestServer(t, true)
	ts.fund("feecollector", "ulp", 30)
	code, _ = ts.do("POST", "/api/admin/fees/distribute", "alice", `{"asset":"ulp"}`)
	assert.Equal(t, http.StatusForbidden, code)

	code, body := ts.do("POST", "/api/admin/fees/distribute", "owner", `{"asset":"ulp","min_out":"60"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "60", body["reward"])
	assert.True(t, ts.bank.Balance("vault", "ucrab").Equal(sdkmath.NewInt(60)))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, false)
	ts.do("GET", "/api/pools", "", "")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	ts.ws.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `crabfarm_http_requests_total{method="GET",route="/api/pools",status="200"}`)
}
