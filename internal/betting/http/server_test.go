package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/esports-bet-core/internal/betting"
	"github.com/radieske/esports-bet-core/internal/domain"
	"github.com/radieske/esports-bet-core/internal/odds"
	regmem "github.com/radieske/esports-bet-core/internal/registry/memory"
	"github.com/radieske/esports-bet-core/internal/shared/httpx"
	"github.com/radieske/esports-bet-core/internal/shared/money"
	stmem "github.com/radieske/esports-bet-core/internal/store/memory"
	"github.com/radieske/esports-bet-core/internal/wallet"
	wallethttp "github.com/radieske/esports-bet-core/internal/wallet/http"
)

var now = time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

func newServer(t *testing.T) (*httptest.Server, *regmem.Registry) {
	t.Helper()
	ctx := context.Background()

	st := stmem.New()
	reg := regmem.New()
	reg.Now = func() time.Time { return now }
	reg.PutMatch(domain.Match{
		ID: "m1", Sides: domain.Sides{A: "t1", B: "t2"},
		Status: domain.MatchScheduled, BettingEnabled: true, StartsAt: now.Add(time.Hour),
	})
	reg.PutUser("alice", true)
	reg.PutUser("ivan", false)

	ledger := wallet.NewLedger(st, reg, zap.NewNop())
	require.NoError(t, ledger.OpenWallet(ctx, "alice"))
	require.NoError(t, ledger.OpenWallet(ctx, "ivan"))
	_, err := ledger.Deposit(ctx, "alice", money.MustParse("50.00"), "seed")
	require.NoError(t, err)

	mgr, err := betting.NewManager(betting.Deps{
		Store:   st,
		Ledger:  ledger,
		Odds:    odds.NewEngine(odds.DefaultPolicy()),
		Matches: reg,
		Users:   reg,
		Cache:   odds.NewMemoryCache(),
		Log:     zap.NewNop(),
	})
	require.NoError(t, err)

	api := &API{
		Bets: mgr,
		Log:  zap.NewNop(),
		Mounts: map[string]http.Handler{
			"/wallets": (&wallethttp.API{Ledger: ledger, Log: zap.NewNop()}).Router(),
		},
	}
	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return srv, reg
}

func do(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	if resp.StatusCode != http.StatusNoContent {
		var raw any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
		if m, ok := raw.(map[string]any); ok {
			out = m
		} else {
			out["items"] = raw
		}
	}
	return resp.StatusCode, out
}

func TestPlaceCancelAndErrors(t *testing.T) {
	srv, _ := newServer(t)

	status, body := do(t, http.MethodPost, srv.URL+"/v1/bets",
		`{"userId":"alice","matchId":"m1","sideId":"t1","stake":"20.00"}`)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "PENDING", body["status"])
	assert.Equal(t, "40.00", body["potentialPayout"])
	betID := body["betId"].(string)

	cases := []struct {
		name   string
		body   string
		status int
		code   domain.Code
	}{
		{"duplicate", `{"userId":"alice","matchId":"m1","sideId":"t2","stake":"5.00"}`, http.StatusConflict, domain.CodeDuplicateBet},
		{"missing side", `{"userId":"alice","matchId":"m1","stake":"5.00"}`, http.StatusBadRequest, domain.CodeValidation},
		{"stake not numeric", `{"userId":"alice","matchId":"m1","sideId":"t1","stake":"abc"}`, http.StatusBadRequest, domain.CodeValidation},
		{"unknown field", `{"userId":"alice","matchId":"m1","sideId":"t1","stake":"5","x":1}`, http.StatusBadRequest, domain.CodeValidation},
		{"inactive", `{"userId":"ivan","matchId":"m1","sideId":"t1","stake":"5.00"}`, http.StatusForbidden, domain.CodeAccountInactive},
		{"unknown user", `{"userId":"ghost","matchId":"m1","sideId":"t1","stake":"5.00"}`, http.StatusNotFound, domain.CodeUnknownUser},
		{"stake range", `{"userId":"alice","matchId":"m1","sideId":"t1","stake":"0.50"}`, http.StatusBadRequest, domain.CodeStakeOutOfRange},
		{"fractional cents below min", `{"userId":"alice","matchId":"m1","sideId":"t1","stake":"0.995"}`, http.StatusBadRequest, domain.CodeValidation},
		{"fractional cents above max", `{"userId":"alice","matchId":"m1","sideId":"t1","stake":"10000.004"}`, http.StatusBadRequest, domain.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := do(t, http.MethodPost, srv.URL+"/v1/bets", tc.body)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, string(tc.code), body["code"])
		})
	}

	status, body = do(t, http.MethodGet, srv.URL+"/v1/bets/"+betID, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "t1", body["selectedSideId"])

	status, body = do(t, http.MethodGet, srv.URL+"/v1/bets/nope", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(domain.CodeValidation), body["code"])

	status, _ = do(t, http.MethodGet, srv.URL+"/v1/bets/9b2c6f1e-4a1d-4e55-8a55-0c1f7b0d9e21", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = do(t, http.MethodPost, srv.URL+"/v1/bets/abc/cancel", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(domain.CodeValidation), body["code"])

	status, body = do(t, http.MethodPost, srv.URL+"/v1/bets/"+betID+"/cancel", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "CANCELLED", body["status"])

	status, body = do(t, http.MethodPost, srv.URL+"/v1/bets/"+betID+"/cancel", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, string(domain.CodeCannotCancel), body["code"])

	status, body = do(t, http.MethodGet, srv.URL+"/v1/wallets/alice", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "50.00", body["balance"])
}

func TestInsufficientFundsIsPaymentRequired(t *testing.T) {
	srv, _ := newServer(t)
	status, body := do(t, http.MethodPost, srv.URL+"/v1/bets",
		`{"userId":"alice","matchId":"m1","sideId":"t1","stake":"50.01"}`)
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, string(domain.CodeInsufficientFunds), body["code"])
}

func TestSettlementTriggerAndReports(t *testing.T) {
	srv, reg := newServer(t)
	status, _ := do(t, http.MethodPost, srv.URL+"/v1/bets",
		`{"userId":"alice","matchId":"m1","sideId":"t1","stake":"20.00"}`)
	require.Equal(t, http.StatusCreated, status)

	status, body := do(t, http.MethodPost, srv.URL+"/v1/matches/m1/settle", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, string(domain.CodeMatchNotCompleted), body["code"])

	status, body = do(t, http.MethodGet, srv.URL+"/v1/matches/m1/odds", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "20.00", body["totalPool"])

	status, body = do(t, http.MethodGet, srv.URL+"/v1/matches/m1/risk?limit=10.00", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["atRiskLimit"])

	require.True(t, reg.Complete("m1", "t1"))
	status, body = do(t, http.MethodPost, srv.URL+"/v1/matches/m1/settle", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["won"])
	assert.Equal(t, "40.00", body["totalPaid"])

	status, body = do(t, http.MethodGet, srv.URL+"/v1/users/alice/report", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "20.00", body["totalWinnings"])

	status, body = do(t, http.MethodGet, srv.URL+"/v1/wallets/alice/history?kind=PAYOUT", "")
	require.Equal(t, http.StatusOK, status)
	items := body["items"].([]any)
	require.Len(t, items, 1)

	status, body = do(t, http.MethodPost, srv.URL+"/v1/settlement/run", "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["items"])

	status, _ = do(t, http.MethodGet, srv.URL+"/v1/bets", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = do(t, http.MethodGet, srv.URL+"/v1/bets?status=WON", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["items"], 1)
}

func TestStatusOfCoversEveryCode(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, httpx.StatusOf(domain.CodeInconsistentState))
	assert.Equal(t, http.StatusInternalServerError, httpx.StatusOf(domain.CodeInternal))
	assert.Equal(t, http.StatusConflict, httpx.StatusOf(domain.CodeInvalidSide))
	assert.Equal(t, http.StatusConflict, httpx.StatusOf(domain.CodeMatchNotBettable))
	assert.Equal(t, http.StatusNotFound, httpx.StatusOf(domain.CodeMatchNotFound))
}
