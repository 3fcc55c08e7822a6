// Package httpapi expõe o core de apostas via REST: apostas, odds das partidas,
// relatórios e gatilhos de liquidação.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/radieske/esports-bet-core/internal/betting"
	"github.com/radieske/esports-bet-core/internal/domain"
	"github.com/radieske/esports-bet-core/internal/shared/httpx"
	"github.com/radieske/esports-bet-core/internal/shared/money"
)

// API é o adaptador HTTP do Manager; não contém regra de negócio
type API struct {
	Bets *betting.Manager
	Log  *zap.Logger

	// Stream atende /ws quando informado (hub de odds)
	Stream http.HandlerFunc
	// Mounts são sub-roteadores extras (ex.: carteiras)
	Mounts map[string]http.Handler
}

// Router retorna o roteador com middlewares globais e rotas /v1
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/v1", func(v chi.Router) {
		v.Route("/bets", func(b chi.Router) {
			b.Post("/", a.placeBet)
			b.Get("/", a.listBets)
			b.Get("/pending", a.listPending)
			b.Post("/quote", a.quote)
			b.Get("/{id}", a.getBet)
			b.Post("/{id}/cancel", a.cancelBet)
		})

		v.Route("/matches/{id}", func(m chi.Router) {
			m.Get("/odds", a.getOdds)
			m.Get("/margin", a.getMargin)
			m.Get("/risk", a.getRisk)
			m.Get("/report", a.getMatchReport)
			m.Post("/settle", a.settleMatch)
			m.Post("/void", a.voidMatch)
		})

		v.Get("/users/{id}/report", a.getUserReport)
		v.Get("/statistics", a.getStatistics)
		v.Post("/settlement/run", a.settleAll)
		v.Post("/odds/recalculate", a.recalculate)

		for prefix, h := range a.Mounts {
			v.Mount(prefix, h)
		}
	})

	if a.Stream != nil {
		r.Get("/ws", a.Stream)
	}
	return r
}

func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	var req PlaceBetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	stake, err := parseMoney(req.Stake)
	if err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	bet, err := a.Bets.PlaceBet(r.Context(), req.UserID, req.MatchID, req.SideID, stake)
	if err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, bet)
}

func (a *API) quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	stake, err := parseMoney(req.Stake)
	if err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	payout, odds, err := a.Bets.QuotePayout(r.Context(), req.MatchID, req.SideID, stake)
	if err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, QuoteResponse{
		MatchID:         req.MatchID,
		SideID:          req.SideID,
		Stake:           stake,
		Odds:            odds.StringFixed(2),
		PotentialPayout: payout,
	})
}

func (a *API) getBet(w http.ResponseWriter, r *http.Request) {
	bet, err := a.Bets.GetBet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bet)
}

func (a *API) cancelBet(w http.ResponseWriter, r *http.Request) {
	bet, err := a.Bets.CancelBet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bet)
}

// listBets: ?userId= &matchId= &status= &from= &to= (RFC3339); ao menos um filtro
func (a *API) listBets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, matchID := q.Get("userId"), q.Get("matchId")
	status := domain.BetStatus(q.Get("status"))

	var (
		bets []domain.Bet
		err  error
	)
	switch {
	case userID != "" && status != "":
		bets, err = a.Bets.ListUserBetsByStatus(r.Context(), userID, status)
	case userID != "":
		bets, err = a.Bets.ListBetsForUser(r.Context(), userID)
	case matchID != "":
		bets, err = a.Bets.ListBetsForMatch(r.Context(), matchID)
	case status != "":
		bets, err = a.Bets.ListBetsByStatus(r.Context(), status)
	case q.Get("from") != "" || q.Get("to") != "":
		from, ferr := parseTime(q.Get("from"))
		to, terr := parseTime(q.Get("to"))
		if ferr != nil || terr != nil {
			httpx.WriteError(w, a.Log, domain.Newf(domain.CodeValidation, "from/to must be RFC3339"))
			return
		}
		bets, err = a.Bets.ListBetsBetween(r.Context(), from, to)
	default:
		err = domain.Newf(domain.CodeValidation, "one of userId, matchId, status, from, to is required")
	}
	if err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bets)
}

func (a *API) listPending(w http.ResponseWriter, r *http.Request) {
	bets, err := a.Bets.ListPendingBets(r.Context())
	if err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bets)
}

// getOdds devolve o snapshot de exibição, preferencialmente do cache
func (a *API) getOdds(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Bets.CachedOdds(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, snap)
}

func (a *API) getMargin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	margin, err := a.Bets.BookmakerMargin(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, MarginResponse{MatchID: id, Margin: margin.StringFixed(2)})
}

// getRisk aceita ?limit=; sem ele vale o limite configurado
func (a *API) getRisk(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := a.Bets.RiskPoolLimit()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		l, err := parseMoney(raw)
		if err != nil {
			httpx.WriteError(w, a.Log, err)
			return
		}
		limit = l
	}
	at, err := a.Bets.IsAtRiskLimit(r.Context(), id, limit)
	if err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, RiskResponse{MatchID: id, Limit: limit, AtRiskLimit: at})
}

func (a *API) getMatchReport(w http.ResponseWriter, r *http.Request) {
	rep, err := a.Bets.MatchReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rep)
}

func (a *API) settleMatch(w http.ResponseWriter, r *http.Request) {
	rep, err := a.Bets.SettleMatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rep)
}

func (a *API) voidMatch(w http.ResponseWriter, r *http.Request) {
	rep, err := a.Bets.VoidMatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rep)
}

func (a *API) settleAll(w http.ResponseWriter, r *http.Request) {
	reps, err := a.Bets.SettleAllCompletedMatches(r.Context())
	if err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	if reps == nil {
		reps = []betting.SettlementReport{}
	}
	httpx.WriteJSON(w, http.StatusOK, reps)
}

func (a *API) recalculate(w http.ResponseWriter, r *http.Request) {
	var req RecalculateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	if err := a.Bets.RecalculateOdds(r.Context(), req.MatchIDs); err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) getUserReport(w http.ResponseWriter, r *http.Request) {
	st, err := a.Bets.UserReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, st)
}

func (a *API) getStatistics(w http.ResponseWriter, r *http.Request) {
	st, err := a.Bets.Statistics(r.Context())
	if err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, st)
}

func parseMoney(s string) (money.Money, error) {
	m, err := money.ParseExact(s)
	if err != nil {
		return money.Zero(), domain.Newf(domain.CodeValidation, "invalid amount %q", s)
	}
	return m, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
