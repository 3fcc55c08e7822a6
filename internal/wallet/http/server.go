// Package httpapi expõe as carteiras: saldo, extrato, abertura e movimentações externas
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/radieske/esports-bet-core/internal/domain"
	"github.com/radieske/esports-bet-core/internal/shared/httpx"
	"github.com/radieske/esports-bet-core/internal/shared/money"
	"github.com/radieske/esports-bet-core/internal/wallet"
)

var validate = validator.New()

type MovementRequest struct {
	Amount string `json:"amount" validate:"required,numeric"`
	Note   string `json:"note,omitempty" validate:"max=255"`
}

func (m *MovementRequest) Validate() error {
	return validate.Struct(m)
}

type WalletResponse struct {
	UserID  string      `json:"userId"`
	Balance money.Money `json:"balance"`
}

// API é o adaptador HTTP do Ledger
type API struct {
	Ledger *wallet.Ledger
	Log    *zap.Logger
}

// Router é montado sob /v1/wallets
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/{userId}", a.getWallet)
	r.Get("/{userId}/history", a.history)
	r.Post("/{userId}/open", a.open)
	r.Post("/{userId}/deposit", a.deposit)
	r.Post("/{userId}/withdraw", a.withdraw)
	return r
}

func (a *API) getWallet(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	bal, err := a.Ledger.BalanceOf(r.Context(), userID)
	if err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, WalletResponse{UserID: userID, Balance: bal})
}

// history: ?kind=STAKE&kind=PAYOUT&from=&to=&limit=
func (a *API) history(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f domain.HistoryFilter
	for _, k := range q["kind"] {
		kind := domain.EntryKind(k)
		if !kind.IsCredit() && !kind.IsDebit() {
			httpx.WriteError(w, a.Log, domain.Newf(domain.CodeValidation, "unknown entry kind %q", k))
			return
		}
		f.Kinds = append(f.Kinds, kind)
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httpx.WriteError(w, a.Log, domain.Newf(domain.CodeValidation, "invalid limit %q", raw))
			return
		}
		f.Limit = n
	}
	for key, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(w, a.Log, domain.Newf(domain.CodeValidation, "%s must be RFC3339", key))
			return
		}
		*dst = t
	}

	entries, err := a.Ledger.HistoryOf(r.Context(), chi.URLParam(r, "userId"), f)
	if err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, entries)
}

func (a *API) open(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := a.Ledger.OpenWallet(r.Context(), userID); err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	bal, err := a.Ledger.BalanceOf(r.Context(), userID)
	if err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, WalletResponse{UserID: userID, Balance: bal})
}

func (a *API) deposit(w http.ResponseWriter, r *http.Request) {
	a.move(w, r, a.Ledger.Deposit)
}

func (a *API) withdraw(w http.ResponseWriter, r *http.Request) {
	a.move(w, r, a.Ledger.Withdraw)
}

type movementFunc func(ctx context.Context, userID string, amount money.Money, note string) (*domain.LedgerEntry, error)

func (a *API) move(w http.ResponseWriter, r *http.Request, fn movementFunc) {
	var req MovementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	amount, err := money.ParseExact(req.Amount)
	if err != nil {
		httpx.WriteError(w, a.Log, domain.Newf(domain.CodeValidation, "invalid amount %q", req.Amount))
		return
	}
	entry, err := fn(r.Context(), chi.URLParam(r, "userId"), amount, req.Note)
	if err != nil {
		httpx.WriteError(w, a.Log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, entry)
}
