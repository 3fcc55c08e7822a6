// Package betting orquestra o ciclo de vida das apostas: validação, colocação,
// cancelamento e liquidação. É o único chamador do Ledger e do Engine de odds
// para movimentações ligadas a apostas.
package betting

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/esports-bet-core/internal/odds"
	"github.com/radieske/esports-bet-core/internal/registry"
	"github.com/radieske/esports-bet-core/internal/shared/metrics"
	"github.com/radieske/esports-bet-core/internal/shared/money"
	"github.com/radieske/esports-bet-core/internal/store"
	"github.com/radieske/esports-bet-core/internal/wallet"
	"github.com/radieske/esports-bet-core/pkg/contracts/events"
)

// Limits é a faixa de stake aceita
type Limits struct {
	Min money.Money
	Max money.Money
}

func DefaultLimits() Limits {
	return Limits{Min: money.MustParse("1.00"), Max: money.MustParse("10000.00")}
}

// MaxFor é o teto por usuário; hoje igual ao máximo global para todos
func (l Limits) MaxFor(string) money.Money { return l.Max }

// Publisher recebe os eventos publicados após commit
type Publisher interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
	PublishBetCancelled(ctx context.Context, e events.BetCancelled) error
	PublishBetSettled(ctx context.Context, e events.BetSettled) error
}

// Deps são os colaboradores do Manager; Cache e Publisher são opcionais
type Deps struct {
	Store   store.Store
	Ledger  *wallet.Ledger
	Odds    *odds.Engine
	Matches registry.MatchRegistry
	Users   registry.UserDirectory

	Limits            Limits
	RiskPoolLimit     money.Money
	SettleConcurrency int

	Cache     odds.SnapshotCache
	Publisher Publisher
	Metrics   *metrics.Betting
	Log       *zap.Logger
}

type Manager struct {
	store   store.Store
	ledger  *wallet.Ledger
	odds    *odds.Engine
	matches registry.MatchRegistry
	users   registry.UserDirectory

	limits      Limits
	riskLimit   money.Money
	concurrency int

	cache   odds.SnapshotCache
	publ    Publisher
	metrics *metrics.Betting
	log     *zap.Logger

	Now   func() time.Time
	NewID func() string

	// publishTimeout limita a espera por Kafka/Redis depois do commit
	publishTimeout time.Duration
}

// NewManager falha se faltar um colaborador obrigatório
func NewManager(d Deps) (*Manager, error) {
	switch {
	case d.Store == nil:
		return nil, errors.New("betting: store is required")
	case d.Ledger == nil:
		return nil, errors.New("betting: ledger is required")
	case d.Odds == nil:
		return nil, errors.New("betting: odds engine is required")
	case d.Matches == nil:
		return nil, errors.New("betting: match registry is required")
	case d.Users == nil:
		return nil, errors.New("betting: user directory is required")
	case d.Log == nil:
		return nil, errors.New("betting: logger is required")
	}
	if d.Limits.Max.IsZero() {
		d.Limits = DefaultLimits()
	}
	if d.Limits.Min.GreaterThan(d.Limits.Max) {
		return nil, errors.New("betting: min stake exceeds max stake")
	}
	if d.RiskPoolLimit.IsZero() {
		d.RiskPoolLimit = money.MustParse("50000.00")
	}
	if d.SettleConcurrency < 1 {
		d.SettleConcurrency = 1
	}
	if d.Metrics == nil {
		// coletores fora do registry padrão
		d.Metrics = metrics.NewBetting(prometheus.NewRegistry())
	}

	return &Manager{
		store:          d.Store,
		ledger:         d.Ledger,
		odds:           d.Odds,
		matches:        d.Matches,
		users:          d.Users,
		limits:         d.Limits,
		riskLimit:      d.RiskPoolLimit,
		concurrency:    d.SettleConcurrency,
		cache:          d.Cache,
		publ:           d.Publisher,
		metrics:        d.Metrics,
		log:            d.Log,
		Now:            time.Now,
		NewID:          uuid.NewString,
		publishTimeout: 2 * time.Second,
	}, nil
}

func (m *Manager) Limits() Limits                  { return m.limits }
func (m *Manager) RiskPoolLimit() money.Money      { return m.riskLimit }
func (m *Manager) now() time.Time                  { return m.Now().UTC() }
func (m *Manager) Ledger() *wallet.Ledger          { return m.ledger }
func (m *Manager) Matches() registry.MatchRegistry { return m.matches }
