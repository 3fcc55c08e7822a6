package metrics

import "github.com/prometheus/client_golang/prometheus"

// Betting agrupa os coletores do core de apostas
type Betting struct {
	BetsPlaced        prometheus.Counter
	Refused           *prometheus.CounterVec // por operação e código de motivo
	PlacementDuration prometheus.Histogram
	BetsCancelled     prometheus.Counter
	BetsSettled       *prometheus.CounterVec // won | lost | voided
	SettlementErrors  prometheus.Counter
	InconsistentState prometheus.Counter
	LedgerEntries     *prometheus.CounterVec // por kind
	PublishFailures   *prometheus.CounterVec // por tópico
	OddsCacheErrors   prometheus.Counter
}

// NewBetting cria e registra os coletores em reg
func NewBetting(reg prometheus.Registerer) *Betting {
	m := &Betting{
		BetsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bet_core_bets_placed_total", Help: "apostas aceitas",
		}),
		Refused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bet_core_refusals_total", Help: "recusas de negócio por operação e motivo",
		}, []string{"op", "code"}),
		PlacementDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "bet_core_placement_duration_seconds", Help: "latência de placeBet",
			Buckets: prometheus.DefBuckets,
		}),
		BetsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bet_core_bets_cancelled_total", Help: "apostas canceladas com reembolso",
		}),
		BetsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bet_core_bets_settled_total", Help: "apostas liquidadas por resultado",
		}, []string{"outcome"}),
		SettlementErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bet_core_settlement_errors_total", Help: "falhas isoladas de liquidação por aposta",
		}),
		InconsistentState: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bet_core_inconsistent_state_total", Help: "violações de invariante detectadas",
		}),
		LedgerEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bet_core_ledger_entries_total", Help: "entradas gravadas no ledger",
		}, []string{"kind"}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bet_core_event_publish_failures_total", Help: "eventos não publicados",
		}, []string{"topic"}),
		OddsCacheErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bet_core_odds_cache_errors_total", Help: "falhas ao atualizar o snapshot de odds",
		}),
	}
	reg.MustRegister(
		m.BetsPlaced, m.Refused, m.PlacementDuration, m.BetsCancelled, m.BetsSettled,
		m.SettlementErrors, m.InconsistentState, m.LedgerEntries, m.PublishFailures, m.OddsCacheErrors,
	)
	return m
}

// Worker são os coletores do consumidor de resultados
type Worker struct {
	Consumed prometheus.Counter
	Settled  prometheus.Counter
	ErrorsBy *prometheus.CounterVec // por estágio
	Sweeps   prometheus.Counter
}

func NewWorker(reg prometheus.Registerer) *Worker {
	m := &Worker{
		Consumed: prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_messages_consumed_total", Help: "mensagens consumidas"}),
		Settled:  prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_matches_settled_total", Help: "partidas liquidadas"}),
		ErrorsBy: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_errors_total", Help: "erros por estágio"}, []string{"stage"}),
		Sweeps:   prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_sweeps_total", Help: "varreduras periódicas executadas"}),
	}
	reg.MustRegister(m.Consumed, m.Settled, m.ErrorsBy, m.Sweeps)
	return m
}
