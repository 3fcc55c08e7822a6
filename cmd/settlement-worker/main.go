package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/esports-bet-core/internal/betting"
	"github.com/radieske/esports-bet-core/internal/betting/producer"
	"github.com/radieske/esports-bet-core/internal/domain"
	"github.com/radieske/esports-bet-core/internal/odds"
	regpg "github.com/radieske/esports-bet-core/internal/registry/postgres"
	"github.com/radieske/esports-bet-core/internal/settlement"
	sharedcache "github.com/radieske/esports-bet-core/internal/shared/cache"
	"github.com/radieske/esports-bet-core/internal/shared/config"
	"github.com/radieske/esports-bet-core/internal/shared/db"
	"github.com/radieske/esports-bet-core/internal/shared/kafka"
	"github.com/radieske/esports-bet-core/internal/shared/logger"
	"github.com/radieske/esports-bet-core/internal/shared/metrics"
	stpg "github.com/radieske/esports-bet-core/internal/store/postgres"
	"github.com/radieske/esports-bet-core/internal/wallet"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "settlement-worker"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	st := stpg.New(pg)
	reg := regpg.NewReadRepo(pg)

	// Redis é usado só para refrescar o snapshot após anulações
	rdb, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// Consumer group do match_completed; commit só depois de processar
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicMatchCompleted, cfg.SettlementGroupID)
	defer reader.Close()

	settledW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettled)
	cancelledW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetCancelled)
	defer settledW.Close()
	defer cancelledW.Close()

	var dlq settlement.MessageWriter
	if cfg.TopicMatchCompletedDLQ != "" {
		w := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMatchCompletedDLQ)
		defer w.Close()
		dlq = w
	}

	bm := metrics.NewBetting(prometheus.DefaultRegisterer)
	wm := metrics.NewWorker(prometheus.DefaultRegisterer)

	ledger := wallet.NewLedger(st, reg, log)
	ledger.OnEntry = func(k domain.EntryKind) { bm.LedgerEntries.WithLabelValues(string(k)).Inc() }

	engine := odds.NewEngine(odds.Policy{
		HouseMargin: cfg.HouseMargin,
		MinOdds:     cfg.MinOdds,
		DefaultOdds: cfg.DefaultOdds,
	})

	// bet_placed nunca é emitido aqui
	publisher := producer.NewKafkaPublisher(nil, cancelledW, settledW)

	mgr, err := betting.NewManager(betting.Deps{
		Store:             st,
		Ledger:            ledger,
		Odds:              engine,
		Matches:           reg,
		Users:             reg,
		Limits:            betting.Limits{Min: cfg.MinStake, Max: cfg.MaxStake},
		RiskPoolLimit:     cfg.RiskPoolLimit,
		SettleConcurrency: cfg.SettleConcurrency,
		Cache:             odds.NewRedisCache(rdb, cfg.OddsCacheTTL, cfg.RedisPubSubChannel),
		Publisher:         publisher,
		Metrics:           bm,
		Log:               log,
	})
	if err != nil {
		log.Fatal("betting manager", zap.Error(err))
	}

	worker := &settlement.Worker{
		Log:        log,
		Reader:     reader,
		Settler:    mgr,
		Matches:    reg,
		DLQ:        dlq,
		Interval:   cfg.SettleInterval,
		Retries:    3,
		Backoff:    300 * time.Millisecond,
		OnConsumed: func() { wm.Consumed.Inc() },
		OnSettled:  func() { wm.Settled.Inc() },
		OnError:    func(stage string) { wm.ErrorsBy.WithLabelValues(stage).Inc() },
		OnSweep:    func() { wm.Sweeps.Inc() },
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
		return nil
	}, log)
	defer metricsSrv.Close()

	log.Info("settlement-worker started",
		zap.String("consume", cfg.TopicMatchCompleted),
		zap.String("group", cfg.SettlementGroupID),
		zap.Duration("sweep", cfg.SettleInterval),
	)
	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("worker stopped with error", zap.Error(err))
	}
	log.Info("settlement-worker stopped")
}
