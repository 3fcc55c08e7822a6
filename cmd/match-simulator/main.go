package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/esports-bet-core/internal/domain"
	"github.com/radieske/esports-bet-core/internal/matchfeed"
	regpg "github.com/radieske/esports-bet-core/internal/registry/postgres"
	"github.com/radieske/esports-bet-core/internal/shared/config"
	"github.com/radieske/esports-bet-core/internal/shared/db"
	"github.com/radieske/esports-bet-core/internal/shared/kafka"
	"github.com/radieske/esports-bet-core/internal/shared/logger"
	"github.com/radieske/esports-bet-core/internal/shared/metrics"
)

// Métricas do simulador
var results = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "match_simulator_results_total",
	Help: "Resultados registrados por status",
}, []string{"status"})

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "match-simulator"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	if err := regpg.NewReadRepo(pg).Migrate(ctx); err != nil {
		log.Fatal("registry migrate", zap.Error(err))
	}

	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMatchCompleted)
	defer writer.Close()

	prometheus.MustRegister(results)
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	}, log)
	defer metricsSrv.Close()

	sim := matchfeed.New(log, regpg.NewFeedRepo(pg), writer, time.Now().UnixNano())
	sim.MatchLength = cfg.SimMatchLength
	sim.OnResult = func(st domain.MatchStatus) { results.WithLabelValues(string(st)).Inc() }

	// SIM_USERS="alice,bob" cadastra usuários ativos junto com o catálogo
	users := strings.FieldsFunc(os.Getenv("SIM_USERS"), func(r rune) bool { return r == ',' || r == ' ' })
	if err := sim.Seed(ctx, matchfeed.Catalog, users); err != nil {
		log.Fatal("seed catalog", zap.Error(err))
	}

	log.Info("match-simulator started",
		zap.String("publish", cfg.TopicMatchCompleted),
		zap.Duration("tick", cfg.SimTick),
		zap.String("users", strings.Join(users, ",")),
	)
	if err := sim.Run(ctx, cfg.SimTick); err != nil && ctx.Err() == nil {
		log.Fatal("simulator stopped with error", zap.Error(err))
	}
	log.Info("match-simulator stopped")
}
