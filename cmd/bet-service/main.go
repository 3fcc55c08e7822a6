package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/esports-bet-core/internal/betting"
	bethttp "github.com/radieske/esports-bet-core/internal/betting/http"
	"github.com/radieske/esports-bet-core/internal/betting/producer"
	"github.com/radieske/esports-bet-core/internal/domain"
	"github.com/radieske/esports-bet-core/internal/odds"
	"github.com/radieske/esports-bet-core/internal/odds/stream"
	regpg "github.com/radieske/esports-bet-core/internal/registry/postgres"
	sharedcache "github.com/radieske/esports-bet-core/internal/shared/cache"
	"github.com/radieske/esports-bet-core/internal/shared/config"
	"github.com/radieske/esports-bet-core/internal/shared/db"
	"github.com/radieske/esports-bet-core/internal/shared/kafka"
	"github.com/radieske/esports-bet-core/internal/shared/logger"
	"github.com/radieske/esports-bet-core/internal/shared/metrics"
	stpg "github.com/radieske/esports-bet-core/internal/store/postgres"
	"github.com/radieske/esports-bet-core/internal/wallet"
	wallethttp "github.com/radieske/esports-bet-core/internal/wallet/http"
)

func main() {
	_ = godotenv.Load() // .env é opcional fora do ambiente local
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "bet-service"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Postgres: carteiras, ledger, apostas e leitura do cadastro
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	st := stpg.New(pg)
	reg := regpg.NewReadRepo(pg)
	if err := st.Migrate(ctx); err != nil {
		log.Fatal("store migrate", zap.Error(err))
	}
	if err := reg.Migrate(ctx); err != nil {
		log.Fatal("registry migrate", zap.Error(err))
	}

	// Redis: snapshot de odds + pub/sub para o WebSocket
	rdb, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka: um writer por tópico de aposta
	placedW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced)
	cancelledW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetCancelled)
	settledW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettled)
	defer placedW.Close()
	defer cancelledW.Close()
	defer settledW.Close()

	m := metrics.NewBetting(prometheus.DefaultRegisterer)

	ledger := wallet.NewLedger(st, reg, log)
	ledger.OnEntry = func(k domain.EntryKind) { m.LedgerEntries.WithLabelValues(string(k)).Inc() }

	engine := odds.NewEngine(odds.Policy{
		HouseMargin: cfg.HouseMargin,
		MinOdds:     cfg.MinOdds,
		DefaultOdds: cfg.DefaultOdds,
	})

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
		Publisher:         producer.NewKafkaPublisher(placedW, cancelledW, settledW),
		Metrics:           m,
		Log:               log,
	})
	if err != nil {
		log.Fatal("betting manager", zap.Error(err))
	}

	// WebSocket de odds: updates chegam via Redis Pub/Sub e são repassados aos inscritos
	hub := stream.NewHub(log, allowOrigin(cfg.Env))
	stream.StartRedisSubscriber(ctx, rdb, cfg.RedisPubSubChannel, hub, log)

	api := &bethttp.API{
		Bets:   mgr,
		Log:    log,
		Stream: hub.HandleWS,
		Mounts: map[string]http.Handler{
			"/wallets": (&wallethttp.API{Ledger: ledger, Log: log}).Router(),
		},
	}
	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}, log)

	go func() {
		log.Info("bet-service listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("api server", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("bet-service shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("bet-service stopped")
}

// allowOrigin libera qualquer origem em local/dev; em prod só o mesmo host
func allowOrigin(env string) func(r *http.Request) bool {
	if env != "prod" {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || strings.HasSuffix(origin, "://"+r.Host)
	}
}
