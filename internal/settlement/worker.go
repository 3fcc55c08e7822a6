// Package settlement consome eventos de partida encerrada e dispara a liquidação.
// Uma varredura periódica cobre eventos perdidos e apostas que falharam isoladamente.
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/esports-bet-core/internal/betting"
	"github.com/radieske/esports-bet-core/internal/domain"
	"github.com/radieske/esports-bet-core/internal/registry"
	kafkax "github.com/radieske/esports-bet-core/internal/shared/kafka"
	"github.com/radieske/esports-bet-core/pkg/contracts/events"
)

// MessageReader é o subconjunto do *kafka.Reader usado aqui (commit explícito)
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Settler é implementado por *betting.Manager
type Settler interface {
	SettleMatch(ctx context.Context, matchID string) (*betting.SettlementReport, error)
	VoidMatch(ctx context.Context, matchID string) (*betting.SettlementReport, error)
	SettleAllCompletedMatches(ctx context.Context) ([]betting.SettlementReport, error)
}

// Worker liga o tópico match_completed ao Settler.
// O evento é só gatilho: status e vencedor são relidos do MatchRegistry.
type Worker struct {
	Log     *zap.Logger
	Reader  MessageReader // nil: só varredura
	Settler Settler
	Matches registry.MatchRegistry
	DLQ     MessageWriter // opcional

	Interval time.Duration // varredura; <= 0 desliga
	Retries  int
	Backoff  time.Duration

	OnConsumed func()       // métricas
	OnSettled  func()       // partida liquidada ou anulada
	OnError    func(string) // métricas por estágio
	OnSweep    func()
}

// Run bloqueia até o contexto ser cancelado ou o consumo falhar
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.consume(ctx) })
	g.Go(func() error { return w.sweepLoop(ctx) })
	return g.Wait()
}

func (w *Worker) consume(ctx context.Context) error {
	if w.Reader == nil {
		return nil
	}
	for {
		m, err := w.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log.Warn("kafka fetch failed", zap.Error(err))
			w.fail("read")
			if !sleep(ctx, w.backoff()) {
				return ctx.Err()
			}
			continue
		}
		if w.OnConsumed != nil {
			w.OnConsumed()
		}

		if err := w.handle(ctx, m); err != nil {
			// só cancelamento chega aqui; a mensagem volta no próximo rebalance
			return err
		}
		if err := w.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
			w.fail("commit")
		}
	}
}

// handle processa uma mensagem; retorna erro apenas se o contexto acabou
func (w *Worker) handle(ctx context.Context, m kafka.Message) error {
	var ev events.MatchCompleted
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		w.Log.Warn("invalid match_completed message", zap.Error(err))
		w.fail("decode")
		w.deadLetter(ctx, m, "decode", err, 0)
		return nil
	}
	if ev.MatchID == "" {
		w.fail("decode")
		w.deadLetter(ctx, m, "decode", errors.New("empty match_id"), 0)
		return nil
	}

	var err error
	for attempt := 0; ; attempt++ {
		if err = w.process(ctx, ev.MatchID); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if permanent(err) {
			w.Log.Warn("match_completed rejected", zap.String("matchId", ev.MatchID), zap.Error(err))
			w.fail("result")
			w.deadLetter(ctx, m, "result", err, attempt+1)
			return nil
		}
		w.fail("settle")
		if attempt >= w.Retries {
			break
		}
		w.Log.Warn("settlement attempt failed",
			zap.String("matchId", ev.MatchID), zap.Int("attempt", attempt+1), zap.Error(err))
		if !sleep(ctx, w.backoff()*time.Duration(attempt+1)) {
			return ctx.Err()
		}
	}

	w.Log.Error("settlement failed, sending to dlq", zap.String("matchId", ev.MatchID), zap.Error(err))
	w.deadLetter(ctx, m, "settle", err, w.Retries+1)
	return nil
}

// process relê o resultado e escolhe liquidar ou anular
func (w *Worker) process(ctx context.Context, matchID string) error {
	res, err := w.Matches.GetResult(ctx, matchID)
	if err != nil {
		return fmt.Errorf("get result: %w", err)
	}

	var rep *betting.SettlementReport
	switch res.Status {
	case domain.MatchCompleted:
		rep, err = w.Settler.SettleMatch(ctx, matchID)
	case domain.MatchCancelled:
		rep, err = w.Settler.VoidMatch(ctx, matchID)
	default:
		w.Log.Info("match not final, ignoring event",
			zap.String("matchId", matchID), zap.String("status", string(res.Status)))
		return nil
	}
	if err != nil {
		return err
	}

	if rep.Failed > 0 {
		// apostas que falharam continuam PENDING e entram na próxima varredura
		w.Log.Warn("settlement finished with failures",
			zap.String("matchId", matchID), zap.Strings("betIds", rep.FailedBetIDs))
	}
	if w.OnSettled != nil {
		w.OnSettled()
	}
	return nil
}

func (w *Worker) sweepLoop(ctx context.Context) error {
	if w.Interval <= 0 {
		return nil
	}
	t := time.NewTicker(w.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep liquida toda partida encerrada que ainda tenha apostas PENDING
func (w *Worker) Sweep(ctx context.Context) {
	reps, err := w.Settler.SettleAllCompletedMatches(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.Log.Warn("settlement sweep failed", zap.Error(err))
			w.fail("sweep")
		}
		return
	}
	if w.OnSweep != nil {
		w.OnSweep()
	}
	if len(reps) > 0 {
		w.Log.Info("settlement sweep", zap.Int("matches", len(reps)))
	}
}

// deadLetter copia a mensagem original com estágio, causa e tentativas nos headers
func (w *Worker) deadLetter(ctx context.Context, m kafka.Message, stage string, cause error, attempts int) {
	if w.DLQ == nil {
		return
	}
	err := kafkax.WriteJSON(ctx, w.DLQ, string(m.Key), m.Value,
		kafka.Header{Key: "stage", Value: []byte(stage)},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
		kafka.Header{Key: "attempts", Value: []byte(strconv.Itoa(attempts))},
	)
	if err != nil {
		// o commit segue; a varredura periódica ainda alcança a partida
		w.Log.Error("dlq write failed", zap.String("stage", stage), zap.Error(err))
		w.fail("dlq")
	}
}

func (w *Worker) fail(stage string) {
	if w.OnError != nil {
		w.OnError(stage)
	}
}

func (w *Worker) backoff() time.Duration {
	if w.Backoff <= 0 {
		return 500 * time.Millisecond
	}
	return w.Backoff
}

// permanent: repetir não muda o desfecho
func permanent(err error) bool {
	switch domain.CodeOf(err) {
	case domain.CodeMatchNotFound, domain.CodeMatchNotCompleted, domain.CodeValidation:
		return true
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
