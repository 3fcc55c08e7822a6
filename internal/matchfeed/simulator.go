// Package matchfeed simula o cadastro externo de partidas em ambientes locais:
// agenda partidas, coloca-as ao vivo, registra resultados e emite match_completed.
package matchfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/esports-bet-core/internal/domain"
	kafkax "github.com/radieske/esports-bet-core/internal/shared/kafka"
	"github.com/radieske/esports-bet-core/pkg/contracts/events"
)

// Store é o lado de escrita do cadastro (FeedRepo em produção)
type Store interface {
	UpsertUser(ctx context.Context, userID string, active bool) error
	UpsertMatch(ctx context.Context, m domain.Match) error
	DueMatches(ctx context.Context, now time.Time) ([]domain.Match, error)
	RecordResult(ctx context.Context, matchID string, res domain.MatchResult) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Fixture descreve uma partida do catálogo; o início é relativo ao Seed
type Fixture struct {
	ID    string
	Title string
	SideA string
	SideB string
	In    time.Duration
}

// Catalog é o catálogo padrão do ambiente local
var Catalog = []Fixture{
	{ID: "CBLOL_001", Title: "LOUD vs paiN Gaming", SideA: "loud", SideB: "pain", In: 2 * time.Minute},
	{ID: "CBLOL_002", Title: "FURIA vs RED Canids", SideA: "furia", SideB: "red", In: 4 * time.Minute},
	{ID: "MAJOR_001", Title: "NAVI vs FaZe", SideA: "navi", SideB: "faze", In: 6 * time.Minute},
	{ID: "MAJOR_002", Title: "Vitality vs G2", SideA: "vitality", SideB: "g2", In: 8 * time.Minute},
}

// Simulator avança o estado das partidas a cada Tick
type Simulator struct {
	Log    *zap.Logger
	Store  Store
	Events MessageWriter // tópico match_completed

	MatchLength time.Duration // de LIVE até o resultado
	CancelRate  float64       // fração de partidas canceladas em vez de concluídas
	Now         func() time.Time

	OnResult func(domain.MatchStatus) // métricas

	mu  sync.Mutex
	rnd *rand.Rand
}

func New(log *zap.Logger, st Store, ev MessageWriter, seed int64) *Simulator {
	return &Simulator{
		Log:         log,
		Store:       st,
		Events:      ev,
		MatchLength: 3 * time.Minute,
		CancelRate:  0.1,
		Now:         time.Now,
		rnd:         rand.New(rand.NewSource(seed)),
	}
}

// Seed cadastra os usuários ativos e agenda o catálogo a partir de agora
func (s *Simulator) Seed(ctx context.Context, fixtures []Fixture, users []string) error {
	for _, u := range users {
		if err := s.Store.UpsertUser(ctx, u, true); err != nil {
			return err
		}
	}
	now := s.Now().UTC()
	for _, f := range fixtures {
		m := domain.Match{
			ID:             f.ID,
			Title:          f.Title,
			Sides:          domain.Sides{A: f.SideA, B: f.SideB},
			Status:         domain.MatchScheduled,
			BettingEnabled: true,
			StartsAt:       now.Add(f.In),
		}
		if err := s.Store.UpsertMatch(ctx, m); err != nil {
			return err
		}
	}
	s.Log.Info("match catalog seeded", zap.Int("matches", len(fixtures)), zap.Int("users", len(users)))
	return nil
}

// Tick: SCHEDULED vencida vira LIVE; LIVE há mais de MatchLength recebe resultado.
// Retorna quantos resultados foram registrados.
func (s *Simulator) Tick(ctx context.Context) (int, error) {
	now := s.Now().UTC()
	due, err := s.Store.DueMatches(ctx, now)
	if err != nil {
		return 0, err
	}

	results := 0
	for _, m := range due {
		switch {
		case m.Status == domain.MatchScheduled:
			if err := s.Store.RecordResult(ctx, m.ID, domain.MatchResult{Status: domain.MatchLive}); err != nil {
				return results, err
			}
			s.Log.Info("match live", zap.String("matchId", m.ID))

		case m.Status == domain.MatchLive && !now.Before(m.StartsAt.Add(s.MatchLength)):
			res := s.decide(m)
			if err := s.Store.RecordResult(ctx, m.ID, res); err != nil {
				return results, err
			}
			if err := s.publish(ctx, m.ID, res, now); err != nil {
				// o resultado já está no cadastro; a varredura do worker alcança a partida
				s.Log.Warn("match_completed publish failed", zap.String("matchId", m.ID), zap.Error(err))
			}
			if s.OnResult != nil {
				s.OnResult(res.Status)
			}
			s.Log.Info("match finished",
				zap.String("matchId", m.ID),
				zap.String("status", string(res.Status)),
				zap.String("winner", res.WinningSideID))
			results++
		}
	}
	return results, nil
}

// Run chama Tick a cada intervalo até o contexto terminar
func (s *Simulator) Run(ctx context.Context, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
				s.Log.Warn("match feed tick failed", zap.Error(err))
			}
		}
	}
}

func (s *Simulator) decide(m domain.Match) domain.MatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rnd.Float64() < s.CancelRate {
		return domain.MatchResult{Status: domain.MatchCancelled}
	}
	winner := m.Sides.A
	if s.rnd.Intn(2) == 1 {
		winner = m.Sides.B
	}
	return domain.MatchResult{Status: domain.MatchCompleted, WinningSideID: winner}
}

func (s *Simulator) publish(ctx context.Context, matchID string, res domain.MatchResult, at time.Time) error {
	b, err := json.Marshal(events.MatchCompleted{
		MatchID:       matchID,
		Status:        string(res.Status),
		WinningSideID: res.WinningSideID,
		Ts:            at,
	})
	if err != nil {
		return fmt.Errorf("marshal match_completed: %w", err)
	}
	return kafkax.WriteJSON(ctx, s.Events, matchID, b)
}
