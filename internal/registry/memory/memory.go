// Package memory mantém partidas e usuários em memória para testes e modo local.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/radieske/esports-bet-core/internal/domain"
)

type user struct {
	active bool
}

// Registry implementa registry.MatchRegistry e registry.UserDirectory
type Registry struct {
	mu      sync.RWMutex
	matches map[string]domain.Match
	users   map[string]user

	// Now pode ser substituído nos testes
	Now func() time.Time
}

func New() *Registry {
	return &Registry{
		matches: make(map[string]domain.Match),
		users:   make(map[string]user),
		Now:     time.Now,
	}
}

// PutMatch cria ou substitui uma partida
func (r *Registry) PutMatch(m domain.Match) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches[m.ID] = m
}

// SetStatus muda o estado de uma partida existente
func (r *Registry) SetStatus(matchID string, st domain.MatchStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[matchID]
	if !ok {
		return false
	}
	m.Status = st
	r.matches[matchID] = m
	return true
}

// Complete encerra a partida com o lado vencedor
func (r *Registry) Complete(matchID, winningSideID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[matchID]
	if !ok {
		return false
	}
	m.Status = domain.MatchCompleted
	m.WinningSideID = winningSideID
	r.matches[matchID] = m
	return true
}

// PutUser cadastra ou atualiza um usuário
func (r *Registry) PutUser(userID string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[userID] = user{active: active}
}

func (r *Registry) IsBettable(_ context.Context, matchID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[matchID]
	if !ok {
		return false, nil
	}
	return m.Bettable(r.Now()), nil
}

func (r *Registry) GetSides(_ context.Context, matchID string) (domain.Sides, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[matchID]
	if !ok {
		return domain.Sides{}, domain.Newf(domain.CodeMatchNotFound, "match %s not found", matchID)
	}
	return m.Sides, nil
}

func (r *Registry) GetResult(_ context.Context, matchID string) (domain.MatchResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[matchID]
	if !ok {
		return domain.MatchResult{}, domain.Newf(domain.CodeMatchNotFound, "match %s not found", matchID)
	}
	return domain.MatchResult{Status: m.Status, WinningSideID: m.WinningSideID}, nil
}

func (r *Registry) Exists(_ context.Context, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID]
	return ok, nil
}

func (r *Registry) IsActive(_ context.Context, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	return ok && u.active, nil
}
