// Package registry define os colaboradores externos consumidos pelo core:
// o cadastro de partidas (MatchRegistry) e o diretório de usuários (UserDirectory).
package registry

import (
	"context"

	"github.com/radieske/esports-bet-core/internal/domain"
)

// MatchRegistry fornece identidade, estado e resultado das partidas
type MatchRegistry interface {
	// IsBettable é true somente se a partida existe, está SCHEDULED, com apostas habilitadas e início no futuro
	IsBettable(ctx context.Context, matchID string) (bool, error)

	// GetSides retorna os dois lados registrados (ErrMatchNotFound se não existir)
	GetSides(ctx context.Context, matchID string) (domain.Sides, error)

	// GetResult retorna o estado atual e o vencedor, quando COMPLETED
	GetResult(ctx context.Context, matchID string) (domain.MatchResult, error)
}

// UserDirectory fornece existência e status de usuários
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
	IsActive(ctx context.Context, userID string) (bool, error)
}
