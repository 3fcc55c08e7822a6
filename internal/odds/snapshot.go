package odds

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/esports-bet-core/internal/shared/money"
)

// Snapshot é a odds corrente de exibição; nunca é usada para travar odds de uma aposta
type Snapshot struct {
	MatchID   string          `json:"matchId"`
	SideAID   string          `json:"sideAId"`
	SideBID   string          `json:"sideBId"`
	SideAOdds decimal.Decimal `json:"sideAOdds"`
	SideBOdds decimal.Decimal `json:"sideBOdds"`
	TotalPool money.Money     `json:"totalPool"`
	SideAPool money.Money     `json:"sideAPool"`
	SideBPool money.Money     `json:"sideBPool"`
	Margin    decimal.Decimal `json:"margin"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// MarshalJSON publica odds e margem sempre com 2 casas
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type alias Snapshot
	return json.Marshal(struct {
		alias
		SideAOdds string `json:"sideAOdds"`
		SideBOdds string `json:"sideBOdds"`
		Margin    string `json:"margin"`
	}{alias(s), s.SideAOdds.StringFixed(2), s.SideBOdds.StringFixed(2), s.Margin.StringFixed(2)})
}

// Update é a mensagem publicada para os clientes do stream
type Update struct {
	MatchID string   `json:"matchId"`
	Payload Snapshot `json:"payload"`
}

// SnapshotCache guarda e difunde snapshots
type SnapshotCache interface {
	Put(ctx context.Context, s Snapshot) error
	Get(ctx context.Context, matchID string) (*Snapshot, bool, error)
}

// MemoryCache é o SnapshotCache do modo local e dos testes
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]Snapshot
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]Snapshot)}
}

func (c *MemoryCache) Put(_ context.Context, s Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[s.MatchID] = s
	return nil
}

func (c *MemoryCache) Get(_ context.Context, matchID string) (*Snapshot, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.items[matchID]
	if !ok {
		return nil, false, nil
	}
	return &s, true, nil
}
