package domain

import "time"

// MatchStatus é o estado de uma partida conforme o MatchRegistry
type MatchStatus string

const (
	MatchScheduled MatchStatus = "SCHEDULED"
	MatchLive      MatchStatus = "LIVE"
	MatchCompleted MatchStatus = "COMPLETED"
	MatchCancelled MatchStatus = "CANCELLED"
)

// Sides são os dois participantes de uma partida
type Sides struct {
	A string
	B string
}

// Has indica se o lado pertence à partida
func (s Sides) Has(sideID string) bool {
	return sideID != "" && (sideID == s.A || sideID == s.B)
}

// MatchResult é o estado e o vencedor (quando COMPLETED)
type MatchResult struct {
	Status        MatchStatus
	WinningSideID string
}

// Match é a visão de leitura de uma partida usada pelos adaptadores do registry
type Match struct {
	ID             string
	Title          string
	Sides          Sides
	Status         MatchStatus
	BettingEnabled bool
	StartsAt       time.Time
	WinningSideID  string
}

// Bettable aplica a regra: existe, apostas habilitadas, SCHEDULED e início no futuro
func (m Match) Bettable(now time.Time) bool {
	return m.BettingEnabled && m.Status == MatchScheduled && m.StartsAt.After(now)
}
