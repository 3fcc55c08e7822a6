package events

import "time"

// MatchCompleted é emitido pelo cadastro de partidas quando um resultado é registrado.
// O worker de liquidação trata o evento apenas como gatilho; o resultado é relido do registry.
type MatchCompleted struct {
	MatchID       string    `json:"match_id"`
	Status        string    `json:"status"` // "COMPLETED" | "CANCELLED"
	WinningSideID string    `json:"winning_side_id,omitempty"`
	Ts            time.Time `json:"ts"`
}
