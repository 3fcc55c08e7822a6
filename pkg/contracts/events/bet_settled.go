package events

// BetSettled é publicado para cada aposta que saiu de PENDING para WON ou LOST.
type BetSettled struct {
	BetID         string `json:"bet_id"`
	UserID        string `json:"user_id"`
	MatchID       string `json:"match_id"`
	Status        string `json:"status"` // "WON" | "LOST"
	WinningSideID string `json:"winning_side_id"`
	Payout        string `json:"payout,omitempty"` // apenas WON
	TsUnixMs      int64  `json:"ts_unix_ms"`
}
