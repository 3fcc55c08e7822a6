package events

// BetPlaced é publicado após o commit de uma aposta aceita.
// Valores monetários trafegam como string decimal com 2 casas.
type BetPlaced struct {
	BetID           string `json:"bet_id"`
	UserID          string `json:"user_id"`
	MatchID         string `json:"match_id"`
	SelectedSideID  string `json:"selected_side_id"`
	Stake           string `json:"stake"`
	OddsLocked      string `json:"odds_locked"`
	PotentialPayout string `json:"potential_payout"`
	StakeEntryID    string `json:"stake_entry_id"` // entrada STAKE do ledger
	TsUnixMs        int64  `json:"ts_unix_ms"`
}
