package events

// BetCancelled é publicado após o cancelamento e o reembolso do stake.
type BetCancelled struct {
	BetID         string `json:"bet_id"`
	UserID        string `json:"user_id"`
	MatchID       string `json:"match_id"`
	Refunded      string `json:"refunded"`
	RefundEntryID string `json:"refund_entry_id"`
	Reason        string `json:"reason,omitempty"` // "user" | "match_cancelled"
	TsUnixMs      int64  `json:"ts_unix_ms"`
}
