package topics

const (
	// Bets
	BetPlaced    = "bet_placed"
	BetCancelled = "bet_cancelled"
	BetSettled   = "bet_settled"

	// Matches
	MatchCompleted = "match_completed"

	// DLQs
	MatchCompletedDLQ = "match_completed_dlq"

	// Redis Pub/Sub
	OddsBroadcast = "odds_updates_broadcast"
)
