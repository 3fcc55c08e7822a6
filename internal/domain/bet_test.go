package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/esports-bet-core/internal/shared/money"
)

func TestBetJSONKeepsTwoDecimalOdds(t *testing.T) {
	b := Bet{
		ID:              "b1",
		UserID:          "alice",
		MatchID:         "m1",
		SelectedSideID:  "t1",
		Stake:           money.MustParse("1"),
		OddsLocked:      decimal.RequireFromString("2.00"),
		PotentialPayout: money.MustParse("2"),
		Status:          BetPending,
		PlacedAt:        time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC),
	}

	raw, err := json.Marshal(b)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "2.00", out["oddsLocked"])
	assert.Equal(t, "1.00", out["stake"])
	assert.Equal(t, "2.00", out["potentialPayout"])
	assert.Equal(t, "b1", out["betId"])
	assert.NotContains(t, out, "settledAt")

	var back Bet
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.OddsLocked.Equal(b.OddsLocked))
	assert.Equal(t, b.Stake, back.Stake)
}
