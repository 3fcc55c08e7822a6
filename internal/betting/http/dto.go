package httpapi

import (
	"github.com/go-playground/validator/v10"

	"github.com/radieske/esports-bet-core/internal/shared/money"
)

var validate = validator.New()

// PlaceBetRequest chega com o stake em string decimal ("20.00") para não passar por float
type PlaceBetRequest struct {
	UserID  string `json:"userId" validate:"required,max=64"`
	MatchID string `json:"matchId" validate:"required,max=64"`
	SideID  string `json:"sideId" validate:"required,max=64"`
	Stake   string `json:"stake" validate:"required,numeric"`
}

func (p *PlaceBetRequest) Validate() error {
	return validate.Struct(p)
}

type QuoteRequest struct {
	MatchID string `json:"matchId" validate:"required"`
	SideID  string `json:"sideId" validate:"required"`
	Stake   string `json:"stake" validate:"required,numeric"`
}

func (q *QuoteRequest) Validate() error {
	return validate.Struct(q)
}

type QuoteResponse struct {
	MatchID         string      `json:"matchId"`
	SideID          string      `json:"sideId"`
	Stake           money.Money `json:"stake"`
	Odds            string      `json:"odds"`
	PotentialPayout money.Money `json:"potentialPayout"`
}

type RecalculateRequest struct {
	MatchIDs []string `json:"matchIds" validate:"required,min=1,dive,required"`
}

func (r *RecalculateRequest) Validate() error {
	return validate.Struct(r)
}

type MarginResponse struct {
	MatchID string `json:"matchId"`
	Margin  string `json:"margin"`
}

type RiskResponse struct {
	MatchID     string      `json:"matchId"`
	Limit       money.Money `json:"limit"`
	AtRiskLimit bool        `json:"atRiskLimit"`
}
