package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Goal is a savings goal owned by one kid. Current is set manually, not
// derived from approved task rewards.
type Goal struct {
	ID        int64           `json:"id"`
	KidID     int64           `json:"kid_id"`
	Name      string          `json:"name"`
	Target    decimal.Decimal `json:"target"`
	Current   decimal.Decimal `json:"current"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
