package domain

import (
	"fmt"
	"time"
)

// MaxQuestionLen is the maximum allowed length of a market question in bytes.
const MaxQuestionLen = 256

// Side is one of the two outcomes of a binary market.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// ParseSide converts a string into a Side, accepting any casing of
// "yes"/"no" plus the boolean forms "true"/"false".
func ParseSide(s string) (Side, error) {
	switch s {
	case "yes", "YES", "Yes", "true":
		return SideYes, nil
	case "no", "NO", "No", "false":
		return SideNo, nil
	default:
		return "", fmt.Errorf("domain: invalid side %q", s)
	}
}

// Valid reports whether the Side holds one of the two defined values.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Opposite returns the other side of the market.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// Market is a binary-outcome prediction market. Pools are denominated in the
// smallest token unit and tracked as unsigned 64-bit integers; all arithmetic
// on them goes through internal/engine.
//
// Before resolution the invariant YesPool + NoPool == TotalLiquidity holds
// after every operation.
type Market struct {
	MarketID       uint64    `json:"market_id"`
	Question       string    `json:"question"`
	Creator        string    `json:"creator"`
	CreatedAt      time.Time `json:"created_at"`
	ResolutionTime time.Time `json:"resolution_time"`
	YesPool        uint64    `json:"yes_pool"`
	NoPool         uint64    `json:"no_pool"`
	TotalLiquidity uint64    `json:"total_liquidity"`
	Resolved       bool      `json:"resolved"`
	Outcome        *Side     `json:"outcome,omitempty"` // nil iff Resolved is false
	FeeCollected   uint64    `json:"fee_collected"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Pool returns the balance backing the given side.
func (m Market) Pool(side Side) uint64 {
	if side == SideYes {
		return m.YesPool
	}
	return m.NoPool
}

// SetPool overwrites the balance backing the given side.
func (m *Market) SetPool(side Side, v uint64) {
	if side == SideYes {
		m.YesPool = v
	} else {
		m.NoPool = v
	}
}

// Expired reports whether the market's resolution time has been reached.
func (m Market) Expired(now time.Time) bool {
	return !now.Before(m.ResolutionTime)
}
