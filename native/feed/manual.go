// Package feed supplies price feed collaborators for the engine's oracle
// adapter.
package feed

import (
	"math/big"
	"sync"
	"time"

	"stablecore/native/engine"
)

// Manual is an operator-driven price feed. Every SetAnswer advances the round
// and stamps the update time, so a feed that stops being fed eventually fails
// the oracle's freshness check.
type Manual struct {
	mu        sync.Mutex
	round     uint64
	answer    *big.Int
	updatedAt time.Time
	clock     func() time.Time
}

// NewManual constructs a feed seeded with an initial 8-decimal USD answer.
func NewManual(initial *big.Int, clock func() time.Time) *Manual {
	if clock == nil {
		clock = time.Now
	}
	m := &Manual{clock: clock}
	if initial != nil {
		m.SetAnswer(initial)
	}
	return m
}

// SetAnswer records a new raw 8-decimal answer.
func (m *Manual) SetAnswer(answer *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.round++
	m.answer = new(big.Int).Set(answer)
	m.updatedAt = m.clock()
}

// LatestRoundData implements engine.PriceFeed.
func (m *Manual) LatestRoundData() (engine.RoundData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var answer *big.Int
	if m.answer != nil {
		answer = new(big.Int).Set(m.answer)
	}
	return engine.RoundData{
		RoundID:         m.round,
		Answer:          answer,
		UpdatedAt:       m.updatedAt,
		AnsweredInRound: m.round,
	}, nil
}
