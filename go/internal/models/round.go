package models

import (
	"time"

	"github.com/google/uuid"
)

// RoundPhase defines the lifecycle phase of a round.
type RoundPhase string

const (
	RoundPhaseWaiting   RoundPhase = "WAITING"
	RoundPhaseActive    RoundPhase = "ACTIVE"
	RoundPhaseJudging   RoundPhase = "JUDGING"
	RoundPhaseCompleted RoundPhase = "COMPLETED"
)

// Terminal reports whether the phase is a terminal state.
func (p RoundPhase) Terminal() bool {
	return p == RoundPhaseCompleted
}

// RoundSettings holds JSONB configuration for rounds.
type RoundSettings struct {
	EntryFee         float64 `json:"entry_fee"`
	MaxPlayers       int     `json:"max_players"`
	MinPlayers       int     `json:"min_players"`
	TimerDurationSec int     `json:"timer_duration_sec"`
	JudgingDelaySec  int     `json:"judging_delay_sec"`
	HouseFeeFraction float64 `json:"house_fee_fraction"`
}

// Round represents one roast battle instance.
type Round struct {
	ID               uuid.UUID     `json:"id"`
	JudgeCharacter   string        `json:"judge_character"`
	Phase            RoundPhase    `json:"phase"`
	PrizePool        float64       `json:"prize_pool"`
	Settings         RoundSettings `json:"settings"`
	StartedAt        *time.Time    `json:"started_at,omitempty"`
	JudgingStartedAt *time.Time    `json:"judging_started_at,omitempty"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}
