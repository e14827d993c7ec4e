package events

import (
	"encoding/json"
	"time"
)

// EventType identifies a game event on the wire.
type EventType string

const (
	EventTypeRoundCreated        EventType = "RoundCreated"
	EventTypeRoundUpdated        EventType = "RoundUpdated"
	EventTypePlayerJoined        EventType = "PlayerJoined"
	EventTypePlayerLeft          EventType = "PlayerLeft"
	EventTypeTimerUpdate         EventType = "TimerUpdate"
	EventTypeJudgingStarted      EventType = "JudgingStarted"
	EventTypeRoundCompleted      EventType = "RoundCompleted"
	EventTypePrizeDistributed    EventType = "PrizeDistributed"
	EventTypeSubmissionsLocked   EventType = "SubmissionsLocked"
	EventTypeSubmissionsUnlocked EventType = "SubmissionsUnlocked"
	EventTypeError               EventType = "Error"
)

// GameEvent is the envelope every broadcast message carries.
type GameEvent struct {
	ID        string          `json:"id"`
	RoundID   string          `json:"round_id,omitempty"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// RoundCreatedPayload is the payload for a RoundCreated event.
type RoundCreatedPayload struct {
	RoundID          string    `json:"round_id"`
	JudgeCharacter   string    `json:"judge_character"`
	EntryFee         float64   `json:"entry_fee"`
	MaxPlayers       int       `json:"max_players"`
	TimerDurationSec int       `json:"timer_duration_sec"`
	CreatedAt        time.Time `json:"created_at"`
}

// RoundUpdatedPayload is the payload for a RoundUpdated event.
type RoundUpdatedPayload struct {
	RoundID     string    `json:"round_id"`
	Phase       string    `json:"phase"`
	PlayerCount int       `json:"player_count"`
	PrizePool   float64   `json:"prize_pool"`
	TimeLeftSec int       `json:"time_left_sec"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PlayerJoinedPayload is the payload for a PlayerJoined event.
type PlayerJoinedPayload struct {
	RoundID       string    `json:"round_id"`
	PlayerAddress string    `json:"player_address"`
	PlayerCount   int       `json:"player_count"`
	PrizePool     float64   `json:"prize_pool"`
	JoinedAt      time.Time `json:"joined_at"`
}

// PlayerLeftPayload is the payload for a PlayerLeft event.
type PlayerLeftPayload struct {
	RoundID       string    `json:"round_id"`
	PlayerAddress string    `json:"player_address"`
	LeftAt        time.Time `json:"left_at"`
}

// TimerUpdatePayload is emitted every second while a round is active.
type TimerUpdatePayload struct {
	RoundID         string    `json:"round_id"`
	TimeLeftSec     int       `json:"time_left_sec"`
	ServerTimestamp time.Time `json:"server_timestamp"`
}

// JudgingStartedPayload is the payload for a JudgingStarted event.
type JudgingStartedPayload struct {
	RoundID          string    `json:"round_id"`
	JudgeCharacter   string    `json:"judge_character"`
	SubmissionCount  int       `json:"submission_count"`
	JudgingStartedAt time.Time `json:"judging_started_at"`
}

// RoundCompletedPayload is the payload for a RoundCompleted event.
type RoundCompletedPayload struct {
	RoundID            string    `json:"round_id"`
	WinnerSubmissionID string    `json:"winner_submission_id"`
	WinnerAddress      string    `json:"winner_address"`
	AIReasoning        string    `json:"ai_reasoning"`
	Fallback           bool      `json:"fallback"`
	PrizeAmount        float64   `json:"prize_amount"`
	CompletedAt        time.Time `json:"completed_at"`
}

// PrizeDistributedPayload is the payload for a PrizeDistributed event.
type PrizeDistributedPayload struct {
	RoundID       string    `json:"round_id"`
	WinnerAddress string    `json:"winner_address"`
	Amount        float64   `json:"amount"`
	TxHash        string    `json:"tx_hash"`
	DistributedAt time.Time `json:"distributed_at"`
}

// SubmissionLockPayload is the payload for SubmissionsLocked and
// SubmissionsUnlocked events.
type SubmissionLockPayload struct {
	RoundID   string    `json:"round_id"`
	Locked    bool      `json:"locked"`
	ChangedAt time.Time `json:"changed_at"`
}

// ErrorPayload is the payload for an Error event. Payout failures
// surface here on the admin room only.
type ErrorPayload struct {
	RoundID    string    `json:"round_id,omitempty"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}
