package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Room names for the three broadcast audiences.
const (
	RoomGlobal = "global"
	RoomAdmin  = "admin"
)

// RoundRoom returns the room name for a round-scoped audience.
func RoundRoom(roundID uuid.UUID) string {
	return "round:" + roundID.String()
}

// Broadcaster delivers a marshalled event to every connection in a
// room. Implementations must not block game logic.
type Broadcaster interface {
	Publish(room string, data []byte)
}

// BusPublisher mirrors events onto an out-of-process message bus for
// analytics and reconciliation consumers.
type BusPublisher interface {
	Publish(eventType EventType, data []byte) error
}

// Emitter converts internal game events into broadcast messages for
// round-scoped, global and admin audiences. It carries no business
// logic, works headless when no transport is attached, and never lets
// an emission failure reach game logic.
type Emitter struct {
	broadcaster Broadcaster
	bus         BusPublisher
}

func NewEmitter(broadcaster Broadcaster, bus BusPublisher) *Emitter {
	return &Emitter{broadcaster: broadcaster, bus: bus}
}

func (e *Emitter) RoundCreated(roundID uuid.UUID, p RoundCreatedPayload) {
	e.emit(EventTypeRoundCreated, roundID, p, RoomGlobal)
}

func (e *Emitter) RoundUpdated(roundID uuid.UUID, p RoundUpdatedPayload) {
	e.emit(EventTypeRoundUpdated, roundID, p, RoundRoom(roundID), RoomGlobal)
}

func (e *Emitter) PlayerJoined(roundID uuid.UUID, p PlayerJoinedPayload) {
	e.emit(EventTypePlayerJoined, roundID, p, RoundRoom(roundID), RoomGlobal)
}

func (e *Emitter) PlayerLeft(roundID uuid.UUID, p PlayerLeftPayload) {
	e.emit(EventTypePlayerLeft, roundID, p, RoundRoom(roundID))
}

func (e *Emitter) TimerUpdate(roundID uuid.UUID, p TimerUpdatePayload) {
	e.emit(EventTypeTimerUpdate, roundID, p, RoundRoom(roundID))
}

func (e *Emitter) JudgingStarted(roundID uuid.UUID, p JudgingStartedPayload) {
	e.emit(EventTypeJudgingStarted, roundID, p, RoundRoom(roundID), RoomGlobal)
}

func (e *Emitter) RoundCompleted(roundID uuid.UUID, p RoundCompletedPayload) {
	e.emit(EventTypeRoundCompleted, roundID, p, RoundRoom(roundID), RoomGlobal)
}

func (e *Emitter) PrizeDistributed(roundID uuid.UUID, p PrizeDistributedPayload) {
	e.emit(EventTypePrizeDistributed, roundID, p, RoundRoom(roundID), RoomGlobal, RoomAdmin)
}

func (e *Emitter) SubmissionsLocked(roundID uuid.UUID, locked bool) {
	p := SubmissionLockPayload{RoundID: roundID.String(), Locked: locked, ChangedAt: time.Now().UTC()}
	typ := EventTypeSubmissionsLocked
	if !locked {
		typ = EventTypeSubmissionsUnlocked
	}
	e.emit(typ, roundID, p, RoundRoom(roundID), RoomGlobal)
}

// AdminError surfaces an operational failure on the admin room only.
// Players never see payout failures; they see a completed round.
func (e *Emitter) AdminError(roundID uuid.UUID, code, message string) {
	p := ErrorPayload{
		RoundID:    roundID.String(),
		Code:       code,
		Message:    message,
		OccurredAt: time.Now().UTC(),
	}
	e.emit(EventTypeError, roundID, p, RoomAdmin)
}

func (e *Emitter) emit(typ EventType, roundID uuid.UUID, payload any, rooms ...string) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(typ)).Msg("failed to marshal event payload")
		return
	}

	event := GameEvent{
		ID:        uuid.NewString(),
		RoundID:   roundID.String(),
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	msg, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(typ)).Msg("failed to marshal event envelope")
		return
	}

	if e.broadcaster != nil {
		for _, room := range rooms {
			e.broadcaster.Publish(room, msg)
		}
	}

	if e.bus != nil {
		if err := e.bus.Publish(typ, msg); err != nil {
			log.Error().Err(err).Str("event_type", string(typ)).Msg("failed to publish event to bus")
		}
	}
}
