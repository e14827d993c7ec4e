package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureBroadcaster struct {
	mu   sync.Mutex
	sent map[string][][]byte
}

func newCaptureBroadcaster() *captureBroadcaster {
	return &captureBroadcaster{sent: make(map[string][][]byte)}
}

func (c *captureBroadcaster) Publish(room string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent[room] = append(c.sent[room], data)
}

func (c *captureBroadcaster) count(room string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent[room])
}

func (c *captureBroadcaster) last(t *testing.T, room string) GameEvent {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.sent[room]
	require.NotEmpty(t, msgs, "no messages in room %s", room)
	var ev GameEvent
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1], &ev))
	return ev
}

type captureBus struct {
	mu     sync.Mutex
	events []EventType
}

func (c *captureBus) Publish(eventType EventType, _ []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, eventType)
	return nil
}

func TestTimerUpdateStaysInRoundRoom(t *testing.T) {
	bc := newCaptureBroadcaster()
	e := NewEmitter(bc, nil)
	roundID := uuid.New()

	e.TimerUpdate(roundID, TimerUpdatePayload{RoundID: roundID.String(), TimeLeftSec: 42})

	assert.Equal(t, 1, bc.count(RoundRoom(roundID)))
	assert.Equal(t, 0, bc.count(RoomGlobal))
	assert.Equal(t, 0, bc.count(RoomAdmin))

	ev := bc.last(t, RoundRoom(roundID))
	assert.Equal(t, EventTypeTimerUpdate, ev.Type)
	assert.Equal(t, roundID.String(), ev.RoundID)
}

func TestPrizeDistributedReachesAllAudiences(t *testing.T) {
	bc := newCaptureBroadcaster()
	e := NewEmitter(bc, nil)
	roundID := uuid.New()

	e.PrizeDistributed(roundID, PrizeDistributedPayload{
		RoundID: roundID.String(),
		Amount:  0.0475,
		TxHash:  "0xabc",
	})

	assert.Equal(t, 1, bc.count(RoundRoom(roundID)))
	assert.Equal(t, 1, bc.count(RoomGlobal))
	assert.Equal(t, 1, bc.count(RoomAdmin))
}

func TestAdminErrorStaysOffPlayerRooms(t *testing.T) {
	bc := newCaptureBroadcaster()
	e := NewEmitter(bc, nil)
	roundID := uuid.New()

	e.AdminError(roundID, "PAYOUT_FAILED", "insufficient funds")

	assert.Equal(t, 1, bc.count(RoomAdmin))
	assert.Equal(t, 0, bc.count(RoomGlobal))
	assert.Equal(t, 0, bc.count(RoundRoom(roundID)))

	ev := bc.last(t, RoomAdmin)
	assert.Equal(t, EventTypeError, ev.Type)

	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(ev.Data, &payload))
	assert.Equal(t, "PAYOUT_FAILED", payload.Code)
}

func TestSubmissionLockEventType(t *testing.T) {
	bc := newCaptureBroadcaster()
	e := NewEmitter(bc, nil)
	roundID := uuid.New()

	e.SubmissionsLocked(roundID, true)
	assert.Equal(t, EventTypeSubmissionsLocked, bc.last(t, RoundRoom(roundID)).Type)

	e.SubmissionsLocked(roundID, false)
	assert.Equal(t, EventTypeSubmissionsUnlocked, bc.last(t, RoundRoom(roundID)).Type)
}

func TestHeadlessEmitterIsSafe(t *testing.T) {
	e := NewEmitter(nil, nil)
	roundID := uuid.New()

	assert.NotPanics(t, func() {
		e.RoundCreated(roundID, RoundCreatedPayload{RoundID: roundID.String()})
		e.TimerUpdate(roundID, TimerUpdatePayload{RoundID: roundID.String()})
		e.AdminError(roundID, "PAYOUT_FAILED", "boom")
	})
}

func TestBusMirrorsEveryEvent(t *testing.T) {
	bus := &captureBus{}
	e := NewEmitter(nil, bus)
	roundID := uuid.New()

	e.RoundCreated(roundID, RoundCreatedPayload{RoundID: roundID.String(), CreatedAt: time.Now()})
	e.JudgingStarted(roundID, JudgingStartedPayload{RoundID: roundID.String()})
	e.AdminError(roundID, "PAYOUT_FAILED", "boom")

	bus.mu.Lock()
	defer bus.mu.Unlock()
	assert.Equal(t, []EventType{EventTypeRoundCreated, EventTypeJudgingStarted, EventTypeError}, bus.events)
}
