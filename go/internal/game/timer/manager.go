package timer

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// TickFunc receives the remaining time on every countdown tick.
type TickFunc func(remaining time.Duration)

// Manager owns every game timer: per-round countdowns, one-shot
// submission-lock timers and the single global next-round timer.
// Remaining time is always recomputed from the deadline against the
// clock, never from the tick count, so drift and process pauses
// self-correct.
type Manager struct {
	clock clockwork.Clock

	mu         sync.Mutex
	countdowns map[uuid.UUID]*countdown
	lockTimers map[uuid.UUID]*oneShot
	nextRound  *oneShot
}

type countdown struct {
	deadline time.Time
	ticker   clockwork.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
}

type oneShot struct {
	timer    clockwork.Timer
	stopCh   chan struct{}
	stopOnce sync.Once
}

func (c *countdown) cancel() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (o *oneShot) cancel() {
	o.stopOnce.Do(func() { close(o.stopCh) })
}

// NewManager creates a timer manager on the given clock. Production
// callers pass clockwork.NewRealClock(); tests pass a FakeClock.
func NewManager(clock clockwork.Clock) *Manager {
	return &Manager{
		clock:      clock,
		countdowns: make(map[uuid.UUID]*countdown),
		lockTimers: make(map[uuid.UUID]*oneShot),
	}
}

// StartCountdown starts (or restarts) the round countdown. Any prior
// countdown for the same round is cancelled first. onTick fires once
// per second with the remaining time; onComplete fires exactly once
// when the deadline passes.
func (m *Manager) StartCountdown(roundID uuid.UUID, duration time.Duration, onTick TickFunc, onComplete func()) {
	c := &countdown{
		deadline: m.clock.Now().Add(duration),
		ticker:   m.clock.NewTicker(time.Second),
		stopCh:   make(chan struct{}),
	}

	m.mu.Lock()
	if prev, ok := m.countdowns[roundID]; ok {
		prev.cancel()
	}
	m.countdowns[roundID] = c
	m.mu.Unlock()

	log.Debug().
		Str("round_id", roundID.String()).
		Dur("duration", duration).
		Msg("countdown started")

	go m.runCountdown(roundID, c, onTick, onComplete)
}

func (m *Manager) runCountdown(roundID uuid.UUID, c *countdown, onTick TickFunc, onComplete func()) {
	defer c.ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-c.ticker.Chan():
			remaining := c.deadline.Sub(m.clock.Now())
			if remaining <= 0 {
				m.removeCountdown(roundID, c)
				log.Debug().Str("round_id", roundID.String()).Msg("countdown expired")
				onComplete()
				return
			}
			if onTick != nil {
				onTick(remaining)
			}
		}
	}
}

// removeCountdown drops c from the map only if it is still the current
// countdown for the round; a restart may have replaced it already.
func (m *Manager) removeCountdown(roundID uuid.UUID, c *countdown) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.countdowns[roundID]; ok && cur == c {
		delete(m.countdowns, roundID)
	}
}

// Resume continues a countdown after a process restart. If the
// remaining span already elapsed while the process was down,
// onComplete runs synchronously before Resume returns.
func (m *Manager) Resume(roundID uuid.UUID, remaining time.Duration, onTick TickFunc, onComplete func()) {
	if remaining <= 0 {
		log.Info().
			Str("round_id", roundID.String()).
			Dur("remaining", remaining).
			Msg("countdown already elapsed, completing immediately")
		onComplete()
		return
	}
	m.StartCountdown(roundID, remaining, onTick, onComplete)
}

// TimeLeft reports the remaining countdown time for a round, clamped
// at zero. The second return is false when no countdown is running.
func (m *Manager) TimeLeft(roundID uuid.UUID) (time.Duration, bool) {
	m.mu.Lock()
	c, ok := m.countdowns[roundID]
	m.mu.Unlock()
	if !ok {
		return 0, false
	}
	remaining := c.deadline.Sub(m.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// ScheduleLock arms the one-shot submission-lock timer for a round,
// replacing any pending one.
func (m *Manager) ScheduleLock(roundID uuid.UUID, delay time.Duration, onLock func()) {
	o := m.newOneShot(delay)

	m.mu.Lock()
	if prev, ok := m.lockTimers[roundID]; ok {
		prev.cancel()
	}
	m.lockTimers[roundID] = o
	m.mu.Unlock()

	go func() {
		defer stopAndDrain(o.timer)
		select {
		case <-o.stopCh:
		case <-o.timer.Chan():
			m.mu.Lock()
			if cur, ok := m.lockTimers[roundID]; ok && cur == o {
				delete(m.lockTimers, roundID)
			}
			m.mu.Unlock()
			onLock()
		}
	}()
}

// ScheduleNextRound arms the single global auto-start timer. Only one
// is ever pending; scheduling again replaces the previous one.
func (m *Manager) ScheduleNextRound(delay time.Duration, onCreate func()) {
	o := m.newOneShot(delay)

	m.mu.Lock()
	if m.nextRound != nil {
		m.nextRound.cancel()
	}
	m.nextRound = o
	m.mu.Unlock()

	log.Debug().Dur("delay", delay).Msg("next round scheduled")

	go func() {
		defer stopAndDrain(o.timer)
		select {
		case <-o.stopCh:
		case <-o.timer.Chan():
			m.mu.Lock()
			if m.nextRound == o {
				m.nextRound = nil
			}
			m.mu.Unlock()
			onCreate()
		}
	}()
}

func (m *Manager) newOneShot(delay time.Duration) *oneShot {
	return &oneShot{
		timer:  m.clock.NewTimer(delay),
		stopCh: make(chan struct{}),
	}
}

// CancelCountdown stops the round countdown if one is running.
func (m *Manager) CancelCountdown(roundID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.countdowns[roundID]; ok {
		c.cancel()
		delete(m.countdowns, roundID)
	}
}

// CancelLock stops the pending lock timer for a round.
func (m *Manager) CancelLock(roundID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.lockTimers[roundID]; ok {
		o.cancel()
		delete(m.lockTimers, roundID)
	}
}

// Cleanup cancels every outstanding timer. Used on shutdown so no
// callback can fire against a closed persistence handle.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, c := range m.countdowns {
		c.cancel()
		delete(m.countdowns, id)
	}
	for id, o := range m.lockTimers {
		o.cancel()
		delete(m.lockTimers, id)
	}
	if m.nextRound != nil {
		m.nextRound.cancel()
		m.nextRound = nil
	}

	log.Info().Msg("all timers cancelled")
}

// stopAndDrain safely stops a timer and drains its channel so the
// goroutine that owned it cannot leak a pending fire.
func stopAndDrain(t clockwork.Timer) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}
