package engine

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/quizlive/quizlive/internal/events"
	"github.com/quizlive/quizlive/internal/quiz"
)

// countdown is the cancellable handle for one question window. Cancel is
// idempotent: cancelling an already-cancelled or superseded countdown is a
// no-op.
type countdown struct {
	stop chan struct{}
	once sync.Once
}

func (c *countdown) Cancel() {
	c.once.Do(func() { close(c.stop) })
}

// armTimer starts a fresh one-second-granularity countdown for the room.
// Arming always cancels any prior instance first (via SwapTimer), so at most
// one countdown is live per room. Caller must hold the room lock.
func (e *Engine) armTimer(room *quiz.Room) {
	cd := &countdown{stop: make(chan struct{})}
	room.SwapTimer(cd)
	ticker := e.clock.NewTicker(time.Second)
	go e.runCountdown(room, cd, ticker)
}

func (e *Engine) runCountdown(room *quiz.Room, cd *countdown, ticker clockwork.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-cd.stop:
			return
		case <-ticker.Chan():
			if !e.tick(room, cd) {
				return
			}
		}
	}
}

// tick applies one countdown decrement under the room lock. It reports false
// when the countdown has finished or been superseded and the goroutine should
// exit.
func (e *Engine) tick(room *quiz.Room, cd *countdown) bool {
	room.Lock()
	defer room.Unlock()

	// A tick that raced with cancel-and-replace must not decrement on behalf
	// of the countdown that superseded it.
	if !room.TimerIs(cd) {
		return false
	}
	if room.Status != quiz.StatusActive {
		return true
	}

	room.RemainingTime--
	if room.RemainingTime < 0 {
		room.RemainingTime = 0
	}
	e.out.ToRoom(room.ID, events.New(room.ID, events.TypeTimeUpdate,
		events.TimeUpdatePayload{RemainingTime: room.RemainingTime}))

	if room.RemainingTime > 0 {
		return true
	}

	room.StopTimer()
	room.Status = quiz.StatusWaiting
	e.out.ToRoom(room.ID, events.New(room.ID, events.TypeTimeEnded,
		events.TimeUpdatePayload{RemainingTime: 0}))
	e.out.ToConn(room.AdminConnID, events.New(room.ID, events.TypeTimeEndedAdmin,
		events.TimeUpdatePayload{RemainingTime: 0}))
	return false
}
