package session

import (
	"sync"
	"time"
)

type armedTimer struct {
	timer      *time.Timer
	questionID string
}

// timerSet keeps at most one pending question timer per room. Arming a new
// timer cancels the previous one for that room. The "is this still the active
// question" guard lives in the room aggregate, re-checked under the room lock
// at fire time; the question id held here is only used for bookkeeping.
type timerSet struct {
	mu     sync.Mutex
	timers map[string]*armedTimer
}

func newTimerSet() *timerSet {
	return &timerSet{timers: make(map[string]*armedTimer)}
}

// Arm schedules fire after d, replacing any pending timer for the room.
func (t *timerSet) Arm(roomID, questionID string, d time.Duration, fire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.timers[roomID]; ok {
		prev.timer.Stop()
	}
	armed := &armedTimer{questionID: questionID}
	armed.timer = time.AfterFunc(d, func() {
		t.clear(roomID, questionID)
		fire()
	})
	t.timers[roomID] = armed
}

// Cancel stops the pending timer for a room, if any.
func (t *timerSet) Cancel(roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if armed, ok := t.timers[roomID]; ok {
		armed.timer.Stop()
		delete(t.timers, roomID)
	}
}

// CancelAll stops every pending timer.
func (t *timerSet) CancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, armed := range t.timers {
		armed.timer.Stop()
		delete(t.timers, id)
	}
}

func (t *timerSet) clear(roomID, questionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if armed, ok := t.timers[roomID]; ok && armed.questionID == questionID {
		delete(t.timers, roomID)
	}
}
