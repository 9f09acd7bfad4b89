package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// runJanitor periodically evicts rooms that are deactivated, have neither a
// teacher nor live students, or are past the maximum age.
func (c *Coordinator) runJanitor(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.JanitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep runs one janitor pass. Eviction is best-effort: it never fails and is
// never reported to any participant.
func (c *Coordinator) sweep() {
	now := time.Now()
	for _, room := range c.store.Rooms() {
		abandoned := !room.IsTeacherPresent() && room.ActiveStudentCount() == 0
		expired := now.Sub(room.CreatedAt()) > c.cfg.RoomMaxAge
		if !room.IsActive() || abandoned || expired {
			c.evict(room.ID())
		}
	}
}

// evict tears a room down: cancels its timer, ends the current question,
// clears reverse-index entries and removes the room. No-op if the room is
// already gone.
func (c *Coordinator) evict(roomID string) {
	room, ok := c.store.Get(roomID)
	if !ok {
		return
	}
	c.timers.Cancel(roomID)
	room.EndCurrentQuestion()
	c.store.Remove(roomID)
	c.logger.Info("room cleaned up", zap.String("room_id", roomID))
}
