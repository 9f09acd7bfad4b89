package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/classpoll/backend/internal/rooms"
)

// Config holds coordinator timing settings. Zero values fall back to the
// package defaults.
type Config struct {
	DefaultTimeLimit time.Duration // question timeout when the teacher supplies none
	JanitorInterval  time.Duration // sweep period for inactive/empty/expired rooms
	RoomMaxAge       time.Duration // rooms older than this are evicted
}

const (
	defaultJanitorInterval = time.Minute
	defaultRoomMaxAge      = 24 * time.Hour
)

// Coordinator orchestrates cross-room operations: it resolves the acting
// participant's room, invokes the room state transition, and maps the result
// to targeted or room-wide notifications. Broadcasts are computed after the
// room mutation is applied, so a slow transport send never holds a room lock.
type Coordinator struct {
	store    *rooms.Store
	notifier Notifier
	logger   *zap.Logger
	cfg      Config
	timers   *timerSet

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewCoordinator creates a coordinator. Call Start to begin the janitor sweep
// and Close to release timers and background work.
func NewCoordinator(store *rooms.Store, notifier Notifier, cfg Config, logger *zap.Logger) *Coordinator {
	if cfg.DefaultTimeLimit <= 0 {
		cfg.DefaultTimeLimit = rooms.DefaultTimeLimit
	}
	if cfg.JanitorInterval <= 0 {
		cfg.JanitorInterval = defaultJanitorInterval
	}
	if cfg.RoomMaxAge <= 0 {
		cfg.RoomMaxAge = defaultRoomMaxAge
	}
	return &Coordinator{
		store:    store,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		timers:   newTimerSet(),
	}
}

// Start launches the janitor loop.
func (c *Coordinator) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	go c.runJanitor(ctx)
}

// Close stops the janitor, cancels all question timers and tears down every
// room.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.wg.Wait()
		c.timers.CancelAll()
		for _, room := range c.store.Rooms() {
			room.EndCurrentQuestion()
			c.store.Remove(room.ID())
		}
	})
}

// CreateRoom creates a new active room owned by the named teacher. No
// membership is required yet; the teacher binds later over the real-time
// connection.
func (c *Coordinator) CreateRoom(teacherName string) (rooms.Summary, error) {
	room, err := c.store.Create(teacherName)
	if err != nil {
		return rooms.Summary{}, fmt.Errorf("create room: %w", err)
	}
	c.logger.Info("room created",
		zap.String("room_id", room.ID()),
		zap.String("teacher_name", teacherName),
	)
	return room.Summary(), nil
}

// JoinAsTeacher binds the caller as the room's teacher and announces it.
func (c *Coordinator) JoinAsTeacher(roomID, teacherID string) (rooms.Summary, error) {
	room, ok := c.store.Get(roomID)
	if !ok {
		return rooms.Summary{}, rooms.ErrRoomNotFound
	}
	if err := room.BindTeacher(teacherID); err != nil {
		return rooms.Summary{}, err
	}
	c.store.Bind(teacherID, roomID)

	c.notifier.ToClient(teacherID, EventJoinedRoom, map[string]interface{}{
		"success": true,
		"roomId":  roomID,
		"role":    rooms.RoleTeacher,
		"message": "Successfully joined as teacher",
	})
	c.notifier.ToRoomExcept(roomID, teacherID, EventTeacherJoined, map[string]interface{}{
		"teacherName": room.TeacherName(),
		"message":     "Teacher has joined the room",
	})
	c.logger.Info("teacher joined room", zap.String("room_id", roomID), zap.String("teacher_id", teacherID))
	return room.Summary(), nil
}

// JoinAsStudent adds the caller to the room's roster, announces the updated
// count, and delivers the active question (with remaining time) to the new
// student only.
func (c *Coordinator) JoinAsStudent(roomID, studentID, studentName string) error {
	room, ok := c.store.Get(roomID)
	if !ok {
		return rooms.ErrRoomNotFound
	}
	if err := room.AddStudent(studentID, studentName); err != nil {
		return err
	}
	c.store.Bind(studentID, roomID)

	c.notifier.ToClient(studentID, EventJoinedRoom, map[string]interface{}{
		"success": true,
		"roomId":  roomID,
		"role":    rooms.RoleStudent,
		"message": "Successfully joined as student",
	})
	c.notifier.ToRoomExcept(roomID, studentID, EventStudentJoined, map[string]interface{}{
		"studentName":  studentName,
		"studentCount": room.ActiveStudentCount(),
		"message":      studentName + " joined the room",
	})
	if view, remaining, ok := room.CurrentQuestion(); ok {
		c.notifier.ToClient(studentID, EventNewQuestion, map[string]interface{}{
			"question": view,
			"timeLeft": int(remaining.Seconds()),
		})
	}
	c.logger.Info("student joined room",
		zap.String("room_id", roomID),
		zap.String("student_id", studentID),
		zap.String("student_name", studentName),
	)
	return nil
}

// Leave removes the identity from whatever room it occupies. A leaving
// teacher deactivates the room and ends the current question; the remaining
// members are notified either way. Unknown identities are a no-op.
func (c *Coordinator) Leave(participantID string) {
	roomID, ok := c.store.RoomOf(participantID)
	if !ok {
		return
	}
	c.store.Unbind(participantID)
	room, ok := c.store.Get(roomID)
	if !ok {
		return
	}
	res, ok := room.Leave(participantID)
	if !ok {
		return
	}

	if res.Role == rooms.RoleTeacher {
		c.timers.Cancel(roomID)
		c.notifier.ToRoomExcept(roomID, participantID, EventTeacherLeft, map[string]interface{}{
			"message": "Teacher has left the room. Room is now closed.",
		})
		c.logger.Info("teacher left, room deactivated", zap.String("room_id", roomID))
		return
	}
	c.notifier.ToRoomExcept(roomID, participantID, EventStudentLeft, map[string]interface{}{
		"studentName":  res.Name,
		"studentCount": res.StudentCount,
		"message":      res.Name + " left the room",
	})
	c.logger.Info("student left room", zap.String("room_id", roomID), zap.String("student_id", participantID))
}

// AskQuestion ends any current question, installs the new one, and arms its
// timeout. The question goes to all students; the teacher gets a
// confirmation.
func (c *Coordinator) AskQuestion(roomID, teacherID string, spec rooms.QuestionSpec, timeLimit time.Duration) (rooms.QuestionView, error) {
	room, ok := c.store.Get(roomID)
	if !ok {
		return rooms.QuestionView{}, rooms.ErrRoomNotFound
	}
	limit := timeLimit
	if limit <= 0 {
		limit = c.cfg.DefaultTimeLimit
	}
	view, err := room.AskQuestion(teacherID, spec, limit)
	if err != nil {
		return rooms.QuestionView{}, err
	}
	c.timers.Arm(roomID, view.ID, limit, func() {
		c.questionTimeout(roomID, view.ID)
	})

	c.notifier.ToRoomExcept(roomID, teacherID, EventNewQuestion, map[string]interface{}{
		"question": view,
		"timeLeft": int(limit.Seconds()),
	})
	c.notifier.ToClient(teacherID, EventQuestionAsked, map[string]interface{}{
		"success":  true,
		"question": view,
		"message":  "Question sent to all students",
	})
	c.logger.Info("question asked",
		zap.String("room_id", roomID),
		zap.String("question_id", view.ID),
		zap.Duration("time_limit", limit),
	)
	return view, nil
}

// questionTimeout fires when a question's time limit elapses. The room
// re-checks under its own lock that the question is still the current one, so
// a stale timer from a superseded question never broadcasts.
func (c *Coordinator) questionTimeout(roomID, questionID string) {
	room, ok := c.store.Get(roomID)
	if !ok {
		return
	}
	stats, ended := room.EndQuestionIfCurrent(questionID)
	if !ended {
		return
	}
	c.notifier.ToRoom(roomID, EventQuestionEnded, map[string]interface{}{
		"questionId": questionID,
		"stats":      stats,
	})
	c.logger.Info("question timed out", zap.String("room_id", roomID), zap.String("question_id", questionID))
}

// EndCurrentQuestion ends the room's active question early, on the teacher's
// request. Idempotent; at most one question-ended broadcast per question.
func (c *Coordinator) EndCurrentQuestion(roomID, teacherID string) error {
	room, ok := c.store.Get(roomID)
	if !ok {
		return rooms.ErrRoomNotFound
	}
	if room.TeacherID() != teacherID {
		return rooms.ErrNotTeacher
	}
	c.timers.Cancel(roomID)
	stats, ended := room.EndCurrentQuestion()
	if !ended {
		return nil
	}
	c.notifier.ToRoom(roomID, EventQuestionEnded, map[string]interface{}{
		"questionId": stats.QuestionID,
		"stats":      stats,
	})
	c.logger.Info("question ended", zap.String("room_id", roomID), zap.String("question_id", stats.QuestionID))
	return nil
}

// SubmitAnswer records the student's answer, confirms it to the submitter,
// and streams the live tally to the teacher only.
func (c *Coordinator) SubmitAnswer(roomID, studentID, questionID, selectedOption string) (rooms.QuestionStats, error) {
	room, ok := c.store.Get(roomID)
	if !ok {
		return rooms.QuestionStats{}, rooms.ErrRoomNotFound
	}
	stats, err := room.SubmitAnswer(studentID, questionID, selectedOption)
	if err != nil {
		return rooms.QuestionStats{}, err
	}

	c.notifier.ToClient(studentID, EventAnswerSubmitted, map[string]interface{}{
		"success":        true,
		"questionId":     questionID,
		"selectedOption": selectedOption,
		"stats":          stats,
	})
	if teacherID := room.TeacherID(); teacherID != "" {
		c.notifier.ToClient(teacherID, EventAnswerStatsUpdate, map[string]interface{}{
			"questionId": questionID,
			"stats":      stats,
		})
	}
	c.logger.Info("answer submitted",
		zap.String("room_id", roomID),
		zap.String("student_id", studentID),
		zap.String("question_id", questionID),
	)
	return stats, nil
}

// KickStudent marks the target as kicked, notifies it, evicts its connection
// from the room channel, and informs the rest of the room. The kicked entry
// is retained so the display name stays banned.
func (c *Coordinator) KickStudent(roomID, teacherID, targetID string) error {
	room, ok := c.store.Get(roomID)
	if !ok {
		return rooms.ErrRoomNotFound
	}
	kicked, err := room.KickStudent(teacherID, targetID)
	if err != nil {
		return err
	}
	if !kicked {
		return nil
	}
	c.store.Unbind(targetID)

	c.notifier.ToClient(targetID, EventKickedFromRoom, map[string]interface{}{
		"message": "You have been removed from the room by the teacher",
	})
	c.notifier.Evict(roomID, targetID)
	c.notifier.ToRoomExcept(roomID, teacherID, EventStudentKicked, map[string]interface{}{
		"studentId": targetID,
		"message":   "A student has been removed from the room",
	})
	c.notifier.ToClient(teacherID, EventStudentKickedSuccess, map[string]interface{}{
		"success":   true,
		"studentId": targetID,
		"message":   "Student has been kicked from the room",
	})
	c.logger.Info("student kicked", zap.String("room_id", roomID), zap.String("student_id", targetID))
	return nil
}

// SendChatMessage appends a chat message and broadcasts it to the whole room,
// sender included.
func (c *Coordinator) SendChatMessage(roomID, senderID, message string) (rooms.ChatMessage, error) {
	room, ok := c.store.Get(roomID)
	if !ok {
		return rooms.ChatMessage{}, rooms.ErrRoomNotFound
	}
	msg, err := room.AddChatMessage(senderID, message)
	if err != nil {
		return rooms.ChatMessage{}, err
	}
	c.notifier.ToRoom(roomID, EventNewMessage, msg)
	c.logger.Info("chat message sent",
		zap.String("room_id", roomID),
		zap.String("sender_name", msg.SenderName),
	)
	return msg, nil
}

// RoomStats returns the full-detail export for a room.
func (c *Coordinator) RoomStats(roomID string) (rooms.StatsExport, error) {
	room, ok := c.store.Get(roomID)
	if !ok {
		return rooms.StatsExport{}, rooms.ErrRoomNotFound
	}
	return room.Export(), nil
}

// RoomSummary returns the listing view for a room.
func (c *Coordinator) RoomSummary(roomID string) (rooms.Summary, error) {
	room, ok := c.store.Get(roomID)
	if !ok {
		return rooms.Summary{}, rooms.ErrRoomNotFound
	}
	return room.Summary(), nil
}

// RoomExists reports whether a room exists and whether it is still active.
func (c *Coordinator) RoomExists(roomID string) (exists, active bool) {
	room, ok := c.store.Get(roomID)
	if !ok {
		return false, false
	}
	return true, room.IsActive()
}

// ListRooms returns summaries of all live rooms.
func (c *Coordinator) ListRooms() []rooms.Summary {
	return c.store.List()
}
