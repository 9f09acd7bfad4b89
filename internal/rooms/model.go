package rooms

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sender roles for chat messages.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Option is one answer choice of a multiple-choice question.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect,omitempty"`
}

// QuestionSpec is the input for asking a new question.
type QuestionSpec struct {
	Prompt  string   `json:"question"`
	Options []Option `json:"options"`
}

// QuestionView is the client-facing shape of a question, without tallies.
type QuestionView struct {
	ID       string    `json:"id"`
	Question string    `json:"question"`
	Options  []Option  `json:"options"`
	AskedAt  time.Time `json:"askedAt"`
}

// Response is a single recorded answer.
type Response struct {
	StudentID      string `json:"studentId"`
	SelectedOption string `json:"selectedOption"`
}

// QuestionStats is a tally snapshot for one question.
type QuestionStats struct {
	QuestionID     string         `json:"questionId"`
	Question       string         `json:"question"`
	TotalResponses int            `json:"totalResponses"`
	TotalStudents  int            `json:"totalStudents"`
	OptionCounts   map[string]int `json:"optionCounts"`
	Responses      []Response     `json:"responses"`
}

// ChatMessage is one entry of a room's append-only chat log.
type ChatMessage struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Message    string    `json:"message"`
	SenderType string    `json:"senderType"`
	Timestamp  time.Time `json:"timestamp"`
}

// StudentInfo is the client-facing view of a live room member.
type StudentInfo struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinTime"`
}

// Summary is the listing view of a room.
type Summary struct {
	ID             string    `json:"id"`
	TeacherName    string    `json:"teacherName"`
	StudentCount   int       `json:"studentCount"`
	QuestionsAsked int       `json:"questionsAsked"`
	CreatedAt      time.Time `json:"createdAt"`
	IsActive       bool      `json:"isActive"`
}

// QuestionRecord is one question in the full-history export.
type QuestionRecord struct {
	ID       string        `json:"id"`
	Question string        `json:"question"`
	Options  []Option      `json:"options"`
	AskedAt  time.Time     `json:"askedAt"`
	Stats    QuestionStats `json:"stats"`
}

// StatsExport is the full-detail export of a single room.
type StatsExport struct {
	Room        Summary          `json:"room"`
	Students    []StudentInfo    `json:"students"`
	Questions   []QuestionRecord `json:"questions"`
	ChatHistory []ChatMessage    `json:"chatHistory"`
}

// LeaveResult describes the outcome of a participant leaving a room.
type LeaveResult struct {
	Role         string
	Name         string
	StudentCount int
	RoomClosed   bool
}

type student struct {
	name     string
	joinedAt time.Time
	kicked   bool
}

type question struct {
	id           string
	prompt       string
	options      []Option
	optionCounts map[string]int
	byStudent    map[string]string
	responses    []Response
	askedAt      time.Time
	deadline     time.Time
	active       bool
}

// Room is a single classroom session. All mutations go through its mutex so
// two students answering simultaneously, or a kick racing a join, never
// interleave partially.
type Room struct {
	mu          sync.Mutex
	id          string
	teacherName string
	teacherID   string
	students    map[string]*student
	questions   []*question
	current     *question
	chat        []ChatMessage
	createdAt   time.Time
	active      bool
}

func newRoom(id, teacherName string) *Room {
	return &Room{
		id:          id,
		teacherName: teacherName,
		students:    make(map[string]*student),
		createdAt:   time.Now(),
		active:      true,
	}
}

// ID returns the room code.
func (r *Room) ID() string { return r.id }

// TeacherName returns the display name the room was created with.
func (r *Room) TeacherName() string { return r.teacherName }

// CreatedAt returns the room creation time.
func (r *Room) CreatedAt() time.Time { return r.createdAt }

// IsActive reports whether the room still accepts joins, questions and answers.
func (r *Room) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// IsTeacherPresent reports whether a teacher identity is bound.
func (r *Room) IsTeacherPresent() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.teacherID != ""
}

// TeacherID returns the bound teacher identity, or "" when none.
func (r *Room) TeacherID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.teacherID
}

// BindTeacher binds the teacher identity. The slot-taken check and the bind
// are one critical section so two concurrent teacher joins cannot both win.
func (r *Room) BindTeacher(teacherID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return ErrRoomInactive
	}
	if r.teacherID != "" {
		return ErrTeacherSlotTaken
	}
	r.teacherID = teacherID
	return nil
}

// AddStudent inserts a live membership for the identity. A display name that
// matches a previously kicked student's name in this room is banned.
func (r *Room) AddStudent(studentID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return ErrRoomInactive
	}
	if _, ok := r.students[studentID]; ok {
		return ErrDuplicateStudent
	}
	for _, s := range r.students {
		if s.kicked && s.name == name {
			return ErrStudentBanned
		}
	}
	r.students[studentID] = &student{name: name, joinedAt: time.Now()}
	return nil
}

// RemoveStudent removes a live membership. Kicked entries are retained with
// the flag set so the ban-by-name check survives the student's disconnect.
func (r *Room) RemoveStudent(studentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.students[studentID]
	if !ok {
		return false
	}
	if !s.kicked {
		delete(r.students, studentID)
	}
	return true
}

// KickStudent marks the target as kicked. Only the bound teacher may kick.
// Returns whether the flag was newly set; a missing target is not an error.
func (r *Room) KickStudent(callerID, targetID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if callerID == "" || callerID != r.teacherID {
		return false, ErrNotTeacher
	}
	s, ok := r.students[targetID]
	if !ok || s.kicked {
		return false, nil
	}
	s.kicked = true
	return true, nil
}

// ActiveStudents returns the kicked-filtered roster.
func (r *Room) ActiveStudents() []StudentInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeStudentsLocked()
}

// ActiveStudentCount returns the number of live (non-kicked) members.
func (r *Room) ActiveStudentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeCountLocked()
}

// AskQuestion deactivates any current question, installs a new one with
// zero-initialized tallies and arms its deadline. Only the bound teacher may
// ask.
func (r *Room) AskQuestion(callerID string, spec QuestionSpec, timeLimit time.Duration) (QuestionView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return QuestionView{}, ErrRoomInactive
	}
	if callerID == "" || callerID != r.teacherID {
		return QuestionView{}, ErrNotTeacher
	}
	if len(spec.Options) < MinOptionsPerQuestion || len(spec.Options) > MaxOptionsPerQuestion {
		return QuestionView{}, ErrInvalidQuestion
	}

	r.endCurrentLocked()

	now := time.Now()
	q := &question{
		id:           uuid.New().String(),
		prompt:       spec.Prompt,
		options:      append([]Option(nil), spec.Options...),
		optionCounts: make(map[string]int, len(spec.Options)),
		byStudent:    make(map[string]string),
		askedAt:      now,
		deadline:     now.Add(timeLimit),
		active:       true,
	}
	for _, opt := range spec.Options {
		q.optionCounts[opt.ID] = 0
	}
	r.questions = append(r.questions, q)
	r.current = q
	return q.view(), nil
}

// SubmitAnswer records a student's answer. The live-membership check, the
// duplicate check, the response insert and the counter increment are a single
// critical section, so the tally can never drift from the response set.
func (r *Room) SubmitAnswer(studentID, questionID, optionID string) (QuestionStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return QuestionStats{}, ErrRoomInactive
	}
	s, ok := r.students[studentID]
	if !ok || s.kicked {
		return QuestionStats{}, ErrStudentNotFound
	}
	q := r.findQuestionLocked(questionID)
	if q == nil {
		return QuestionStats{}, ErrQuestionNotFound
	}
	if !q.active || q != r.current {
		return QuestionStats{}, ErrQuestionInactive
	}
	if _, answered := q.byStudent[studentID]; answered {
		return QuestionStats{}, ErrDuplicateResponse
	}
	if _, known := q.optionCounts[optionID]; !known {
		return QuestionStats{}, ErrInvalidOption
	}
	q.byStudent[studentID] = optionID
	q.responses = append(q.responses, Response{StudentID: studentID, SelectedOption: optionID})
	q.optionCounts[optionID]++
	return r.statsLocked(q), nil
}

// QuestionStats returns the tally snapshot for a question, current or past.
func (r *Room) QuestionStats(questionID string) (QuestionStats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := r.findQuestionLocked(questionID)
	if q == nil {
		return QuestionStats{}, false
	}
	return r.statsLocked(q), true
}

// EndCurrentQuestion deactivates the current question, if any, and returns
// its final stats. Idempotent: a second call is a no-op.
func (r *Room) EndCurrentQuestion() (QuestionStats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endCurrentLocked()
}

// EndQuestionIfCurrent ends the question only if it is still the active one.
// Timer firings go through here so a stale timer from a superseded question
// never closes its successor.
func (r *Room) EndQuestionIfCurrent(questionID string) (QuestionStats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil || r.current.id != questionID {
		return QuestionStats{}, false
	}
	return r.endCurrentLocked()
}

// CurrentQuestion returns the active question and its remaining time, for
// delivery to late joiners.
func (r *Room) CurrentQuestion() (QuestionView, time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return QuestionView{}, 0, false
	}
	remaining := time.Until(r.current.deadline)
	if remaining < 0 {
		remaining = 0
	}
	return r.current.view(), remaining, true
}

// AddChatMessage resolves the sender as the teacher or a live student and
// appends a message to the chat log.
func (r *Room) AddChatMessage(senderID, message string) (ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var name, role string
	switch {
	case senderID != "" && senderID == r.teacherID:
		name, role = r.teacherName, RoleTeacher
	default:
		s, ok := r.students[senderID]
		if !ok || s.kicked {
			return ChatMessage{}, ErrStudentNotFound
		}
		name, role = s.name, RoleStudent
	}

	msg := ChatMessage{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		SenderName: name,
		Message:    message,
		SenderType: role,
		Timestamp:  time.Now(),
	}
	r.chat = append(r.chat, msg)
	return msg, nil
}

// Leave removes the identity from the room. A leaving teacher deactivates the
// room and ends the current question; the room is terminal afterwards.
func (r *Room) Leave(id string) (LeaveResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id != "" && id == r.teacherID {
		r.active = false
		r.teacherID = ""
		r.endCurrentLocked()
		return LeaveResult{Role: RoleTeacher, Name: r.teacherName, RoomClosed: true}, true
	}

	s, ok := r.students[id]
	if !ok {
		return LeaveResult{}, false
	}
	name := s.name
	if !s.kicked {
		delete(r.students, id)
	}
	return LeaveResult{Role: RoleStudent, Name: name, StudentCount: r.activeCountLocked()}, true
}

// Summary returns the listing view of the room.
func (r *Room) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summaryLocked()
}

// Export returns the full-detail view: roster, question history with stats,
// and the chat log.
func (r *Room) Export() StatsExport {
	r.mu.Lock()
	defer r.mu.Unlock()

	questions := make([]QuestionRecord, 0, len(r.questions))
	for _, q := range r.questions {
		questions = append(questions, QuestionRecord{
			ID:       q.id,
			Question: q.prompt,
			Options:  append([]Option(nil), q.options...),
			AskedAt:  q.askedAt,
			Stats:    r.statsLocked(q),
		})
	}
	return StatsExport{
		Room:        r.summaryLocked(),
		Students:    r.activeStudentsLocked(),
		Questions:   questions,
		ChatHistory: append([]ChatMessage(nil), r.chat...),
	}
}

func (r *Room) summaryLocked() Summary {
	return Summary{
		ID:             r.id,
		TeacherName:    r.teacherName,
		StudentCount:   r.activeCountLocked(),
		QuestionsAsked: len(r.questions),
		CreatedAt:      r.createdAt,
		IsActive:       r.active,
	}
}

func (r *Room) activeStudentsLocked() []StudentInfo {
	out := make([]StudentInfo, 0, len(r.students))
	for id, s := range r.students {
		if s.kicked {
			continue
		}
		out = append(out, StudentInfo{ID: id, Name: s.name, JoinedAt: s.joinedAt})
	}
	return out
}

func (r *Room) activeCountLocked() int {
	n := 0
	for _, s := range r.students {
		if !s.kicked {
			n++
		}
	}
	return n
}

func (r *Room) findQuestionLocked(id string) *question {
	for _, q := range r.questions {
		if q.id == id {
			return q
		}
	}
	return nil
}

func (r *Room) endCurrentLocked() (QuestionStats, bool) {
	if r.current == nil {
		return QuestionStats{}, false
	}
	r.current.active = false
	stats := r.statsLocked(r.current)
	r.current = nil
	return stats, true
}

func (r *Room) statsLocked(q *question) QuestionStats {
	counts := make(map[string]int, len(q.optionCounts))
	for k, v := range q.optionCounts {
		counts[k] = v
	}
	return QuestionStats{
		QuestionID:     q.id,
		Question:       q.prompt,
		TotalResponses: len(q.responses),
		TotalStudents:  r.activeCountLocked(),
		OptionCounts:   counts,
		Responses:      append([]Response(nil), q.responses...),
	}
}

func (q *question) view() QuestionView {
	return QuestionView{
		ID:       q.id,
		Question: q.prompt,
		Options:  append([]Option(nil), q.options...),
		AskedAt:  q.askedAt,
	}
}
