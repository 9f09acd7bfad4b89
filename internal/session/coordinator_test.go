package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/classpoll/backend/internal/rooms"
)

type notification struct {
	kind    string // "room", "roomExcept", "client"
	roomID  string
	target  string // client id, or excepted client id for roomExcept
	event   string
	payload interface{}
}

// fakeNotifier records the coordinator's outbound decisions.
type fakeNotifier struct {
	mu      sync.Mutex
	sent    []notification
	evicted []string
}

func (f *fakeNotifier) ToRoom(roomID, event string, payload interface{}) {
	f.record(notification{kind: "room", roomID: roomID, event: event, payload: payload})
}

func (f *fakeNotifier) ToRoomExcept(roomID, exceptID, event string, payload interface{}) {
	f.record(notification{kind: "roomExcept", roomID: roomID, target: exceptID, event: event, payload: payload})
}

func (f *fakeNotifier) ToClient(clientID, event string, payload interface{}) {
	f.record(notification{kind: "client", target: clientID, event: event, payload: payload})
}

func (f *fakeNotifier) Evict(roomID, clientID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evicted = append(f.evicted, clientID)
}

func (f *fakeNotifier) record(n notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
}

func (f *fakeNotifier) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sent {
		if s.event == event {
			n++
		}
	}
	return n
}

func (f *fakeNotifier) lastToClient(clientID, event string) (notification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		s := f.sent[i]
		if s.kind == "client" && s.target == clientID && s.event == event {
			return s, true
		}
	}
	return notification{}, false
}

func newTestCoordinator(t *testing.T, cfg Config) (*Coordinator, *rooms.Store, *fakeNotifier) {
	t.Helper()
	store := rooms.NewStore()
	notifier := &fakeNotifier{}
	coord := NewCoordinator(store, notifier, cfg, zap.NewNop())
	t.Cleanup(coord.Close)
	return coord, store, notifier
}

func setupRoom(t *testing.T, coord *Coordinator) string {
	t.Helper()
	summary, err := coord.CreateRoom("Ms. Rivera")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := coord.JoinAsTeacher(summary.ID, "t1"); err != nil {
		t.Fatal(err)
	}
	return summary.ID
}

func askSpec() rooms.QuestionSpec {
	return rooms.QuestionSpec{
		Prompt: "Is the sky blue?",
		Options: []rooms.Option{
			{ID: "A", Text: "Yes", IsCorrect: true},
			{ID: "B", Text: "No"},
		},
	}
}

func TestJoinFlow(t *testing.T) {
	coord, store, notifier := newTestCoordinator(t, Config{})
	roomID := setupRoom(t, coord)

	if _, ok := store.RoomOf("t1"); !ok {
		t.Error("teacher should be bound in the reverse index")
	}
	if _, ok := notifier.lastToClient("t1", EventJoinedRoom); !ok {
		t.Error("teacher should get joined-room")
	}
	if notifier.count(EventTeacherJoined) != 1 {
		t.Error("room should be told the teacher joined")
	}

	if err := coord.JoinAsStudent(roomID, "s1", "Alice"); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.RoomOf("s1"); !ok {
		t.Error("student should be bound in the reverse index")
	}
	if notifier.count(EventStudentJoined) != 1 {
		t.Error("room should be told the student joined")
	}
}

func TestJoinAsTeacher_Errors(t *testing.T) {
	coord, _, _ := newTestCoordinator(t, Config{})
	roomID := setupRoom(t, coord)

	if _, err := coord.JoinAsTeacher("NOROOM99", "t9"); !errors.Is(err, rooms.ErrRoomNotFound) {
		t.Errorf("unknown room = %v, want ErrRoomNotFound", err)
	}
	if _, err := coord.JoinAsTeacher(roomID, "t2"); !errors.Is(err, rooms.ErrTeacherSlotTaken) {
		t.Errorf("second teacher = %v, want ErrTeacherSlotTaken", err)
	}
}

func TestJoinAsStudent_DeliversActiveQuestion(t *testing.T) {
	coord, _, notifier := newTestCoordinator(t, Config{})
	roomID := setupRoom(t, coord)

	if _, err := coord.AskQuestion(roomID, "t1", askSpec(), time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := coord.JoinAsStudent(roomID, "s1", "Alice"); err != nil {
		t.Fatal(err)
	}
	n, ok := notifier.lastToClient("s1", EventNewQuestion)
	if !ok {
		t.Fatal("late joiner should receive the active question")
	}
	payload := n.payload.(map[string]interface{})
	timeLeft, ok := payload["timeLeft"].(int)
	if !ok || timeLeft <= 0 || timeLeft > 60 {
		t.Errorf("timeLeft = %v, want within (0, 60]", payload["timeLeft"])
	}
}

func TestAskQuestion_NotAuthorized(t *testing.T) {
	coord, _, _ := newTestCoordinator(t, Config{})
	roomID := setupRoom(t, coord)
	coord.JoinAsStudent(roomID, "s1", "Alice")

	if _, err := coord.AskQuestion(roomID, "s1", askSpec(), time.Minute); !errors.Is(err, rooms.ErrNotTeacher) {
		t.Errorf("ask by student = %v, want ErrNotTeacher", err)
	}
}

func TestSubmitAnswer_Notifications(t *testing.T) {
	coord, _, notifier := newTestCoordinator(t, Config{})
	roomID := setupRoom(t, coord)
	coord.JoinAsStudent(roomID, "s1", "Alice")

	view, err := coord.AskQuestion(roomID, "t1", askSpec(), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	stats, err := coord.SubmitAnswer(roomID, "s1", view.ID, "A")
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalResponses != 1 || stats.OptionCounts["A"] != 1 || stats.OptionCounts["B"] != 0 {
		t.Errorf("stats = %+v", stats)
	}

	if _, ok := notifier.lastToClient("s1", EventAnswerSubmitted); !ok {
		t.Error("submitter should get answer-submitted")
	}
	if _, ok := notifier.lastToClient("t1", EventAnswerStatsUpdate); !ok {
		t.Error("teacher should get the live tally")
	}
	if notifier.count(EventAnswerStatsUpdate) != 1 {
		t.Error("tally update goes to the teacher only, once")
	}

	if _, err := coord.SubmitAnswer(roomID, "s1", view.ID, "B"); !errors.Is(err, rooms.ErrDuplicateResponse) {
		t.Errorf("second answer = %v, want ErrDuplicateResponse", err)
	}
}

func TestSubmitAnswer_NotAStudent(t *testing.T) {
	coord, _, _ := newTestCoordinator(t, Config{})
	roomID := setupRoom(t, coord)
	view, _ := coord.AskQuestion(roomID, "t1", askSpec(), time.Minute)

	if _, err := coord.SubmitAnswer(roomID, "ghost", view.ID, "A"); !errors.Is(err, rooms.ErrStudentNotFound) {
		t.Errorf("unknown identity = %v, want ErrStudentNotFound", err)
	}
}

func TestQuestionTimeout_BroadcastsOnce(t *testing.T) {
	coord, _, notifier := newTestCoordinator(t, Config{})
	roomID := setupRoom(t, coord)
	coord.JoinAsStudent(roomID, "s1", "Alice")

	view, err := coord.AskQuestion(roomID, "t1", askSpec(), 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := coord.SubmitAnswer(roomID, "s1", view.ID, "A"); err != nil {
		t.Fatal(err)
	}

	time.Sleep(200 * time.Millisecond)
	if got := notifier.count(EventQuestionEnded); got != 1 {
		t.Fatalf("question-ended broadcast %d times, want 1", got)
	}

	// late answer after expiry
	coord.JoinAsStudent(roomID, "s2", "Bob")
	if _, err := coord.SubmitAnswer(roomID, "s2", view.ID, "B"); !errors.Is(err, rooms.ErrQuestionInactive) {
		t.Errorf("late answer = %v, want ErrQuestionInactive", err)
	}
}

func TestExplicitEndThenTimer_SingleBroadcast(t *testing.T) {
	coord, _, notifier := newTestCoordinator(t, Config{})
	roomID := setupRoom(t, coord)

	if _, err := coord.AskQuestion(roomID, "t1", askSpec(), 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if err := coord.EndCurrentQuestion(roomID, "t1"); err != nil {
		t.Fatal(err)
	}
	// a second explicit end is a no-op
	if err := coord.EndCurrentQuestion(roomID, "t1"); err != nil {
		t.Fatal(err)
	}

	time.Sleep(200 * time.Millisecond)
	if got := notifier.count(EventQuestionEnded); got != 1 {
		t.Errorf("question-ended broadcast %d times, want 1", got)
	}
}

func TestStaleTimer_DoesNotCloseSuccessor(t *testing.T) {
	coord, _, notifier := newTestCoordinator(t, Config{})
	roomID := setupRoom(t, coord)

	if _, err := coord.AskQuestion(roomID, "t1", askSpec(), 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if _, err := coord.AskQuestion(roomID, "t1", askSpec(), time.Minute); err != nil {
		t.Fatal(err)
	}

	time.Sleep(200 * time.Millisecond)
	if got := notifier.count(EventQuestionEnded); got != 0 {
		t.Errorf("superseded question broadcast question-ended %d times, want 0", got)
	}
	if _, err := coord.RoomStats(roomID); err != nil {
		t.Fatal(err)
	}
}

func TestKickScenario(t *testing.T) {
	coord, store, notifier := newTestCoordinator(t, Config{})
	roomID := setupRoom(t, coord)
	coord.JoinAsStudent(roomID, "s1", "Alice")

	if err := coord.KickStudent(roomID, "t1", "s1"); err != nil {
		t.Fatal(err)
	}

	if _, ok := notifier.lastToClient("s1", EventKickedFromRoom); !ok {
		t.Error("target should get kicked-from-room")
	}
	notifier.mu.Lock()
	evicted := append([]string(nil), notifier.evicted...)
	notifier.mu.Unlock()
	if len(evicted) != 1 || evicted[0] != "s1" {
		t.Errorf("evicted = %v, want [s1]", evicted)
	}
	if notifier.count(EventStudentKicked) != 1 {
		t.Error("room should be told a student was kicked")
	}
	if _, ok := notifier.lastToClient("t1", EventStudentKickedSuccess); !ok {
		t.Error("teacher should get the kick confirmation")
	}
	if _, ok := store.RoomOf("s1"); ok {
		t.Error("kicked student should be unbound from the reverse index")
	}

	// ban-by-name: a fresh identity with the same display name may not rejoin
	if err := coord.JoinAsStudent(roomID, "s2", "Alice"); !errors.Is(err, rooms.ErrStudentBanned) {
		t.Errorf("rejoin after kick = %v, want ErrStudentBanned", err)
	}
}

func TestKick_NotAuthorized(t *testing.T) {
	coord, _, notifier := newTestCoordinator(t, Config{})
	roomID := setupRoom(t, coord)
	coord.JoinAsStudent(roomID, "s1", "Alice")
	coord.JoinAsStudent(roomID, "s2", "Bob")

	if err := coord.KickStudent(roomID, "s1", "s2"); !errors.Is(err, rooms.ErrNotTeacher) {
		t.Errorf("kick by student = %v, want ErrNotTeacher", err)
	}
	if notifier.count(EventStudentKicked) != 0 {
		t.Error("failed kick must not broadcast")
	}
}

func TestLeave_TeacherClosesRoom(t *testing.T) {
	coord, store, notifier := newTestCoordinator(t, Config{})
	roomID := setupRoom(t, coord)
	coord.JoinAsStudent(roomID, "s1", "Alice")
	coord.AskQuestion(roomID, "t1", askSpec(), time.Minute)

	coord.Leave("t1")

	if notifier.count(EventTeacherLeft) != 1 {
		t.Error("room should be told the teacher left")
	}
	if _, ok := store.RoomOf("t1"); ok {
		t.Error("teacher reverse entry should be cleared")
	}
	if err := coord.JoinAsStudent(roomID, "s2", "Bob"); !errors.Is(err, rooms.ErrRoomInactive) {
		t.Errorf("join after teacher left = %v, want ErrRoomInactive", err)
	}
}

func TestLeave_Student(t *testing.T) {
	coord, store, notifier := newTestCoordinator(t, Config{})
	roomID := setupRoom(t, coord)
	coord.JoinAsStudent(roomID, "s1", "Alice")

	coord.Leave("s1")
	if notifier.count(EventStudentLeft) != 1 {
		t.Error("room should be told the student left")
	}
	if _, ok := store.RoomOf("s1"); ok {
		t.Error("student reverse entry should be cleared")
	}

	// unknown identity is a no-op
	coord.Leave("nobody")
}

func TestSendChatMessage(t *testing.T) {
	coord, _, notifier := newTestCoordinator(t, Config{})
	roomID := setupRoom(t, coord)
	coord.JoinAsStudent(roomID, "s1", "Alice")

	msg, err := coord.SendChatMessage(roomID, "s1", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if msg.SenderName != "Alice" || msg.SenderType != rooms.RoleStudent {
		t.Errorf("message = %+v", msg)
	}
	if notifier.count(EventNewMessage) != 1 {
		t.Error("chat should broadcast to the whole room")
	}

	if _, err := coord.SendChatMessage(roomID, "ghost", "hi"); !errors.Is(err, rooms.ErrStudentNotFound) {
		t.Errorf("chat from outsider = %v, want ErrStudentNotFound", err)
	}
}

func TestFullScenario(t *testing.T) {
	coord, _, notifier := newTestCoordinator(t, Config{})

	summary, err := coord.CreateRoom("Ms. Rivera")
	if err != nil {
		t.Fatal(err)
	}
	roomID := summary.ID
	if _, err := coord.JoinAsTeacher(roomID, "t1"); err != nil {
		t.Fatal(err)
	}
	if err := coord.JoinAsStudent(roomID, "s1", "Alice"); err != nil {
		t.Fatal(err)
	}

	view, err := coord.AskQuestion(roomID, "t1", askSpec(), 100*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	stats, err := coord.SubmitAnswer(roomID, "s1", view.ID, "A")
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalResponses != 1 || stats.OptionCounts["A"] != 1 || stats.OptionCounts["B"] != 0 {
		t.Fatalf("stats = %+v, want 1 response on A", stats)
	}

	time.Sleep(300 * time.Millisecond)
	if got := notifier.count(EventQuestionEnded); got != 1 {
		t.Fatalf("question-ended fired %d times, want exactly 1", got)
	}

	final, err := coord.RoomStats(roomID)
	if err != nil {
		t.Fatal(err)
	}
	if len(final.Questions) != 1 || final.Questions[0].Stats.TotalResponses != 1 {
		t.Errorf("final export = %+v", final.Questions)
	}
}

func TestRoomQueries(t *testing.T) {
	coord, _, _ := newTestCoordinator(t, Config{})
	roomID := setupRoom(t, coord)

	if exists, active := coord.RoomExists(roomID); !exists || !active {
		t.Errorf("RoomExists = (%v, %v), want (true, true)", exists, active)
	}
	if exists, _ := coord.RoomExists("NOROOM99"); exists {
		t.Error("unknown room should not exist")
	}
	if got := len(coord.ListRooms()); got != 1 {
		t.Errorf("ListRooms = %d rooms, want 1", got)
	}
	if _, err := coord.RoomSummary(roomID); err != nil {
		t.Errorf("RoomSummary = %v", err)
	}
	if _, err := coord.RoomStats("NOROOM99"); !errors.Is(err, rooms.ErrRoomNotFound) {
		t.Errorf("stats of unknown room = %v, want ErrRoomNotFound", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	coord, store, _ := newTestCoordinator(t, Config{})
	roomID := setupRoom(t, coord)
	coord.AskQuestion(roomID, "t1", askSpec(), time.Minute)
	coord.Start()

	coord.Close()
	coord.Close()
	if store.Len() != 0 {
		t.Error("Close should tear down all rooms")
	}
}
