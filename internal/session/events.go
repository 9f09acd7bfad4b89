package session

// Inbound participant actions, as sent over the real-time transport.
const (
	ActionJoinAsTeacher = "join-as-teacher"
	ActionJoinAsStudent = "join-as-student"
	ActionAskQuestion   = "ask-question"
	ActionSubmitAnswer  = "submit-answer"
	ActionSendMessage   = "send-message"
	ActionKickStudent   = "kick-student"
	ActionGetRoomStats  = "get-room-stats"
)

// Outbound events broadcast or targeted by the coordinator.
const (
	EventJoinedRoom           = "joined-room"
	EventTeacherJoined        = "teacher-joined"
	EventStudentJoined        = "student-joined"
	EventTeacherLeft          = "teacher-left"
	EventStudentLeft          = "student-left"
	EventNewQuestion          = "new-question"
	EventQuestionAsked        = "question-asked"
	EventAnswerSubmitted      = "answer-submitted"
	EventAnswerStatsUpdate    = "answer-stats-update"
	EventQuestionEnded        = "question-ended"
	EventNewMessage           = "new-message"
	EventStudentKicked        = "student-kicked"
	EventStudentKickedSuccess = "student-kicked-success"
	EventKickedFromRoom       = "kicked-from-room"
	EventRoomStats            = "room-stats"
	EventError                = "error"
)

// Notifier is the transport adapter contract: per-connection addressing and
// room-scoped broadcast. Implementations must not block; delivery happens
// after the room state change is already applied.
type Notifier interface {
	ToRoom(roomID, event string, payload interface{})
	ToRoomExcept(roomID, exceptID, event string, payload interface{})
	ToClient(clientID, event string, payload interface{})
	// Evict removes a connection from the room channel and terminates it.
	Evict(roomID, clientID string)
}
