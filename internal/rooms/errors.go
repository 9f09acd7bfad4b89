package rooms

import "errors"

// Aggregate-level errors. Each is terminal for the single action that raised it
// and is reported back to the originating connection only.
var (
	// ErrRoomInactive is returned when a deactivated room is asked to accept
	// joins, questions, or answers.
	ErrRoomInactive = errors.New("room is not active")

	// ErrDuplicateStudent is returned when an identity already present in the
	// room tries to join again.
	ErrDuplicateStudent = errors.New("student already exists in room")

	// ErrStudentBanned is returned when a joining student's display name
	// matches a previously kicked student's name in the same room.
	ErrStudentBanned = errors.New("student was kicked from this room")

	// ErrStudentNotFound is returned when an identity has no live (non-kicked)
	// membership in the room.
	ErrStudentNotFound = errors.New("student not found or has been kicked")

	// ErrTeacherSlotTaken is returned when a teacher identity is already bound
	// to the room.
	ErrTeacherSlotTaken = errors.New("teacher already in room")

	// ErrNotTeacher is returned when a teacher-only operation is attempted by
	// an identity that is not the bound teacher.
	ErrNotTeacher = errors.New("only the teacher can perform this action")

	// ErrQuestionNotFound is returned for an unknown question id.
	ErrQuestionNotFound = errors.New("question not found")

	// ErrQuestionInactive is returned when answering a question that is closed
	// or no longer the current one.
	ErrQuestionInactive = errors.New("question is not active")

	// ErrDuplicateResponse is returned when a student answers the same
	// question twice. Answers are final.
	ErrDuplicateResponse = errors.New("answer already submitted")

	// ErrInvalidQuestion is returned for a question spec that fails the
	// option-count bounds.
	ErrInvalidQuestion = errors.New("invalid question")

	// ErrInvalidOption is returned when a submitted answer names an option id
	// the question does not have.
	ErrInvalidOption = errors.New("selected option does not exist")
)
