package rooms

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Boundary limits for client-supplied values.
const (
	MaxTeacherNameLength  = 50
	MaxStudentNameLength  = 50
	MaxQuestionLength     = 500
	MaxOptionLength       = 200
	MaxChatMessageLength  = 1000
	MinOptionsPerQuestion = 2
	MaxOptionsPerQuestion = 6

	// DefaultTimeLimit is the question timeout used when the teacher does not
	// supply one.
	DefaultTimeLimit = 60 * time.Second
	MinTimeLimit     = 5 * time.Second
	MaxTimeLimit     = 10 * time.Minute
)

var (
	roomIDPattern = regexp.MustCompile(`^[A-Z0-9]{6,10}$`)
	scriptPattern = regexp.MustCompile(`(?is)<script\b.*?</script>`)
)

// Sanitize strips script tags from client-supplied text.
func Sanitize(input string) string {
	return scriptPattern.ReplaceAllString(input, "")
}

// ValidRoomID reports whether an id matches the public room-code format.
func ValidRoomID(id string) bool {
	return roomIDPattern.MatchString(id)
}

// ValidateName checks a teacher or student display name.
func ValidateName(name string, max int) (string, error) {
	name = strings.TrimSpace(Sanitize(name))
	if name == "" {
		return "", errors.New("name is required")
	}
	if len(name) > max {
		return "", fmt.Errorf("name must be at most %d characters", max)
	}
	return name, nil
}

// ValidateChatMessage checks a chat message body.
func ValidateChatMessage(message string) (string, error) {
	message = strings.TrimSpace(Sanitize(message))
	if message == "" {
		return "", errors.New("message is required")
	}
	if len(message) > MaxChatMessageLength {
		return "", fmt.Errorf("message must be at most %d characters", MaxChatMessageLength)
	}
	return message, nil
}

// ValidateQuestionSpec checks prompt and option bounds and normalizes the
// spec in place.
func ValidateQuestionSpec(spec *QuestionSpec) error {
	spec.Prompt = strings.TrimSpace(Sanitize(spec.Prompt))
	if spec.Prompt == "" || len(spec.Prompt) > MaxQuestionLength {
		return fmt.Errorf("question must be between 1 and %d characters", MaxQuestionLength)
	}
	if len(spec.Options) < MinOptionsPerQuestion || len(spec.Options) > MaxOptionsPerQuestion {
		return fmt.Errorf("must have between %d and %d options", MinOptionsPerQuestion, MaxOptionsPerQuestion)
	}
	seen := make(map[string]bool, len(spec.Options))
	for i := range spec.Options {
		opt := &spec.Options[i]
		opt.ID = strings.TrimSpace(opt.ID)
		opt.Text = strings.TrimSpace(Sanitize(opt.Text))
		if opt.ID == "" {
			return errors.New("every option needs an id")
		}
		if seen[opt.ID] {
			return fmt.Errorf("duplicate option id %q", opt.ID)
		}
		seen[opt.ID] = true
		if opt.Text == "" || len(opt.Text) > MaxOptionLength {
			return fmt.Errorf("option text must be between 1 and %d characters", MaxOptionLength)
		}
	}
	return nil
}

// ClampTimeLimit applies the default and the system-wide floor and ceiling to
// a caller-supplied question time limit.
func ClampTimeLimit(limit time.Duration) time.Duration {
	if limit <= 0 {
		return DefaultTimeLimit
	}
	if limit < MinTimeLimit {
		return MinTimeLimit
	}
	if limit > MaxTimeLimit {
		return MaxTimeLimit
	}
	return limit
}
