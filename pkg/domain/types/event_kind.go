package types

// EventKind classifies a raw captured event before compression
type EventKind string

const (
	EventKindToolUse    EventKind = "tool-use"
	EventKindUserPrompt EventKind = "user-prompt"
	EventKindFileTouch  EventKind = "file-touch"
)

// IsValid checks if the event kind is valid
func (k EventKind) IsValid() bool {
	switch k {
	case EventKindToolUse, EventKindUserPrompt, EventKindFileTouch:
		return true
	default:
		return false
	}
}

// String returns the string representation of the event kind
func (k EventKind) String() string {
	return string(k)
}
