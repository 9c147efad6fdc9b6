package domain

import "fmt"

// Message is one role-tagged unit exchanged with the model.
// Messages are immutable once appended to a conversation's history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

func NewContextNote(content string) Message {
	return Message{Role: RoleContextNote, Content: content}
}

// ValidateMessage checks that a caller-supplied envelope carries a known
// role. Content may be empty but the role tag is mandatory; anything the
// boundary layer decoded into something other than a string never reaches
// here (the fields are statically typed).
func ValidateMessage(m Message) error {
	if m.Role == "" {
		return fmt.Errorf("%w: missing role", ErrMalformedEnvelope)
	}
	if !ValidRole(m.Role) {
		return fmt.Errorf("%w: unknown role %q", ErrMalformedEnvelope, m.Role)
	}
	return nil
}

// SanitizeReply strips a gateway response down to the {role, content}
// contract. A gateway that omits the role gets assistant by default.
func SanitizeReply(m Message) Message {
	role := m.Role
	if role == "" {
		role = RoleAssistant
	}
	return Message{Role: role, Content: m.Content}
}
