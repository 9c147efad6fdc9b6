package domain

type SessionID string
type JobID string

// Role tags one side of the exchange with the model.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"

	// RoleContextNote marks auxiliary context rendered from the context
	// store. Gateway adapters map it to whatever the upstream protocol
	// accepts (usually a system message).
	RoleContextNote Role = "context_note"
)

// ValidRole reports whether r is one of the fixed role tags.
func ValidRole(r Role) bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleContextNote:
		return true
	}
	return false
}
