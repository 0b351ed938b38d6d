package state

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Session stores conversation state and temporary data for a user.
type Session struct {
	State    State
	TempData map[string]any
}

// Manager orchestrates user sessions and FSM state transitions.
type Manager interface {
	// Get returns a snapshot of the user's session; an idle empty session when none exists.
	Get(userID int64) Session
	SetTemp(userID int64, key string, value any)
	// Clear removes the session together with its temporary data.
	Clear(userID int64)

	SetState(userID int64, st State)
	GetState(userID int64) State
	InProgress(userID int64) bool
}
