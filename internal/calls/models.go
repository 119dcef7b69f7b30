package calls

import "time"

// Mode distinguishes audio-only calls from full video calls.
type Mode string

const (
	ModeAudio Mode = "audio"
	ModeVideo Mode = "video"
)

// SessionStatus is the call-session state machine:
//
//	CREATED --(join)--> STARTED --(end | expire)--> ENDED
//	CREATED --(end | expire)--> ENDED   (call never joined)
//
// No transition leaves ENDED.
type SessionStatus string

const (
	SessionCreated SessionStatus = "CREATED"
	SessionStarted SessionStatus = "STARTED"
	SessionEnded   SessionStatus = "ENDED"
)

// Active reports whether the session still occupies the query's single
// active call slot.
func (s SessionStatus) Active() bool {
	return s == SessionCreated || s == SessionStarted
}

// Session is one concrete call attempt tied to a query.
//
// Invariant: at most one session with an active status per query at any
// time. Enforced by the orchestrator under a per-query lock, not the store.
type Session struct {
	ID      string `json:"id" db:"id"`
	QueryID string `json:"query_id" db:"query_id"`
	AgentID string `json:"agent_id" db:"agent_id"`

	// RoomName is the opaque handle issued by the media provider.
	RoomName string `json:"room_name" db:"room_name"`

	Mode   Mode          `json:"mode" db:"mode"`
	Status SessionStatus `json:"status" db:"status"`

	AgentToken string `json:"agent_token,omitempty" db:"agent_token"`
	DonorToken string `json:"donor_token,omitempty" db:"donor_token"`

	// RequestID links back to the call request this session fulfilled, when
	// the call originated from one. Empty for direct starts.
	RequestID string `json:"request_id,omitempty" db:"request_id"`

	StartedAt *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RequestStatus is the call-request state machine:
// PENDING --(accept)--> ACCEPTED, PENDING --(reject)--> REJECTED. Both terminal.
type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestAccepted RequestStatus = "ACCEPTED"
	RequestRejected RequestStatus = "REJECTED"
)

// Request is a donor's ask for a call, pending agent response.
type Request struct {
	ID      string `json:"id" db:"id"`
	QueryID string `json:"query_id" db:"query_id"`

	Mode    Mode   `json:"mode" db:"mode"`
	Message string `json:"message,omitempty" db:"message"`

	Status RequestStatus `json:"status" db:"status"`

	// RespondedByID is the agent who accepted or rejected; empty while PENDING.
	RespondedByID string `json:"responded_by_id,omitempty" db:"responded_by_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
