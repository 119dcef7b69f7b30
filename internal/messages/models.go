package messages

import "time"

// SenderType identifies who produced a message.
type SenderType string

const (
	SenderAdmin  SenderType = "ADMIN"
	SenderDonor  SenderType = "DONOR"
	SenderSystem SenderType = "SYSTEM"
)

// Type classifies a message within a query's timeline.
type Type string

const (
	TypeQuery       Type = "QUERY"
	TypeChat        Type = "CHAT"
	TypeSystem      Type = "SYSTEM"
	TypeCallStarted Type = "CALL_STARTED"
	TypeCallEnded   Type = "CALL_ENDED"
)

// Message is an append-only event attached to a query.
//
// Messages are immutable once created, with one narrow exception: the system
// message recording a call request is annotated in place when the request is
// accepted or rejected, so clients see a single evolving timeline entry
// rather than a duplicate.
type Message struct {
	ID      string `json:"id" db:"id"`
	QueryID string `json:"query_id" db:"query_id"`

	Content string     `json:"content" db:"content"`
	Sender  SenderType `json:"sender" db:"sender"`

	// AgentID and DonorID are mutually exclusive; both are empty for SYSTEM.
	AgentID string `json:"agent_id,omitempty" db:"agent_id"`
	DonorID string `json:"donor_id,omitempty" db:"donor_id"`

	Type Type `json:"type" db:"type"`

	// Optional linkage to the call artifacts that produced this message.
	CallSessionID string `json:"call_session_id,omitempty" db:"call_session_id"`
	CallRequestID string `json:"call_request_id,omitempty" db:"call_request_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
