package queries

import "time"

// Status is the lifecycle state of a support query.
//
// IN_PROGRESS and PENDING_REPLY alternate with the conversation: an admin
// reply moves the query to PENDING_REPLY's counterpart and a donor reply
// moves it back. RESOLVED and TRANSFERRED are terminal; nothing moves a
// query out of them without administrative override.
type Status string

const (
	StatusInProgress   Status = "IN_PROGRESS"
	StatusPendingReply Status = "PENDING_REPLY"
	StatusResolved     Status = "RESOLVED"
	StatusTransferred  Status = "TRANSFERRED"
)

// Terminal reports whether no further lifecycle transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusTransferred
}

// Query is a donor support case.
//
// Invariant: a donor may have at most one query that is not terminal at a
// time. Enforced by the orchestrator on creation.
type Query struct {
	ID        string `json:"id" db:"id"`
	DonorID   string `json:"donor_id" db:"donor_id"`
	DonorName string `json:"donor_name" db:"donor_name"`

	// Intake metadata captured from the donor's device at submission time.
	TestName string `json:"test_name,omitempty" db:"test_name"`
	Stage    string `json:"stage,omitempty" db:"stage"`
	Device   string `json:"device,omitempty" db:"device"`

	Status Status `json:"status" db:"status"`

	AssignedAgentID string `json:"assigned_agent_id,omitempty" db:"assigned_agent_id"`
	ResolvedByID    string `json:"resolved_by_id,omitempty" db:"resolved_by_id"`

	TransferredToID   string `json:"transferred_to_id,omitempty" db:"transferred_to_id"`
	TransferredToName string `json:"transferred_to_name,omitempty" db:"transferred_to_name"`
	TransferNote      string `json:"transfer_note,omitempty" db:"transfer_note"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
