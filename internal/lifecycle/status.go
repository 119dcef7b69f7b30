package lifecycle

import (
	"supportdesk/internal/messages"
	"supportdesk/internal/queries"
)

// NextStatus derives a query's status from who sent the latest chat message:
// an admin reply moves the query to IN_PROGRESS (the agent is on it), a
// donor reply moves it to PENDING_REPLY (waiting on an agent).
//
// Terminal statuses never change here: a message arriving after resolution
// or transfer leaves the status untouched. SYSTEM messages never drive
// status.
//
// Returns the next status and whether it differs from the current one.
func NextStatus(current queries.Status, sender messages.SenderType) (queries.Status, bool) {
	if current.Terminal() {
		return current, false
	}

	var next queries.Status
	switch sender {
	case messages.SenderAdmin:
		next = queries.StatusInProgress
	case messages.SenderDonor:
		next = queries.StatusPendingReply
	default:
		return current, false
	}

	return next, next != current
}
