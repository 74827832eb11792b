package subscriptions

import (
	"github.com/google/uuid"

	"github.com/hostlane/qms-backend/pkg/enums"
)

// Transition describes a due status change produced by Evaluate. It is
// ephemeral: the applier consumes it and the history log records it.
type Transition struct {
	TenantID   uuid.UUID
	FromStatus enums.SubscriptionStatus
	ToStatus   enums.SubscriptionStatus
	Action     enums.TransitionAction
	Reason     string
	OccurredAt int64
}

// AppliedTransition reports the outcome of a guarded transition write.
// Applied is false when the optimistic status guard rejected the write
// because another trigger already transitioned the record; per the
// idempotency contract that is a no-op, not an error.
type AppliedTransition struct {
	Transition
	Applied bool
}
