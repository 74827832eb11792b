package subscriptions

import (
	"time"

	"github.com/hostlane/qms-backend/pkg/db/models"
	"github.com/hostlane/qms-backend/pkg/enums"
)

const (
	reasonTrialEnded        = "Trial period ended"
	reasonSubscriptionEnded = "Subscription period ended"
)

// Evaluate decides whether a subscription is due a status transition at
// the given instant. It is a pure function: no I/O, no mutation of sub.
//
// The rules are checked against the record's current status first, so an
// expired or cancelled record is never re-expired no matter what its date
// fields say. Date comparisons are strict: a boundary that equals now has
// not yet passed.
func Evaluate(now time.Time, sub *models.Subscription) *Transition {
	if sub == nil {
		return nil
	}
	nowMs := now.UnixMilli()

	switch sub.Status {
	case enums.SubscriptionStatusTrial:
		if sub.TrialEndDate != nil && *sub.TrialEndDate < nowMs {
			return &Transition{
				TenantID:   sub.TenantID,
				FromStatus: enums.SubscriptionStatusTrial,
				ToStatus:   enums.SubscriptionStatusExpired,
				Action:     enums.ActionTrialExpired,
				Reason:     reasonTrialEnded,
				OccurredAt: nowMs,
			}
		}
	case enums.SubscriptionStatusActive:
		if sub.RenewalDate != nil && *sub.RenewalDate < nowMs {
			return &Transition{
				TenantID:   sub.TenantID,
				FromStatus: enums.SubscriptionStatusActive,
				ToStatus:   enums.SubscriptionStatusExpired,
				Action:     enums.ActionSubscriptionExpired,
				Reason:     reasonSubscriptionEnded,
				OccurredAt: nowMs,
			}
		}
	}
	return nil
}
