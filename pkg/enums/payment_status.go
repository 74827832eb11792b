package enums

// PaymentStatus mirrors SubscriptionStatus for billing display surfaces.
// It is kept in lock-step by every status transition.
type PaymentStatus string

const (
	PaymentStatusTrial   PaymentStatus = "trial"
	PaymentStatusActive  PaymentStatus = "active"
	PaymentStatusExpired PaymentStatus = "expired"
)

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// PaymentStatusFor maps a subscription status to its display mirror.
// Cancelled subscriptions render as expired for payment purposes.
func PaymentStatusFor(status SubscriptionStatus) PaymentStatus {
	switch status {
	case SubscriptionStatusTrial:
		return PaymentStatusTrial
	case SubscriptionStatusActive:
		return PaymentStatusActive
	default:
		return PaymentStatusExpired
	}
}
