package enums

// TransitionAction tags a subscription history entry with what happened.
type TransitionAction string

const (
	ActionTrialExpired          TransitionAction = "trial_expired"
	ActionSubscriptionExpired   TransitionAction = "subscription_expired"
	ActionSubscriptionActivated TransitionAction = "subscription_activated"
	ActionSubscriptionCancelled TransitionAction = "subscription_cancelled"
)

// String implements fmt.Stringer.
func (a TransitionAction) String() string {
	return string(a)
}
