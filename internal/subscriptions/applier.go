package subscriptions

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hostlane/qms-backend/pkg/db/models"
	dbtypes "github.com/hostlane/qms-backend/pkg/db/types"
	pkgerrors "github.com/hostlane/qms-backend/pkg/errors"
	"github.com/hostlane/qms-backend/pkg/logger"
)

// Applier is the single write path for status transitions. Every trigger
// funnels through Apply so the guard, the payment status mapping and the
// history append behave the same no matter who noticed the change first.
type Applier struct {
	repo Repository
	logg *logger.Logger
}

// NewApplier wires a transition applier.
func NewApplier(repo Repository, logg *logger.Logger) (*Applier, error) {
	if repo == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Applier{repo: repo, logg: logg}, nil
}

// Apply writes the transition with the optimistic status guard. A guarded
// miss means another trigger already moved the record; the caller gets
// Applied=false and no error.
func (a *Applier) Apply(ctx context.Context, sub *models.Subscription, t *Transition) (*AppliedTransition, error) {
	if sub == nil || t == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transition applier requires a record and a transition")
	}

	history := cloneHistory(sub.History)
	history[strconv.FormatInt(t.OccurredAt, 10)] = dbtypes.HistoryEntry{
		Action:         t.Action,
		PreviousStatus: t.FromStatus,
		Timestamp:      t.OccurredAt,
		Reason:         t.Reason,
	}

	applied, err := a.repo.ApplyTransition(ctx, *t, history)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply subscription transition")
	}
	if !applied {
		a.logg.Info(a.logg.WithFields(ctx, map[string]any{
			"tenant_id": t.TenantID.String(),
			"from":      t.FromStatus.String(),
			"to":        t.ToStatus.String(),
			"action":    t.Action.String(),
		}), "stale transition skipped")
	}
	return &AppliedTransition{Transition: *t, Applied: applied}, nil
}

func cloneHistory(in dbtypes.History) dbtypes.History {
	out := make(dbtypes.History, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
