package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/hostlane/qms-backend/internal/subscriptions"
	pkgerrors "github.com/hostlane/qms-backend/pkg/errors"
	"github.com/hostlane/qms-backend/pkg/logger"
	"github.com/hostlane/qms-backend/pkg/redis"
)

const (
	// EventRenewalRecorded carries a new renewal date after a successful charge.
	EventRenewalRecorded = "billing.renewal_recorded"
	// EventTrialExtended carries a new trial end date granted by support.
	EventTrialExtended = "billing.trial_extended"

	dedupeTTL = 24 * time.Hour
)

// Event is the billing message envelope published by the payments system.
// Dates are epoch milliseconds.
type Event struct {
	EventID      string `json:"event_id"`
	EventType    string `json:"event_type"`
	TenantID     string `json:"tenant_id"`
	TrialEndDate *int64 `json:"trial_end_date,omitempty"`
	RenewalDate  *int64 `json:"renewal_date,omitempty"`
}

type dateSetter interface {
	SetDates(ctx context.Context, tenantID uuid.UUID, trialEndDate, renewalDate *int64) (*subscriptions.CheckResult, error)
}

type dedupeStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// Consumer applies billing date events to tenant subscriptions. The write
// path it calls runs the date change hook synchronously, so a backdated
// renewal expires the subscription before the message is acked.
type Consumer struct {
	subscription *gcppubsub.Subscriber
	subs         dateSetter
	dedupe       dedupeStore
	logg         *logger.Logger
}

// ConsumerParams groups dependencies for the billing consumer.
type ConsumerParams struct {
	Subscription  *gcppubsub.Subscriber
	Subscriptions dateSetter
	Dedupe        dedupeStore
	Logger        *logger.Logger
}

// NewConsumer builds a billing event consumer.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Subscription == nil {
		return nil, errors.New("billing subscription required")
	}
	if params.Subscriptions == nil {
		return nil, errors.New("subscription service required")
	}
	if params.Dedupe == nil {
		return nil, errors.New("dedupe store required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Consumer{
		subscription: params.Subscription,
		subs:         params.Subscriptions,
		dedupe:       params.Dedupe,
		logg:         params.Logger,
	}, nil
}

// Run consumes billing messages until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if c.process(innerCtx, msg.Data).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack bool
}

func (c *Consumer) process(ctx context.Context, data []byte) processResult {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		c.logg.Warn(ctx, "billing event is not valid json; dropping")
		return processResult{}
	}

	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   event.EventID,
		"event_type": event.EventType,
		"tenant_id":  event.TenantID,
	})

	tenantID, err := c.validate(event)
	if err != nil {
		c.logg.Warn(logCtx, fmt.Sprintf("billing event rejected: %v", err))
		return processResult{}
	}

	dedupeKey := redis.Key("billing", "event", event.EventID)
	fresh, err := c.dedupe.SetNX(logCtx, dedupeKey, "1", dedupeTTL)
	if err != nil {
		c.logg.Error(logCtx, "billing dedupe check failed", err)
		return processResult{nack: true}
	}
	if !fresh {
		c.logg.Info(logCtx, "billing event already processed")
		return processResult{}
	}

	result, err := c.subs.SetDates(logCtx, tenantID, event.TrialEndDate, event.RenewalDate)
	if err != nil {
		if pkgerrors.IsRetryable(err) {
			// Free the dedupe slot so the redelivery is not swallowed.
			_ = c.dedupe.Del(logCtx, dedupeKey)
			c.logg.Error(logCtx, "billing event failed; will retry", err)
			return processResult{nack: true}
		}
		c.logg.Warn(logCtx, fmt.Sprintf("billing event rejected by subscription service: %v", err))
		return processResult{}
	}

	if result.Updated {
		logCtx = c.logg.WithFields(logCtx, map[string]any{
			"status": result.Status.String(),
			"action": result.Action.String(),
		})
	}
	c.logg.Info(logCtx, "billing event applied")
	return processResult{}
}

func (c *Consumer) validate(event Event) (uuid.UUID, error) {
	switch event.EventType {
	case EventRenewalRecorded, EventTrialExtended:
	default:
		return uuid.Nil, fmt.Errorf("unsupported event type %q", event.EventType)
	}
	if event.EventID == "" {
		return uuid.Nil, errors.New("event id missing")
	}
	if event.TrialEndDate == nil && event.RenewalDate == nil {
		return uuid.Nil, errors.New("no dates in event")
	}
	tenantID, err := uuid.Parse(event.TenantID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse tenant id: %w", err)
	}
	return tenantID, nil
}
