package billing

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hostlane/qms-backend/internal/subscriptions"
	"github.com/hostlane/qms-backend/pkg/enums"
	pkgerrors "github.com/hostlane/qms-backend/pkg/errors"
	"github.com/hostlane/qms-backend/pkg/logger"
)

type stubDateSetter struct {
	result *subscriptions.CheckResult
	err    error
	calls  []uuid.UUID
}

func (s *stubDateSetter) SetDates(ctx context.Context, tenantID uuid.UUID, trialEndDate, renewalDate *int64) (*subscriptions.CheckResult, error) {
	s.calls = append(s.calls, tenantID)
	return s.result, s.err
}

type stubDedupe struct {
	seen    map[string]bool
	setErr  error
	deleted []string
}

func (s *stubDedupe) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.setErr != nil {
		return false, s.setErr
	}
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

func (s *stubDedupe) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.seen, key)
		s.deleted = append(s.deleted, key)
	}
	return nil
}

func newTestConsumer(subs dateSetter, dedupe dedupeStore) *Consumer {
	return &Consumer{
		subs:   subs,
		dedupe: dedupe,
		logg:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	}
}

func payload(eventID string, tenantID uuid.UUID) []byte {
	return []byte(fmt.Sprintf(
		`{"event_id":%q,"event_type":"billing.renewal_recorded","tenant_id":%q,"renewal_date":1767225600000}`,
		eventID, tenantID,
	))
}

func TestProcessAppliesDates(t *testing.T) {
	tenantID := uuid.New()
	subs := &stubDateSetter{result: &subscriptions.CheckResult{
		TenantID: tenantID,
		Status:   enums.SubscriptionStatusActive,
	}}
	consumer := newTestConsumer(subs, &stubDedupe{})

	result := consumer.process(context.Background(), payload("evt-1", tenantID))
	if result.nack {
		t.Fatalf("expected ack")
	}
	if len(subs.calls) != 1 || subs.calls[0] != tenantID {
		t.Fatalf("expected one SetDates call for %s, got %v", tenantID, subs.calls)
	}
}

func TestProcessDeduplicatesByEventID(t *testing.T) {
	tenantID := uuid.New()
	subs := &stubDateSetter{result: &subscriptions.CheckResult{TenantID: tenantID}}
	consumer := newTestConsumer(subs, &stubDedupe{})

	data := payload("evt-dup", tenantID)
	consumer.process(context.Background(), data)
	result := consumer.process(context.Background(), data)
	if result.nack {
		t.Fatalf("redelivery should ack")
	}
	if len(subs.calls) != 1 {
		t.Fatalf("redelivery must not reapply, got %d calls", len(subs.calls))
	}
}

func TestProcessNacksRetryableFailures(t *testing.T) {
	tenantID := uuid.New()
	subs := &stubDateSetter{err: pkgerrors.New(pkgerrors.CodeDependency, "store unavailable")}
	dedupe := &stubDedupe{}
	consumer := newTestConsumer(subs, dedupe)

	result := consumer.process(context.Background(), payload("evt-retry", tenantID))
	if !result.nack {
		t.Fatalf("retryable failure should nack")
	}
	if len(dedupe.deleted) != 1 {
		t.Fatalf("dedupe slot must be freed for the redelivery")
	}
}

func TestProcessAcksPoisonMessages(t *testing.T) {
	subs := &stubDateSetter{}
	consumer := newTestConsumer(subs, &stubDedupe{})

	cases := [][]byte{
		[]byte(`not json`),
		[]byte(`{"event_id":"e","event_type":"billing.unknown","tenant_id":"x"}`),
		[]byte(`{"event_id":"e","event_type":"billing.renewal_recorded","tenant_id":"not-a-uuid","renewal_date":1}`),
		[]byte(fmt.Sprintf(`{"event_id":"e","event_type":"billing.trial_extended","tenant_id":%q}`, uuid.New())),
	}
	for _, data := range cases {
		if result := consumer.process(context.Background(), data); result.nack {
			t.Fatalf("poison message should ack, payload %s", data)
		}
	}
	if len(subs.calls) != 0 {
		t.Fatalf("poison messages must not reach the service")
	}
}

func TestProcessAcksWhenTenantUnknown(t *testing.T) {
	subs := &stubDateSetter{err: pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")}
	consumer := newTestConsumer(subs, &stubDedupe{})

	result := consumer.process(context.Background(), payload("evt-missing", uuid.New()))
	if result.nack {
		t.Fatalf("unknown tenant is not retryable; expected ack")
	}
}
