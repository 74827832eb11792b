package cron

import (
	"context"
	"fmt"

	"github.com/hostlane/qms-backend/internal/subscriptions"
	"github.com/hostlane/qms-backend/pkg/logger"
	"github.com/hostlane/qms-backend/pkg/metrics"
)

const subscriptionSweepJobName = "subscription_sweep"

type sweeper interface {
	CheckAll(ctx context.Context) (*subscriptions.SweepReport, error)
}

// SubscriptionSweepJobParams configures the daily subscription sweep job.
type SubscriptionSweepJobParams struct {
	Logger        *logger.Logger
	Subscriptions sweeper
	Metrics       *metrics.JobMetrics
}

// NewSubscriptionSweepJob builds the cron job that walks every tenant
// subscription and applies due status transitions.
func NewSubscriptionSweepJob(params SubscriptionSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription service required")
	}
	return &subscriptionSweepJob{
		logg:    params.Logger,
		subs:    params.Subscriptions,
		metrics: params.Metrics,
	}, nil
}

type subscriptionSweepJob struct {
	logg    *logger.Logger
	subs    sweeper
	metrics *metrics.JobMetrics
}

func (j *subscriptionSweepJob) Name() string {
	return subscriptionSweepJobName
}

// Run performs one full sweep. Per-tenant failures are already folded into
// the report and the aggregated error by the service; the job records the
// counts and surfaces the aggregate so the cycle is marked failed when any
// tenant could not be processed.
func (j *subscriptionSweepJob) Run(ctx context.Context) error {
	report, err := j.subs.CheckAll(ctx)
	if report != nil {
		if j.metrics != nil {
			j.metrics.AddSweepCounts(j.Name(), report.Checked, report.Updated)
		}
		summaryCtx := j.logg.WithFields(ctx, map[string]any{
			"checked": report.Checked,
			"updated": report.Updated,
			"failed":  report.Failed,
		})
		j.logg.Info(summaryCtx, "subscription sweep summary")
	}
	return err
}
