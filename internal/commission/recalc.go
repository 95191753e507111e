package commission

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/noah-isme/backend-commissions/internal/deal"
	"github.com/noah-isme/backend-commissions/internal/lock"
	"github.com/noah-isme/backend-commissions/internal/obs"
	"github.com/noah-isme/backend-commissions/internal/queue"
)

// QueuedScheduler hands recalculation requests to the task queue. Requests
// for the same BDM and period within the dedup window collapse into one
// job.
type QueuedScheduler struct {
	Producer    queue.Producer
	MaxAttempts int
}

// ScheduleRecalc implements the deal package's scheduler.
func (s QueuedScheduler) ScheduleRecalc(ctx context.Context, req deal.RecalcRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return s.Producer.Publish(ctx, queue.Job{
		Kind:        queue.KindRecalc,
		Payload:     payload,
		Key:         recalcDedupKey(req),
		MaxAttempts: s.MaxAttempts,
	})
}

func recalcDedupKey(req deal.RecalcRequest) string {
	return fmt.Sprintf("%s:%s:%d-%02d", req.OrganizationID, req.BDMID, req.Year, req.Month)
}

// RecalcHandler returns the worker-side handler for recalculation jobs. A
// per-(org, bdm, period) lock keeps concurrent workers from interleaving
// evaluations of the same record.
func RecalcHandler(svc *Service, locker lock.Locker, lockTTL time.Duration) func(context.Context, queue.Job) error {
	return func(ctx context.Context, job queue.Job) error {
		var req deal.RecalcRequest
		if err := json.Unmarshal(job.Payload, &req); err != nil {
			return fmt.Errorf("commission: decode recalc job: %w", err)
		}
		key := lock.RecalcKey(req.OrganizationID, req.BDMID, req.Year, req.Month)
		err := locker.WithLock(ctx, key, lockTTL, func(ctx context.Context) error {
			_, err := svc.CalculateMonthlyBDMCommission(ctx, req.OrganizationID, req.BDMID, req.Year, req.Month, req.TriggeredBy)
			return err
		})
		countRecalc("queue", err)
		return err
	}
}

func countRecalc(trigger string, err error) {
	if obs.RecalcTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	obs.RecalcTotal.WithLabelValues(trigger, result).Inc()
}
