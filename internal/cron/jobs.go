package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/brandpay-backend/internal/orders"
	"github.com/angelmondragon/brandpay-backend/internal/payouts"
	"github.com/angelmondragon/brandpay-backend/pkg/logger"
)

type orderSweeper interface {
	FulfillPaidOrders(ctx context.Context) (orders.FulfillReport, error)
	SettleOrders(ctx context.Context, orderID string) (orders.SettleReport, error)
	ReconcileCharges(ctx context.Context) (int, error)
}

type payoutSweeper interface {
	SettlePayoutsAndWithdrawals(ctx context.Context, reference string) (payouts.Report, error)
	VerifyPayoutsAndWithdrawals(ctx context.Context, reference string) (payouts.Report, error)
}

type rateRefresher interface {
	UpdateExchangeRates(ctx context.Context) (int, error)
}

// sweepJob adapts one sweep call to Job and logs what it reports.
type sweepJob struct {
	name string
	logg *logger.Logger
	run  func(ctx context.Context) (map[string]any, error)
}

func (j *sweepJob) Name() string { return j.name }

func (j *sweepJob) Run(ctx context.Context) error {
	fields, err := j.run(ctx)
	if len(fields) > 0 {
		j.logg.Info(j.logg.WithFields(ctx, fields), "sweep finished")
	}
	return err
}

// JobsParams wire the sweep jobs.
type JobsParams struct {
	Logger  *logger.Logger
	Orders  orderSweeper
	Payouts payoutSweeper
	Rates   rateRefresher
}

// RegisterJobs adds every sweep to the registry under its targets.
func RegisterJobs(registry *Registry, params JobsParams) error {
	if registry == nil {
		return fmt.Errorf("registry required")
	}
	if params.Logger == nil {
		return fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return fmt.Errorf("order sweeper required")
	}
	logg := params.Logger

	registry.Register(&sweepJob{name: "fulfill-paid-orders", logg: logg, run: func(ctx context.Context) (map[string]any, error) {
		r, err := params.Orders.FulfillPaidOrders(ctx)
		return map[string]any{"attempted": r.Attempted, "fulfilled": r.Fulfilled, "refunded": r.Refunded, "skipped": r.Skipped}, err
	}}, TargetAlways, TargetSettlement)

	registry.Register(&sweepJob{name: "verify-charges", logg: logg, run: func(ctx context.Context) (map[string]any, error) {
		n, err := params.Orders.ReconcileCharges(ctx)
		return map[string]any{"confirmed": n}, err
	}}, TargetAlways)

	registry.Register(&sweepJob{name: "settle-orders", logg: logg, run: func(ctx context.Context) (map[string]any, error) {
		r, err := params.Orders.SettleOrders(ctx, "")
		return map[string]any{"orders": r.Orders, "completed": r.Completed, "legs": r.Legs}, err
	}}, TargetSettlement)

	if params.Payouts != nil {
		registry.Register(&sweepJob{name: "settle-payouts", logg: logg, run: func(ctx context.Context) (map[string]any, error) {
			r, err := params.Payouts.SettlePayoutsAndWithdrawals(ctx, "")
			return payoutFields(r), err
		}}, TargetSettlement)
		registry.Register(&sweepJob{name: "verify-payouts", logg: logg, run: func(ctx context.Context) (map[string]any, error) {
			r, err := params.Payouts.VerifyPayoutsAndWithdrawals(ctx, "")
			return payoutFields(r), err
		}}, TargetSettlement)
	}

	if params.Rates != nil {
		registry.Register(&sweepJob{name: "refresh-rates", logg: logg, run: func(ctx context.Context) (map[string]any, error) {
			n, err := params.Rates.UpdateExchangeRates(ctx)
			return map[string]any{"rates_updated": n}, err
		}}, TargetRates)
	}
	return nil
}

func payoutFields(r payouts.Report) map[string]any {
	return map[string]any{
		"attempted": r.Attempted,
		"changed":   r.Changed,
		"completed": r.Completed,
		"failed":    r.Failed,
		"skipped":   r.Skipped,
	}
}
