package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/slidecoffee/brew-service/internal/brew"
	"github.com/slidecoffee/brew-service/pkg/metrics"
)

// UsageReader reports a workspace's consumption since the given instant.
type UsageReader interface {
	MonthlyUsage(ctx context.Context, workspaceID string, since time.Time) (brew.Usage, error)
}

// Rejection is returned when a request would exceed the plan's limits. It is
// serialised as-is in the 403 response body.
type Rejection struct {
	Code            string `json:"error"`
	Message         string `json:"message"`
	Limit           int    `json:"limit"`
	Current         int    `json:"current"`
	UpgradeRequired bool   `json:"upgradeRequired"`
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Code, r.Message)
}

// Decision is the outcome of a passing check.
type Decision struct {
	Plan  Plan
	Usage brew.Usage
	// MaxSlides is the most slides this run may produce: the plan's
	// remaining capacity, never above the per-run hard cap.
	MaxSlides int
}

// Guard checks usage against plan limits before a run starts.
type Guard struct {
	usage           UsageReader
	maxSlides       int
	defaultEstimate int
	now             func() time.Time
}

func NewGuard(usage UsageReader, maxSlides, defaultEstimate int) *Guard {
	if maxSlides <= 0 {
		maxSlides = 50
	}
	if defaultEstimate <= 0 {
		defaultEstimate = 10
	}
	return &Guard{usage: usage, maxSlides: maxSlides, defaultEstimate: defaultEstimate, now: time.Now}
}

// Check passes or returns a *Rejection. Any other error means usage could not
// be read and the run must not start.
func (g *Guard) Check(ctx context.Context, workspaceID, planID string, estimate int) (*Decision, error) {
	plan := LookupPlan(planID)
	if estimate <= 0 {
		estimate = g.defaultEstimate
	}

	usage, err := g.usage.MonthlyUsage(ctx, workspaceID, brew.PeriodStart(g.now()))
	if err != nil {
		return nil, fmt.Errorf("read monthly usage: %w", err)
	}

	if plan.SlidesPerMonth != Unlimited && usage.Slides+estimate > plan.SlidesPerMonth {
		metrics.QuotaRejections.WithLabelValues("slides").Inc()
		return nil, &Rejection{
			Code:            "Monthly slide limit reached",
			Message:         fmt.Sprintf("Your %s plan allows %d slides per month.", plan.Name, plan.SlidesPerMonth),
			Limit:           plan.SlidesPerMonth,
			Current:         usage.Slides,
			UpgradeRequired: true,
		}
	}
	if plan.PresentationsPerMonth != Unlimited && usage.Presentations >= plan.PresentationsPerMonth {
		metrics.QuotaRejections.WithLabelValues("presentations").Inc()
		return nil, &Rejection{
			Code:            "Monthly presentation limit reached",
			Message:         fmt.Sprintf("Your %s plan allows %d presentations per month.", plan.Name, plan.PresentationsPerMonth),
			Limit:           plan.PresentationsPerMonth,
			Current:         usage.Presentations,
			UpgradeRequired: true,
		}
	}

	maxSlides := g.maxSlides
	if plan.SlidesPerMonth != Unlimited {
		if remaining := plan.SlidesPerMonth - usage.Slides; remaining < maxSlides {
			maxSlides = remaining
		}
	}
	return &Decision{Plan: plan, Usage: usage, MaxSlides: maxSlides}, nil
}

// UsageFunc adapts a function to UsageReader.
type UsageFunc func(ctx context.Context, workspaceID string, since time.Time) (brew.Usage, error)

func (f UsageFunc) MonthlyUsage(ctx context.Context, workspaceID string, since time.Time) (brew.Usage, error) {
	return f(ctx, workspaceID, since)
}
