package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/slidecoffee/brew-service/internal/brew"
	"github.com/slidecoffee/brew-service/pkg/metrics"
)

func fixedUsage(u brew.Usage) UsageReader {
	return UsageFunc(func(context.Context, string, time.Time) (brew.Usage, error) { return u, nil })
}

func TestLookupPlan(t *testing.T) {
	require.Equal(t, "americano", LookupPlan("Americano").ID)
	require.Equal(t, DefaultPlanID, LookupPlan("").ID)
	require.Equal(t, DefaultPlanID, LookupPlan("mocha").ID)
	require.Equal(t, Unlimited, LookupPlan("frenchpress").SlidesPerMonth)
	require.Len(t, Plans(), 5)
}

func TestGuardPasses(t *testing.T) {
	g := NewGuard(fixedUsage(brew.Usage{Slides: 10, Presentations: 1}), 50, 10)
	d, err := g.Check(context.Background(), "ws-1", "americano", 0)
	require.NoError(t, err)
	require.Equal(t, "americano", d.Plan.ID)
	require.Equal(t, 50, d.MaxSlides)

	d, err = g.Check(context.Background(), "ws-1", "frenchpress", 500)
	require.NoError(t, err)
	require.Equal(t, 50, d.MaxSlides)
}

func TestGuardCapsToRemaining(t *testing.T) {
	g := NewGuard(fixedUsage(brew.Usage{Slides: 60, Presentations: 2}), 50, 10)
	d, err := g.Check(context.Background(), "ws-1", "americano", 10)
	require.NoError(t, err)
	require.Equal(t, 15, d.MaxSlides)
}

func TestGuardRejectsSlides(t *testing.T) {
	before := testutil.ToFloat64(metrics.QuotaRejections.WithLabelValues("slides"))

	// espresso allows 5 slides; a default estimate of 10 never fits
	g := NewGuard(fixedUsage(brew.Usage{}), 50, 10)
	_, err := g.Check(context.Background(), "ws-1", "espresso", 0)
	var rej *Rejection
	require.True(t, errors.As(err, &rej))
	require.Equal(t, 5, rej.Limit)
	require.Equal(t, 0, rej.Current)
	require.True(t, rej.UpgradeRequired)
	require.Equal(t, before+1, testutil.ToFloat64(metrics.QuotaRejections.WithLabelValues("slides")))

	g = NewGuard(fixedUsage(brew.Usage{Slides: 70}), 50, 10)
	_, err = g.Check(context.Background(), "ws-1", "americano", 6)
	require.True(t, errors.As(err, &rej))
	require.Equal(t, 70, rej.Current)
}

func TestGuardRejectsPresentations(t *testing.T) {
	g := NewGuard(fixedUsage(brew.Usage{Slides: 0, Presentations: 7}), 50, 10)
	_, err := g.Check(context.Background(), "ws-1", "americano", 5)
	var rej *Rejection
	require.True(t, errors.As(err, &rej))
	require.Equal(t, "Monthly presentation limit reached", rej.Code)
	require.Equal(t, 7, rej.Limit)
}

func TestGuardUsageErrorIsFatal(t *testing.T) {
	boom := errors.New("db down")
	g := NewGuard(UsageFunc(func(context.Context, string, time.Time) (brew.Usage, error) {
		return brew.Usage{}, boom
	}), 50, 10)
	_, err := g.Check(context.Background(), "ws-1", "americano", 5)
	require.True(t, errors.Is(err, boom))
	var rej *Rejection
	require.False(t, errors.As(err, &rej))
}

func TestGuardUsesPeriodStart(t *testing.T) {
	var seen time.Time
	g := NewGuard(UsageFunc(func(_ context.Context, _ string, since time.Time) (brew.Usage, error) {
		seen = since
		return brew.Usage{}, nil
	}), 50, 10)
	g.now = func() time.Time { return time.Date(2026, time.March, 17, 9, 0, 0, 0, time.UTC) }
	_, err := g.Check(context.Background(), "ws-1", "cappuccino", 5)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), seen)
}
