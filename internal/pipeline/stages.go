package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/slidecoffee/brew-service/pkg/metrics"
)

var (
	errOutlineCall = errors.New("outline generation failed")
	errPersist     = errors.New("persist presentation")
)

// callContext detaches a provider call from the request so a disconnect
// lets it finish, bounding it by timeout instead.
func callContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func observe(stage string, start time.Time) {
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
