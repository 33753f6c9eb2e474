package extractjob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

type Extractor interface {
	Extract(ctx context.Context, d extraction.InputDescriptor, opts extraction.Options) (*extraction.Result, error)
}

type Activities struct {
	Log       *logger.Logger
	Extractor Extractor
}

func (a *Activities) Extract(ctx context.Context, in Input) (*extraction.Result, error) {
	if a == nil || a.Extractor == nil {
		return nil, temporal.NewNonRetryableApplicationError("extraction activity not configured", "config", nil)
	}
	d, ok := extraction.NewRemote(in.Kind, in.URL)
	if !ok {
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("kind %q cannot run as a job", in.Kind), string(extraction.KindInvalidInput), nil)
	}

	stop := startHeartbeat(ctx)
	defer stop()

	info := activity.GetInfo(ctx)
	log := a.Log.With("workflow_id", info.WorkflowExecution.ID, "attempt", info.Attempt)
	start := time.Now()
	res, err := a.Extractor.Extract(ctx, d, in.Options())
	if err != nil {
		log.Warn("extraction job attempt failed", "kind", string(in.Kind), "error", err)
		return nil, applicationError(err)
	}
	log.Info("extraction job attempt succeeded", "provider", string(res.ProviderUsed), "took_ms", time.Since(start).Milliseconds())
	return res, nil
}

// applicationError keeps the extraction kind as the Temporal error type and
// stops retries for failures another attempt cannot fix.
func applicationError(err error) error {
	var xe *extraction.Error
	if !errors.As(err, &xe) {
		return temporal.NewApplicationErrorWithCause(err.Error(), "unknown", err)
	}
	if extraction.IsRetryable(err) {
		return temporal.NewApplicationErrorWithCause(err.Error(), string(xe.Kind), err)
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), string(xe.Kind), err)
}

func startHeartbeat(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(heartbeatInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
