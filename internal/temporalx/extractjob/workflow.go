package extractjob

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/assessgen-backend/internal/extraction"
)

// Workflow runs one remote extraction and answers the status query while it
// runs and after it closes.
func Workflow(ctx workflow.Context, in Input) (*extraction.Result, error) {
	st := Status{
		ID:    workflow.GetInfo(ctx).WorkflowExecution.ID,
		Kind:  string(in.Kind),
		State: StateRunning,
	}
	if err := workflow.SetQueryHandler(ctx, QueryStatus, func() (Status, error) {
		return st, nil
	}); err != nil {
		return nil, err
	}

	budget := in.Options().TimeoutFor(in.Kind)
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: budget + time.Minute,
		HeartbeatTimeout:    heartbeatTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	})

	var res extraction.Result
	if err := workflow.ExecuteActivity(ctx, ActivityExtract, in).Get(ctx, &res); err != nil {
		st.State = StateFailed
		st.Error = err.Error()
		var appErr *temporal.ApplicationError
		if errors.As(err, &appErr) {
			st.ErrorKind = appErr.Type()
		}
		return nil, err
	}
	st.State = StateSucceeded
	st.Result = &res
	return &res, nil
}
