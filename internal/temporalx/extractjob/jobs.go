package extractjob

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"

	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/extraction/source"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

var ErrJobNotFound = errors.New("extraction job not found")

// workflowClient is the part of the Temporal client the job service uses.
type workflowClient interface {
	ExecuteWorkflow(ctx context.Context, options temporalsdkclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (temporalsdkclient.WorkflowRun, error)
	DescribeWorkflowExecution(ctx context.Context, workflowID, runID string) (*workflowservice.DescribeWorkflowExecutionResponse, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

type Service struct {
	log       *logger.Logger
	tc        workflowClient
	taskQueue string
	limits    extraction.Limits
}

func NewService(log *logger.Logger, tc workflowClient, taskQueue string) (*Service, error) {
	if tc == nil {
		return nil, errors.New("temporal client is not configured")
	}
	if strings.TrimSpace(taskQueue) == "" {
		return nil, errors.New("task queue is required")
	}
	return &Service{
		log:       log.With("service", "ExtractionJobs"),
		tc:        tc,
		taskQueue: taskQueue,
		limits:    extraction.DefaultLimits(),
	}, nil
}

// Submit validates the input and starts a workflow; the returned id is the
// workflow id.
func (s *Service) Submit(ctx context.Context, in Input) (string, error) {
	d, ok := extraction.NewRemote(in.Kind, in.URL)
	if !ok {
		return "", extraction.InvalidInput(extraction.ReasonUnsupportedType, "jobs accept URL kinds only, got %q", in.Kind)
	}
	if err := source.Validate(d, s.limits); err != nil {
		return "", err
	}
	in.URL = d.URL()

	id := "extract-" + uuid.NewString()
	run, err := s.tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:        id,
		TaskQueue: s.taskQueue,
	}, WorkflowName, in)
	if err != nil {
		return "", fmt.Errorf("start extraction job: %w", err)
	}
	s.log.Info("extraction job submitted", "job_id", run.GetID(), "run_id", run.GetRunID(), "kind", string(in.Kind))
	return run.GetID(), nil
}

func (s *Service) Status(ctx context.Context, id string) (*Status, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrJobNotFound
	}
	desc, err := s.tc.DescribeWorkflowExecution(ctx, id, "")
	if err != nil {
		var nf *serviceerror.NotFound
		if errors.As(err, &nf) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("describe extraction job: %w", err)
	}

	var st Status
	val, qerr := s.tc.QueryWorkflow(ctx, id, "", QueryStatus)
	if qerr == nil {
		qerr = val.Get(&st)
	}
	if qerr != nil {
		s.log.Debug("status query failed; using describe only", "job_id", id, "error", qerr)
		st = Status{ID: id}
	}

	if info := desc.GetWorkflowExecutionInfo(); info != nil {
		switch info.GetStatus() {
		case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING:
			st.State = StateRunning
		case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
			st.State = StateSucceeded
		case enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED, enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED:
			st.State = StateCanceled
		default:
			st.State = StateFailed
			if st.Error == "" {
				st.Error = terminalReason(info.GetStatus())
			}
		}
	}
	if pending := desc.GetPendingActivities(); len(pending) > 0 {
		st.Attempt = pending[0].GetAttempt()
	}
	return &st, nil
}

// terminalReason names a non-successful workflow status. The enum's String()
// form changed across API releases, so the names are spelled out here.
func terminalReason(status enumspb.WorkflowExecutionStatus) string {
	switch status {
	case enumspb.WORKFLOW_EXECUTION_STATUS_FAILED:
		return "failed"
	case enumspb.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		return "timed_out"
	case enumspb.WORKFLOW_EXECUTION_STATUS_CONTINUED_AS_NEW:
		return "continued_as_new"
	case enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED:
		return "canceled"
	case enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED:
		return "terminated"
	default:
		return "unknown"
	}
}
