package extractjob

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

type extractorFunc func(ctx context.Context, d extraction.InputDescriptor, opts extraction.Options) (*extraction.Result, error)

func (f extractorFunc) Extract(ctx context.Context, d extraction.InputDescriptor, opts extraction.Options) (*extraction.Result, error) {
	return f(ctx, d, opts)
}

func newEnv(t *testing.T, ext Extractor) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})
	acts := &Activities{Log: logger.Nop(), Extractor: ext}
	env.RegisterActivityWithOptions(acts.Extract, activity.RegisterOptions{Name: ActivityExtract})
	return env
}

func queryStatus(t *testing.T, env *testsuite.TestWorkflowEnvironment) Status {
	t.Helper()
	v, err := env.QueryWorkflow(QueryStatus)
	require.NoError(t, err)
	var st Status
	require.NoError(t, v.Get(&st))
	return st
}

func TestWorkflowSucceeds(t *testing.T) {
	var seen extraction.InputDescriptor
	var opts extraction.Options
	env := newEnv(t, extractorFunc(func(_ context.Context, d extraction.InputDescriptor, o extraction.Options) (*extraction.Result, error) {
		seen, opts = d, o
		return extraction.NewResult(extraction.ProviderPDFStructural,
			[]extraction.Segment{{Index: 1, Text: "page one"}, {Index: 2, Text: "page two"}},
			map[string]any{"pageCount": 2}), nil
	}))

	env.ExecuteWorkflow(WorkflowName, Input{Kind: extraction.SourceRemoteDocumentURL, URL: "https://example.com/a.pdf", ForceOCR: true})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res extraction.Result
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Equal(t, "page one\n\npage two", res.Text)
	assert.True(t, res.Consistent())
	assert.Equal(t, extraction.SourceRemoteDocumentURL, seen.Kind())
	assert.True(t, opts.ForceOCR)

	st := queryStatus(t, env)
	assert.Equal(t, StateSucceeded, st.State)
	require.NotNil(t, st.Result)
	assert.Equal(t, extraction.ProviderPDFStructural, st.Result.ProviderUsed)
}

func TestWorkflowRetriesTransientFailures(t *testing.T) {
	var calls int32
	env := newEnv(t, extractorFunc(func(context.Context, extraction.InputDescriptor, extraction.Options) (*extraction.Result, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, extraction.FetchFailure("origin returned 503", nil)
		}
		return extraction.NewResult(extraction.ProviderTranscription, extraction.SingleSegment("hello"), nil), nil
	}))

	env.ExecuteWorkflow(WorkflowName, Input{Kind: extraction.SourceRemoteMediaURL, URL: "https://example.com/a.mp3"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestWorkflowStopsOnPermanentFailure(t *testing.T) {
	var calls int32
	env := newEnv(t, extractorFunc(func(context.Context, extraction.InputDescriptor, extraction.Options) (*extraction.Result, error) {
		atomic.AddInt32(&calls, 1)
		return nil, extraction.InsufficientText(40)
	}))

	env.ExecuteWorkflow(WorkflowName, Input{Kind: extraction.SourceRemoteDocumentURL, URL: "https://example.com/a.pdf"})
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	st := queryStatus(t, env)
	assert.Equal(t, StateFailed, st.State)
	assert.Equal(t, string(extraction.KindInsufficientText), st.ErrorKind)
}

func TestWorkflowRejectsUploadKinds(t *testing.T) {
	var calls int32
	env := newEnv(t, extractorFunc(func(context.Context, extraction.InputDescriptor, extraction.Options) (*extraction.Result, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}))
	env.ExecuteWorkflow(WorkflowName, Input{Kind: extraction.SourceUploadedMedia})
	require.Error(t, env.GetWorkflowError())
	assert.Zero(t, atomic.LoadInt32(&calls))
}
