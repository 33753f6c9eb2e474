package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yungbote/assessgen-backend/internal/extraction/orchestrator"
	"github.com/yungbote/assessgen-backend/internal/observability"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

func TestScheduledSweepLogsOncePerRemoval(t *testing.T) {
	root := t.TempDir()
	stale := filepath.Join(root, "x_stale")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	f := filepath.Join(stale, "audio.mp3")
	require.NoError(t, os.WriteFile(f, make([]byte, 64), 0o644))
	old := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(f, old, old))
	require.NoError(t, os.Chtimes(stale, old, old))

	t.Setenv("TEMP_SWEEP_INTERVAL", "5ms")
	t.Setenv("TEMP_MAX_AGE", "1h")

	core, logs := observer.New(zapcore.InfoLevel)
	a := &App{
		Log:     &logger.Logger{SugaredLogger: zap.New(core).Sugar()},
		Cfg:     Config{Orchestrator: orchestrator.Config{WorkRoot: root}},
		Metrics: observability.NewMetrics(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.sweeper().Run(ctx)
	}()
	require.Eventually(t, func() bool {
		_, err := os.Stat(stale)
		return os.IsNotExist(err)
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 1, logs.FilterMessage("temp sweep").Len())
}
