// Package harness runs browser tests with a session, a screen recording, and failure reports
package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/johnstarich/uiwatch/pipe"
	"github.com/johnstarich/uiwatch/pipeline"
	"github.com/johnstarich/uiwatch/records"
	"github.com/johnstarich/uiwatch/session"
	"github.com/johnstarich/uiwatch/steps"
	"github.com/johnstarich/uiwatch/worker"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// T is the part of testing.TB the harness uses
type T interface {
	Name() string
	Helper()
	Failed() bool
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	Logf(format string, args ...interface{})
}

// Recorder starts a screen recording for a worker
type Recorder interface {
	Start(ctx context.Context, testName string) error
}

// Body is a test's code. 'browser' belongs to this test alone.
type Body func(ctx context.Context, browser *session.Handle)

// Config passes options for a new Harness
type Config struct {
	// BaseURL is opened before each test body runs. Empty skips navigation.
	BaseURL  string
	Sessions *session.Registry
	// Recorder is optional
	Recorder Recorder
	Pipeline *pipeline.Pipeline
	Steps    *steps.Log
	Logger   *zap.Logger
}

// Harness runs tests. Safe for concurrent use by parallel tests.
type Harness struct {
	config Config
	logger *zap.Logger
}

// New creates a Harness
func New(config Config) *Harness {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Steps == nil {
		config.Steps = steps.New()
	}
	return &Harness{
		config: config,
		logger: config.Logger,
	}
}

// Steps returns the step log shared with the test's session
func (h *Harness) Steps() *steps.Log {
	return h.config.Steps
}

// Run acquires a browser for 't', starts recording, opens the base URL, then runs 'body'.
// Afterward it reports the outcome through the pipeline and always releases the browser.
// Failing through t.FailNow or a panic still reports the failure. Panics are re-raised once cleanup finishes.
func (h *Harness) Run(t T, test pipeline.Test, body Body) {
	t.Helper()
	if strings.TrimSpace(test.Name) == "" {
		test.Name = t.Name()
	}
	ctx, cancel := context.WithCancel(worker.WithID(context.Background(), worker.ID(t.Name())))
	defer cancel()
	logger := h.logger.With(zap.String("worker", t.Name()), zap.String("test", test.Name))

	browser, err := h.config.Sessions.Acquire(ctx)
	if err != nil {
		t.Fatalf("Failed to acquire browser session: %v", err)
		return
	}
	if h.config.Recorder != nil {
		if err := h.config.Recorder.Start(ctx, test.Name); err != nil {
			logger.Warn("Continuing without a screen recording", zap.Error(err))
		}
	}

	defer func() {
		panicValue := recover()
		failed := t.Failed() || panicValue != nil
		if err := h.finish(ctx, t, test, failed, logger).Do(); err != nil {
			t.Errorf("Test teardown failed: %v", err)
		}
		if panicValue != nil {
			panic(panicValue)
		}
	}()

	if h.config.BaseURL != "" {
		err := browser.Step(ctx, fmt.Sprintf("Open %s", h.config.BaseURL), session.Navigate(h.config.BaseURL))
		if err != nil {
			t.Fatalf("Failed to open base URL: %v", err)
			return
		}
	}
	body(ctx, browser)
}

func (h *Harness) finish(ctx context.Context, t T, test pipeline.Test, failed bool, logger *zap.Logger) pipe.Op {
	report := pipe.OpFunc(func() error {
		if !failed {
			h.config.Pipeline.OnSuccess(ctx, test)
			logger.Info("Test PASSED")
			return nil
		}
		result := h.config.Pipeline.OnFailure(ctx, test)
		logger.Info("Test FAILED",
			zap.String("screenshot", result.ScreenshotPath.Value),
			zap.String("recording", result.Recording.Value),
			zap.String("delivery", string(result.Delivery.Status)),
		)
		attachRecords(t, records.WrapError(errors.New("Test failed"), result.Records()...))
		return result.Panic
	})
	release := pipe.OpFunc(func() error {
		return h.config.Sessions.Release(ctx)
	})
	return pipe.All{
		pipe.Named("Failed to report test result", report),
		pipe.Named("Failed to release browser session", release),
	}
}

func attachRecords(t T, err error) {
	t.Helper()
	for _, rec := range records.FromError(err) {
		t.Logf("Captured %s (%s)", rec.Name(), rec.ContentType())
	}
}
