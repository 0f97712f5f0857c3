package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/johnstarich/uiwatch/harness"
	"github.com/johnstarich/uiwatch/pipeline"
	"github.com/johnstarich/uiwatch/session"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// checkT reports a check's failures to the log the way testing.T reports to the test output
type checkT struct {
	name   string
	failed *atomic.Bool
	logger *zap.Logger
}

func (c *checkT) Name() string { return c.name }
func (c *checkT) Helper()      {}
func (c *checkT) Failed() bool { return c.failed.Load() }

func (c *checkT) Errorf(format string, args ...interface{}) {
	c.failed.Store(true)
	c.logger.Error(fmt.Sprintf(format, args...))
}

func (c *checkT) Fatalf(format string, args ...interface{}) {
	c.Errorf(format, args...)
	runtime.Goexit()
}

func (c *checkT) Logf(format string, args ...interface{}) {
	c.logger.Info(fmt.Sprintf(format, args...))
}

// runCheck opens the base URL and waits for 'selector'. Returns true if the page loaded.
func runCheck(h *harness.Harness, name, selector string, logger *zap.Logger) bool {
	t := &checkT{
		name:   fmt.Sprintf("%s-%d", name, time.Now().UnixNano()),
		failed: atomic.NewBool(false),
		logger: logger,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				t.failed.Store(true)
				logger.Error("Check panicked", zap.Any("panic", r))
			}
		}()
		h.Run(t, pipeline.Test{Class: "uiwatch", Name: name}, func(ctx context.Context, browser *session.Handle) {
			err := browser.Step(ctx, fmt.Sprintf("Wait for %q to be visible", selector),
				session.WaitVisible(session.CSS(selector)))
			if err != nil {
				t.Fatalf("Page did not load: %v", err)
			}
		})
	}()
	<-done
	return !t.Failed()
}
