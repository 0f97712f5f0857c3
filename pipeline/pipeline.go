// Package pipeline assembles and dispatches failure evidence when a test finishes
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/johnstarich/uiwatch/artifacts"
	"github.com/johnstarich/uiwatch/notify"
	"github.com/johnstarich/uiwatch/recorder"
	"github.com/johnstarich/uiwatch/steps"
	"github.com/johnstarich/uiwatch/worker"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrEmptyScreenshot is the reason a screenshot is absent when the capture returned no data
	ErrEmptyScreenshot = errors.New("Screenshot capture returned no data")
	// ErrNoStore is the reason a screenshot was not saved when no artifact store is configured
	ErrNoStore = errors.New("No artifact store configured")
	// ErrDiscarded is the reason a passing test has no recording
	ErrDiscarded = errors.New("Recording discarded, test passed")
	// ErrNoRecorder is the reason a recording is absent when no recorder is configured
	ErrNoRecorder = errors.New("No recorder configured")
)

// Test identifies a finished test and carries its metadata
type Test struct {
	Class string `json:"class,omitempty"`
	// Name identifies the test in file names and notifications, i.e. LoginTest.loginWithEmptyPassword
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// Severity is optional, defaults to UNSPECIFIED
	Severity string `json:"severity,omitempty"`
}

// Screenshotter captures the worker's browser
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Recorder controls the worker's screen recording
type Recorder interface {
	Path(ctx context.Context) (string, bool)
	Stop(ctx context.Context) (string, error)
	Discard(path string)
}

// Publisher receives every finished report, i.e. for browsing later
type Publisher interface {
	Publish(report Report)
}

// Config passes options for a new Pipeline
type Config struct {
	Env         string
	Screenshots Screenshotter
	Recorder    Recorder
	Store       *artifacts.Store
	Steps       *steps.Log
	Sink        notify.Sink
	// Publisher is optional
	Publisher Publisher
	Logger    *zap.Logger
}

// Pipeline handles the end of each test. It never fails a test on its own account:
// every capture or delivery problem is logged and kept as a reason in the Report.
type Pipeline struct {
	config Config
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Pipeline
func New(config Config) *Pipeline {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Steps == nil {
		config.Steps = steps.New()
	}
	return &Pipeline{
		config: config,
		logger: config.Logger,
		now:    time.Now,
	}
}

// OnSuccess stops the worker's recording and deletes it, then clears the worker's steps
func (p *Pipeline) OnSuccess(ctx context.Context, test Test) (report Report) {
	report = Report{
		Test:     test,
		Outcome:  Passed,
		Env:      p.config.Env,
		Severity: resolveSeverity(test.Severity),
		Time:     p.now(),
		Steps:    p.config.Steps.Snapshot(ctx),
	}
	logger := p.workerLogger(ctx, test)
	defer p.finish(ctx, &report, logger)

	report.Recording = absent[string](ErrNoRecorder)
	if p.config.Recorder != nil {
		path, _ := p.config.Recorder.Path(ctx)
		stopped, err := p.config.Recorder.Stop(ctx)
		if stopped != "" {
			path = stopped
		}
		p.config.Recorder.Discard(path)
		report.Recording = absent[string](ErrDiscarded)
		if err != nil && errors.Cause(err) != recorder.ErrNotRecording {
			logger.Debug("Recording did not stop cleanly", zap.Error(err))
		}
	}
	return report
}

// OnFailure captures a screenshot, the worker's steps, and its recording,
// then notifies the configured recipients. It never panics and never returns an error.
func (p *Pipeline) OnFailure(ctx context.Context, test Test) (report Report) {
	test.Description = strings.TrimSpace(test.Description)
	report = Report{
		Test:     test,
		Outcome:  Failed,
		Env:      p.config.Env,
		Severity: resolveSeverity(test.Severity),
		Time:     p.now(),
		Steps:    []string{},
	}
	logger := p.workerLogger(ctx, test)
	defer p.finish(ctx, &report, logger)

	report.Screenshot = p.screenshot(ctx, logger)
	report.ScreenshotPath = p.saveScreenshot(test, report.Screenshot, logger)
	report.Steps = p.config.Steps.Snapshot(ctx)
	p.config.Steps.Clear(ctx)
	report.Recording = p.keepRecording(ctx, logger)

	artifact := Artifact{
		Env:           report.Env,
		Severity:      report.Severity,
		Class:         test.Class,
		Name:          test.Name,
		Description:   test.Description,
		Steps:         report.Steps,
		HasScreenshot: report.Screenshot.Present(),
		RecordingPath: report.Recording.Value,
	}
	report.Subject = artifact.Subject()
	html, err := artifact.HTML()
	if err != nil {
		logger.Error("Failed to render failure notification", zap.Error(err))
		report.Delivery = notify.Result{Status: notify.Failed, Reason: errors.Wrap(err, "Failed to render notification")}
		return report
	}
	report.HTML = html

	if p.config.Sink == nil {
		report.Delivery = notify.Result{Status: notify.Skipped, Reason: errors.New("No notification sink configured")}
		return report
	}
	message := notify.Message{
		Subject:     report.Subject,
		HTML:        report.HTML,
		InlineImage: p.inlineImage(report),
	}
	report.Delivery = p.config.Sink.Deliver(ctx, message)
	return report
}

func (p *Pipeline) workerLogger(ctx context.Context, test Test) *zap.Logger {
	id, _ := worker.FromContext(ctx)
	return p.logger.With(zap.String("worker", string(id)), zap.String("test", test.Name))
}

// finish always clears the worker's steps and converts a panic into a report reason
func (p *Pipeline) finish(ctx context.Context, report *Report, logger *zap.Logger) {
	p.config.Steps.Clear(ctx)
	if r := recover(); r != nil {
		err, ok := r.(error)
		if !ok {
			err = fmt.Errorf("%v", r)
		}
		report.Panic = errors.Wrap(err, "Panic while handling test result")
		logger.Error("Recovered from panic while handling test result", zap.Error(report.Panic), zap.Stack("stack"))
	}
	if p.config.Publisher != nil {
		p.config.Publisher.Publish(*report)
	}
}

func (p *Pipeline) screenshot(ctx context.Context, logger *zap.Logger) Maybe[[]byte] {
	if p.config.Screenshots == nil {
		return absent[[]byte](errors.New("No browser sessions configured"))
	}
	image, err := p.config.Screenshots.Screenshot(ctx)
	if err != nil {
		logger.Warn("Screenshot not available", zap.Error(err))
		return absent[[]byte](err)
	}
	if len(image) == 0 {
		logger.Warn("Screenshot not available", zap.Error(ErrEmptyScreenshot))
		return absent[[]byte](ErrEmptyScreenshot)
	}
	return present(image)
}

func (p *Pipeline) saveScreenshot(test Test, image Maybe[[]byte], logger *zap.Logger) Maybe[string] {
	if !image.Present() {
		return absent[string](errors.Wrap(image.Reason, "No screenshot to save"))
	}
	if p.config.Store == nil {
		return absent[string](ErrNoStore)
	}
	path, err := p.config.Store.Save(artifacts.Screenshot, test.Name, image.Value)
	if err != nil {
		logger.Warn("Failed to save screenshot", zap.Error(err))
		return absent[string](err)
	}
	logger.Info("Saved failure screenshot", zap.String("path", path))
	return present(path)
}

func (p *Pipeline) keepRecording(ctx context.Context, logger *zap.Logger) Maybe[string] {
	if p.config.Recorder == nil {
		return absent[string](ErrNoRecorder)
	}
	partial, _ := p.config.Recorder.Path(ctx)
	path, err := p.config.Recorder.Stop(ctx)
	if err != nil {
		logger.Info("Recording unavailable", zap.Error(err))
		if interrupted(err) {
			// a killed recorder can leave a truncated file no report refers to
			p.config.Recorder.Discard(partial)
		}
		return absent[string](err)
	}
	logger.Info("Kept failure recording", zap.String("path", path))
	return present(path)
}

// interrupted reports whether a Stop gave up on the recorder before it finished writing
func interrupted(err error) bool {
	switch errors.Cause(err) {
	case recorder.ErrStopTimeout, context.Canceled, context.DeadlineExceeded:
		return true
	default:
		return false
	}
}

// inlineImage re-reads the saved screenshot, falling back to the captured bytes
func (p *Pipeline) inlineImage(report Report) []byte {
	if report.ScreenshotPath.Present() {
		if data := p.config.Store.Read(report.ScreenshotPath.Value); len(data) > 0 {
			return data
		}
	}
	if report.Screenshot.Present() {
		return report.Screenshot.Value
	}
	return nil
}
