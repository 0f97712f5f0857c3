// Package session binds one browser-automation session to each worker
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/johnstarich/uiwatch/steps"
	"github.com/johnstarich/uiwatch/worker"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	// ErrNotInitialized is returned when a worker uses or releases a session it never acquired
	ErrNotInitialized = errors.New("Browser session is not initialized for this worker. Call Acquire first")
	// ErrReleased is returned when a Handle is used after Release
	ErrReleased = errors.New("Browser session was released")
)

// InitializationError is returned when the browser engine fails to start
type InitializationError struct {
	Browser string
	Err     error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("Failed to start %s browser: %s", e.Browser, e.Err)
}

// Cause returns the underlying engine error
func (e *InitializationError) Cause() error {
	return e.Err
}

// Unwrap supports errors.Is and errors.As
func (e *InitializationError) Unwrap() error {
	return e.Err
}

// Config passes options for a new Registry
type Config struct {
	// Browser is the kind of browser to launch: chrome, chromium, edge, or firefox. Unknown kinds use chrome.
	Browser      string
	BrowserPath  string
	Headless     bool
	Debug        bool
	ImplicitWait time.Duration
	ExplicitWait time.Duration
	// Engines overrides the engine used per browser kind
	Engines map[string]Engine
	Steps   *steps.Log
	Logger  *zap.Logger
}

// Registry holds at most one live session per worker
type Registry struct {
	config  Config
	engines map[string]Engine
	handles *worker.Local
	logger  *zap.Logger
}

// DefaultEngines returns the built-in engine for each supported browser kind
func DefaultEngines() map[string]Engine {
	chrome := &chromedpEngine{}
	return map[string]Engine{
		"chrome":   chrome,
		"chromium": chrome,
		"edge":     &chromedpEngine{lookPaths: edgeExecNames},
		"firefox":  &playwrightEngine{},
	}
}

// NewRegistry creates a Registry
func NewRegistry(config Config) *Registry {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Steps == nil {
		config.Steps = steps.New()
	}
	engines := DefaultEngines()
	for kind, engine := range config.Engines {
		engines[strings.ToLower(kind)] = engine
	}
	return &Registry{
		config:  config,
		engines: engines,
		handles: worker.NewLocal(),
		logger:  config.Logger,
	}
}

func (r *Registry) engine() (string, Engine) {
	kind := strings.ToLower(strings.TrimSpace(r.config.Browser))
	if engine, ok := r.engines[kind]; ok {
		return kind, engine
	}
	return "chrome", r.engines["chrome"]
}

// Acquire returns the worker's session, starting a new browser if it has none.
// New sessions are maximized and use the configured implicit wait for element lookups.
func (r *Registry) Acquire(ctx context.Context) (*Handle, error) {
	id, err := worker.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if h, ok := r.lookup(ctx); ok {
		return h, nil
	}

	kind, engine := r.engine()
	logger := r.logger.With(zap.String("worker", string(id)), zap.String("browser", kind))
	page, err := engine.Start(ctx, Options{
		Headless:     r.config.Headless,
		ImplicitWait: r.config.ImplicitWait,
		ExecPath:     r.config.BrowserPath,
		Debug:        r.config.Debug,
		Logger:       logger,
	})
	if err != nil {
		return nil, &InitializationError{Browser: kind, Err: err}
	}
	if err := page.Maximize(ctx); err != nil {
		logger.Warn("Failed to maximize browser window", zap.Error(err))
	}

	h := &Handle{
		page:         page,
		ImplicitWait: r.config.ImplicitWait,
		ExplicitWait: r.config.ExplicitWait,
		steps:        r.config.Steps,
		logger:       logger,
		released:     atomic.NewBool(false),
	}
	if err := r.handles.Set(ctx, h); err != nil {
		_ = page.Close()
		return nil, err
	}
	logger.Info("Browser session started")
	return h, nil
}

// Current returns the worker's live session. Never starts a browser.
func (r *Registry) Current(ctx context.Context) (*Handle, error) {
	if _, err := worker.FromContext(ctx); err != nil {
		return nil, err
	}
	h, ok := r.lookup(ctx)
	if !ok {
		return nil, ErrNotInitialized
	}
	return h, nil
}

// Screenshot captures the worker's current page
func (r *Registry) Screenshot(ctx context.Context) ([]byte, error) {
	h, err := r.Current(ctx)
	if err != nil {
		return nil, err
	}
	return h.Screenshot(ctx)
}

// Release closes the worker's session. Releasing twice is an error, it means the caller's lifecycle is broken.
func (r *Registry) Release(ctx context.Context) error {
	value, found, err := r.handles.Delete(ctx)
	if err != nil {
		return err
	}
	h, ok := value.(*Handle)
	if !found || !ok {
		return ErrNotInitialized
	}
	h.released.Store(true)
	if err := h.page.Close(); err != nil {
		h.logger.Warn("Failed to close browser cleanly", zap.Error(err))
	}
	h.logger.Info("Browser session closed")
	return nil
}

// Live returns the number of workers holding a session
func (r *Registry) Live() int {
	return r.handles.Len()
}

func (r *Registry) lookup(ctx context.Context) (*Handle, bool) {
	value, found, err := r.handles.Get(ctx)
	if err != nil || !found {
		return nil, false
	}
	h, ok := value.(*Handle)
	return h, ok
}
