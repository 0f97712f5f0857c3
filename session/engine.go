package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Engine launches browsers of one kind
type Engine interface {
	// Start launches a browser and opens a blank page. Blocks until the browser is ready or ctx is done.
	Start(ctx context.Context, opts Options) (Page, error)
}

// Options configure a new browser session
type Options struct {
	Headless     bool
	ImplicitWait time.Duration
	// ExecPath overrides the browser binary
	ExecPath string
	Debug    bool
	Logger   *zap.Logger
}

// Page is a single browser tab driven by an Engine.
// Element lookups honor ctx deadlines.
type Page interface {
	Maximize(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, sel Selector) error
	SendKeys(ctx context.Context, sel Selector, text string) error
	Clear(ctx context.Context, sel Selector) error
	Text(ctx context.Context, sel Selector) (string, error)
	WaitVisible(ctx context.Context, sel Selector) error
	Title(ctx context.Context) (string, error)
	// Screenshot captures the visible viewport as PNG
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}
