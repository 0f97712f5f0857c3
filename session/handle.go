package session

import (
	"context"
	"time"

	"github.com/johnstarich/uiwatch/steps"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Handle is a worker's live browser session and its wait policy
type Handle struct {
	// ImplicitWait bounds every element lookup
	ImplicitWait time.Duration
	// ExplicitWait bounds WaitVisible
	ExplicitWait time.Duration

	page     Page
	steps    *steps.Log
	logger   *zap.Logger
	released *atomic.Bool
}

// Action performs a browser action, like navigating or clicking on an element
type Action interface {
	Do(ctx context.Context, h *Handle) error
}

// ActionFunc makes it easy to wrap an anonymous function into an Action
type ActionFunc func(ctx context.Context, h *Handle) error

// Do implements the Action interface
func (a ActionFunc) Do(ctx context.Context, h *Handle) error {
	return a(ctx, h)
}

// Page returns the engine page backing this session
func (h *Handle) Page() Page {
	return h.page
}

// Run calls each action in order, stopping on the first error
func (h *Handle) Run(ctx context.Context, actions ...Action) error {
	if h.released.Load() {
		return ErrReleased
	}
	done := ctx.Done()
	for i, action := range actions {
		select {
		case <-done:
			return ctx.Err()
		default:
		}
		if err := action.Do(ctx, h); err != nil {
			return errors.Wrapf(err, "Error running action #%d", i)
		}
	}
	return nil
}

// Step records 'narration' in the worker's step log, then runs the actions.
// The step is recorded first so a failing action still shows up in failure reports.
func (h *Handle) Step(ctx context.Context, narration string, actions ...Action) error {
	if err := h.steps.Append(ctx, narration); err != nil {
		return err
	}
	return h.Run(ctx, actions...)
}

// Screenshot captures the current page as PNG
func (h *Handle) Screenshot(ctx context.Context) ([]byte, error) {
	if h.released.Load() {
		return nil, ErrReleased
	}
	return h.page.Screenshot(ctx)
}

// Title returns the current page's title
func (h *Handle) Title(ctx context.Context) (string, error) {
	if h.released.Load() {
		return "", ErrReleased
	}
	return h.page.Title(ctx)
}

func withWait(ctx context.Context, wait time.Duration) (context.Context, context.CancelFunc) {
	if wait <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, wait)
}

// Navigate loads 'url' in the session's page
func Navigate(url string) Action {
	return ActionFunc(func(ctx context.Context, h *Handle) error {
		if err := h.page.Navigate(ctx, url); err != nil {
			h.logger.Error("Failed to navigate to page", zap.String("url", url), zap.Error(err))
			return err
		}
		h.logger.Info("Navigated to page", zap.String("url", url))
		return nil
	})
}

// Click clicks the element matching 'sel'
func Click(sel Selector) Action {
	return ActionFunc(func(ctx context.Context, h *Handle) error {
		ctx, cancel := withWait(ctx, h.ImplicitWait)
		defer cancel()
		if err := h.page.Click(ctx, sel); err != nil {
			h.logger.Error("Failed to click element", zap.Stringer("selector", sel), zap.Error(err))
			return err
		}
		h.logger.Info("Clicked element", zap.Stringer("selector", sel))
		return nil
	})
}

// SetText types 'text' into the element matching 'sel'
func SetText(sel Selector, text string) Action {
	return ActionFunc(func(ctx context.Context, h *Handle) error {
		ctx, cancel := withWait(ctx, h.ImplicitWait)
		defer cancel()
		if err := h.page.SendKeys(ctx, sel, text); err != nil {
			h.logger.Error("Failed to send keys to element", zap.Stringer("selector", sel), zap.Error(err))
			return err
		}
		h.logger.Info("Sent keys to element", zap.Stringer("selector", sel))
		return nil
	})
}

// ClearText empties the input matching 'sel'
func ClearText(sel Selector) Action {
	return ActionFunc(func(ctx context.Context, h *Handle) error {
		ctx, cancel := withWait(ctx, h.ImplicitWait)
		defer cancel()
		if err := h.page.Clear(ctx, sel); err != nil {
			h.logger.Error("Failed to clear text in element", zap.Stringer("selector", sel), zap.Error(err))
			return err
		}
		h.logger.Info("Cleared text", zap.Stringer("selector", sel))
		return nil
	})
}

// Text reads the visible text of the element matching 'sel' into 'dest'
func Text(sel Selector, dest *string) Action {
	return ActionFunc(func(ctx context.Context, h *Handle) error {
		if dest == nil {
			return errors.New("Text destination must not be nil")
		}
		ctx, cancel := withWait(ctx, h.ImplicitWait)
		defer cancel()
		text, err := h.page.Text(ctx, sel)
		if err != nil {
			h.logger.Error("Failed to get text from element", zap.Stringer("selector", sel), zap.Error(err))
			return err
		}
		*dest = text
		return nil
	})
}

// WaitVisible waits up to the explicit wait for the element matching 'sel' to become visible
func WaitVisible(sel Selector) Action {
	return ActionFunc(func(ctx context.Context, h *Handle) error {
		ctx, cancel := withWait(ctx, h.ExplicitWait)
		defer cancel()
		if err := h.page.WaitVisible(ctx, sel); err != nil {
			h.logger.Error("Element did not become visible", zap.Stringer("selector", sel), zap.Error(err))
			return err
		}
		return nil
	})
}
