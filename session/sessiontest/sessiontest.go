// Package sessiontest provides an in-memory browser engine for testing code built on sessions
package sessiontest

import (
	"context"
	"fmt"
	"sync"

	"github.com/johnstarich/uiwatch/session"
	"github.com/pkg/errors"
)

// PNG is the screenshot returned by every Page unless overridden
var PNG = []byte("\x89PNG\r\n\x1a\nfake")

// Engine starts Pages that record every call made to them
type Engine struct {
	// StartErr fails every Start when set
	StartErr error
	// Setup is called on each new Page before it is returned
	Setup func(*Page)

	mu      sync.Mutex
	pages   []*Page
	options []session.Options
}

// Start implements session.Engine
func (e *Engine) Start(ctx context.Context, opts session.Options) (session.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.options = append(e.options, opts)
	if e.StartErr != nil {
		return nil, e.StartErr
	}
	page := &Page{
		Texts:  make(map[string]string),
		Image:  PNG,
		Errors: make(map[string]error),
	}
	if e.Setup != nil {
		e.Setup(page)
	}
	e.pages = append(e.pages, page)
	return page, nil
}

// Pages returns every Page started so far
func (e *Engine) Pages() []*Page {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Page(nil), e.pages...)
}

// Options returns the options passed to each Start call
func (e *Engine) Options() []session.Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]session.Options(nil), e.options...)
}

// Page is a fake browser tab. Configure it before handing it to concurrent callers.
type Page struct {
	// Texts maps a selector's String() to its element text
	Texts map[string]string
	// Hidden selectors never become visible, WaitVisible blocks until ctx is done
	Hidden []string
	// Image is returned by Screenshot. Nil fails with an error.
	Image []byte
	// Errors maps a method name, like "Click", to the error it returns
	Errors map[string]error

	mu     sync.Mutex
	calls  []string
	url    string
	closed bool
}

func (p *Page) record(method, format string, args ...interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	call := method
	if format != "" {
		call += " " + fmt.Sprintf(format, args...)
	}
	p.calls = append(p.calls, call)
	if p.closed {
		return errors.New("Page is closed")
	}
	return p.Errors[method]
}

// Calls returns each call made to the page, like "Click id=submit"
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// URL returns the last URL navigated to
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Closed reports whether Close was called
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) Maximize(ctx context.Context) error {
	return p.record("Maximize", "")
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.record("Navigate", "%s", url); err != nil {
		return err
	}
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return nil
}

func (p *Page) Click(ctx context.Context, sel session.Selector) error {
	return p.record("Click", "%s", sel)
}

func (p *Page) SendKeys(ctx context.Context, sel session.Selector, text string) error {
	return p.record("SendKeys", "%s %s", sel, text)
}

func (p *Page) Clear(ctx context.Context, sel session.Selector) error {
	return p.record("Clear", "%s", sel)
}

func (p *Page) Text(ctx context.Context, sel session.Selector) (string, error) {
	if err := p.record("Text", "%s", sel); err != nil {
		return "", err
	}
	text, ok := p.Texts[sel.String()]
	if !ok {
		return "", errors.Errorf("No element matches %s", sel)
	}
	return text, nil
}

func (p *Page) WaitVisible(ctx context.Context, sel session.Selector) error {
	if err := p.record("WaitVisible", "%s", sel); err != nil {
		return err
	}
	for _, hidden := range p.Hidden {
		if hidden == sel.String() {
			<-ctx.Done()
			return ctx.Err()
		}
	}
	return nil
}

func (p *Page) Title(ctx context.Context) (string, error) {
	if err := p.record("Title", ""); err != nil {
		return "", err
	}
	return p.Texts["title"], nil
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := p.record("Screenshot", ""); err != nil {
		return nil, err
	}
	if p.Image == nil {
		return nil, errors.New("Screenshot not available")
	}
	return p.Image, nil
}

func (p *Page) Close() error {
	err := p.record("Close", "")
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return err
}
