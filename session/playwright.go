package session

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

const (
	maximizedWidth  = 1920
	maximizedHeight = 1080
)

// playwrightEngine drives Firefox through a Playwright driver
type playwrightEngine struct{}

type playwrightPage struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

func (e *playwrightEngine) Start(ctx context.Context, opts Options) (Page, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	output := (*debugWriter)(opts.Logger.Named("playwright"))
	type started struct {
		page *playwrightPage
		err  error
	}
	result := make(chan started, 1)
	go func() {
		page, err := startPlaywright(opts, output)
		result <- started{page: page, err: err}
	}()

	select {
	case r := <-result:
		return r.page, r.err
	case <-ctx.Done():
		go func() {
			// close the browser whenever it finishes starting
			if r := <-result; r.err == nil {
				_ = r.page.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func startPlaywright(opts Options, output *debugWriter) (*playwrightPage, error) {
	pw, err := playwright.Run(&playwright.RunOptions{
		Browsers: []string{"firefox"},
		Verbose:  opts.Debug,
		Stdout:   output,
		Stderr:   output,
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to start playwright")
	}
	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	}
	if opts.ExecPath != "" {
		launchOpts.ExecutablePath = playwright.String(opts.ExecPath)
	}
	browser, err := pw.Firefox.Launch(launchOpts)
	if err != nil {
		_ = pw.Stop()
		return nil, errors.Wrap(err, "Failed to launch browser")
	}
	browserContext, err := browser.NewContext()
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, errors.Wrap(err, "Failed to create browser context")
	}
	page, err := browserContext.NewPage()
	if err != nil {
		_ = browserContext.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, errors.Wrap(err, "Failed to create page")
	}
	if opts.ImplicitWait > 0 {
		page.SetDefaultTimeout(milliseconds(opts.ImplicitWait))
	}
	return &playwrightPage{
		pw:      pw,
		browser: browser,
		context: browserContext,
		page:    page,
	}, nil
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// timeout converts ctx's deadline into a Playwright timeout. Nil uses the page default.
func timeout(ctx context.Context) *float64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return nil
	}
	remaining := time.Until(deadline)
	if remaining < time.Millisecond {
		remaining = time.Millisecond
	}
	return playwright.Float(milliseconds(remaining))
}

func (p *playwrightPage) locator(sel Selector) (playwright.Locator, error) {
	query, isXPath, err := sel.Query()
	if err != nil {
		return nil, err
	}
	if isXPath {
		return p.page.Locator("xpath=" + query).First(), nil
	}
	return p.page.Locator("css=" + query).First(), nil
}

func (p *playwrightPage) Maximize(ctx context.Context) error {
	return p.page.SetViewportSize(maximizedWidth, maximizedHeight)
}

func (p *playwrightPage) Navigate(ctx context.Context, url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{Timeout: timeout(ctx)})
	return err
}

func (p *playwrightPage) Click(ctx context.Context, sel Selector) error {
	locator, err := p.locator(sel)
	if err != nil {
		return err
	}
	return locator.Click(playwright.LocatorClickOptions{Timeout: timeout(ctx)})
}

func (p *playwrightPage) SendKeys(ctx context.Context, sel Selector, text string) error {
	locator, err := p.locator(sel)
	if err != nil {
		return err
	}
	return locator.PressSequentially(text, playwright.LocatorPressSequentiallyOptions{Timeout: timeout(ctx)})
}

func (p *playwrightPage) Clear(ctx context.Context, sel Selector) error {
	locator, err := p.locator(sel)
	if err != nil {
		return err
	}
	return locator.Clear(playwright.LocatorClearOptions{Timeout: timeout(ctx)})
}

func (p *playwrightPage) Text(ctx context.Context, sel Selector) (string, error) {
	locator, err := p.locator(sel)
	if err != nil {
		return "", err
	}
	return locator.InnerText(playwright.LocatorInnerTextOptions{Timeout: timeout(ctx)})
}

func (p *playwrightPage) WaitVisible(ctx context.Context, sel Selector) error {
	locator, err := p.locator(sel)
	if err != nil {
		return err
	}
	return locator.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: timeout(ctx),
	})
}

func (p *playwrightPage) Title(ctx context.Context) (string, error) {
	return p.page.Title()
}

func (p *playwrightPage) Screenshot(ctx context.Context) ([]byte, error) {
	return p.page.Screenshot(playwright.PageScreenshotOptions{
		Type:    playwright.ScreenshotTypePng,
		Timeout: timeout(ctx),
	})
}

// Close releases the page, browser, and driver. Every step runs even if an earlier one fails.
func (p *playwrightPage) Close() error {
	var firstErr error
	for _, closer := range []func() error{
		func() error { return p.context.Close() },
		func() error { return p.browser.Close() },
		p.pw.Stop,
	} {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
