package session

import (
	"context"
	"os/exec"
	"time"

	cdpBrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var edgeExecNames = []string{"msedge", "microsoft-edge", "microsoft-edge-stable"}

// chromedpEngine drives Chromium-based browsers over the DevTools protocol
type chromedpEngine struct {
	// lookPaths are tried in order when no exec path is configured. Empty uses chromedp's Chrome discovery.
	lookPaths []string
}

type chromedpPage struct {
	ctx         context.Context
	cancel      context.CancelFunc
	cancelAlloc context.CancelFunc
}

func (e *chromedpEngine) execPath(opts Options) (string, error) {
	if opts.ExecPath != "" || len(e.lookPaths) == 0 {
		return opts.ExecPath, nil
	}
	for _, name := range e.lookPaths {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", errors.Errorf("Browser executable not found, tried: %v", e.lookPaths)
}

// Start launches the browser bound to a background context, so it outlives 'ctx'.
// 'ctx' only bounds startup.
func (e *chromedpEngine) Start(ctx context.Context, opts Options) (Page, error) {
	execPath, err := e.execPath(opts)
	if err != nil {
		return nil, err
	}
	execOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
	)
	if !opts.Headless {
		execOpts = append(
			// skip headless option
			chromedp.DefaultExecAllocatorOptions[3:],

			chromedp.NoFirstRun,
			chromedp.NoDefaultBrowserCheck,
			chromedp.DisableGPU,
			chromedp.Flag("start-maximized", true),
		)
	} else {
		execOpts = append(execOpts, chromedp.WindowSize(1920, 1080))
	}
	if execPath != "" {
		execOpts = append(execOpts, chromedp.ExecPath(execPath))
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), execOpts...)
	var ctxOpts []chromedp.ContextOption
	if opts.Debug {
		logger := opts.Logger.Sugar()
		ctxOpts = append(ctxOpts,
			chromedp.WithDebugf(logger.Debugf),
			chromedp.WithLogf(logger.Infof),
			chromedp.WithErrorf(logger.Errorf),
		)
	}
	browserCtx, cancel := chromedp.NewContext(allocCtx, ctxOpts...)
	page := &chromedpPage{
		ctx:         browserCtx,
		cancel:      cancel,
		cancelAlloc: cancelAlloc,
	}

	// the first Run starts the browser and must use the browser context itself, not a derived one
	stop := context.AfterFunc(ctx, cancel)
	err = chromedp.Run(browserCtx)
	stop()
	if err != nil {
		cancel()
		cancelAlloc()
		return nil, err
	}
	return page, nil
}

// run executes actions on the page's tab, canceled early if 'ctx' is done
func (p *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func queryOptions(sel Selector) (string, []chromedp.QueryOption, error) {
	query, isXPath, err := sel.Query()
	if err != nil {
		return "", nil, err
	}
	if isXPath {
		return query, []chromedp.QueryOption{chromedp.BySearch}, nil
	}
	return query, []chromedp.QueryOption{chromedp.ByQuery}, nil
}

func (p *chromedpPage) Maximize(ctx context.Context) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		windowID, _, err := cdpBrowser.GetWindowForTarget().Do(ctx)
		if err != nil {
			return err
		}
		return cdpBrowser.SetWindowBounds(windowID, &cdpBrowser.Bounds{
			WindowState: cdpBrowser.WindowStateMaximized,
		}).Do(ctx)
	}))
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (p *chromedpPage) Click(ctx context.Context, sel Selector) error {
	query, opts, err := queryOptions(sel)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.Click(query, append(opts, chromedp.NodeVisible)...))
}

func (p *chromedpPage) SendKeys(ctx context.Context, sel Selector, text string) error {
	query, opts, err := queryOptions(sel)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.SendKeys(query, text, opts...))
}

func (p *chromedpPage) Clear(ctx context.Context, sel Selector) error {
	query, opts, err := queryOptions(sel)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.Clear(query, opts...))
}

func (p *chromedpPage) Text(ctx context.Context, sel Selector) (string, error) {
	query, opts, err := queryOptions(sel)
	if err != nil {
		return "", err
	}
	var text string
	err = p.run(ctx, chromedp.Text(query, &text, append(opts, chromedp.NodeVisible)...))
	return text, err
}

func (p *chromedpPage) WaitVisible(ctx context.Context, sel Selector) error {
	query, opts, err := queryOptions(sel)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.WaitVisible(query, opts...))
}

func (p *chromedpPage) Title(ctx context.Context) (string, error) {
	var title string
	err := p.run(ctx, chromedp.Title(&title))
	return title, err
}

func (p *chromedpPage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

// Close gracefully closes the browser, then tears down the allocator
func (p *chromedpPage) Close() error {
	closeCtx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
	defer cancel()
	err := chromedp.Cancel(closeCtx)
	p.cancel()
	p.cancelAlloc()
	if errors.Cause(err) == context.Canceled {
		return nil
	}
	return err
}
