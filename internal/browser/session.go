package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Launcher starts Chrome through chromedp, one isolated browser per Launch.
type Launcher struct {
	cfg Config
}

// NewLauncher creates a launcher with the given browser configuration.
func NewLauncher(cfg Config) *Launcher {
	return &Launcher{cfg: cfg}
}

// Session is a single browser process with one open tab.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// Launch starts a fresh browser and opens a blank tab. The returned session
// must be closed.
func (l *Launcher) Launch(ctx context.Context) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, Options(l.cfg)...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// An empty Run starts the browser and creates the first tab.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &Session{ctx: browserCtx, cancel: cancel, allocCancel: allocCancel}, nil
}

// SetUserAgent overrides the user agent for subsequent requests.
func (s *Session) SetUserAgent(userAgent string) error {
	return chromedp.Run(s.ctx, emulation.SetUserAgentOverride(userAgent))
}

// SetViewport emulates a viewport of the given size.
func (s *Session) SetViewport(width, height int64) error {
	return chromedp.Run(s.ctx, chromedp.EmulateViewport(width, height))
}

// SetExtraHeaders adds headers to every request the tab makes.
func (s *Session) SetExtraHeaders(headers map[string]string) error {
	h := make(network.Headers, len(headers))
	for k, v := range headers {
		h[k] = v
	}
	return chromedp.Run(s.ctx,
		network.Enable(),
		network.SetExtraHTTPHeaders(h),
	)
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(url string) error {
	return chromedp.Run(s.ctx, chromedp.Navigate(url))
}

// Close shuts the browser down and releases the allocator.
func (s *Session) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	s.allocCancel()
	return err
}
