// Package browser provides shared chromedp allocator configuration.
package browser

import "github.com/chromedp/chromedp"

// Config controls how Chrome is launched.
type Config struct {
	Headless bool
	// ExecPath overrides chromedp's Chrome lookup when non-empty.
	ExecPath string
}

// Options returns chromedp allocator options for a throwaway headless session.
// Every visit launches its own browser with these options.
func Options(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),

		// Needed when running as root inside containers
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),

		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	if cfg.Headless {
		opts = append(opts, chromedp.DisableGPU)
	}

	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	return opts
}
