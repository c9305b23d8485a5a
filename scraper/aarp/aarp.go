package aarp

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/rotisserie/eris"

	"livability-pipeline/config"
	"livability-pipeline/utils"
)

const searchFieldID = "livability-places-field"

// ErrUnexpectedPage is returned when the loaded page has no report content.
var ErrUnexpectedPage = errors.New("aarp: unexpected page shape")

// Scraper retrieves livability reports by driving a headless browser through
// the index's search box. One browser is shared; every Fetch opens its own tab.
type Scraper struct {
	cfg    config.GatewayConfig
	logger *utils.Logger
	retry  *utils.RetryConfig

	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	browserCtx  context.Context
	cancelTab   context.CancelFunc

	startOnce sync.Once
	startErr  error
}

// New creates a Scraper. The browser is launched on the first Fetch.
func New(cfg config.GatewayConfig, logger *utils.Logger) *Scraper {
	chromeBin := cfg.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Info("[aarp] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	// Suppress chromedp log noise
	browserCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	s := &Scraper{
		cfg:         cfg,
		logger:      logger,
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		browserCtx:  browserCtx,
		cancelTab:   cancelTab,
	}
	s.retry = &utils.RetryConfig{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   2 * time.Second,
		Logger:      logger,
		Retryable: func(err error) bool {
			return !errors.Is(err, ErrUnexpectedPage) && !errors.Is(err, context.Canceled)
		},
	}
	return s
}

// Fetch searches for id and returns the visible text of the resulting report.
// The call is bounded by the configured timeout and by ctx.
func (s *Scraper) Fetch(ctx context.Context, id string) (string, error) {
	if err := s.start(); err != nil {
		return "", err
	}

	var text string
	err := s.retry.Do(ctx, "fetch "+id, func(ctx context.Context) error {
		page, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		text, err = ExtractText(page)
		return err
	})
	return text, err
}

// Close shuts the browser down.
func (s *Scraper) Close() error {
	s.cancelTab()
	s.cancelAlloc()
	return nil
}

func (s *Scraper) start() error {
	s.startOnce.Do(func() {
		if err := chromedp.Run(s.browserCtx); err != nil {
			s.startErr = eris.Wrap(err, "aarp: start browser")
		}
	})
	return s.startErr
}

// load runs the search in a fresh tab and returns the page HTML.
func (s *Scraper) load(ctx context.Context, id string) (string, error) {
	tabCtx, cancel := chromedp.NewContext(s.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, s.cfg.Timeout())
	defer cancelTimeout()

	var html, title, location string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(s.cfg.URL),
		chromedp.WaitVisible(searchFieldID, chromedp.ByID),
		chromedp.Clear(searchFieldID, chromedp.ByID),
		chromedp.SendKeys(searchFieldID, id, chromedp.ByID),
		// autocomplete suggestions
		chromedp.Sleep(2*time.Second),
		chromedp.SendKeys(searchFieldID, kb.Enter, chromedp.ByID),
		chromedp.Sleep(5*time.Second),
		chromedp.Title(&title),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return "", ctx.Err()
		case errors.Is(tabCtx.Err(), context.DeadlineExceeded):
			return "", eris.Wrapf(context.DeadlineExceeded, "aarp: %s timed out after %v", id, s.cfg.Timeout())
		default:
			return "", eris.Wrapf(err, "aarp: browser run for %s", id)
		}
	}

	s.logger.Debug("[aarp] %s loaded %q at %s", id, title, location)
	return html, nil
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
