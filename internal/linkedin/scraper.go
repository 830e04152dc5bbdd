// Package linkedin drives a headless Chrome session to extract company
// pages and member profiles. Navigation is paced to look human: typed
// characters, randomized pauses and incremental scrolling.
package linkedin

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/outreach-mate/outreach-cli/internal/model"
)

// Source is the scraping surface the pipeline consumes.
type Source interface {
	ScrapeCompany(ctx context.Context, companyURL string) (*model.RawLinkedInCompany, error)
	ScrapeProfile(ctx context.Context, profileURL string) (*model.RawLinkedInProfile, error)
	Close()
}

// ErrLoginFailed is returned when neither saved cookies nor credentials
// produce an authenticated session.
var ErrLoginFailed = eris.New("linkedin: login failed")

// ErrCheckpoint is returned when a security verification page blocked the
// login past the configured grace period.
var ErrCheckpoint = eris.New("linkedin: security verification not completed")

// Credentials holds the account used for scraping.
type Credentials struct {
	Username string
	Password string
}

// Options configures the browser session.
type Options struct {
	Headless  bool
	UserAgent string
	ProxyURL  string
	// CookiesFile persists session cookies between runs so repeat logins
	// are rare.
	CookiesFile string
	// NavigationTimeout bounds each page load. Default 30s.
	NavigationTimeout time.Duration
	// CheckpointWait is how long to wait for a manual security
	// verification before giving up. Default 30s.
	CheckpointWait time.Duration
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Scraper is a single authenticated browser session. All scrape calls are
// serialized on one tab; concurrent callers queue on the internal mutex.
type Scraper struct {
	creds Credentials
	opts  Options

	mu            sync.Mutex
	allocator     context.Context
	allocCancel   context.CancelFunc
	browser       context.Context
	browserCancel context.CancelFunc
	loggedIn      bool
}

var _ Source = (*Scraper)(nil)

// New creates a Scraper. The browser is launched lazily on first use.
func New(creds Credentials, opts Options) *Scraper {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	if opts.CheckpointWait <= 0 {
		opts.CheckpointWait = 30 * time.Second
	}
	return &Scraper{creds: creds, opts: opts}
}

// Close shuts down the browser and forgets the session.
func (s *Scraper) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browserCancel != nil {
		s.browserCancel()
		s.browserCancel = nil
	}
	if s.allocCancel != nil {
		s.allocCancel()
		s.allocCancel = nil
	}
	s.browser = nil
	s.loggedIn = false
	zap.L().Info("linkedin scraper closed")
}

// ensureBrowser launches Chrome with automation markers suppressed.
// Callers must hold s.mu.
func (s *Scraper) ensureBrowser() error {
	if s.browser != nil {
		return nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("enable-automation", false),
		chromedp.UserAgent(s.opts.UserAgent),
	)
	if s.opts.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(s.opts.ProxyURL))
	}

	s.allocator, s.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	s.browser, s.browserCancel = chromedp.NewContext(s.allocator)

	err := chromedp.Run(s.browser,
		emulation.SetDeviceMetricsOverride(1366, 768, 1.0, false),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// Hide navigator.webdriver before any page script runs.
			_, err := page.AddScriptToEvaluateOnNewDocument(
				`Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`,
			).Do(ctx)
			return err
		}),
	)
	if err != nil {
		s.Close()
		return eris.Wrap(err, "linkedin: start browser")
	}
	return nil
}

// ensureLogin authenticates the session, preferring saved cookies over a
// fresh credential login. Callers must hold s.mu.
func (s *Scraper) ensureLogin(ctx context.Context) error {
	if s.loggedIn {
		return nil
	}
	if err := s.ensureBrowser(); err != nil {
		return err
	}

	if s.tryCookieLogin(ctx) {
		zap.L().Info("linkedin: session restored from cookies")
		s.loggedIn = true
		return nil
	}

	zap.L().Info("linkedin: logging in with credentials")
	run := s.runner(ctx)

	err := run(
		chromedp.Navigate("https://www.linkedin.com/login"),
		randomPause(2*time.Second, 4*time.Second),
		chromedp.WaitVisible("#username", chromedp.ByID),
		typeHumanly("#username", s.creds.Username),
		randomPause(500*time.Millisecond, 1500*time.Millisecond),
		typeHumanly("#password", s.creds.Password),
		randomPause(500*time.Millisecond, 1500*time.Millisecond),
		chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
		randomPause(3*time.Second, 5*time.Second),
	)
	if err != nil {
		return eris.Wrap(err, "linkedin: login navigation")
	}

	loc, err := s.currentURL(ctx)
	if err != nil {
		return err
	}

	if strings.Contains(loc, "feed") {
		s.loggedIn = true
		s.saveSessionCookies(ctx)
		zap.L().Info("linkedin: login successful")
		return nil
	}

	if strings.Contains(loc, "checkpoint") || strings.Contains(loc, "security-verification") {
		zap.L().Warn("linkedin: security verification required, waiting for manual completion",
			zap.Duration("grace", s.opts.CheckpointWait),
		)
		if s.waitForFeed(ctx, s.opts.CheckpointWait) {
			s.loggedIn = true
			s.saveSessionCookies(ctx)
			zap.L().Info("linkedin: login successful after verification")
			return nil
		}
		return ErrCheckpoint
	}

	return ErrLoginFailed
}

// tryCookieLogin replays saved cookies and verifies them against the feed.
func (s *Scraper) tryCookieLogin(ctx context.Context) bool {
	if s.opts.CookiesFile == "" {
		return false
	}
	if err := s.loadSessionCookies(ctx); err != nil {
		zap.L().Debug("linkedin: no usable cookies", zap.Error(err))
		return false
	}

	run := s.runner(ctx)
	if err := run(
		chromedp.Navigate("https://www.linkedin.com/feed/"),
		randomPause(2*time.Second, 4*time.Second),
	); err != nil {
		return false
	}

	loc, err := s.currentURL(ctx)
	return err == nil && strings.Contains(loc, "feed")
}

// waitForFeed polls the location until the feed loads or the grace period
// runs out.
func (s *Scraper) waitForFeed(ctx context.Context, grace time.Duration) bool {
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(5 * time.Second):
		}
		loc, err := s.currentURL(ctx)
		if err == nil && strings.Contains(loc, "feed") {
			return true
		}
	}
	return false
}

func (s *Scraper) currentURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.runner(ctx)(chromedp.Location(&loc)); err != nil {
		return "", eris.Wrap(err, "linkedin: read location")
	}
	return loc, nil
}

// runner returns a Run function bound to the browser tab but honoring the
// caller's cancellation and the navigation timeout.
func (s *Scraper) runner(ctx context.Context) func(actions ...chromedp.Action) error {
	return func(actions ...chromedp.Action) error {
		runCtx, cancel := context.WithTimeout(s.browser, s.opts.NavigationTimeout)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- chromedp.Run(runCtx, actions...) }()
		select {
		case <-ctx.Done():
			cancel()
			<-done
			return ctx.Err()
		case err := <-done:
			return err
		}
	}
}

// randomPause sleeps for a random duration in [min, max].
func randomPause(min, max time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		d := min + time.Duration(rand.Int64N(int64(max-min)+1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
			return nil
		}
	})
}

// typeHumanly sends keys one character at a time with 50-150ms between
// keystrokes.
func typeHumanly(sel, text string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, ch := range text {
			if err := chromedp.SendKeys(sel, string(ch), chromedp.ByQuery).Do(ctx); err != nil {
				return err
			}
			d := 50*time.Millisecond + time.Duration(rand.Int64N(int64(100*time.Millisecond)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
			}
		}
		return nil
	})
}

// humanScroll pages down in randomized 300-700px steps with 0.8-2.5s
// pauses, re-reading the document height each step since content loads
// lazily. Stops early once the bottom is reached.
func humanScroll(steps int) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var height int
		if err := chromedp.Evaluate(`document.body.scrollHeight`, &height).Do(ctx); err != nil {
			return err
		}

		position := 0
		for i := 0; i < steps; i++ {
			position += 300 + int(rand.Int64N(401))
			if position > height {
				position = height
			}

			script := fmt.Sprintf("window.scrollTo(0, %d);", position)
			if err := chromedp.Evaluate(script, nil).Do(ctx); err != nil {
				return err
			}

			d := 800*time.Millisecond + time.Duration(rand.Int64N(int64(1700*time.Millisecond)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
			}

			if err := chromedp.Evaluate(`document.body.scrollHeight`, &height).Do(ctx); err != nil {
				return err
			}
			if position >= height {
				break
			}
		}
		return nil
	})
}

// evaluateText reads an optional element's trimmed text, returning ""
// when the selector matches nothing.
func evaluateText(ctx context.Context, run func(...chromedp.Action) error, sel string) string {
	var out string
	script := fmt.Sprintf(
		`(document.querySelector(%q)?.textContent || "").trim()`, sel,
	)
	if err := run(chromedp.Evaluate(script, &out)); err != nil {
		return ""
	}
	return out
}
