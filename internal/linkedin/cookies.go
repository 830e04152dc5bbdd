package linkedin

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// sessionCookie is the serialized form of a browser cookie.
type sessionCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"http_only"`
	Secure   bool    `json:"secure"`
}

// saveSessionCookies writes the current browser cookies to the configured
// file. Failures are logged, not fatal: the session still works, it just
// will not survive a restart.
func (s *Scraper) saveSessionCookies(ctx context.Context) {
	if s.opts.CookiesFile == "" {
		return
	}

	var cookies []*network.Cookie
	err := s.runner(ctx)(chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		zap.L().Warn("linkedin: could not read cookies", zap.Error(err))
		return
	}

	out := make([]sessionCookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, sessionCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}

	data, err := json.Marshal(out)
	if err != nil {
		zap.L().Warn("linkedin: could not encode cookies", zap.Error(err))
		return
	}
	if err := os.WriteFile(s.opts.CookiesFile, data, 0o600); err != nil {
		zap.L().Warn("linkedin: could not write cookies file", zap.Error(err))
		return
	}
	zap.L().Debug("linkedin: session cookies saved", zap.Int("count", len(out)))
}

// loadSessionCookies replays cookies from the configured file into the
// browser. The home page is visited first so the cookie domain is active.
func (s *Scraper) loadSessionCookies(ctx context.Context) error {
	data, err := os.ReadFile(s.opts.CookiesFile)
	if err != nil {
		return eris.Wrap(err, "read cookies file")
	}

	var cookies []sessionCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return eris.Wrap(err, "decode cookies file")
	}
	if len(cookies) == 0 {
		return eris.New("cookies file is empty")
	}

	run := s.runner(ctx)
	if err := run(
		chromedp.Navigate("https://www.linkedin.com/"),
		randomPause(time.Second, 2*time.Second),
	); err != nil {
		return eris.Wrap(err, "open home page")
	}

	return run(chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithHTTPOnly(c.HTTPOnly).
				WithSecure(c.Secure).
				Do(ctx)
			if err != nil {
				return eris.Wrapf(err, "set cookie %s", c.Name)
			}
		}
		return nil
	}))
}
