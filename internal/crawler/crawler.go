// Package crawler walks a company website breadth-first and distills it
// into a raw snapshot: text snippet, emails, phones, contact pages,
// social links and a technology fingerprint.
package crawler

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/outreach-mate/outreach-cli/internal/fetcher"
	"github.com/outreach-mate/outreach-cli/internal/model"
)

// PageFetcher fetches one page. Satisfied by fetcher.RateLimitedClient.
type PageFetcher interface {
	Get(ctx context.Context, rawURL string) (*fetcher.Page, error)
}

// Options bounds a crawl.
type Options struct {
	// MaxPages caps the number of pages fetched per site. Default 10.
	MaxPages int
	// MaxDepth caps how many link hops from the start page are followed.
	// Default 2.
	MaxDepth int
	// SnippetMaxChars caps the combined text snippet. Default 1000.
	SnippetMaxChars int
}

// Crawler extracts company data from websites.
type Crawler struct {
	client PageFetcher
	opts   Options
}

// New creates a Crawler. Zero option fields take defaults.
func New(client PageFetcher, opts Options) *Crawler {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 10
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 2
	}
	if opts.SnippetMaxChars <= 0 {
		opts.SnippetMaxChars = 1000
	}
	return &Crawler{client: client, opts: opts}
}

type frontierItem struct {
	url   string
	depth int
}

// Crawl walks the site breadth-first starting at rawURL. Links whose path
// suggests a contact page jump the queue. Individual page failures are
// counted but never abort the crawl; an error is returned only when not a
// single page could be fetched.
func (c *Crawler) Crawl(ctx context.Context, rawURL string) (*model.RawWebsiteData, error) {
	startURL := normalizeStartURL(rawURL)
	parsed, err := url.Parse(startURL)
	if err != nil || parsed.Host == "" {
		return nil, eris.Errorf("crawler: invalid start url %q", rawURL)
	}
	baseHost := parsed.Host

	zap.L().Info("starting website crawl",
		zap.String("url", startURL),
		zap.Int("max_pages", c.opts.MaxPages),
	)

	visited := make(map[string]struct{})
	frontier := []frontierItem{{url: startURL, depth: 0}}

	var (
		textParts    []string
		emails       []string
		phones       []string
		contactURLs  []string
		technologies []string
	)
	socialLinks := make(map[string]string)
	pageCount := 0
	errorCount := 0

	for len(frontier) > 0 && pageCount < c.opts.MaxPages {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "crawler: canceled")
		}

		item := frontier[0]
		frontier = frontier[1:]

		if _, ok := visited[item.url]; ok {
			continue
		}
		visited[item.url] = struct{}{}

		page, err := c.client.Get(ctx, item.url)
		if err != nil {
			errorCount++
			zap.L().Warn("page fetch failed",
				zap.String("url", item.url),
				zap.Error(err),
			)
			continue
		}
		if !page.IsHTML() {
			continue
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Body))
		if err != nil {
			errorCount++
			zap.L().Warn("page parse failed",
				zap.String("url", item.url),
				zap.Error(err),
			)
			continue
		}

		text := pageText(doc)
		textParts = append(textParts, text)
		emails = append(emails, extractEmails(text)...)
		phones = append(phones, extractPhones(text)...)
		technologies = append(technologies, extractTechnologies(doc)...)

		if isContactPage(item.url, doc) {
			contactURLs = append(contactURLs, item.url)
		}

		for platform, link := range extractSocialLinks(doc) {
			if _, ok := socialLinks[platform]; !ok {
				socialLinks[platform] = link
			}
		}

		if item.depth < c.opts.MaxDepth {
			for _, link := range internalLinks(doc, startURL, baseHost) {
				if _, ok := visited[link]; ok {
					continue
				}
				next := frontierItem{url: link, depth: item.depth + 1}
				if strings.Contains(strings.ToLower(link), "contact") {
					frontier = append([]frontierItem{next}, frontier...)
				} else {
					frontier = append(frontier, next)
				}
			}
		}

		pageCount++
		zap.L().Debug("page scraped",
			zap.String("url", item.url),
			zap.Int("page", pageCount),
			zap.Int("max_pages", c.opts.MaxPages),
		)
	}

	if pageCount == 0 {
		return nil, eris.Errorf("crawler: no pages could be fetched from %s", startURL)
	}

	emails = dedupe(emails)
	phones = dedupe(phones)
	contactURLs = dedupe(contactURLs)
	technologies = dedupe(technologies)
	combined := strings.Join(textParts, " ")

	data := &model.RawWebsiteData{
		ScrapedURL:     startURL,
		Domain:         baseHost,
		TextSnippet:    summarizeText(combined, c.opts.SnippetMaxChars),
		Emails:         emails,
		Phones:         phones,
		ContactURLs:    contactURLs,
		SocialProfiles: socialLinks,
		Technologies:   technologies,
		PagesCrawled:   pageCount,
		PageErrors:     errorCount,
		RawTextLength:  len(combined),
		ScrapedAt:      time.Now().Unix(),
	}
	if len(contactURLs) > 0 {
		data.ContactFormURL = contactURLs[0]
	}

	zap.L().Info("website crawl complete",
		zap.String("url", startURL),
		zap.Int("pages", pageCount),
		zap.Int("errors", errorCount),
		zap.Int("emails", len(emails)),
		zap.Int("phones", len(phones)),
		zap.Int("contact_pages", len(contactURLs)),
	)
	return data, nil
}

func normalizeStartURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		return "https://" + trimmed
	}
	return trimmed
}

// skippedExtensions are binary or document assets never worth fetching.
var skippedExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".pdf", ".zip", ".doc", ".docx",
}

// internalLinks returns same-host absolute links worth following.
// Fragments are dropped so the same page is not visited per anchor.
func internalLinks(doc *goquery.Document, baseURL, baseHost string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		if abs.Host != baseHost {
			return
		}
		abs.Fragment = ""
		link := abs.String()
		lowered := strings.ToLower(link)
		for _, ext := range skippedExtensions {
			if strings.HasSuffix(lowered, ext) {
				return
			}
		}
		links = append(links, link)
	})
	return links
}
