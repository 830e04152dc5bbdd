package linkedin

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/outreach-mate/outreach-cli/internal/model"
)

// rawPost mirrors the JSON shape produced by the post extraction script.
type rawPost struct {
	Date       string `json:"date"`
	Content    string `json:"content"`
	Engagement string `json:"engagement"`
}

// companyPostsScript pulls the five most recent updates off the page.
const companyPostsScript = `
	Array.from(document.querySelectorAll(".org-update-card")).slice(0, 5).map(card => ({
		date: (card.querySelector(".org-update-card__date")?.textContent || "").trim(),
		content: (card.querySelector(".org-update-card__text")?.textContent || "").trim(),
		engagement: (card.querySelector(".org-update-card__engagement")?.textContent || "").trim(),
	})).filter(p => p.content !== "")
`

// ScrapeCompany loads a company page and extracts the fields visible to a
// logged-in member. Fields that fail to resolve are left empty rather
// than failing the whole scrape.
func (s *Scraper) ScrapeCompany(ctx context.Context, companyURL string) (*model.RawLinkedInCompany, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLogin(ctx); err != nil {
		return nil, err
	}

	zap.L().Info("scraping linkedin company", zap.String("url", companyURL))
	run := s.runner(ctx)

	if err := run(
		chromedp.Navigate(companyURL),
		randomPause(2*time.Second, 4*time.Second),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return nil, eris.Wrapf(err, "linkedin: open company page %s", companyURL)
	}

	name := evaluateText(ctx, run, ".org-top-card-summary__title")
	if name == "" {
		var title string
		if err := run(chromedp.Title(&title)); err == nil {
			name = nameFromPageTitle(title)
		}
	}
	if name == "" {
		return nil, eris.Errorf("linkedin: could not resolve company name at %s", companyURL)
	}

	if err := run(humanScroll(5)); err != nil {
		zap.L().Debug("company page scroll interrupted", zap.Error(err))
	}

	company := &model.RawLinkedInCompany{
		Name:         name,
		URL:          companyURL,
		Industry:     evaluateText(ctx, run, ".org-top-card-summary-info-list__info-item"),
		CompanySize:  evaluateText(ctx, run, `[data-test-id="about-us__size"]`),
		Headquarters: evaluateText(ctx, run, `[data-test-id="about-us__headquarters"]`),
		Founded:      evaluateText(ctx, run, `[data-test-id="about-us__foundedOn"]`),
		Description:  evaluateText(ctx, run, ".org-about-us-organization-description__text"),
	}

	var website string
	if err := run(chromedp.Evaluate(
		`document.querySelector('[data-test-id="about-us__website"] a')?.href || ""`, &website,
	)); err == nil {
		company.Website = website
	}

	var posts []rawPost
	if err := run(chromedp.Evaluate(companyPostsScript, &posts)); err == nil {
		for _, p := range posts {
			company.RecentPosts = append(company.RecentPosts, model.CompanyPost{
				Date:       p.Date,
				Content:    p.Content,
				Engagement: p.Engagement,
			})
		}
	}

	zap.L().Info("linkedin company scraped",
		zap.String("name", company.Name),
		zap.Int("recent_posts", len(company.RecentPosts)),
	)
	return company, nil
}
