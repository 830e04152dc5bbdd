package linkedin

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/outreach-mate/outreach-cli/internal/model"
)

const experienceScript = `
	Array.from(document.querySelectorAll("#experience ~ div .pvs-list__item--line-separated, section:has(#experience) .pvs-list__item--line-separated")).slice(0, 3).map(item => ({
		role: (item.querySelector(".t-bold span")?.textContent || "").trim(),
		company: (item.querySelector(".t-14.t-normal span")?.textContent || "").trim(),
		date_range: (item.querySelector(".t-14.t-normal.t-black--light span")?.textContent || "").trim(),
	})).filter(e => e.role !== "")
`

const accomplishmentsScript = `
	Array.from(document.querySelectorAll("section.pv-accomplishments-section .pv-accomplishments-block")).map(block => ({
		category: (block.querySelector(".pv-accomplishments-block__title")?.textContent || "").trim(),
		items: Array.from(block.querySelectorAll(".pv-accomplishments-block__list-item")).map(i => i.textContent.trim()),
	})).filter(b => b.category !== "")
`

const activityScript = `
	Array.from(document.querySelectorAll(".pv-recent-activity-detail__feed-item")).slice(0, 5).map(item => ({
		date: (item.querySelector(".feed-shared-actor__sub-description")?.textContent || "").trim(),
		content: (item.querySelector(".feed-shared-update-v2__description")?.textContent || "").trim(),
		social: (item.querySelector('[data-test-id="social-actions-counts"]')?.textContent || "").trim(),
	})).filter(a => a.content !== "")
`

const skillsScript = `
	Array.from(document.querySelectorAll(".pv-skill-category-entity__name")).map(s => s.textContent.trim()).filter(s => s !== "")
`

const contactInfoScript = `
	Object.fromEntries(Array.from(document.querySelectorAll(".artdeco-modal__content .pv-contact-info__ci-container")).map(item => {
		const label = (item.querySelector(".pv-contact-info__header")?.textContent || "").trim().toLowerCase();
		const link = item.querySelector(".pv-contact-info__contact-link");
		const value = link ? (link.textContent.trim() || link.href || "") : "";
		return [label, value];
	}).filter(([label, value]) => label !== "" && value !== ""))
`

type rawExperience struct {
	Role      string `json:"role"`
	Company   string `json:"company"`
	DateRange string `json:"date_range"`
}

type rawAccomplishment struct {
	Category string   `json:"category"`
	Items    []string `json:"items"`
}

type rawActivity struct {
	Date    string `json:"date"`
	Content string `json:"content"`
	Social  string `json:"social"`
}

// ScrapeProfile loads a member profile plus its activity, skills and
// contact-info sub-views. Sections that fail to resolve are skipped.
func (s *Scraper) ScrapeProfile(ctx context.Context, profileURL string) (*model.RawLinkedInProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLogin(ctx); err != nil {
		return nil, err
	}

	baseURL := normalizeProfileURL(profileURL)
	zap.L().Info("scraping linkedin profile", zap.String("url", baseURL))
	run := s.runner(ctx)

	if err := run(
		chromedp.Navigate(baseURL),
		randomPause(2*time.Second, 4*time.Second),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return nil, eris.Wrapf(err, "linkedin: open profile %s", baseURL)
	}

	name := evaluateText(ctx, run, ".pv-text-details__title")
	if name == "" {
		var title string
		if err := run(chromedp.Title(&title)); err == nil {
			name = nameFromPageTitle(title)
		}
	}
	if name == "" {
		return nil, eris.Errorf("linkedin: could not resolve profile name at %s", baseURL)
	}

	if err := run(humanScroll(7)); err != nil {
		zap.L().Debug("profile scroll interrupted", zap.Error(err))
	}

	profile := &model.RawLinkedInProfile{
		Name:     name,
		URL:      baseURL,
		Location: evaluateText(ctx, run, ".pv-text-details__location"),
		About:    evaluateText(ctx, run, "section.pv-about-section p"),
	}

	headline := evaluateText(ctx, run, ".pv-text-details__subtitle")
	if headline != "" {
		profile.Title = headline
		if _, company := splitTitleCompany(headline); company != "" {
			profile.Company = company
		}
	}

	var experiences []rawExperience
	if err := run(chromedp.Evaluate(experienceScript, &experiences)); err == nil {
		for _, e := range experiences {
			profile.Experience = append(profile.Experience, model.ExperienceEntry{
				Role:      e.Role,
				Company:   e.Company,
				DateRange: e.DateRange,
			})
		}
	}

	// Accomplishments render at the bottom of the page.
	if err := run(
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight);`, nil),
		randomPause(time.Second, 2*time.Second),
	); err == nil {
		var accomplishments []rawAccomplishment
		if err := run(chromedp.Evaluate(accomplishmentsScript, &accomplishments)); err == nil {
			for _, a := range accomplishments {
				profile.Accomplishments = append(profile.Accomplishments, model.AccomplishmentGroup{
					Category: a.Category,
					Items:    a.Items,
				})
			}
		}
	}

	s.scrapeProfileActivity(ctx, run, baseURL, profile)
	s.scrapeProfileSkills(ctx, run, baseURL, profile)
	s.scrapeProfileContactInfo(ctx, run, baseURL, profile)

	zap.L().Info("linkedin profile scraped",
		zap.String("name", profile.Name),
		zap.Int("experience", len(profile.Experience)),
		zap.Int("skills", len(profile.Skills)),
		zap.Int("activities", len(profile.RecentActivity)),
	)
	return profile, nil
}

func (s *Scraper) scrapeProfileActivity(ctx context.Context, run func(...chromedp.Action) error, baseURL string, profile *model.RawLinkedInProfile) {
	err := run(
		chromedp.Navigate(baseURL+"/recent-activity/"),
		randomPause(2*time.Second, 4*time.Second),
		humanScroll(3),
	)
	if err != nil {
		zap.L().Warn("linkedin: could not load recent activity", zap.Error(err))
		return
	}

	var activities []rawActivity
	if err := run(chromedp.Evaluate(activityScript, &activities)); err != nil {
		return
	}
	for _, a := range activities {
		profile.RecentActivity = append(profile.RecentActivity, model.ProfileActivity{
			Date:    a.Date,
			Content: a.Content,
			Likes:   parseLikeCount(a.Social),
		})
	}
}

func (s *Scraper) scrapeProfileSkills(ctx context.Context, run func(...chromedp.Action) error, baseURL string, profile *model.RawLinkedInProfile) {
	err := run(
		chromedp.Navigate(baseURL+"/details/skills/"),
		randomPause(2*time.Second, 4*time.Second),
	)
	if err != nil {
		zap.L().Warn("linkedin: could not load skills", zap.Error(err))
		return
	}

	var skills []string
	if err := run(chromedp.Evaluate(skillsScript, &skills)); err == nil {
		profile.Skills = skills
	}
}

func (s *Scraper) scrapeProfileContactInfo(ctx context.Context, run func(...chromedp.Action) error, baseURL string, profile *model.RawLinkedInProfile) {
	err := run(
		chromedp.Navigate(baseURL+"/overlay/contact-info/"),
		randomPause(2*time.Second, 4*time.Second),
	)
	if err != nil {
		zap.L().Warn("linkedin: could not load contact info", zap.Error(err))
		return
	}

	var info map[string]string
	if err := run(chromedp.Evaluate(contactInfoScript, &info)); err == nil && len(info) > 0 {
		profile.ContactInfo = info
	}
}
