// Package pipeline orchestrates the acquisition, enrichment, and
// normalization stages for a single prospect and for CSV batches.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/outreach-mate/outreach-cli/internal/linkedin"
	"github.com/outreach-mate/outreach-cli/internal/model"
	"github.com/outreach-mate/outreach-cli/internal/resilience"
	"github.com/outreach-mate/outreach-cli/internal/store"
	"github.com/outreach-mate/outreach-cli/pkg/apollo"
)

// Stage names recorded in the store for every run.
const (
	StageWebsiteCrawl     = "website_crawl"
	StageApolloEnrichment = "apollo_enrichment"
	StageLinkedInCompany  = "linkedin_company"
	StageLinkedInProfiles = "linkedin_profiles"
	StageNormalize        = "normalize"
)

// Crawler collects website data starting from a company URL.
type Crawler interface {
	Crawl(ctx context.Context, startURL string) (*model.RawWebsiteData, error)
}

// Normalizer transforms a raw data bag into a canonical record.
type Normalizer interface {
	Normalize(ctx context.Context, bag *model.RawDataBag) (*model.CanonicalRecord, error)
}

// Options tunes per-run pipeline behavior.
type Options struct {
	// MaxProfileScrapes caps individual LinkedIn profile scrapes per prospect.
	MaxProfileScrapes int
}

// DefaultOptions returns the standard pipeline tuning.
func DefaultOptions() Options {
	return Options{MaxProfileScrapes: 5}
}

// Pipeline runs the enrichment stages for one prospect at a time. Any
// collaborator may be nil; its stage is then recorded as skipped.
type Pipeline struct {
	store      store.Store
	crawler    Crawler
	apollo     apollo.Client
	linkedin   linkedin.Source
	normalizer Normalizer
	opts       Options
	breakers   *resilience.ServiceBreakers
}

// New creates a Pipeline. Only the store is required.
func New(st store.Store, crawler Crawler, apolloClient apollo.Client, li linkedin.Source, normalizer Normalizer, opts Options) *Pipeline {
	if opts.MaxProfileScrapes <= 0 {
		opts.MaxProfileScrapes = DefaultOptions().MaxProfileScrapes
	}
	return &Pipeline{
		store:      st,
		crawler:    crawler,
		apollo:     apolloClient,
		linkedin:   li,
		normalizer: normalizer,
		opts:       opts,
		breakers:   resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig()),
	}
}

// Run executes all stages for a single company and returns the run result.
// Stage failures are recorded and the run continues; only the inability to
// create the prospect record is a hard error.
func (p *Pipeline) Run(ctx context.Context, company model.Company) (*model.RunResult, error) {
	log := zap.L().With(zap.String("company", company.Name), zap.String("website", company.WebsiteURL))
	log.Info("pipeline: starting run")
	start := time.Now()

	prospect, err := p.store.CreateProspect(ctx, company)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create prospect")
	}

	result := &model.RunResult{
		ProspectID:  prospect.ID,
		CompanyName: company.Name,
	}

	trackStage := func(name string, fn func() (map[string]any, error)) *model.StageResult {
		stageStart := time.Now()
		metadata, fnErr := fn()
		st := model.StageResult{
			Name:     name,
			Duration: time.Since(stageStart).Milliseconds(),
			Metadata: metadata,
		}
		if fnErr != nil {
			st.Status = model.StageStatusFailed
			st.Error = fnErr.Error()
			log.Warn("pipeline: stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", st.Duration),
				zap.Error(fnErr),
			)
		} else {
			st.Status = model.StageStatusComplete
			log.Info("pipeline: stage complete",
				zap.String("stage", name),
				zap.Int64("duration_ms", st.Duration),
			)
		}
		if recErr := p.store.RecordStage(ctx, prospect.ID, st); recErr != nil {
			log.Warn("pipeline: failed to record stage", zap.String("stage", name), zap.Error(recErr))
		}
		result.Stages = append(result.Stages, st)
		return &st
	}

	skipStage := func(name, reason string) {
		st := model.StageResult{
			Name:     name,
			Status:   model.StageStatusSkipped,
			Metadata: map[string]any{"reason": reason},
		}
		log.Info("pipeline: stage skipped", zap.String("stage", name), zap.String("reason", reason))
		if recErr := p.store.RecordStage(ctx, prospect.ID, st); recErr != nil {
			log.Warn("pipeline: failed to record stage", zap.String("stage", name), zap.Error(recErr))
		}
		result.Stages = append(result.Stages, st)
	}

	bag := &model.RawDataBag{
		CompanyName: company.Name,
		WebsiteURL:  company.WebsiteURL,
		LinkedInURL: company.LinkedInURL,
	}

	saveRaw := func() {
		if saveErr := p.store.SaveRawData(ctx, prospect.ID, bag); saveErr != nil {
			log.Warn("pipeline: failed to persist raw data", zap.Error(saveErr))
		}
	}

	syncContacts := func() {
		if saveErr := p.store.SaveProspect(ctx, prospect); saveErr != nil {
			log.Warn("pipeline: failed to sync contacts", zap.Error(saveErr))
		}
	}

	fail := func(msg string) (*model.RunResult, error) {
		result.Outcome = model.OutcomeError
		result.Error = msg
		result.DurationSeconds = time.Since(start).Seconds()
		// The error status must land even when the run context is canceled.
		statusCtx := context.WithoutCancel(ctx)
		if statusErr := p.store.UpdateProspectStatus(statusCtx, prospect.ID, model.ProspectStatusError); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
		return result, nil
	}

	// Stage 1: website crawl.
	switch {
	case p.crawler == nil:
		skipStage(StageWebsiteCrawl, "crawler not configured")
	case company.WebsiteURL == "":
		skipStage(StageWebsiteCrawl, "no website url")
	default:
		trackStage(StageWebsiteCrawl, func() (map[string]any, error) {
			site, crawlErr := p.crawler.Crawl(ctx, company.WebsiteURL)
			if crawlErr != nil {
				return nil, crawlErr
			}
			bag.Website = site
			saveRaw()
			return map[string]any{
				"pages_crawled": site.PagesCrawled,
				"emails_found":  len(site.Emails),
			}, nil
		})
	}

	if ctx.Err() != nil {
		return fail("run canceled")
	}

	// Stage 2: Apollo enrichment.
	if p.apollo == nil {
		skipStage(StageApolloEnrichment, "apollo not configured")
	} else {
		trackStage(StageApolloEnrichment, func() (map[string]any, error) {
			breaker := p.breakers.Get("apollo")
			enr, apErr := resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) (*apollo.Enrichment, error) {
				enr, enrErr := p.apollo.EnrichCompanyAndContacts(ctx, company.WebsiteURL, company.Name, 0)
				if enrErr != nil && apollo.IsNoContacts(enrErr) {
					// An org with no verified contacts is still useful data
					// and must not trip the breaker.
					return enr, nil
				}
				return enr, enrErr
			})
			if apErr != nil {
				return nil, apErr
			}
			bag.Apollo = enr
			if bag.LinkedInURL == "" && enr.Organization != nil {
				bag.LinkedInURL = enr.Organization.LinkedInURL
			}
			saveRaw()
			contactCount := 0
			if enr != nil {
				contactCount = len(enr.Contacts)
			}
			if contactCount > 0 {
				for _, c := range enr.Contacts {
					prospect.UpsertContact(contactFromApollo(c))
				}
				syncContacts()
			}
			return map[string]any{"contacts_found": contactCount}, nil
		})
	}

	if ctx.Err() != nil {
		return fail("run canceled")
	}

	// Stage 3: LinkedIn company page.
	switch {
	case p.linkedin == nil:
		skipStage(StageLinkedInCompany, "linkedin not configured")
	case bag.LinkedInURL == "":
		skipStage(StageLinkedInCompany, "no company linkedin url")
	default:
		trackStage(StageLinkedInCompany, func() (map[string]any, error) {
			data, liErr := p.linkedin.ScrapeCompany(ctx, bag.LinkedInURL)
			if liErr != nil {
				return nil, liErr
			}
			bag.LinkedInCompany = data
			saveRaw()
			return map[string]any{"recent_posts": len(data.RecentPosts)}, nil
		})
	}

	if ctx.Err() != nil {
		return fail("run canceled")
	}

	// Stage 4: individual LinkedIn profiles for Apollo contacts.
	profileURLs := contactProfileURLs(bag.Apollo, p.opts.MaxProfileScrapes)
	switch {
	case p.linkedin == nil:
		skipStage(StageLinkedInProfiles, "linkedin not configured")
	case len(profileURLs) == 0:
		skipStage(StageLinkedInProfiles, "no contact profile urls")
	default:
		trackStage(StageLinkedInProfiles, func() (map[string]any, error) {
			scraped := 0
			failed := 0
			matched := 0
			for _, u := range profileURLs {
				if ctx.Err() != nil {
					break
				}
				profile, profErr := p.linkedin.ScrapeProfile(ctx, u)
				if profErr != nil {
					failed++
					log.Warn("pipeline: profile scrape failed", zap.String("url", u), zap.Error(profErr))
					continue
				}
				bag.Profiles = append(bag.Profiles, *profile)
				if mergeProfile(prospect, *profile) {
					matched++
				}
				scraped++
			}
			saveRaw()
			if matched > 0 {
				syncContacts()
			}
			if scraped == 0 && failed > 0 {
				return map[string]any{"failed": failed}, eris.Errorf("all %d profile scrapes failed", failed)
			}
			return map[string]any{"scraped": scraped, "failed": failed, "matched": matched}, nil
		})
	}

	if ctx.Err() != nil {
		return fail("run canceled")
	}

	// Stage 5: normalization.
	if p.normalizer == nil {
		skipStage(StageNormalize, "normalizer not configured")
		result.Outcome = model.OutcomePartialData
		result.DurationSeconds = time.Since(start).Seconds()
		return result, nil
	}

	var record *model.CanonicalRecord
	st := trackStage(StageNormalize, func() (map[string]any, error) {
		breaker := p.breakers.Get("gemini")
		rec, normErr := resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) (*model.CanonicalRecord, error) {
			return p.normalizer.Normalize(ctx, bag)
		})
		if normErr != nil {
			return nil, normErr
		}
		record = rec
		return map[string]any{"quality_score": rec.DataQualityScore, "contacts": len(rec.Contacts)}, nil
	})
	if st.Status == model.StageStatusFailed {
		return fail(st.Error)
	}

	applyRecord(prospect, record, bag)
	if saveErr := p.store.SaveProspect(ctx, prospect); saveErr != nil {
		log.Error("pipeline: failed to save prospect", zap.Error(saveErr))
		return fail(saveErr.Error())
	}

	result.Outcome = model.OutcomeReady
	result.DataQualityScore = prospect.DataQualityScore
	result.ContactCount = len(prospect.Contacts)
	result.DurationSeconds = time.Since(start).Seconds()
	log.Info("pipeline: run complete",
		zap.Int("quality_score", result.DataQualityScore),
		zap.Int("contacts", result.ContactCount),
		zap.Float64("duration_s", result.DurationSeconds),
	)
	return result, nil
}

// applyRecord copies the canonical record onto the prospect and marks it
// ready when the quality invariant holds.
func applyRecord(p *model.Prospect, record *model.CanonicalRecord, bag *model.RawDataBag) {
	p.Company = record.Company
	p.Contacts = record.Contacts
	p.CampaignStatus = record.CampaignStatus
	p.DataQualityScore = record.DataQualityScore
	ts := record.EnrichmentTimestamp
	p.EnrichmentTimestamp = &ts

	if bag.Apollo != nil && bag.Apollo.Organization != nil {
		p.Company.ApolloID = bag.Apollo.Organization.ID
	}

	if p.CanMarkReady() {
		p.Status = model.ProspectStatusReady
	} else {
		p.Status = model.ProspectStatusProcessing
	}
}

// contactFromApollo builds the initial contact row for an enrichment hit.
// Normalization later replaces these rows with the canonical contact set.
func contactFromApollo(c apollo.ContactRecord) model.Contact {
	return model.Contact{
		ContactID:      c.ID,
		Name:           c.Name,
		Title:          c.Title,
		EmailPrimary:   c.Email,
		PhoneNumbers:   c.PhoneNumbers,
		SeniorityLevel: c.Seniority,
		Departments:    c.Departments,
		ApolloID:       c.ID,
		SocialProfiles: model.SocialProfiles{LinkedIn: c.LinkedInURL},
	}
}

// mergeProfile folds scraped profile data into the matching contact and
// reports whether a contact matched. Contacts match on the profile's email
// when the scrape surfaced one, otherwise on a case-insensitive name match.
func mergeProfile(p *model.Prospect, profile model.RawLinkedInProfile) bool {
	email := profile.ContactInfo["email"]
	for i := range p.Contacts {
		c := &p.Contacts[i]
		if !matchesProfile(c, email, profile.Name) {
			continue
		}
		if c.Title == "" {
			c.Title = profile.Title
		}
		if c.SocialProfiles.LinkedIn == "" {
			c.SocialProfiles.LinkedIn = profile.URL
		}
		if c.ProfileSummary == "" {
			c.ProfileSummary = profile.About
		}
		if len(c.RecentActivity) == 0 {
			for _, act := range profile.RecentActivity {
				if act.Content != "" {
					c.RecentActivity = append(c.RecentActivity, act.Content)
				}
			}
		}
		return true
	}
	return false
}

func matchesProfile(c *model.Contact, email, name string) bool {
	if email != "" && strings.EqualFold(c.EmailPrimary, email) {
		return true
	}
	return name != "" && strings.EqualFold(c.Name, name)
}

// contactProfileURLs extracts up to max LinkedIn profile URLs from Apollo
// contacts, preserving contact order.
func contactProfileURLs(enr *apollo.Enrichment, max int) []string {
	if enr == nil {
		return nil
	}
	var urls []string
	for _, c := range enr.Contacts {
		if c.LinkedInURL == "" {
			continue
		}
		urls = append(urls, c.LinkedInURL)
		if len(urls) >= max {
			break
		}
	}
	return urls
}
