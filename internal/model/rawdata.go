package model

import (
	"github.com/outreach-mate/outreach-cli/pkg/apollo"
)

// RawWebsiteData is the crawl stage output: everything extracted from a
// breadth-limited crawl of a company domain.
type RawWebsiteData struct {
	ScrapedURL     string            `json:"scraped_url"`
	Domain         string            `json:"domain"`
	TextSnippet    string            `json:"scraped_website_text_snippet"`
	Emails         []string          `json:"emails"`
	Phones         []string          `json:"phones"`
	ContactFormURL string            `json:"contact_form_url,omitempty"`
	ContactURLs    []string          `json:"all_contact_urls,omitempty"`
	SocialProfiles map[string]string `json:"social_profiles,omitempty"`
	Technologies   []string          `json:"technologies_detected,omitempty"`
	PagesCrawled   int               `json:"crawled_page_count"`
	PageErrors     int               `json:"page_error_count"`
	RawTextLength  int               `json:"raw_text_length"`
	ScrapedAt      int64             `json:"scraped_at"`
}

// CompanyPost is one recent post on a LinkedIn company page.
type CompanyPost struct {
	Date       string `json:"date"`
	Content    string `json:"content"`
	Engagement string `json:"engagement,omitempty"`
}

// RawLinkedInCompany is the company-page scrape output. Every field except
// Name and URL is best-effort and may be empty.
type RawLinkedInCompany struct {
	Name          string        `json:"name"`
	URL           string        `json:"url"`
	Industry      string        `json:"industry,omitempty"`
	Website       string        `json:"website,omitempty"`
	CompanySize   string        `json:"company_size,omitempty"`
	Headquarters  string        `json:"headquarters,omitempty"`
	Founded       string        `json:"founded,omitempty"`
	Specialties   []string      `json:"specialties,omitempty"`
	Description   string        `json:"description,omitempty"`
	FollowerCount string        `json:"follower_count,omitempty"`
	EmployeeCount string        `json:"employee_count,omitempty"`
	RecentPosts   []CompanyPost `json:"recent_updates,omitempty"`
}

// ExperienceEntry is one position on a LinkedIn profile.
type ExperienceEntry struct {
	Role      string `json:"role"`
	Company   string `json:"company"`
	DateRange string `json:"date_range,omitempty"`
}

// AccomplishmentGroup is one accomplishment category with its items.
type AccomplishmentGroup struct {
	Category string   `json:"category"`
	Items    []string `json:"items"`
}

// ProfileActivity is one item from a profile's recent-activity feed.
type ProfileActivity struct {
	Date     string `json:"date"`
	Content  string `json:"content"`
	Likes    int    `json:"likes,omitempty"`
	Comments int    `json:"comments,omitempty"`
	URL      string `json:"url,omitempty"`
}

// RawLinkedInProfile is the individual-profile scrape output, keyed by the
// source profile URL. All fields except Name and URL are best-effort.
type RawLinkedInProfile struct {
	Name            string                `json:"name"`
	URL             string                `json:"url"`
	Title           string                `json:"title,omitempty"`
	Company         string                `json:"company,omitempty"`
	Location        string                `json:"location,omitempty"`
	About           string                `json:"about,omitempty"`
	Experience      []ExperienceEntry     `json:"experience,omitempty"`
	Skills          []string              `json:"skills,omitempty"`
	Accomplishments []AccomplishmentGroup `json:"accomplishments,omitempty"`
	RecentActivity  []ProfileActivity     `json:"recent_activity,omitempty"`
	ContactInfo     map[string]string     `json:"contact_info,omitempty"`
}

// RawDataBag accumulates every stage's raw output for one prospect run.
// It is persisted after each stage and consumed by normalization.
type RawDataBag struct {
	CompanyName     string               `json:"company_name"`
	WebsiteURL      string               `json:"website_url,omitempty"`
	LinkedInURL     string               `json:"linkedin_url,omitempty"`
	Website         *RawWebsiteData      `json:"website_data,omitempty"`
	LinkedInCompany *RawLinkedInCompany  `json:"linkedin_data,omitempty"`
	Apollo          *apollo.Enrichment   `json:"apollo_data,omitempty"`
	Profiles        []RawLinkedInProfile `json:"individual_profiles,omitempty"`
}

// HasAnySource reports whether at least one acquisition stage produced data.
func (b *RawDataBag) HasAnySource() bool {
	return b.Website != nil || b.LinkedInCompany != nil ||
		b.Apollo != nil || len(b.Profiles) > 0
}

// StageStatus represents the state of one pipeline stage.
type StageStatus string

const (
	StageStatusComplete StageStatus = "complete"
	StageStatusFailed   StageStatus = "failed"
	StageStatusSkipped  StageStatus = "skipped"
)

// StageResult records one stage's outcome within a prospect run.
type StageResult struct {
	Name     string         `json:"name"`
	Status   StageStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RunResult is the terminal summary of one prospect's pipeline run.
type RunResult struct {
	ProspectID       string        `json:"prospect_id"`
	CompanyName      string        `json:"company_name"`
	Outcome          RunOutcome    `json:"outcome"`
	DataQualityScore int           `json:"data_quality_score"`
	ContactCount     int           `json:"contact_count"`
	Stages           []StageResult `json:"stages"`
	Error            string        `json:"error,omitempty"`
	DurationSeconds  float64       `json:"processing_time_seconds"`
}

// RowResult reports one CSV batch row. Import always yields exactly one
// RowResult per data row, including rows that errored.
type RowResult struct {
	Row    int        `json:"row"`
	Result *RunResult `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
}
