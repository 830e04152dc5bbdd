package model

import (
	"time"
)

// ProspectStatus represents the lifecycle state of a prospect.
type ProspectStatus string

const (
	ProspectStatusProcessing ProspectStatus = "processing"
	ProspectStatusReady      ProspectStatus = "ready"
	ProspectStatusContacted  ProspectStatus = "contacted"
	ProspectStatusReplied    ProspectStatus = "replied"
	ProspectStatusError      ProspectStatus = "error"
)

// RunOutcome is the terminal result of one pipeline run for a prospect.
type RunOutcome string

const (
	OutcomeReady       RunOutcome = "ready"
	OutcomePartialData RunOutcome = "partial_data"
	OutcomeError       RunOutcome = "error"
)

// SocialProfiles holds per-platform profile URLs for a contact.
type SocialProfiles struct {
	LinkedIn     string   `json:"linkedin,omitempty"`
	Twitter      string   `json:"twitter,omitempty"`
	YouTube      string   `json:"youtube,omitempty"`
	TikTok       string   `json:"tiktok,omitempty"`
	Instagram    string   `json:"instagram,omitempty"`
	Facebook     string   `json:"facebook,omitempty"`
	OtherHandles []string `json:"other_social_media_handles,omitempty"`
}

// IsEmpty reports whether no social profile is set.
func (s SocialProfiles) IsEmpty() bool {
	return s.LinkedIn == "" && s.Twitter == "" && s.YouTube == "" &&
		s.TikTok == "" && s.Instagram == "" && s.Facebook == "" &&
		len(s.OtherHandles) == 0
}

// Company is the canonical company block of a prospect. Field names follow
// the normalization wire schema.
type Company struct {
	Name               string   `json:"name"`
	WebsiteURL         string   `json:"website_url"`
	LinkedInURL        string   `json:"linkedin_url"`
	Industry           string   `json:"industry"`
	RevenueRange       string   `json:"revenue_range"`
	EmployeeCountRange string   `json:"employee_count_range"`
	TechnologiesUsed   []string `json:"technologies_used"`
	MissionSummary     string   `json:"mission_vision_offerings_summary"`
	ActivitySummary    string   `json:"recent_company_activity_summary"`
	ContactFormURL     string   `json:"contact_form_url"`
	Description        string   `json:"description,omitempty"`
	FoundedYear        int      `json:"founded_year,omitempty"`
	Headquarters       string   `json:"headquarters,omitempty"`
	ApolloID           string   `json:"apollo_id,omitempty"`
}

// Contact is one decision-maker at a prospect company. Owned by exactly one
// Prospect; email drafts and logs reference it by ContactID.
type Contact struct {
	ContactID              string         `json:"contact_id"`
	Name                   string         `json:"name"`
	Title                  string         `json:"title"`
	EmailPrimary           string         `json:"email_primary"`
	EmailOtherBusiness     []string       `json:"email_other_business,omitempty"`
	EmailPersonalStaff     []string       `json:"email_personal_staff,omitempty"`
	EmailExecutive         []string       `json:"email_executive,omitempty"`
	PhoneNumbers           []string       `json:"phone_numbers,omitempty"`
	SocialProfiles         SocialProfiles `json:"social_profiles"`
	ProfileSummary         string         `json:"scraped_linkedin_profile_summary"`
	RecentActivity         []string       `json:"scraped_linkedin_recent_activity,omitempty"`
	AccomplishmentsSummary string         `json:"scraped_accomplishments_summary,omitempty"`
	PastWorkSummary        string         `json:"scraped_past_work_summary"`
	CurrentWorkSummary     string         `json:"scraped_current_work_summary"`
	ContributionsSummary   string         `json:"scraped_online_contributions_summary,omitempty"`
	SeniorityLevel         string         `json:"seniority_level,omitempty"`
	Departments            []string       `json:"departments,omitempty"`
	ApolloID               string         `json:"apollo_id,omitempty"`
}

// Prospect is the aggregate root: a company plus its discovered contacts.
// Created once per CSV row, mutated by every pipeline stage, never deleted
// automatically.
type Prospect struct {
	ID                  string         `json:"id"`
	UserID              string         `json:"user_id,omitempty"`
	Status              ProspectStatus `json:"status"`
	Company             Company        `json:"company"`
	Contacts            []Contact      `json:"contacts"`
	CampaignStatus      string         `json:"campaign_status"`
	DataQualityScore    int            `json:"data_quality_score"`
	EnrichmentTimestamp *int64         `json:"enrichment_timestamp,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// UpsertContact adds c to the prospect, replacing any existing contact with
// the same ContactID. Contact order is preserved for existing entries.
func (p *Prospect) UpsertContact(c Contact) {
	for i, existing := range p.Contacts {
		if existing.ContactID == c.ContactID {
			p.Contacts[i] = c
			return
		}
	}
	p.Contacts = append(p.Contacts, c)
}

// ContactByID returns the contact with the given id, or nil.
func (p *Prospect) ContactByID(id string) *Contact {
	for i := range p.Contacts {
		if p.Contacts[i].ContactID == id {
			return &p.Contacts[i]
		}
	}
	return nil
}

// CanMarkReady reports whether the prospect satisfies the Ready invariant:
// a quality score is set and the company has a name.
func (p *Prospect) CanMarkReady() bool {
	return p.DataQualityScore > 0 && p.Company.Name != ""
}

// CanonicalRecord is the schema-validated output of the normalization stage.
// This is the wire contract between normalization and storage.
type CanonicalRecord struct {
	ID                  string    `json:"id"`
	Company             Company   `json:"company"`
	Contacts            []Contact `json:"contacts"`
	CampaignStatus      string    `json:"campaign_status"`
	DataQualityScore    int       `json:"data_quality_score"`
	EnrichmentTimestamp int64     `json:"enrichment_timestamp"`
}

// EmailType distinguishes company-level from individual outreach.
type EmailType string

const (
	EmailTypeCompany    EmailType = "company"
	EmailTypeIndividual EmailType = "individual"
)

// EmailProvider is the sending transport.
type EmailProvider string

const (
	ProviderGmail   EmailProvider = "gmail"
	ProviderOutlook EmailProvider = "outlook"
)

// ValidProvider reports whether p is a supported sending provider.
func ValidProvider(p EmailProvider) bool {
	return p == ProviderGmail || p == ProviderOutlook
}

// EmailDraft is a generated outreach email. One draft exists per
// (prospect, company) and per (prospect, contact); regeneration overwrites.
type EmailDraft struct {
	ProspectID              string    `json:"prospect_id"`
	ContactID               string    `json:"contact_id,omitempty"` // empty for company drafts
	Type                    EmailType `json:"type"`
	Subject                 string    `json:"subject"`
	Body                    string    `json:"body"`
	PersonalizationElements []string  `json:"personalization_elements,omitempty"`
	GeneratedAt             time.Time `json:"generated_at"`
}

// EmailLogStatus is the outcome of a send attempt.
type EmailLogStatus string

const (
	EmailLogSent   EmailLogStatus = "sent"
	EmailLogFailed EmailLogStatus = "failed"
)

// EmailLogEntry is an append-only record of one send attempt.
type EmailLogEntry struct {
	ID         string         `json:"id"`
	ProspectID string         `json:"prospect_id"`
	ContactID  string         `json:"contact_id,omitempty"`
	Type       EmailType      `json:"type"`
	Status     EmailLogStatus `json:"status"`
	Provider   EmailProvider  `json:"provider"`
	MessageID  string         `json:"message_id,omitempty"`
	Error      string         `json:"error,omitempty"`
	SentAt     time.Time      `json:"sent_at"`
}
