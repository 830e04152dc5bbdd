// Package normalize turns the heterogeneous raw scrape bag into one
// canonical prospect record via an LLM, then validates and scores it.
package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/outreach-mate/outreach-cli/internal/model"
	"github.com/outreach-mate/outreach-cli/pkg/gemini"
)

// Completer produces a JSON completion for a prompt.
type Completer interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// ValidationError means the model's output failed schema validation. Raw
// carries the offending response for debugging.
type ValidationError struct {
	Reason string
	Raw    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("normalize: invalid model output: %s", e.Reason)
}

// Options configures the engine.
type Options struct {
	// AllowZeroContacts accepts records whose contact list is empty.
	// Off by default: a prospect without reachable contacts is not
	// actionable.
	AllowZeroContacts bool
}

// Engine drives the transformation.
type Engine struct {
	llm  Completer
	opts Options
}

// NewEngine creates an Engine backed by the given completer.
func NewEngine(llm Completer, opts Options) *Engine {
	return &Engine{llm: llm, opts: opts}
}

// payload is the wire shape the model is asked to produce.
type payload struct {
	Company        model.Company   `json:"company"`
	Contacts       []model.Contact `json:"contacts"`
	CampaignStatus string          `json:"campaign_status"`
}

// Normalize prompts the model with every raw source in bag and returns
// the validated canonical record with its quality score.
func (e *Engine) Normalize(ctx context.Context, bag *model.RawDataBag) (*model.CanonicalRecord, error) {
	if bag == nil || !bag.HasAnySource() {
		return nil, eris.New("normalize: no raw data to transform")
	}

	prompt, err := buildPrompt(bag)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("normalizing raw data",
		zap.String("company", bag.CompanyName),
		zap.Int("prompt_chars", len(prompt)),
	)

	raw, err := e.llm.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, eris.Wrap(err, "normalize: model call")
	}
	cleaned := gemini.CleanJSONBlock(raw)

	if err := e.validate(cleaned); err != nil {
		return nil, err
	}

	var p payload
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		return nil, &ValidationError{Reason: "response is not decodable JSON: " + err.Error(), Raw: raw}
	}

	if p.CampaignStatus == "" {
		p.CampaignStatus = "Data Ready"
	}
	for i := range p.Contacts {
		if p.Contacts[i].ContactID == "" {
			p.Contacts[i].ContactID = uuid.NewString()
		}
	}

	record := &model.CanonicalRecord{
		ID:                  uuid.NewString(),
		Company:             p.Company,
		Contacts:            p.Contacts,
		CampaignStatus:      p.CampaignStatus,
		DataQualityScore:    QualityScore(p.Company, p.Contacts),
		EnrichmentTimestamp: time.Now().Unix(),
	}

	zap.L().Info("normalization complete",
		zap.String("company", record.Company.Name),
		zap.Int("contacts", len(record.Contacts)),
		zap.Int("quality_score", record.DataQualityScore),
	)
	return record, nil
}

// validate enforces the structural contract on the model output: company
// and contacts keys must exist, the company needs name, website_url and
// industry, and every contact needs name and email_primary.
func (e *Engine) validate(cleaned string) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &top); err != nil {
		return &ValidationError{Reason: "response is not a JSON object: " + err.Error(), Raw: cleaned}
	}

	companyRaw, ok := top["company"]
	if !ok {
		return &ValidationError{Reason: "missing required field: company", Raw: cleaned}
	}
	contactsRaw, ok := top["contacts"]
	if !ok {
		return &ValidationError{Reason: "missing required field: contacts", Raw: cleaned}
	}

	var company map[string]json.RawMessage
	if err := json.Unmarshal(companyRaw, &company); err != nil {
		return &ValidationError{Reason: "company field must be an object", Raw: cleaned}
	}
	for _, field := range []string{"name", "website_url", "industry"} {
		if _, ok := company[field]; !ok {
			return &ValidationError{Reason: "missing required company field: " + field, Raw: cleaned}
		}
	}

	var contacts []map[string]json.RawMessage
	if err := json.Unmarshal(contactsRaw, &contacts); err != nil {
		return &ValidationError{Reason: "contacts field must be a list", Raw: cleaned}
	}
	if len(contacts) == 0 && !e.opts.AllowZeroContacts {
		return &ValidationError{Reason: "contacts list cannot be empty", Raw: cleaned}
	}
	for _, contact := range contacts {
		for _, field := range []string{"name", "email_primary"} {
			if _, ok := contact[field]; !ok {
				return &ValidationError{Reason: "missing required contact field: " + field, Raw: cleaned}
			}
		}
	}
	return nil
}

// buildPrompt assembles the per-source sections plus the transformation
// instructions and target schema.
func buildPrompt(bag *model.RawDataBag) (string, error) {
	var sections []string

	appendSection := func(header string, v any) error {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return eris.Wrapf(err, "normalize: encode %s section", header)
		}
		sections = append(sections, fmt.Sprintf("## %s:\n%s", header, data))
		return nil
	}

	if bag.Website != nil {
		if err := appendSection("WEBSITE DATA", bag.Website); err != nil {
			return "", err
		}
	}
	if bag.LinkedInCompany != nil {
		if err := appendSection("LINKEDIN COMPANY DATA", bag.LinkedInCompany); err != nil {
			return "", err
		}
	}
	if bag.Apollo != nil {
		if err := appendSection("APOLLO.IO DATA", bag.Apollo); err != nil {
			return "", err
		}
	}
	if len(bag.Profiles) > 0 {
		if err := appendSection("INDIVIDUAL LINKEDIN PROFILES", bag.Profiles); err != nil {
			return "", err
		}
	}

	return fmt.Sprintf(transformationPrompt, strings.Join(sections, "\n\n")), nil
}

const transformationPrompt = `CRITICAL DATA TRANSFORMATION TASK:

Transform the following raw, heterogeneous data into a precise, structured JSON format suitable for database storage and AI email generation.

INPUT DATA:
%s

OUTPUT REQUIREMENTS:
1. Produce a single JSON object with the exact schema below
2. Clean and normalize all data fields
3. Extract meaningful insights and summaries
4. Handle missing data gracefully with null values
5. Ensure all URLs are properly formatted
6. Synthesize professional summaries from multiple data sources

REQUIRED JSON SCHEMA:
{
    "company": {
        "name": "string",
        "website_url": "string",
        "linkedin_url": "string",
        "industry": "string",
        "revenue_range": "string",
        "employee_count_range": "string",
        "technologies_used": ["array of strings"],
        "mission_vision_offerings_summary": "string (200-300 words)",
        "recent_company_activity_summary": "string (100-200 words)",
        "contact_form_url": "string or null",
        "description": "string or null",
        "founded_year": "number or null",
        "headquarters": "string or null"
    },
    "contacts": [
        {
            "name": "string",
            "title": "string",
            "email_primary": "string",
            "email_other_business": ["array of strings"],
            "email_personal_staff": ["array of strings"],
            "email_executive": ["array of strings"],
            "phone_numbers": ["array of strings"],
            "social_profiles": {
                "linkedin": "string or null",
                "twitter": "string or null",
                "youtube": "string or null",
                "tiktok": "string or null",
                "instagram": "string or null",
                "facebook": "string or null",
                "other_social_media_handles": ["array of strings"]
            },
            "scraped_linkedin_profile_summary": "string (100-150 words)",
            "scraped_linkedin_recent_activity": ["array of strings"],
            "scraped_accomplishments_summary": "string or null",
            "scraped_past_work_summary": "string",
            "scraped_current_work_summary": "string",
            "scraped_online_contributions_summary": "string or null"
        }
    ],
    "campaign_status": "string (Data Ready/Processing/Error)"
}

IMPORTANT INSTRUCTIONS:
- Use the Apollo.io data as the primary source for contact information
- Enhance contact profiles with LinkedIn scraping data
- Create comprehensive summaries that combine multiple data sources
- Ensure all email addresses are properly formatted
- Set campaign_status to "Data Ready" if all required fields are populated

RESPOND WITH ONLY THE JSON OBJECT - NO ADDITIONAL TEXT OR FORMATTING.`
