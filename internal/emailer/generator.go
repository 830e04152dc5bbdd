// Package emailer generates and sends personalized outreach emails for
// enriched prospects.
package emailer

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/outreach-mate/outreach-cli/internal/model"
	"github.com/outreach-mate/outreach-cli/pkg/anthropic"
)

const (
	defaultDraftModel     = "claude-haiku-4-5-20251001"
	defaultDraftMaxTokens = 1024
)

// systemPrompt is shared by every draft in a campaign and cached for an hour.
const systemPrompt = `You are an expert B2B outreach copywriter. You write short, specific,
personalized cold emails that reference real details about the recipient's
company and work. You never use generic openers, never flatter, and never
invent facts that are not in the provided data.

Always respond with ONLY a JSON object of this shape:
{
  "subject": "...",
  "body": "...",
  "personalization_elements": ["detail you referenced", ...]
}

Rules:
- Subject under 60 characters, no clickbait.
- Body under 150 words, plain text, ends with a single soft call to action.
- personalization_elements lists each concrete prospect detail the body uses.`

// draftResponse is the JSON contract returned by the model.
type draftResponse struct {
	Subject                 string   `json:"subject"`
	Body                    string   `json:"body"`
	PersonalizationElements []string `json:"personalization_elements"`
}

// GeneratorOptions tunes draft generation.
type GeneratorOptions struct {
	Model     string
	MaxTokens int64
}

// Generator produces email drafts from enriched prospect records.
type Generator struct {
	llm  anthropic.Client
	opts GeneratorOptions
}

// NewGenerator creates a Generator backed by the given model client.
func NewGenerator(llm anthropic.Client, opts GeneratorOptions) *Generator {
	if opts.Model == "" {
		opts.Model = defaultDraftModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultDraftMaxTokens
	}
	return &Generator{llm: llm, opts: opts}
}

// GenerateCompanyDraft produces a company-level outreach draft.
func (g *Generator) GenerateCompanyDraft(ctx context.Context, p *model.Prospect) (*model.EmailDraft, error) {
	if p.Company.Name == "" {
		return nil, eris.New("emailer: prospect has no company name")
	}
	prompt := companyPrompt(p)
	resp, err := g.generate(ctx, prompt, "company_draft")
	if err != nil {
		return nil, err
	}
	return &model.EmailDraft{
		ProspectID:              p.ID,
		Type:                    model.EmailTypeCompany,
		Subject:                 resp.Subject,
		Body:                    resp.Body,
		PersonalizationElements: resp.PersonalizationElements,
		GeneratedAt:             time.Now().UTC(),
	}, nil
}

// GenerateContactDraft produces an individual outreach draft for one contact.
func (g *Generator) GenerateContactDraft(ctx context.Context, p *model.Prospect, contactID string) (*model.EmailDraft, error) {
	contact := p.ContactByID(contactID)
	if contact == nil {
		return nil, eris.Errorf("emailer: contact not found: %s", contactID)
	}
	prompt := contactPrompt(p, contact)
	resp, err := g.generate(ctx, prompt, "contact_draft")
	if err != nil {
		return nil, err
	}
	return &model.EmailDraft{
		ProspectID:              p.ID,
		ContactID:               contact.ContactID,
		Type:                    model.EmailTypeIndividual,
		Subject:                 resp.Subject,
		Body:                    resp.Body,
		PersonalizationElements: resp.PersonalizationElements,
		GeneratedAt:             time.Now().UTC(),
	}, nil
}

func (g *Generator) generate(ctx context.Context, prompt, phase string) (*draftResponse, error) {
	resp, err := g.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.opts.Model,
		MaxTokens: g.opts.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(systemPrompt),
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "emailer: create message")
	}
	resp.Usage.LogCost(g.opts.Model, phase)

	draft, err := parseDraft(resp.FirstText())
	if err != nil {
		return nil, err
	}
	return draft, nil
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// parseDraft decodes the model's JSON contract, falling back to the first
// JSON object embedded in surrounding prose.
func parseDraft(text string) (*draftResponse, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var draft draftResponse
	if err := json.Unmarshal([]byte(cleaned), &draft); err != nil {
		match := jsonObjectRe.FindString(cleaned)
		if match == "" {
			return nil, eris.Wrap(err, "emailer: parse draft response")
		}
		if err := json.Unmarshal([]byte(match), &draft); err != nil {
			return nil, eris.Wrap(err, "emailer: parse draft response")
		}
	}
	if draft.Subject == "" || draft.Body == "" {
		return nil, eris.New("emailer: draft response missing subject or body")
	}
	return &draft, nil
}

func companyPrompt(p *model.Prospect) string {
	var b strings.Builder
	b.WriteString("Write a cold outreach email to the team at the company below.\n\n")
	writeCompanyContext(&b, &p.Company)
	return b.String()
}

func contactPrompt(p *model.Prospect, c *model.Contact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a cold outreach email to %s", c.Name)
	if c.Title != "" {
		fmt.Fprintf(&b, ", %s", c.Title)
	}
	b.WriteString(" at the company below.\n\n")
	writeCompanyContext(&b, &p.Company)

	b.WriteString("\nRecipient details:\n")
	if c.ProfileSummary != "" {
		fmt.Fprintf(&b, "- Profile: %s\n", c.ProfileSummary)
	}
	if c.CurrentWorkSummary != "" {
		fmt.Fprintf(&b, "- Current work: %s\n", c.CurrentWorkSummary)
	}
	if len(c.RecentActivity) > 0 {
		fmt.Fprintf(&b, "- Recent activity: %s\n", strings.Join(c.RecentActivity, "; "))
	}
	if c.AccomplishmentsSummary != "" {
		fmt.Fprintf(&b, "- Accomplishments: %s\n", c.AccomplishmentsSummary)
	}
	return b.String()
}

func writeCompanyContext(b *strings.Builder, c *model.Company) {
	fmt.Fprintf(b, "Company: %s\n", c.Name)
	if c.Industry != "" {
		fmt.Fprintf(b, "Industry: %s\n", c.Industry)
	}
	if c.MissionSummary != "" {
		fmt.Fprintf(b, "Mission and offerings: %s\n", c.MissionSummary)
	}
	if c.ActivitySummary != "" {
		fmt.Fprintf(b, "Recent activity: %s\n", c.ActivitySummary)
	}
	if len(c.TechnologiesUsed) > 0 {
		fmt.Fprintf(b, "Technologies: %s\n", strings.Join(c.TechnologiesUsed, ", "))
	}
	if c.EmployeeCountRange != "" {
		fmt.Fprintf(b, "Size: %s employees\n", c.EmployeeCountRange)
	}
}

// logDraft is used by callers to report the generated draft without dumping
// the whole body into logs.
func logDraft(d *model.EmailDraft) {
	zap.L().Info("emailer: draft generated",
		zap.String("prospect_id", d.ProspectID),
		zap.String("contact_id", d.ContactID),
		zap.String("type", string(d.Type)),
		zap.String("subject", d.Subject),
		zap.Int("body_chars", len(d.Body)),
	)
}
