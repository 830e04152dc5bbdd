package normalize

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outreach-mate/outreach-cli/internal/model"
	"github.com/outreach-mate/outreach-cli/pkg/apollo"
)

// fakeCompleter returns a canned response and records the prompt.
type fakeCompleter struct {
	response string
	err      error
	prompt   string
}

func (f *fakeCompleter) GenerateJSON(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func sampleBag() *model.RawDataBag {
	return &model.RawDataBag{
		CompanyName: "Acme Inc",
		WebsiteURL:  "https://acme.io",
		Website: &model.RawWebsiteData{
			ScrapedURL:  "https://acme.io",
			Domain:      "acme.io",
			TextSnippet: "Acme builds widgets.",
			Emails:      []string{"sales@acme.io"},
		},
		Apollo: &apollo.Enrichment{
			Organization: &apollo.Organization{ID: "org-1", Name: "Acme Inc"},
			Contacts: []apollo.ContactRecord{
				{ID: "p-1", Name: "Jane Roe", Title: "CEO", Email: "jane@acme.io"},
			},
		},
	}
}

const validResponse = `{
	"company": {
		"name": "Acme Inc",
		"website_url": "https://acme.io",
		"linkedin_url": "https://linkedin.com/company/acme",
		"industry": "Manufacturing"
	},
	"contacts": [
		{"name": "Jane Roe", "title": "CEO", "email_primary": "jane@acme.io"}
	],
	"campaign_status": "Data Ready"
}`

func TestNormalizeHappyPath(t *testing.T) {
	llm := &fakeCompleter{response: validResponse}
	engine := NewEngine(llm, Options{})

	record, err := engine.Normalize(context.Background(), sampleBag())
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "Acme Inc", record.Company.Name)
	require.Len(t, record.Contacts, 1)
	assert.Equal(t, "Jane Roe", record.Contacts[0].Name)
	assert.NotEmpty(t, record.Contacts[0].ContactID)
	assert.Equal(t, "Data Ready", record.CampaignStatus)
	assert.Greater(t, record.DataQualityScore, 0)
	assert.NotZero(t, record.EnrichmentTimestamp)
}

func TestNormalizePromptContainsSources(t *testing.T) {
	llm := &fakeCompleter{response: validResponse}
	engine := NewEngine(llm, Options{})

	_, err := engine.Normalize(context.Background(), sampleBag())
	require.NoError(t, err)

	assert.Contains(t, llm.prompt, "## WEBSITE DATA:")
	assert.Contains(t, llm.prompt, "## APOLLO.IO DATA:")
	assert.NotContains(t, llm.prompt, "## LINKEDIN COMPANY DATA:")
	assert.Contains(t, llm.prompt, "jane@acme.io")
	assert.Contains(t, llm.prompt, "RESPOND WITH ONLY THE JSON OBJECT")
}

func TestNormalizeStripsCodeFences(t *testing.T) {
	llm := &fakeCompleter{response: "```json\n" + validResponse + "\n```"}
	engine := NewEngine(llm, Options{})

	record, err := engine.Normalize(context.Background(), sampleBag())
	require.NoError(t, err)
	assert.Equal(t, "Acme Inc", record.Company.Name)
}

func TestNormalizeDefaultsCampaignStatus(t *testing.T) {
	llm := &fakeCompleter{response: `{
		"company": {"name": "Acme", "website_url": "https://acme.io", "industry": "Mfg"},
		"contacts": [{"name": "Jane", "email_primary": "jane@acme.io"}]
	}`}
	engine := NewEngine(llm, Options{})

	record, err := engine.Normalize(context.Background(), sampleBag())
	require.NoError(t, err)
	assert.Equal(t, "Data Ready", record.CampaignStatus)
}

func TestNormalizeEmptyBag(t *testing.T) {
	engine := NewEngine(&fakeCompleter{}, Options{})
	_, err := engine.Normalize(context.Background(), &model.RawDataBag{CompanyName: "Acme"})
	assert.Error(t, err)

	_, err = engine.Normalize(context.Background(), nil)
	assert.Error(t, err)
}

func TestNormalizeModelError(t *testing.T) {
	llm := &fakeCompleter{err: errors.New("quota exceeded")}
	engine := NewEngine(llm, Options{})
	_, err := engine.Normalize(context.Background(), sampleBag())
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestNormalizeValidationFailures(t *testing.T) {
	tests := []struct {
		name     string
		response string
		reason   string
	}{
		{"not json", "this is not json", "not a JSON object"},
		{"missing company", `{"contacts": []}`, "missing required field: company"},
		{"missing contacts", `{"company": {"name":"A","website_url":"u","industry":"i"}}`, "missing required field: contacts"},
		{"company not object", `{"company": "Acme", "contacts": []}`, "company field must be an object"},
		{
			"missing company industry",
			`{"company": {"name":"A","website_url":"u"}, "contacts": [{"name":"J","email_primary":"e"}]}`,
			"missing required company field: industry",
		},
		{
			"contacts not a list",
			`{"company": {"name":"A","website_url":"u","industry":"i"}, "contacts": {}}`,
			"contacts field must be a list",
		},
		{
			"empty contacts",
			`{"company": {"name":"A","website_url":"u","industry":"i"}, "contacts": []}`,
			"contacts list cannot be empty",
		},
		{
			"contact missing email",
			`{"company": {"name":"A","website_url":"u","industry":"i"}, "contacts": [{"name":"J"}]}`,
			"missing required contact field: email_primary",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(&fakeCompleter{response: tt.response}, Options{})
			_, err := engine.Normalize(context.Background(), sampleBag())
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Reason, tt.reason)
			assert.NotEmpty(t, verr.Raw)
		})
	}
}

func TestNormalizeAllowZeroContacts(t *testing.T) {
	response := `{"company": {"name":"Acme Inc Widgets","website_url":"https://acme.io","industry":"Manufacturing"}, "contacts": []}`

	strict := NewEngine(&fakeCompleter{response: response}, Options{})
	_, err := strict.Normalize(context.Background(), sampleBag())
	assert.Error(t, err)

	lenient := NewEngine(&fakeCompleter{response: response}, Options{AllowZeroContacts: true})
	record, err := lenient.Normalize(context.Background(), sampleBag())
	require.NoError(t, err)
	assert.Empty(t, record.Contacts)
	assert.Equal(t, QualityScore(record.Company, nil), record.DataQualityScore)
}
