package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outreach-mate/outreach-cli/internal/linkedin"
	"github.com/outreach-mate/outreach-cli/internal/model"
	"github.com/outreach-mate/outreach-cli/internal/store"
	"github.com/outreach-mate/outreach-cli/pkg/apollo"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

type mockCrawler struct {
	site  *model.RawWebsiteData
	err   error
	calls int
}

func (m *mockCrawler) Crawl(ctx context.Context, startURL string) (*model.RawWebsiteData, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.site != nil {
		return m.site, nil
	}
	return &model.RawWebsiteData{ScrapedURL: startURL, PagesCrawled: 1}, nil
}

// cancellingCrawler cancels the run context after a successful crawl.
type cancellingCrawler struct {
	cancel context.CancelFunc
}

func (c *cancellingCrawler) Crawl(ctx context.Context, startURL string) (*model.RawWebsiteData, error) {
	defer c.cancel()
	return &model.RawWebsiteData{ScrapedURL: startURL, PagesCrawled: 1}, nil
}

type mockApollo struct {
	enrichment *apollo.Enrichment
	err        error
	calls      int
}

func (m *mockApollo) EnrichOrganization(ctx context.Context, req apollo.EnrichRequest) (*apollo.Organization, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.enrichment.Organization, nil
}

func (m *mockApollo) SearchContacts(ctx context.Context, req apollo.ContactSearchRequest) ([]apollo.ContactRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.enrichment.Contacts, nil
}

func (m *mockApollo) EnrichCompanyAndContacts(ctx context.Context, domain, name string, maxContacts int) (*apollo.Enrichment, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.enrichment, nil
}

type mockLinkedIn struct {
	company      *model.RawLinkedInCompany
	profile      *model.RawLinkedInProfile
	companyErr   error
	profileErr   error
	profileCalls int
}

func (m *mockLinkedIn) ScrapeCompany(ctx context.Context, url string) (*model.RawLinkedInCompany, error) {
	if m.companyErr != nil {
		return nil, m.companyErr
	}
	if m.company != nil {
		return m.company, nil
	}
	return &model.RawLinkedInCompany{Name: "Acme", URL: url}, nil
}

func (m *mockLinkedIn) ScrapeProfile(ctx context.Context, url string) (*model.RawLinkedInProfile, error) {
	m.profileCalls++
	if m.profileErr != nil {
		return nil, m.profileErr
	}
	if m.profile != nil {
		p := *m.profile
		p.URL = url
		return &p, nil
	}
	return &model.RawLinkedInProfile{Name: "Jane Roe", URL: url}, nil
}

func (m *mockLinkedIn) Close() {}

type mockNormalizer struct {
	record *model.CanonicalRecord
	err    error
	gotBag *model.RawDataBag
}

func (m *mockNormalizer) Normalize(ctx context.Context, bag *model.RawDataBag) (*model.CanonicalRecord, error) {
	m.gotBag = bag
	if m.err != nil {
		return nil, m.err
	}
	return m.record, nil
}

var (
	_ Crawler         = (*mockCrawler)(nil)
	_ apollo.Client   = (*mockApollo)(nil)
	_ linkedin.Source = (*mockLinkedIn)(nil)
	_ Normalizer      = (*mockNormalizer)(nil)
)

func sampleEnrichment() *apollo.Enrichment {
	return &apollo.Enrichment{
		Organization: &apollo.Organization{
			ID:          "org-1",
			Name:        "Acme Inc",
			LinkedInURL: "https://linkedin.com/company/acme",
		},
		Contacts: []apollo.ContactRecord{
			{ID: "p-1", Name: "Jane Roe", Title: "CEO", Email: "jane@acme.io", LinkedInURL: "https://linkedin.com/in/janeroe"},
			{ID: "p-2", Name: "John Doe", Title: "VP Sales", Email: "john@acme.io"},
		},
	}
}

func sampleRecord() *model.CanonicalRecord {
	return &model.CanonicalRecord{
		Company: model.Company{
			Name:       "Acme Inc",
			WebsiteURL: "https://acme.io",
			Industry:   "Manufacturing",
		},
		Contacts: []model.Contact{
			{ContactID: "c-1", Name: "Jane Roe", Title: "CEO", EmailPrimary: "jane@acme.io"},
		},
		CampaignStatus:      "Data Ready",
		DataQualityScore:    72,
		EnrichmentTimestamp: 1700000000,
	}
}
