package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outreach-mate/outreach-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testCompany() model.Company {
	return model.Company{
		Name:       "Acme Manufacturing",
		WebsiteURL: "https://acme.io",
		Industry:   "Industrial Automation",
	}
}

// --- Prospects ---

func TestSQLite_CreateAndGetProspect(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateProspect(ctx, testCompany())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.ProspectStatusProcessing, created.Status)

	got, err := st.GetProspect(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Acme Manufacturing", got.Company.Name)
	assert.Empty(t, got.Contacts)
	assert.Nil(t, got.EnrichmentTimestamp)
}

func TestSQLite_GetProspect_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetProspect(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_BulkCreateProspects(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	companies := []model.Company{
		{Name: "Acme Manufacturing", WebsiteURL: "https://acme.io"},
		{Name: "Globex", WebsiteURL: "https://globex.example"},
		{Name: "Initech"},
	}
	prospects, err := st.BulkCreateProspects(ctx, companies)
	require.NoError(t, err)
	require.Len(t, prospects, 3)

	for i, p := range prospects {
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, model.ProspectStatusProcessing, p.Status)

		got, err := st.GetProspect(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, companies[i].Name, got.Company.Name)
		assert.Empty(t, got.Contacts)
	}

	listed, err := st.ListProspects(ctx, ProspectFilter{})
	require.NoError(t, err)
	assert.Len(t, listed, 3)
}

func TestSQLite_SaveProspect_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p, err := st.CreateProspect(ctx, testCompany())
	require.NoError(t, err)

	enriched := time.Now().Unix()
	p.Status = model.ProspectStatusReady
	p.CampaignStatus = "Data Ready"
	p.DataQualityScore = 82
	p.EnrichmentTimestamp = &enriched
	p.Company.LinkedInURL = "https://linkedin.com/company/acme"
	p.Contacts = []model.Contact{
		{ContactID: "c-1", Name: "Jane Roe", Title: "CEO", EmailPrimary: "jane@acme.io"},
		{ContactID: "c-2", Name: "John Doe", Title: "VP Sales", EmailPrimary: "john@acme.io"},
	}
	require.NoError(t, st.SaveProspect(ctx, p))

	got, err := st.GetProspect(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProspectStatusReady, got.Status)
	assert.Equal(t, "Data Ready", got.CampaignStatus)
	assert.Equal(t, 82, got.DataQualityScore)
	require.NotNil(t, got.EnrichmentTimestamp)
	assert.Equal(t, enriched, *got.EnrichmentTimestamp)
	require.Len(t, got.Contacts, 2)
	assert.Equal(t, "Jane Roe", got.Contacts[0].Name)
	assert.Equal(t, "https://linkedin.com/company/acme", got.Company.LinkedInURL)
}

func TestSQLite_SaveProspect_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.SaveProspect(context.Background(), &model.Prospect{ID: "ghost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_UpdateProspectStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p, err := st.CreateProspect(ctx, testCompany())
	require.NoError(t, err)

	require.NoError(t, st.UpdateProspectStatus(ctx, p.ID, model.ProspectStatusError))

	got, err := st.GetProspect(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProspectStatusError, got.Status)
}

func TestSQLite_ListProspects_FilterByStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateProspect(ctx, model.Company{Name: "Alpha"})
	require.NoError(t, err)
	_, err = st.CreateProspect(ctx, model.Company{Name: "Beta"})
	require.NoError(t, err)
	require.NoError(t, st.UpdateProspectStatus(ctx, a.ID, model.ProspectStatusReady))

	ready, err := st.ListProspects(ctx, ProspectFilter{Status: model.ProspectStatusReady})
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, "Alpha", ready[0].Company.Name)

	all, err := st.ListProspects(ctx, ProspectFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLite_ListProspects_FilterByCompanyName(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.CreateProspect(ctx, model.Company{Name: "Alpha"})
	require.NoError(t, err)
	_, err = st.CreateProspect(ctx, model.Company{Name: "Beta"})
	require.NoError(t, err)

	got, err := st.ListProspects(ctx, ProspectFilter{CompanyName: "Beta"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Beta", got[0].Company.Name)
}

func TestSQLite_ListProspects_Limit(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := st.CreateProspect(ctx, model.Company{Name: "Co"})
		require.NoError(t, err)
	}

	got, err := st.ListProspects(ctx, ProspectFilter{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

// --- Raw data ---

func TestSQLite_RawData_SaveAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p, err := st.CreateProspect(ctx, testCompany())
	require.NoError(t, err)

	bag := &model.RawDataBag{
		CompanyName: "Acme Manufacturing",
		Website: &model.RawWebsiteData{
			Domain: "acme.io",
			Emails: []string{"sales@acme.io"},
		},
	}
	require.NoError(t, st.SaveRawData(ctx, p.ID, bag))

	got, err := st.GetRawData(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Website)
	assert.Equal(t, []string{"sales@acme.io"}, got.Website.Emails)
}

func TestSQLite_RawData_UpsertOverwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p, err := st.CreateProspect(ctx, testCompany())
	require.NoError(t, err)

	require.NoError(t, st.SaveRawData(ctx, p.ID, &model.RawDataBag{CompanyName: "First"}))
	require.NoError(t, st.SaveRawData(ctx, p.ID, &model.RawDataBag{CompanyName: "Second"}))

	got, err := st.GetRawData(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Second", got.CompanyName)
}

func TestSQLite_RawData_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetRawData(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// --- Stage results ---

func TestSQLite_Stages_RecordAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p, err := st.CreateProspect(ctx, testCompany())
	require.NoError(t, err)

	require.NoError(t, st.RecordStage(ctx, p.ID, model.StageResult{
		Name:     "website_crawl",
		Status:   model.StageStatusComplete,
		Duration: 1200,
		Metadata: map[string]any{"pages": float64(4)},
	}))
	require.NoError(t, st.RecordStage(ctx, p.ID, model.StageResult{
		Name:   "apollo_enrichment",
		Status: model.StageStatusFailed,
		Error:  "no organization found",
	}))

	stages, err := st.ListStages(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, "website_crawl", stages[0].Name)
	assert.Equal(t, model.StageStatusComplete, stages[0].Status)
	assert.Equal(t, float64(4), stages[0].Metadata["pages"])
	assert.Equal(t, "no organization found", stages[1].Error)
	assert.Nil(t, stages[1].Metadata)
}

// --- Email drafts ---

func TestSQLite_EmailDraft_SaveAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p, err := st.CreateProspect(ctx, testCompany())
	require.NoError(t, err)

	draft := &model.EmailDraft{
		ProspectID:              p.ID,
		ContactID:               "c-1",
		Type:                    model.EmailTypeIndividual,
		Subject:                 "Quick question about your automation stack",
		Body:                    "Hi Jane,\n\nSaw your recent post...",
		PersonalizationElements: []string{"recent post", "industry"},
		GeneratedAt:             time.Now().UTC(),
	}
	require.NoError(t, st.SaveEmailDraft(ctx, draft))

	got, err := st.GetEmailDraft(ctx, p.ID, "c-1", model.EmailTypeIndividual)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, draft.Subject, got.Subject)
	assert.Equal(t, []string{"recent post", "industry"}, got.PersonalizationElements)
}

func TestSQLite_EmailDraft_RegenerationOverwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p, err := st.CreateProspect(ctx, testCompany())
	require.NoError(t, err)

	first := &model.EmailDraft{
		ProspectID: p.ID, Type: model.EmailTypeCompany,
		Subject: "v1", Body: "first", GeneratedAt: time.Now().UTC(),
	}
	require.NoError(t, st.SaveEmailDraft(ctx, first))

	second := &model.EmailDraft{
		ProspectID: p.ID, Type: model.EmailTypeCompany,
		Subject: "v2", Body: "second", GeneratedAt: time.Now().UTC(),
	}
	require.NoError(t, st.SaveEmailDraft(ctx, second))

	drafts, err := st.ListEmailDrafts(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "v2", drafts[0].Subject)
}

func TestSQLite_EmailDrafts_BulkSave(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p, err := st.CreateProspect(ctx, testCompany())
	require.NoError(t, err)

	now := time.Now().UTC()
	drafts := []*model.EmailDraft{
		{ProspectID: p.ID, Type: model.EmailTypeCompany, Subject: "company", Body: "b", GeneratedAt: now},
		{ProspectID: p.ID, ContactID: "c-1", Type: model.EmailTypeIndividual, Subject: "jane", Body: "b", GeneratedAt: now},
		{ProspectID: p.ID, ContactID: "c-2", Type: model.EmailTypeIndividual, Subject: "john", Body: "b", GeneratedAt: now},
	}
	require.NoError(t, st.SaveEmailDrafts(ctx, drafts))

	stored, err := st.ListEmailDrafts(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	// A second batch overwrites in place.
	drafts[1].Subject = "jane v2"
	require.NoError(t, st.SaveEmailDrafts(ctx, drafts))

	got, err := st.GetEmailDraft(ctx, p.ID, "c-1", model.EmailTypeIndividual)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "jane v2", got.Subject)

	require.NoError(t, st.SaveEmailDrafts(ctx, nil))
}

func TestSQLite_EmailDraft_CompanyAndContactCoexist(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p, err := st.CreateProspect(ctx, testCompany())
	require.NoError(t, err)

	require.NoError(t, st.SaveEmailDraft(ctx, &model.EmailDraft{
		ProspectID: p.ID, Type: model.EmailTypeCompany,
		Subject: "company", Body: "b", GeneratedAt: time.Now().UTC(),
	}))
	require.NoError(t, st.SaveEmailDraft(ctx, &model.EmailDraft{
		ProspectID: p.ID, ContactID: "c-1", Type: model.EmailTypeIndividual,
		Subject: "individual", Body: "b", GeneratedAt: time.Now().UTC(),
	}))

	drafts, err := st.ListEmailDrafts(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, drafts, 2)
}

func TestSQLite_EmailDraft_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetEmailDraft(context.Background(), "p", "c", model.EmailTypeCompany)
	require.NoError(t, err)
	assert.Nil(t, got)
}

// --- Email log ---

func TestSQLite_EmailLog_AppendAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p, err := st.CreateProspect(ctx, testCompany())
	require.NoError(t, err)

	sent := &model.EmailLogEntry{
		ProspectID: p.ID,
		ContactID:  "c-1",
		Type:       model.EmailTypeIndividual,
		Status:     model.EmailLogSent,
		Provider:   model.ProviderGmail,
		MessageID:  "msg-123",
	}
	require.NoError(t, st.AppendEmailLog(ctx, sent))
	assert.NotEmpty(t, sent.ID)
	assert.False(t, sent.SentAt.IsZero())

	failed := &model.EmailLogEntry{
		ProspectID: p.ID,
		Type:       model.EmailTypeCompany,
		Status:     model.EmailLogFailed,
		Provider:   model.ProviderOutlook,
		Error:      "smtp timeout",
	}
	require.NoError(t, st.AppendEmailLog(ctx, failed))

	entries, err := st.ListEmailLog(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.EmailLogSent, entries[0].Status)
	assert.Equal(t, "msg-123", entries[0].MessageID)
	assert.Equal(t, "smtp timeout", entries[1].Error)
	assert.Empty(t, entries[1].ContactID)
}

// Compile-time check that both backends satisfy the interface.
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
