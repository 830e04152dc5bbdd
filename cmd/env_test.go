package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outreach-mate/outreach-cli/internal/config"
	"github.com/outreach-mate/outreach-cli/internal/fetcher"
	"github.com/outreach-mate/outreach-cli/internal/store"
	"github.com/outreach-mate/outreach-cli/pkg/apollo"
)

// The crawler's retrying transport doubles as the Apollo client transport.
var _ apollo.Doer = (*fetcher.RateLimitedClient)(nil)

func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	orig := cfg
	cfg = c
	t.Cleanup(func() { cfg = orig })
}

func TestInitStoreSQLite(t *testing.T) {
	withConfig(t, &config.Config{Store: config.StoreConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	}})

	st, err := initStore(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Close())
}

func newImportTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestImportCompaniesStagesRows(t *testing.T) {
	st := newImportTestStore(t)

	csv := "Company Name,Website URL\nAcme,https://acme.io\n,https://nameless.example\nGlobex,\n"
	summary, err := importCompanies(context.Background(), st, strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Imported)
	assert.Len(t, summary.ProspectIDs, 2)
	require.Len(t, summary.SkippedRows, 1)
	assert.Contains(t, summary.SkippedRows[0].Error, "empty company name")

	for _, id := range summary.ProspectIDs {
		p, err := st.GetProspect(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "processing", string(p.Status))
	}
}

func TestImportCompaniesMissingNameColumn(t *testing.T) {
	st := newImportTestStore(t)

	_, err := importCompanies(context.Background(), st, strings.NewReader("Website URL\nhttps://x.example\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Company Name")
}

func TestInitStoreUnsupportedDriver(t *testing.T) {
	withConfig(t, &config.Config{Store: config.StoreConfig{Driver: "mysql"}})

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}
