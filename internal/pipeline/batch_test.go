package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outreach-mate/outreach-cli/internal/model"
	"github.com/outreach-mate/outreach-cli/internal/store"
)

func TestRunCSVAllReady(t *testing.T) {
	st := newTestStore(t)
	p := New(st, &mockCrawler{}, &mockApollo{enrichment: sampleEnrichment()}, nil, &mockNormalizer{record: sampleRecord()}, Options{})

	csv := "Company Name,Website URL\nAcme,https://acme.io\nGlobex,https://globex.example\n"
	batch, err := p.RunCSV(context.Background(), strings.NewReader(csv), 2)
	require.NoError(t, err)

	assert.Equal(t, 2, batch.Total)
	assert.Equal(t, 2, batch.Ready)
	assert.Equal(t, 0, batch.Failed)
	assert.Len(t, batch.Rows, 2)

	prospects, err := st.ListProspects(context.Background(), store.ProspectFilter{})
	require.NoError(t, err)
	assert.Len(t, prospects, 2)
}

func TestRunCSVCountsSkippedRows(t *testing.T) {
	st := newTestStore(t)
	p := New(st, nil, nil, nil, &mockNormalizer{record: sampleRecord()}, Options{})

	csv := "Company Name\nAcme\n\nGlobex\n"
	batch, err := p.RunCSV(context.Background(), strings.NewReader(csv), 1)
	require.NoError(t, err)

	assert.Equal(t, 2, batch.Ready)
	assert.Equal(t, 0, batch.Skipped)
}

func TestRunCSVPartialWithoutNormalizer(t *testing.T) {
	st := newTestStore(t)
	// No normalizer: every row ends as partial data.
	p := New(st, nil, &mockApollo{enrichment: sampleEnrichment()}, nil, nil, Options{})

	csv := "Company Name\nAcme\nGlobex\nInitech\n"
	batch, err := p.RunCSV(context.Background(), strings.NewReader(csv), 2)
	require.NoError(t, err)

	assert.Equal(t, 3, batch.Partial)
	assert.Equal(t, 0, batch.Ready)
	for _, row := range batch.Rows {
		require.NotNil(t, row.Result)
		assert.Equal(t, model.OutcomePartialData, row.Result.Outcome)
	}
}

func TestRunCSVAllRowsMalformed(t *testing.T) {
	st := newTestStore(t)
	p := New(st, nil, nil, nil, &mockNormalizer{record: sampleRecord()}, Options{})

	csv := "Company Name,Website URL\n,https://a.example\n,https://b.example\n"
	batch, err := p.RunCSV(context.Background(), strings.NewReader(csv), 1)
	require.NoError(t, err)

	// Every input row is accounted for, each with its skip reason.
	assert.Equal(t, 2, batch.Total)
	assert.Equal(t, 2, batch.Skipped)
	assert.Equal(t, 0, batch.Ready)
	require.Len(t, batch.Rows, 2)
	for _, row := range batch.Rows {
		assert.Contains(t, row.Error, "empty company name")
	}
}

func TestRunCSVInvalidInput(t *testing.T) {
	st := newTestStore(t)
	p := New(st, nil, nil, nil, nil, Options{})

	_, err := p.RunCSV(context.Background(), strings.NewReader("Website URL\nhttps://x.example\n"), 1)
	require.Error(t, err)
}

func TestRunCSVRowNumbersPreserved(t *testing.T) {
	st := newTestStore(t)
	p := New(st, nil, nil, nil, &mockNormalizer{record: sampleRecord()}, Options{})

	csv := "Company Name\nAcme\n,\nGlobex\n"
	batch, err := p.RunCSV(context.Background(), strings.NewReader(csv), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, batch.Skipped)

	rows := map[int]bool{}
	for _, r := range batch.Rows {
		rows[r.Row] = true
	}
	assert.True(t, rows[2], "row 2 (Acme)")
	assert.True(t, rows[3], "row 3 (skipped)")
	assert.True(t, rows[4], "row 4 (Globex)")
}
