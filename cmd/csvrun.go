package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/outreach-mate/outreach-cli/internal/model"
	"github.com/outreach-mate/outreach-cli/internal/pipeline"
	"github.com/outreach-mate/outreach-cli/internal/store"
)

var (
	csvFile        string
	csvConcurrency int
	csvImportOnly  bool
)

var csvrunCmd = &cobra.Command{
	Use:   "csvrun",
	Short: "Batch enrich companies from a CSV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		f, err := os.Open(csvFile)
		if err != nil {
			return eris.Wrapf(err, "open %s", csvFile)
		}
		defer f.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if csvImportOnly {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}

			summary, err := importCompanies(ctx, st, f)
			if err != nil {
				return err
			}
			zap.L().Info("import complete",
				zap.Int("imported", summary.Imported),
				zap.Int("skipped", len(summary.SkippedRows)),
			)
			return enc.Encode(summary)
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := csvConcurrency
		if concurrency == 0 {
			concurrency = cfg.Batch.Concurrency
		}

		result, err := env.Pipeline.RunCSV(ctx, f, concurrency)
		if err != nil {
			return err
		}

		zap.L().Info("batch complete",
			zap.Int("total", result.Total),
			zap.Int("ready", result.Ready),
			zap.Int("partial", result.Partial),
			zap.Int("failed", result.Failed),
			zap.Int("skipped", result.Skipped),
		)
		return enc.Encode(result)
	},
}

// importSummary reports an import-only run: prospect rows staged for a
// later enrichment pass, plus the rows that could not be parsed.
type importSummary struct {
	Imported    int               `json:"imported"`
	ProspectIDs []string          `json:"prospect_ids"`
	SkippedRows []model.RowResult `json:"skipped_rows,omitempty"`
}

// importCompanies parses the CSV and stages prospect rows in one batch
// insert without running any enrichment stage.
func importCompanies(ctx context.Context, st store.Store, r io.Reader) (*importSummary, error) {
	rows, skipped, err := pipeline.ParseCompanies(r)
	if err != nil {
		return nil, err
	}

	companies := make([]model.Company, 0, len(rows))
	for _, cr := range rows {
		companies = append(companies, cr.Company)
	}

	prospects, err := st.BulkCreateProspects(ctx, companies)
	if err != nil {
		return nil, eris.Wrap(err, "bulk create prospects")
	}

	summary := &importSummary{Imported: len(prospects), SkippedRows: skipped}
	for _, p := range prospects {
		summary.ProspectIDs = append(summary.ProspectIDs, p.ID)
	}
	return summary, nil
}

func init() {
	csvrunCmd.Flags().StringVar(&csvFile, "file", "", "CSV file with a Company Name column (required)")
	csvrunCmd.Flags().IntVar(&csvConcurrency, "concurrency", 0, "concurrent companies (default from config)")
	csvrunCmd.Flags().BoolVar(&csvImportOnly, "import-only", false, "stage prospect rows without enriching them")
	_ = csvrunCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(csvrunCmd)
}
