package pipeline

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/outreach-mate/outreach-cli/internal/model"
)

// BatchResult summarizes one CSV batch run.
type BatchResult struct {
	Total   int               `json:"total_rows"`
	Ready   int               `json:"ready"`
	Partial int               `json:"partial_data"`
	Failed  int               `json:"failed"`
	Skipped int               `json:"skipped_rows"`
	Rows    []model.RowResult `json:"rows"`
}

// RunCSV parses the CSV and runs the pipeline for every valid row, at most
// concurrency runs in flight. Browser-backed stages serialize internally, so
// concurrency only overlaps crawling and API calls.
func (p *Pipeline) RunCSV(ctx context.Context, r io.Reader, concurrency int) (*BatchResult, error) {
	companies, skipped, err := ParseCompanies(r)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	log := zap.L().With(zap.Int("companies", len(companies)), zap.Int("concurrency", concurrency))
	log.Info("batch: starting")

	batch := &BatchResult{
		Total:   len(companies) + len(skipped),
		Skipped: len(skipped),
		Rows:    append([]model.RowResult{}, skipped...),
	}

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, cr := range companies {
		g.Go(func() error {
			res, runErr := p.Run(gCtx, cr.Company)

			mu.Lock()
			defer mu.Unlock()
			if runErr != nil {
				batch.Failed++
				batch.Rows = append(batch.Rows, model.RowResult{Row: cr.Row, Error: runErr.Error()})
				return nil
			}
			batch.Rows = append(batch.Rows, model.RowResult{Row: cr.Row, Result: res})
			switch res.Outcome {
			case model.OutcomeReady:
				batch.Ready++
			case model.OutcomePartialData:
				batch.Partial++
			default:
				batch.Failed++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return batch, err
	}

	log.Info("batch: complete",
		zap.Int("ready", batch.Ready),
		zap.Int("partial", batch.Partial),
		zap.Int("failed", batch.Failed),
		zap.Int("skipped", batch.Skipped),
	)
	return batch, nil
}
