package store

import (
	"context"

	"github.com/outreach-mate/outreach-cli/internal/model"
)

// ProspectFilter specifies criteria for listing prospects.
type ProspectFilter struct {
	Status      model.ProspectStatus `json:"status,omitempty"`
	CompanyName string               `json:"company_name,omitempty"`
	Limit       int                  `json:"limit,omitempty"`
	Offset      int                  `json:"offset,omitempty"`
}

// Store defines the persistence interface for the outreach pipeline.
type Store interface {
	// Prospects
	CreateProspect(ctx context.Context, company model.Company) (*model.Prospect, error)
	BulkCreateProspects(ctx context.Context, companies []model.Company) ([]model.Prospect, error)
	SaveProspect(ctx context.Context, p *model.Prospect) error
	UpdateProspectStatus(ctx context.Context, prospectID string, status model.ProspectStatus) error
	GetProspect(ctx context.Context, prospectID string) (*model.Prospect, error)
	ListProspects(ctx context.Context, filter ProspectFilter) ([]model.Prospect, error)

	// Raw acquisition data, persisted incrementally after each stage.
	SaveRawData(ctx context.Context, prospectID string, bag *model.RawDataBag) error
	GetRawData(ctx context.Context, prospectID string) (*model.RawDataBag, error)

	// Stage results
	RecordStage(ctx context.Context, prospectID string, stage model.StageResult) error
	ListStages(ctx context.Context, prospectID string) ([]model.StageResult, error)

	// Email drafts, one per (prospect, contact, type); regeneration overwrites.
	SaveEmailDraft(ctx context.Context, draft *model.EmailDraft) error
	SaveEmailDrafts(ctx context.Context, drafts []*model.EmailDraft) error
	GetEmailDraft(ctx context.Context, prospectID, contactID string, typ model.EmailType) (*model.EmailDraft, error)
	ListEmailDrafts(ctx context.Context, prospectID string) ([]model.EmailDraft, error)

	// Email log, append only.
	AppendEmailLog(ctx context.Context, entry *model.EmailLogEntry) error
	ListEmailLog(ctx context.Context, prospectID string) ([]model.EmailLogEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
