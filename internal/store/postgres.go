package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/outreach-mate/outreach-cli/internal/db"
	"github.com/outreach-mate/outreach-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_prospect": `INSERT INTO prospects (id, status, company, contacts, created_at, updated_at) VALUES ($1, $2, $3, '[]', $4, $5)`,
	"save_prospect": `UPDATE prospects SET status = $1, company = $2, contacts = $3, campaign_status = $4,
		data_quality_score = $5, enrichment_timestamp = $6, updated_at = $7 WHERE id = $8`,
	"update_prospect_status": `UPDATE prospects SET status = $1, updated_at = $2 WHERE id = $3`,
	"get_prospect": `SELECT id, status, company, contacts, campaign_status, data_quality_score, enrichment_timestamp, created_at, updated_at
		FROM prospects WHERE id = $1`,
	"save_raw_data": `INSERT INTO raw_data (prospect_id, data, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (prospect_id) DO UPDATE SET data = $2, updated_at = $3`,
	"get_raw_data": `SELECT data FROM raw_data WHERE prospect_id = $1`,
	"record_stage": `INSERT INTO stage_results (id, prospect_id, name, status, duration_ms, error, metadata, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"append_email_log": `INSERT INTO email_log (id, prospect_id, contact_id, type, status, provider, message_id, error, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for use by subsystems
// that need direct query access (e.g., bulk CSV import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS prospects (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status               TEXT NOT NULL DEFAULT 'processing',
	company              JSONB NOT NULL,
	contacts             JSONB NOT NULL DEFAULT '[]',
	campaign_status      TEXT NOT NULL DEFAULT '',
	data_quality_score   INTEGER NOT NULL DEFAULT 0,
	enrichment_timestamp BIGINT,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS raw_data (
	prospect_id TEXT PRIMARY KEY REFERENCES prospects(id),
	data        JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS stage_results (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	prospect_id TEXT NOT NULL REFERENCES prospects(id),
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	error       TEXT,
	metadata    JSONB,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS email_drafts (
	prospect_id     TEXT NOT NULL REFERENCES prospects(id),
	contact_id      TEXT NOT NULL DEFAULT '',
	type            TEXT NOT NULL,
	subject         TEXT NOT NULL,
	body            TEXT NOT NULL,
	personalization JSONB,
	generated_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (prospect_id, contact_id, type)
);

CREATE TABLE IF NOT EXISTS email_log (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	prospect_id TEXT NOT NULL REFERENCES prospects(id),
	contact_id  TEXT,
	type        TEXT NOT NULL,
	status      TEXT NOT NULL,
	provider    TEXT NOT NULL,
	message_id  TEXT,
	error       TEXT,
	sent_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_prospects_status ON prospects(status);
CREATE INDEX IF NOT EXISTS idx_prospects_company_name ON prospects((company->>'name'));
CREATE INDEX IF NOT EXISTS idx_stage_results_prospect_id ON stage_results(prospect_id);
CREATE INDEX IF NOT EXISTS idx_email_log_prospect_id ON email_log(prospect_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateProspect(ctx context.Context, company model.Company) (*model.Prospect, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	companyJSON, err := json.Marshal(company)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal company")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO prospects (id, status, company, contacts, created_at, updated_at) VALUES ($1, $2, $3, '[]', $4, $5)`,
		id, string(model.ProspectStatusProcessing), companyJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert prospect")
	}

	return &model.Prospect{
		ID:        id,
		Status:    model.ProspectStatusProcessing,
		Company:   company,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// BulkCreateProspects inserts one prospect row per company via the COPY
// protocol. Used by the import-only CSV path to stage large batches.
func (s *PostgresStore) BulkCreateProspects(ctx context.Context, companies []model.Company) ([]model.Prospect, error) {
	now := time.Now().UTC()
	prospects := make([]model.Prospect, 0, len(companies))
	rows := make([][]any, 0, len(companies))

	for _, c := range companies {
		companyJSON, err := json.Marshal(c)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal company")
		}
		p := model.Prospect{
			ID:        uuid.New().String(),
			Status:    model.ProspectStatusProcessing,
			Company:   c,
			CreatedAt: now,
			UpdatedAt: now,
		}
		prospects = append(prospects, p)
		rows = append(rows, []any{p.ID, string(p.Status), companyJSON, "[]", now, now})
	}

	_, err := db.CopyFrom(ctx, s.pool, "prospects",
		[]string{"id", "status", "company", "contacts", "created_at", "updated_at"}, rows)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: bulk create prospects")
	}
	return prospects, nil
}

func (s *PostgresStore) SaveProspect(ctx context.Context, p *model.Prospect) error {
	companyJSON, err := json.Marshal(p.Company)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal company")
	}
	contacts := p.Contacts
	if contacts == nil {
		contacts = []model.Contact{}
	}
	contactsJSON, err := json.Marshal(contacts)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal contacts")
	}

	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE prospects
		 SET status = $1, company = $2, contacts = $3, campaign_status = $4,
		     data_quality_score = $5, enrichment_timestamp = $6, updated_at = $7
		 WHERE id = $8`,
		string(p.Status), companyJSON, contactsJSON, p.CampaignStatus,
		p.DataQualityScore, p.EnrichmentTimestamp, now, p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save prospect %s", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("prospect not found: %s", p.ID)
	}
	p.UpdatedAt = now
	return nil
}

func (s *PostgresStore) UpdateProspectStatus(ctx context.Context, prospectID string, status model.ProspectStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE prospects SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), prospectID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update prospect status %s", prospectID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("prospect not found: %s", prospectID)
	}
	return nil
}

func (s *PostgresStore) GetProspect(ctx context.Context, prospectID string) (*model.Prospect, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, company, contacts, campaign_status, data_quality_score, enrichment_timestamp, created_at, updated_at
		 FROM prospects WHERE id = $1`,
		prospectID,
	)
	p, err := scanPgProspect(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get prospect %s", prospectID)
	}
	return p, nil
}

func (s *PostgresStore) ListProspects(ctx context.Context, filter ProspectFilter) ([]model.Prospect, error) {
	query := `SELECT id, status, company, contacts, campaign_status, data_quality_score, enrichment_timestamp, created_at, updated_at
	          FROM prospects WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.CompanyName != "" {
		query += fmt.Sprintf(` AND company->>'name' = $%d`, argIdx)
		args = append(args, filter.CompanyName)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list prospects")
	}
	defer rows.Close()

	var prospects []model.Prospect
	for rows.Next() {
		p, err := scanPgProspect(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan prospect")
		}
		prospects = append(prospects, *p)
	}
	return prospects, eris.Wrap(rows.Err(), "postgres: list prospects iterate")
}

func (s *PostgresStore) SaveRawData(ctx context.Context, prospectID string, bag *model.RawDataBag) error {
	data, err := json.Marshal(bag)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal raw data")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO raw_data (prospect_id, data, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (prospect_id) DO UPDATE SET data = $2, updated_at = $3`,
		prospectID, data, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save raw data %s", prospectID)
}

func (s *PostgresStore) GetRawData(ctx context.Context, prospectID string) (*model.RawDataBag, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM raw_data WHERE prospect_id = $1`,
		prospectID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get raw data %s", prospectID)
	}

	var bag model.RawDataBag
	if err := json.Unmarshal(data, &bag); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal raw data")
	}
	return &bag, nil
}

func (s *PostgresStore) RecordStage(ctx context.Context, prospectID string, stage model.StageResult) error {
	var metadataJSON []byte
	if stage.Metadata != nil {
		b, err := json.Marshal(stage.Metadata)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal stage metadata")
		}
		metadataJSON = b
	}

	var errMsg *string
	if stage.Error != "" {
		errMsg = &stage.Error
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO stage_results (id, prospect_id, name, status, duration_ms, error, metadata, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New().String(), prospectID, stage.Name, string(stage.Status),
		stage.Duration, errMsg, metadataJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: record stage %s for %s", stage.Name, prospectID)
}

func (s *PostgresStore) ListStages(ctx context.Context, prospectID string) ([]model.StageResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, status, duration_ms, error, metadata FROM stage_results
		 WHERE prospect_id = $1 ORDER BY recorded_at ASC`,
		prospectID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list stages %s", prospectID)
	}
	defer rows.Close()

	var stages []model.StageResult
	for rows.Next() {
		var st model.StageResult
		var errMsg *string
		var metadataJSON []byte
		if err := rows.Scan(&st.Name, &st.Status, &st.Duration, &errMsg, &metadataJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stage")
		}
		if errMsg != nil {
			st.Error = *errMsg
		}
		if metadataJSON != nil {
			if err := json.Unmarshal(metadataJSON, &st.Metadata); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal stage metadata")
			}
		}
		stages = append(stages, st)
	}
	return stages, eris.Wrap(rows.Err(), "postgres: list stages iterate")
}

func (s *PostgresStore) SaveEmailDraft(ctx context.Context, draft *model.EmailDraft) error {
	var personalizationJSON []byte
	if len(draft.PersonalizationElements) > 0 {
		b, err := json.Marshal(draft.PersonalizationElements)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal personalization")
		}
		personalizationJSON = b
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO email_drafts (prospect_id, contact_id, type, subject, body, personalization, generated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (prospect_id, contact_id, type) DO UPDATE SET
		   subject = $4, body = $5, personalization = $6, generated_at = $7`,
		draft.ProspectID, draft.ContactID, string(draft.Type),
		draft.Subject, draft.Body, personalizationJSON, draft.GeneratedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: save email draft %s", draft.ProspectID)
}

// SaveEmailDrafts upserts a batch of drafts in one round trip. Used when a
// whole prospect's drafts are regenerated together.
func (s *PostgresStore) SaveEmailDrafts(ctx context.Context, drafts []*model.EmailDraft) error {
	if len(drafts) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(drafts))
	for _, draft := range drafts {
		var personalizationJSON []byte
		if len(draft.PersonalizationElements) > 0 {
			b, err := json.Marshal(draft.PersonalizationElements)
			if err != nil {
				return eris.Wrap(err, "postgres: marshal personalization")
			}
			personalizationJSON = b
		}
		rows = append(rows, []any{
			draft.ProspectID, draft.ContactID, string(draft.Type),
			draft.Subject, draft.Body, personalizationJSON, draft.GeneratedAt.UTC(),
		})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "email_drafts",
		Columns:      []string{"prospect_id", "contact_id", "type", "subject", "body", "personalization", "generated_at"},
		ConflictKeys: []string{"prospect_id", "contact_id", "type"},
	}, rows)
	return eris.Wrap(err, "postgres: save email drafts")
}

func (s *PostgresStore) GetEmailDraft(ctx context.Context, prospectID, contactID string, typ model.EmailType) (*model.EmailDraft, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT prospect_id, contact_id, type, subject, body, personalization, generated_at
		 FROM email_drafts WHERE prospect_id = $1 AND contact_id = $2 AND type = $3`,
		prospectID, contactID, string(typ),
	)

	d, err := scanPgDraft(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get email draft")
	}
	return d, nil
}

func (s *PostgresStore) ListEmailDrafts(ctx context.Context, prospectID string) ([]model.EmailDraft, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT prospect_id, contact_id, type, subject, body, personalization, generated_at
		 FROM email_drafts WHERE prospect_id = $1 ORDER BY contact_id, type`,
		prospectID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list email drafts %s", prospectID)
	}
	defer rows.Close()

	var drafts []model.EmailDraft
	for rows.Next() {
		d, err := scanPgDraft(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan email draft")
		}
		drafts = append(drafts, *d)
	}
	return drafts, eris.Wrap(rows.Err(), "postgres: list email drafts iterate")
}

func (s *PostgresStore) AppendEmailLog(ctx context.Context, entry *model.EmailLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO email_log (id, prospect_id, contact_id, type, status, provider, message_id, error, sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.ProspectID, pgNullable(entry.ContactID), string(entry.Type),
		string(entry.Status), string(entry.Provider),
		pgNullable(entry.MessageID), pgNullable(entry.Error), entry.SentAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: append email log %s", entry.ProspectID)
}

func (s *PostgresStore) ListEmailLog(ctx context.Context, prospectID string) ([]model.EmailLogEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, prospect_id, contact_id, type, status, provider, message_id, error, sent_at
		 FROM email_log WHERE prospect_id = $1 ORDER BY sent_at ASC`,
		prospectID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list email log %s", prospectID)
	}
	defer rows.Close()

	var entries []model.EmailLogEntry
	for rows.Next() {
		var e model.EmailLogEntry
		var contactID, messageID, errMsg *string
		if err := rows.Scan(&e.ID, &e.ProspectID, &contactID, &e.Type, &e.Status,
			&e.Provider, &messageID, &errMsg, &e.SentAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan email log entry")
		}
		if contactID != nil {
			e.ContactID = *contactID
		}
		if messageID != nil {
			e.MessageID = *messageID
		}
		if errMsg != nil {
			e.Error = *errMsg
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list email log iterate")
}

// helpers

func pgNullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func scanPgProspect(row pgx.Row) (*model.Prospect, error) {
	var p model.Prospect
	var companyJSON, contactsJSON []byte
	var enrichedAt *int64

	err := row.Scan(&p.ID, &p.Status, &companyJSON, &contactsJSON, &p.CampaignStatus,
		&p.DataQualityScore, &enrichedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(companyJSON, &p.Company); err != nil {
		return nil, eris.Wrap(err, "unmarshal company")
	}
	if err := json.Unmarshal(contactsJSON, &p.Contacts); err != nil {
		return nil, eris.Wrap(err, "unmarshal contacts")
	}
	p.EnrichmentTimestamp = enrichedAt
	return &p, nil
}

func scanPgDraft(row pgx.Row) (*model.EmailDraft, error) {
	var d model.EmailDraft
	var personalizationJSON []byte

	err := row.Scan(&d.ProspectID, &d.ContactID, &d.Type, &d.Subject, &d.Body,
		&personalizationJSON, &d.GeneratedAt)
	if err != nil {
		return nil, err
	}

	if personalizationJSON != nil {
		if err := json.Unmarshal(personalizationJSON, &d.PersonalizationElements); err != nil {
			return nil, eris.Wrap(err, "unmarshal personalization")
		}
	}
	return &d, nil
}
