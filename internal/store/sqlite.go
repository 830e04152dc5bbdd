package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/outreach-mate/outreach-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS prospects (
	id                   TEXT PRIMARY KEY,
	status               TEXT NOT NULL DEFAULT 'processing',
	company              TEXT NOT NULL,
	contacts             TEXT NOT NULL DEFAULT '[]',
	campaign_status      TEXT NOT NULL DEFAULT '',
	data_quality_score   INTEGER NOT NULL DEFAULT 0,
	enrichment_timestamp INTEGER,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS raw_data (
	prospect_id TEXT PRIMARY KEY REFERENCES prospects(id),
	data        TEXT NOT NULL,
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS stage_results (
	id          TEXT PRIMARY KEY,
	prospect_id TEXT NOT NULL REFERENCES prospects(id),
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	metadata    TEXT,
	recorded_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS email_drafts (
	prospect_id     TEXT NOT NULL REFERENCES prospects(id),
	contact_id      TEXT NOT NULL DEFAULT '',
	type            TEXT NOT NULL,
	subject         TEXT NOT NULL,
	body            TEXT NOT NULL,
	personalization TEXT,
	generated_at    DATETIME NOT NULL,
	PRIMARY KEY (prospect_id, contact_id, type)
);

CREATE TABLE IF NOT EXISTS email_log (
	id          TEXT PRIMARY KEY,
	prospect_id TEXT NOT NULL REFERENCES prospects(id),
	contact_id  TEXT,
	type        TEXT NOT NULL,
	status      TEXT NOT NULL,
	provider    TEXT NOT NULL,
	message_id  TEXT,
	error       TEXT,
	sent_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_prospects_status ON prospects(status);
CREATE INDEX IF NOT EXISTS idx_stage_results_prospect_id ON stage_results(prospect_id);
CREATE INDEX IF NOT EXISTS idx_email_log_prospect_id ON email_log(prospect_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateProspect(ctx context.Context, company model.Company) (*model.Prospect, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	companyJSON, err := json.Marshal(company)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal company")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO prospects (id, status, company, contacts, created_at, updated_at) VALUES (?, ?, ?, '[]', ?, ?)`,
		id, string(model.ProspectStatusProcessing), string(companyJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert prospect")
	}

	return &model.Prospect{
		ID:        id,
		Status:    model.ProspectStatusProcessing,
		Company:   company,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// BulkCreateProspects stages one prospect row per company inside a single
// transaction. Used by the import-only CSV path.
func (s *SQLiteStore) BulkCreateProspects(ctx context.Context, companies []model.Company) ([]model.Prospect, error) {
	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin bulk create")
	}
	defer tx.Rollback() //nolint:errcheck

	prospects := make([]model.Prospect, 0, len(companies))
	for _, c := range companies {
		companyJSON, err := json.Marshal(c)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: marshal company")
		}
		p := model.Prospect{
			ID:        uuid.New().String(),
			Status:    model.ProspectStatusProcessing,
			Company:   c,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO prospects (id, status, company, contacts, created_at, updated_at) VALUES (?, ?, ?, '[]', ?, ?)`,
			p.ID, string(p.Status), string(companyJSON), now, now,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: bulk insert prospect")
		}
		prospects = append(prospects, p)
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit bulk create")
	}
	return prospects, nil
}

func (s *SQLiteStore) SaveProspect(ctx context.Context, p *model.Prospect) error {
	companyJSON, err := json.Marshal(p.Company)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal company")
	}
	contactsJSON, err := json.Marshal(p.Contacts)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal contacts")
	}
	if p.Contacts == nil {
		contactsJSON = []byte("[]")
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE prospects
		 SET status = ?, company = ?, contacts = ?, campaign_status = ?,
		     data_quality_score = ?, enrichment_timestamp = ?, updated_at = ?
		 WHERE id = ?`,
		string(p.Status), string(companyJSON), string(contactsJSON), p.CampaignStatus,
		p.DataQualityScore, p.EnrichmentTimestamp, now, p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save prospect %s", p.ID)
	}
	p.UpdatedAt = now
	return checkRowsAffected(res, "prospect", p.ID)
}

func (s *SQLiteStore) UpdateProspectStatus(ctx context.Context, prospectID string, status model.ProspectStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE prospects SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), prospectID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update prospect status %s", prospectID)
	}
	return checkRowsAffected(res, "prospect", prospectID)
}

func (s *SQLiteStore) GetProspect(ctx context.Context, prospectID string) (*model.Prospect, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, company, contacts, campaign_status, data_quality_score, enrichment_timestamp, created_at, updated_at
		 FROM prospects WHERE id = ?`,
		prospectID,
	)
	return scanProspect(row)
}

func (s *SQLiteStore) ListProspects(ctx context.Context, filter ProspectFilter) ([]model.Prospect, error) {
	query := `SELECT id, status, company, contacts, campaign_status, data_quality_score, enrichment_timestamp, created_at, updated_at
	          FROM prospects WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.CompanyName != "" {
		query += ` AND json_extract(company, '$.name') = ?`
		args = append(args, filter.CompanyName)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list prospects")
	}
	defer rows.Close()

	var prospects []model.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, err
		}
		prospects = append(prospects, *p)
	}
	return prospects, eris.Wrap(rows.Err(), "sqlite: list prospects iterate")
}

func (s *SQLiteStore) SaveRawData(ctx context.Context, prospectID string, bag *model.RawDataBag) error {
	data, err := json.Marshal(bag)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal raw data")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO raw_data (prospect_id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (prospect_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		prospectID, string(data), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save raw data %s", prospectID)
}

func (s *SQLiteStore) GetRawData(ctx context.Context, prospectID string) (*model.RawDataBag, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM raw_data WHERE prospect_id = ?`,
		prospectID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get raw data %s", prospectID)
	}

	var bag model.RawDataBag
	if err := json.Unmarshal([]byte(data), &bag); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal raw data")
	}
	return &bag, nil
}

func (s *SQLiteStore) RecordStage(ctx context.Context, prospectID string, stage model.StageResult) error {
	var metadataJSON sql.NullString
	if stage.Metadata != nil {
		b, err := json.Marshal(stage.Metadata)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal stage metadata")
		}
		metadataJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_results (id, prospect_id, name, status, duration_ms, error, metadata, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), prospectID, stage.Name, string(stage.Status),
		stage.Duration, nullString(stage.Error), metadataJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: record stage %s for %s", stage.Name, prospectID)
}

func (s *SQLiteStore) ListStages(ctx context.Context, prospectID string) ([]model.StageResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, status, duration_ms, error, metadata FROM stage_results
		 WHERE prospect_id = ? ORDER BY recorded_at ASC`,
		prospectID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list stages %s", prospectID)
	}
	defer rows.Close()

	var stages []model.StageResult
	for rows.Next() {
		var st model.StageResult
		var errMsg, metadataJSON sql.NullString
		if err := rows.Scan(&st.Name, &st.Status, &st.Duration, &errMsg, &metadataJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stage")
		}
		st.Error = errMsg.String
		if metadataJSON.Valid {
			if err := json.Unmarshal([]byte(metadataJSON.String), &st.Metadata); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal stage metadata")
			}
		}
		stages = append(stages, st)
	}
	return stages, eris.Wrap(rows.Err(), "sqlite: list stages iterate")
}

func (s *SQLiteStore) SaveEmailDraft(ctx context.Context, draft *model.EmailDraft) error {
	var personalizationJSON sql.NullString
	if len(draft.PersonalizationElements) > 0 {
		b, err := json.Marshal(draft.PersonalizationElements)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal personalization")
		}
		personalizationJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO email_drafts (prospect_id, contact_id, type, subject, body, personalization, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (prospect_id, contact_id, type) DO UPDATE SET
		   subject = excluded.subject, body = excluded.body,
		   personalization = excluded.personalization, generated_at = excluded.generated_at`,
		draft.ProspectID, draft.ContactID, string(draft.Type),
		draft.Subject, draft.Body, personalizationJSON, draft.GeneratedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save email draft %s", draft.ProspectID)
}

// SaveEmailDrafts upserts a batch of drafts inside one transaction.
func (s *SQLiteStore) SaveEmailDrafts(ctx context.Context, drafts []*model.EmailDraft) error {
	if len(drafts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save drafts")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, draft := range drafts {
		var personalizationJSON sql.NullString
		if len(draft.PersonalizationElements) > 0 {
			b, err := json.Marshal(draft.PersonalizationElements)
			if err != nil {
				return eris.Wrap(err, "sqlite: marshal personalization")
			}
			personalizationJSON = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO email_drafts (prospect_id, contact_id, type, subject, body, personalization, generated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (prospect_id, contact_id, type) DO UPDATE SET
			   subject = excluded.subject, body = excluded.body,
			   personalization = excluded.personalization, generated_at = excluded.generated_at`,
			draft.ProspectID, draft.ContactID, string(draft.Type),
			draft.Subject, draft.Body, personalizationJSON, draft.GeneratedAt.UTC(),
		); err != nil {
			return eris.Wrapf(err, "sqlite: save email draft %s", draft.ProspectID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save drafts")
}

func (s *SQLiteStore) GetEmailDraft(ctx context.Context, prospectID, contactID string, typ model.EmailType) (*model.EmailDraft, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT prospect_id, contact_id, type, subject, body, personalization, generated_at
		 FROM email_drafts WHERE prospect_id = ? AND contact_id = ? AND type = ?`,
		prospectID, contactID, string(typ),
	)

	d, err := scanDraft(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *SQLiteStore) ListEmailDrafts(ctx context.Context, prospectID string) ([]model.EmailDraft, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT prospect_id, contact_id, type, subject, body, personalization, generated_at
		 FROM email_drafts WHERE prospect_id = ? ORDER BY contact_id, type`,
		prospectID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list email drafts %s", prospectID)
	}
	defer rows.Close()

	var drafts []model.EmailDraft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, *d)
	}
	return drafts, eris.Wrap(rows.Err(), "sqlite: list email drafts iterate")
}

func (s *SQLiteStore) AppendEmailLog(ctx context.Context, entry *model.EmailLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO email_log (id, prospect_id, contact_id, type, status, provider, message_id, error, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ProspectID, nullString(entry.ContactID), string(entry.Type),
		string(entry.Status), string(entry.Provider),
		nullString(entry.MessageID), nullString(entry.Error), entry.SentAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: append email log %s", entry.ProspectID)
}

func (s *SQLiteStore) ListEmailLog(ctx context.Context, prospectID string) ([]model.EmailLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, prospect_id, contact_id, type, status, provider, message_id, error, sent_at
		 FROM email_log WHERE prospect_id = ? ORDER BY sent_at ASC`,
		prospectID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list email log %s", prospectID)
	}
	defer rows.Close()

	var entries []model.EmailLogEntry
	for rows.Next() {
		var e model.EmailLogEntry
		var contactID, messageID, errMsg sql.NullString
		if err := rows.Scan(&e.ID, &e.ProspectID, &contactID, &e.Type, &e.Status,
			&e.Provider, &messageID, &errMsg, &e.SentAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan email log entry")
		}
		e.ContactID = contactID.String
		e.MessageID = messageID.String
		e.Error = errMsg.String
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list email log iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProspect(row scannable) (*model.Prospect, error) {
	var p model.Prospect
	var companyJSON, contactsJSON string
	var enrichedAt sql.NullInt64

	err := row.Scan(&p.ID, &p.Status, &companyJSON, &contactsJSON, &p.CampaignStatus,
		&p.DataQualityScore, &enrichedAt, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("prospect not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan prospect")
	}

	if err := json.Unmarshal([]byte(companyJSON), &p.Company); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal company")
	}
	if err := json.Unmarshal([]byte(contactsJSON), &p.Contacts); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal contacts")
	}
	if enrichedAt.Valid {
		p.EnrichmentTimestamp = &enrichedAt.Int64
	}
	return &p, nil
}

func scanDraft(row scannable) (*model.EmailDraft, error) {
	var d model.EmailDraft
	var personalizationJSON sql.NullString

	err := row.Scan(&d.ProspectID, &d.ContactID, &d.Type, &d.Subject, &d.Body,
		&personalizationJSON, &d.GeneratedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan email draft")
	}

	if personalizationJSON.Valid {
		if err := json.Unmarshal([]byte(personalizationJSON.String), &d.PersonalizationElements); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal personalization")
		}
	}
	return &d, nil
}
