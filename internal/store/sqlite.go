package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/utility-cli/internal/model"
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
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS observations (
	id            TEXT PRIMARY KEY,
	address       TEXT NOT NULL,
	zip_code      TEXT NOT NULL,
	street        TEXT NOT NULL,
	city          TEXT NOT NULL DEFAULT '',
	state         TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL,
	raw_provider  TEXT NOT NULL,
	reported_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS corrections (
	id                  TEXT PRIMARY KEY,
	utility_type        TEXT NOT NULL,
	correct_provider    TEXT NOT NULL,
	canonical_provider  TEXT NOT NULL,
	state               TEXT NOT NULL,
	zip_code            TEXT NOT NULL,
	city                TEXT NOT NULL DEFAULT '',
	street              TEXT NOT NULL DEFAULT '',
	incorrect_provider  TEXT NOT NULL DEFAULT '',
	confirmation_count  INTEGER NOT NULL DEFAULT 1,
	status              TEXT NOT NULL DEFAULT 'pending',
	evidence_confidence INTEGER,
	evidence_note       TEXT NOT NULL DEFAULT '',
	created_at          DATETIME NOT NULL,
	updated_at          DATETIME NOT NULL,
	verified_at         DATETIME
);

CREATE TABLE IF NOT EXISTS confirmations (
	id            TEXT PRIMARY KEY,
	correction_id TEXT NOT NULL REFERENCES corrections(id),
	address       TEXT NOT NULL DEFAULT '',
	source        TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS verified_utilities (
	utility_type       TEXT NOT NULL,
	provider_name      TEXT NOT NULL,
	state              TEXT NOT NULL,
	zip_code           TEXT NOT NULL,
	verification_count INTEGER NOT NULL DEFAULT 0,
	updated_at         DATETIME NOT NULL,
	PRIMARY KEY (utility_type, provider_name, state, zip_code)
);

CREATE TABLE IF NOT EXISTS boundary_rules (
	id                   TEXT PRIMARY KEY,
	zip_code             TEXT NOT NULL,
	city                 TEXT NOT NULL DEFAULT '',
	state                TEXT NOT NULL DEFAULT '',
	utility_name         TEXT NOT NULL,
	category             TEXT NOT NULL,
	rule_type            TEXT NOT NULL,
	pattern              TEXT NOT NULL,
	confidence           REAL NOT NULL,
	sample_count         INTEGER NOT NULL,
	conflicting_provider TEXT NOT NULL DEFAULT '',
	created_at           DATETIME NOT NULL,
	updated_at           DATETIME NOT NULL,
	UNIQUE (zip_code, rule_type, pattern)
);

CREATE TABLE IF NOT EXISTS overrides (
	zip_code     TEXT NOT NULL,
	street       TEXT NOT NULL,
	category     TEXT NOT NULL,
	provider     TEXT NOT NULL,
	confidence   REAL NOT NULL,
	sample_count INTEGER NOT NULL,
	action       TEXT NOT NULL,
	updated_at   DATETIME NOT NULL,
	PRIMARY KEY (zip_code, street, category)
);

CREATE TABLE IF NOT EXISTS zip_contexts (
	zip_code           TEXT NOT NULL,
	category           TEXT NOT NULL,
	observed_providers TEXT NOT NULL,
	patterns           TEXT NOT NULL,
	is_split_territory INTEGER NOT NULL DEFAULT 0,
	context_text       TEXT NOT NULL,
	updated_at         DATETIME NOT NULL,
	PRIMARY KEY (zip_code, category)
);

CREATE INDEX IF NOT EXISTS idx_observations_zip ON observations(zip_code, category);
CREATE INDEX IF NOT EXISTS idx_corrections_key ON corrections(utility_type, state, zip_code, canonical_provider);
CREATE INDEX IF NOT EXISTS idx_corrections_status ON corrections(status);
CREATE INDEX IF NOT EXISTS idx_confirmations_correction ON confirmations(correction_id);
CREATE INDEX IF NOT EXISTS idx_boundary_rules_zip ON boundary_rules(zip_code);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertObservations(ctx context.Context, observations []model.Observation) (int, error) {
	if len(observations) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert observations")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO observations (id, address, zip_code, street, city, state, category, raw_provider, reported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert observation")
	}
	defer stmt.Close()

	inserted := 0
	for _, obs := range observations {
		id := obs.ID
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := stmt.ExecContext(ctx,
			id, obs.Address, obs.ZipCode, obs.Street, obs.City, obs.State,
			string(obs.Category), obs.RawProviderName, obs.ReportedAt.UTC(),
		); err != nil {
			return 0, eris.Wrap(err, "sqlite: insert observation")
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit observations")
	}
	return inserted, nil
}

func (s *SQLiteStore) ListObservations(ctx context.Context, filter ObservationFilter) ([]model.Observation, error) {
	query := `SELECT id, address, zip_code, street, city, state, category, raw_provider, reported_at
	          FROM observations WHERE 1=1`
	var args []any

	if filter.ZipCode != "" {
		query += ` AND zip_code = ?`
		args = append(args, filter.ZipCode)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, string(filter.Category))
	}
	query += ` ORDER BY zip_code, street, reported_at`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list observations")
	}
	defer rows.Close()

	var out []model.Observation
	for rows.Next() {
		var o model.Observation
		var cat string
		if err := rows.Scan(&o.ID, &o.Address, &o.ZipCode, &o.Street, &o.City, &o.State, &cat, &o.RawProviderName, &o.ReportedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan observation")
		}
		o.Category = model.Category(cat)
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate observations")
}

const correctionColumns = `id, utility_type, correct_provider, canonical_provider, state, zip_code, city, street,
	incorrect_provider, confirmation_count, status, evidence_confidence, evidence_note, created_at, updated_at, verified_at`

func (s *SQLiteStore) GetCorrectionByKey(ctx context.Context, key model.NaturalKey) (*model.Correction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+correctionColumns+` FROM corrections
		 WHERE utility_type = ? AND state = ? AND zip_code = ? AND canonical_provider = ? AND status != 'rejected'
		 ORDER BY created_at LIMIT 1`,
		string(key.UtilityType), key.State, key.ZipCode, key.CanonicalProvider,
	)
	return scanCorrection(row)
}

func (s *SQLiteStore) GetCorrection(ctx context.Context, id string) (*model.Correction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+correctionColumns+` FROM corrections WHERE id = ?`, id)
	c, err := scanCorrection(row)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, eris.Errorf("correction not found: %s", id)
	}
	return c, nil
}

func (s *SQLiteStore) CreateCorrection(ctx context.Context, c *model.Correction) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = model.CorrectionPending
	}
	if c.ConfirmationCount == 0 {
		c.ConfirmationCount = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO corrections (`+correctionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, string(c.UtilityType), c.CorrectProvider, c.CanonicalProvider, c.State, c.ZipCode, c.City, c.Street,
		c.IncorrectProvider, c.ConfirmationCount, string(c.Status), c.EvidenceConfidence, c.EvidenceNote,
		c.CreatedAt, c.UpdatedAt, c.VerifiedAt,
	)
	return eris.Wrap(err, "sqlite: insert correction")
}

// ConfirmCorrection increments the confirmation count and promotes a pending
// row that reaches the threshold, all in one statement.
func (s *SQLiteStore) ConfirmCorrection(ctx context.Context, id string, threshold int) (*model.Correction, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE corrections SET
			confirmation_count = confirmation_count + 1,
			verified_at = CASE WHEN status = 'pending' AND confirmation_count + 1 >= ? THEN ? ELSE verified_at END,
			status     = CASE WHEN status = 'pending' AND confirmation_count + 1 >= ? THEN 'verified' ELSE status END,
			updated_at = ?
		 WHERE id = ?`,
		threshold, now, threshold, now, id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: confirm correction %s", id)
	}
	if err := checkRowsAffected(res, "correction", id); err != nil {
		return nil, err
	}
	return s.GetCorrection(ctx, id)
}

func (s *SQLiteStore) UpdateCorrectionStatus(ctx context.Context, id string, status model.CorrectionStatus) error {
	now := time.Now().UTC()
	var verifiedAt any
	if status == model.CorrectionVerified {
		verifiedAt = now
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE corrections SET status = ?, verified_at = COALESCE(?, verified_at), updated_at = ? WHERE id = ?`,
		string(status), verifiedAt, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update correction status %s", id)
	}
	return checkRowsAffected(res, "correction", id)
}

func (s *SQLiteStore) SetCorrectionEvidence(ctx context.Context, id string, confidence int, note string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE corrections SET evidence_confidence = ?, evidence_note = ?, updated_at = ? WHERE id = ?`,
		confidence, note, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set correction evidence %s", id)
	}
	return checkRowsAffected(res, "correction", id)
}

func (s *SQLiteStore) ListCorrections(ctx context.Context, filter CorrectionFilter) ([]model.Correction, error) {
	query := `SELECT ` + correctionColumns + ` FROM corrections WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, filter.State)
	}
	if filter.ZipCode != "" {
		query += ` AND zip_code = ?`
		args = append(args, filter.ZipCode)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list corrections")
	}
	defer rows.Close()

	var out []model.Correction
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate corrections")
}

func (s *SQLiteStore) AppendConfirmation(ctx context.Context, c model.Confirmation) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO confirmations (id, correction_id, address, source, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.CorrectionID, c.Address, c.Source, c.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: append confirmation")
}

func (s *SQLiteStore) ListConfirmations(ctx context.Context, correctionID string) ([]model.Confirmation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, correction_id, address, source, created_at FROM confirmations
		 WHERE correction_id = ? ORDER BY created_at`,
		correctionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list confirmations")
	}
	defer rows.Close()

	var out []model.Confirmation
	for rows.Next() {
		var c model.Confirmation
		if err := rows.Scan(&c.ID, &c.CorrectionID, &c.Address, &c.Source, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan confirmation")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate confirmations")
}

func (s *SQLiteStore) IncrementVerified(ctx context.Context, v model.VerifiedUtility) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verified_utilities (utility_type, provider_name, state, zip_code, verification_count, updated_at)
		 VALUES (?, ?, ?, ?, 1, ?)
		 ON CONFLICT (utility_type, provider_name, state, zip_code)
		 DO UPDATE SET verification_count = verification_count + 1, updated_at = excluded.updated_at`,
		string(v.UtilityType), v.ProviderName, v.State, v.ZipCode, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: increment verified utility")
}

func (s *SQLiteStore) ListVerified(ctx context.Context, zipCode string, category model.Category) ([]model.VerifiedUtility, error) {
	query := `SELECT utility_type, provider_name, state, zip_code, verification_count, updated_at
	          FROM verified_utilities WHERE 1=1`
	var args []any
	if zipCode != "" {
		query += ` AND zip_code = ?`
		args = append(args, zipCode)
	}
	if category != "" {
		query += ` AND utility_type = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY verification_count DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list verified utilities")
	}
	defer rows.Close()

	var out []model.VerifiedUtility
	for rows.Next() {
		var v model.VerifiedUtility
		var cat string
		if err := rows.Scan(&cat, &v.ProviderName, &v.State, &v.ZipCode, &v.VerificationCount, &v.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan verified utility")
		}
		v.UtilityType = model.Category(cat)
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate verified utilities")
}

func (s *SQLiteStore) UpsertBoundaryRules(ctx context.Context, rules []model.BoundaryRule) error {
	if len(rules) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin upsert rules")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO boundary_rules
			(id, zip_code, city, state, utility_name, category, rule_type, pattern, confidence, sample_count, conflicting_provider, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (zip_code, rule_type, pattern) DO UPDATE SET
			utility_name = excluded.utility_name,
			city = excluded.city,
			state = excluded.state,
			category = excluded.category,
			confidence = excluded.confidence,
			sample_count = excluded.sample_count,
			conflicting_provider = excluded.conflicting_provider,
			updated_at = excluded.updated_at`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare upsert rule")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range rules {
		id := r.ID
		if id == "" {
			id = uuid.New().String()
		}
		createdAt := r.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			id, r.ZipCode, r.City, r.State, r.UtilityName, string(r.Category), string(r.RuleType), r.Pattern,
			r.Confidence, r.SampleCount, r.ConflictingProvider, createdAt, now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: upsert rule %s/%s/%s", r.ZipCode, r.RuleType, r.Pattern)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit upsert rules")
}

func (s *SQLiteStore) ListBoundaryRules(ctx context.Context, zipCode string) ([]model.BoundaryRule, error) {
	query := `SELECT id, zip_code, city, state, utility_name, category, rule_type, pattern, confidence,
	                 sample_count, conflicting_provider, created_at, updated_at
	          FROM boundary_rules`
	var args []any
	if zipCode != "" {
		query += ` WHERE zip_code = ?`
		args = append(args, zipCode)
	}
	query += ` ORDER BY confidence DESC, zip_code, rule_type, pattern`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list boundary rules")
	}
	defer rows.Close()

	var out []model.BoundaryRule
	for rows.Next() {
		var r model.BoundaryRule
		var cat, rt string
		if err := rows.Scan(&r.ID, &r.ZipCode, &r.City, &r.State, &r.UtilityName, &cat, &rt, &r.Pattern,
			&r.Confidence, &r.SampleCount, &r.ConflictingProvider, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan boundary rule")
		}
		r.Category = model.Category(cat)
		r.RuleType = model.RuleType(rt)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate boundary rules")
}

// ReplaceOverrides swaps the override table inside one transaction so readers
// never observe a partially-written table.
func (s *SQLiteStore) ReplaceOverrides(ctx context.Context, overrides []model.Override) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace overrides")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM overrides`); err != nil {
		return eris.Wrap(err, "sqlite: clear overrides")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO overrides (zip_code, street, category, provider, confidence, sample_count, action, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert override")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, o := range overrides {
		if _, err := stmt.ExecContext(ctx,
			o.ZipCode, o.Street, string(o.Category), o.Provider, o.Confidence, o.SampleCount, string(o.Action), now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert override %s/%s", o.ZipCode, o.Street)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit replace overrides")
}

func (s *SQLiteStore) ListOverrides(ctx context.Context) ([]model.Override, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT zip_code, street, category, provider, confidence, sample_count, action, updated_at
		 FROM overrides ORDER BY zip_code, street, category`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list overrides")
	}
	defer rows.Close()

	var out []model.Override
	for rows.Next() {
		var o model.Override
		var cat, action string
		if err := rows.Scan(&o.ZipCode, &o.Street, &cat, &o.Provider, &o.Confidence, &o.SampleCount, &action, &o.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan override")
		}
		o.Category = model.Category(cat)
		o.Action = model.Action(action)
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate overrides")
}

func (s *SQLiteStore) ReplaceZipContexts(ctx context.Context, contexts []model.ZipContext) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace contexts")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM zip_contexts`); err != nil {
		return eris.Wrap(err, "sqlite: clear contexts")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO zip_contexts (zip_code, category, observed_providers, patterns, is_split_territory, context_text, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert context")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, zc := range contexts {
		providers, err := json.Marshal(zc.ObservedProviders)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal observed providers")
		}
		patterns, err := json.Marshal(zc.Patterns)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal patterns")
		}
		if _, err := stmt.ExecContext(ctx,
			zc.ZipCode, string(zc.Category), string(providers), string(patterns), zc.IsSplitTerritory, zc.ContextText, now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert context %s", zc.ZipCode)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit replace contexts")
}

func (s *SQLiteStore) ListZipContexts(ctx context.Context) ([]model.ZipContext, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT zip_code, category, observed_providers, patterns, is_split_territory, context_text, updated_at
		 FROM zip_contexts ORDER BY zip_code, category`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list contexts")
	}
	defer rows.Close()

	var out []model.ZipContext
	for rows.Next() {
		var zc model.ZipContext
		var cat, providers, patterns string
		if err := rows.Scan(&zc.ZipCode, &cat, &providers, &patterns, &zc.IsSplitTerritory, &zc.ContextText, &zc.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan context")
		}
		zc.Category = model.Category(cat)
		if err := json.Unmarshal([]byte(providers), &zc.ObservedProviders); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal observed providers")
		}
		if err := json.Unmarshal([]byte(patterns), &zc.Patterns); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal patterns")
		}
		out = append(out, zc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate contexts")
}

func (s *SQLiteStore) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, table := range []string{"observations", "corrections", "confirmations", "verified_utilities", "boundary_rules", "overrides", "zip_contexts"} {
		var n int64
		// Table names come from the fixed list above, never user input.
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			return nil, eris.Wrapf(err, "sqlite: count %s", table)
		}
		counts[table] = n
	}
	return counts, nil
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

type scannable interface {
	Scan(dest ...any) error
}

func scanCorrection(row scannable) (*model.Correction, error) {
	var c model.Correction
	var utilityType, status string
	var evidenceConfidence sql.NullInt64
	var verifiedAt sql.NullTime

	err := row.Scan(&c.ID, &utilityType, &c.CorrectProvider, &c.CanonicalProvider, &c.State, &c.ZipCode,
		&c.City, &c.Street, &c.IncorrectProvider, &c.ConfirmationCount, &status,
		&evidenceConfidence, &c.EvidenceNote, &c.CreatedAt, &c.UpdatedAt, &verifiedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan correction")
	}

	c.UtilityType = model.Category(utilityType)
	c.Status = model.CorrectionStatus(status)
	if evidenceConfidence.Valid {
		v := int(evidenceConfidence.Int64)
		c.EvidenceConfidence = &v
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		c.VerifiedAt = &t
	}
	return &c, nil
}
