package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/utility-cli/internal/db"
	"github.com/sells-group/utility-cli/internal/model"
)

// PostgresStore implements Store on top of a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects to the given database URL and pings it.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Tests pass a pgxmock pool here.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS observations (
	id            UUID PRIMARY KEY,
	address       TEXT NOT NULL,
	zip_code      TEXT NOT NULL,
	street        TEXT NOT NULL,
	city          TEXT NOT NULL DEFAULT '',
	state         TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL,
	raw_provider  TEXT NOT NULL,
	reported_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS corrections (
	id                  UUID PRIMARY KEY,
	utility_type        TEXT NOT NULL,
	correct_provider    TEXT NOT NULL,
	canonical_provider  TEXT NOT NULL,
	state               TEXT NOT NULL,
	zip_code            TEXT NOT NULL,
	city                TEXT NOT NULL DEFAULT '',
	street              TEXT NOT NULL DEFAULT '',
	incorrect_provider  TEXT NOT NULL DEFAULT '',
	confirmation_count  INT NOT NULL DEFAULT 1,
	status              TEXT NOT NULL DEFAULT 'pending',
	evidence_confidence INT,
	evidence_note       TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL,
	verified_at         TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS confirmations (
	id            UUID PRIMARY KEY,
	correction_id UUID NOT NULL REFERENCES corrections(id),
	address       TEXT NOT NULL DEFAULT '',
	source        TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS verified_utilities (
	utility_type       TEXT NOT NULL,
	provider_name      TEXT NOT NULL,
	state              TEXT NOT NULL,
	zip_code           TEXT NOT NULL,
	verification_count INT NOT NULL DEFAULT 0,
	updated_at         TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (utility_type, provider_name, state, zip_code)
);

CREATE TABLE IF NOT EXISTS boundary_rules (
	id                   UUID PRIMARY KEY,
	zip_code             TEXT NOT NULL,
	city                 TEXT NOT NULL DEFAULT '',
	state                TEXT NOT NULL DEFAULT '',
	utility_name         TEXT NOT NULL,
	category             TEXT NOT NULL,
	rule_type            TEXT NOT NULL,
	pattern              TEXT NOT NULL,
	confidence           DOUBLE PRECISION NOT NULL,
	sample_count         INT NOT NULL,
	conflicting_provider TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL,
	UNIQUE (zip_code, rule_type, pattern)
);

CREATE TABLE IF NOT EXISTS overrides (
	zip_code     TEXT NOT NULL,
	street       TEXT NOT NULL,
	category     TEXT NOT NULL,
	provider     TEXT NOT NULL,
	confidence   DOUBLE PRECISION NOT NULL,
	sample_count INT NOT NULL,
	action       TEXT NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (zip_code, street, category)
);

CREATE TABLE IF NOT EXISTS zip_contexts (
	zip_code           TEXT NOT NULL,
	category           TEXT NOT NULL,
	observed_providers JSONB NOT NULL,
	patterns           JSONB NOT NULL,
	is_split_territory BOOLEAN NOT NULL DEFAULT FALSE,
	context_text       TEXT NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (zip_code, category)
);

CREATE INDEX IF NOT EXISTS idx_observations_zip ON observations(zip_code, category);
CREATE INDEX IF NOT EXISTS idx_corrections_key ON corrections(utility_type, state, zip_code, canonical_provider);
CREATE INDEX IF NOT EXISTS idx_corrections_status ON corrections(status);
CREATE INDEX IF NOT EXISTS idx_confirmations_correction ON confirmations(correction_id);
CREATE INDEX IF NOT EXISTS idx_boundary_rules_zip ON boundary_rules(zip_code);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) InsertObservations(ctx context.Context, observations []model.Observation) (int, error) {
	if len(observations) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(observations))
	for _, obs := range observations {
		id := obs.ID
		if id == "" {
			id = uuid.New().String()
		}
		rows = append(rows, []any{
			id, obs.Address, obs.ZipCode, obs.Street, obs.City, obs.State,
			string(obs.Category), obs.RawProviderName, obs.ReportedAt.UTC(),
		})
	}

	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"observations"},
		[]string{"id", "address", "zip_code", "street", "city", "state", "category", "raw_provider", "reported_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: copy observations")
	}
	return int(n), nil
}

func (s *PostgresStore) ListObservations(ctx context.Context, filter ObservationFilter) ([]model.Observation, error) {
	query := `SELECT id, address, zip_code, street, city, state, category, raw_provider, reported_at
	          FROM observations WHERE ($1 = '' OR zip_code = $1) AND ($2 = '' OR category = $2)
	          ORDER BY zip_code, street, reported_at LIMIT $3`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100000
	}

	rows, err := s.pool.Query(ctx, query, filter.ZipCode, string(filter.Category), limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list observations")
	}
	defer rows.Close()

	var out []model.Observation
	for rows.Next() {
		var o model.Observation
		var cat string
		if err := rows.Scan(&o.ID, &o.Address, &o.ZipCode, &o.Street, &o.City, &o.State, &cat, &o.RawProviderName, &o.ReportedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan observation")
		}
		o.Category = model.Category(cat)
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate observations")
}

func (s *PostgresStore) GetCorrectionByKey(ctx context.Context, key model.NaturalKey) (*model.Correction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+correctionColumns+` FROM corrections
		 WHERE utility_type = $1 AND state = $2 AND zip_code = $3 AND canonical_provider = $4 AND status != 'rejected'
		 ORDER BY created_at LIMIT 1`,
		string(key.UtilityType), key.State, key.ZipCode, key.CanonicalProvider,
	)
	c, err := scanPgCorrection(row)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *PostgresStore) GetCorrection(ctx context.Context, id string) (*model.Correction, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+correctionColumns+` FROM corrections WHERE id = $1`, id)
	c, err := scanPgCorrection(row)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("correction not found: %s", id)
	}
	return c, err
}

func (s *PostgresStore) CreateCorrection(ctx context.Context, c *model.Correction) error {
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO corrections (`+correctionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		c.ID, string(c.UtilityType), c.CorrectProvider, c.CanonicalProvider, c.State, c.ZipCode, c.City, c.Street,
		c.IncorrectProvider, c.ConfirmationCount, string(c.Status), c.EvidenceConfidence, c.EvidenceNote,
		c.CreatedAt, c.UpdatedAt, c.VerifiedAt,
	)
	return eris.Wrap(err, "postgres: insert correction")
}

// ConfirmCorrection increments and conditionally promotes in one statement,
// returning the updated row.
func (s *PostgresStore) ConfirmCorrection(ctx context.Context, id string, threshold int) (*model.Correction, error) {
	now := time.Now().UTC()
	row := s.pool.QueryRow(ctx,
		`UPDATE corrections SET
			confirmation_count = confirmation_count + 1,
			verified_at = CASE WHEN status = 'pending' AND confirmation_count + 1 >= $1 THEN $2 ELSE verified_at END,
			status     = CASE WHEN status = 'pending' AND confirmation_count + 1 >= $1 THEN 'verified' ELSE status END,
			updated_at = $2
		 WHERE id = $3
		 RETURNING `+correctionColumns,
		threshold, now, id,
	)
	c, err := scanPgCorrection(row)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("correction not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: confirm correction %s", id)
	}
	return c, nil
}

func (s *PostgresStore) UpdateCorrectionStatus(ctx context.Context, id string, status model.CorrectionStatus) error {
	now := time.Now().UTC()
	var verifiedAt *time.Time
	if status == model.CorrectionVerified {
		verifiedAt = &now
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE corrections SET status = $1, verified_at = COALESCE($2, verified_at), updated_at = $3 WHERE id = $4`,
		string(status), verifiedAt, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update correction status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("correction not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) SetCorrectionEvidence(ctx context.Context, id string, confidence int, note string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE corrections SET evidence_confidence = $1, evidence_note = $2, updated_at = $3 WHERE id = $4`,
		confidence, note, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set correction evidence %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("correction not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) ListCorrections(ctx context.Context, filter CorrectionFilter) ([]model.Correction, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+correctionColumns+` FROM corrections
		 WHERE ($1 = '' OR status = $1) AND ($2 = '' OR state = $2) AND ($3 = '' OR zip_code = $3)
		 ORDER BY created_at DESC LIMIT $4`,
		string(filter.Status), filter.State, filter.ZipCode, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list corrections")
	}
	defer rows.Close()

	var out []model.Correction
	for rows.Next() {
		c, err := scanPgCorrection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate corrections")
}

func (s *PostgresStore) AppendConfirmation(ctx context.Context, c model.Confirmation) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO confirmations (id, correction_id, address, source, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.CorrectionID, c.Address, c.Source, c.CreatedAt,
	)
	return eris.Wrap(err, "postgres: append confirmation")
}

func (s *PostgresStore) ListConfirmations(ctx context.Context, correctionID string) ([]model.Confirmation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, correction_id, address, source, created_at FROM confirmations
		 WHERE correction_id = $1 ORDER BY created_at`,
		correctionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list confirmations")
	}
	defer rows.Close()

	var out []model.Confirmation
	for rows.Next() {
		var c model.Confirmation
		if err := rows.Scan(&c.ID, &c.CorrectionID, &c.Address, &c.Source, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan confirmation")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate confirmations")
}

func (s *PostgresStore) IncrementVerified(ctx context.Context, v model.VerifiedUtility) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO verified_utilities (utility_type, provider_name, state, zip_code, verification_count, updated_at)
		 VALUES ($1, $2, $3, $4, 1, $5)
		 ON CONFLICT (utility_type, provider_name, state, zip_code)
		 DO UPDATE SET verification_count = verified_utilities.verification_count + 1, updated_at = EXCLUDED.updated_at`,
		string(v.UtilityType), v.ProviderName, v.State, v.ZipCode, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: increment verified utility")
}

func (s *PostgresStore) ListVerified(ctx context.Context, zipCode string, category model.Category) ([]model.VerifiedUtility, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT utility_type, provider_name, state, zip_code, verification_count, updated_at
		 FROM verified_utilities
		 WHERE ($1 = '' OR zip_code = $1) AND ($2 = '' OR utility_type = $2)
		 ORDER BY verification_count DESC`,
		zipCode, string(category),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list verified utilities")
	}
	defer rows.Close()

	var out []model.VerifiedUtility
	for rows.Next() {
		var v model.VerifiedUtility
		var cat string
		if err := rows.Scan(&cat, &v.ProviderName, &v.State, &v.ZipCode, &v.VerificationCount, &v.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan verified utility")
		}
		v.UtilityType = model.Category(cat)
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate verified utilities")
}

func (s *PostgresStore) UpsertBoundaryRules(ctx context.Context, rules []model.BoundaryRule) error {
	if len(rules) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(rules))
	for _, r := range rules {
		id := r.ID
		if id == "" {
			id = uuid.New().String()
		}
		createdAt := r.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		rows = append(rows, []any{
			id, r.ZipCode, r.City, r.State, r.UtilityName, string(r.Category), string(r.RuleType), r.Pattern,
			r.Confidence, r.SampleCount, r.ConflictingProvider, createdAt, now,
		})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "boundary_rules",
		Columns: []string{
			"id", "zip_code", "city", "state", "utility_name", "category", "rule_type", "pattern",
			"confidence", "sample_count", "conflicting_provider", "created_at", "updated_at",
		},
		ConflictKeys: []string{"zip_code", "rule_type", "pattern"},
		UpdateCols: []string{
			"city", "state", "utility_name", "category", "confidence",
			"sample_count", "conflicting_provider", "updated_at",
		},
	}, rows)
	return eris.Wrap(err, "postgres: upsert boundary rules")
}

func (s *PostgresStore) ListBoundaryRules(ctx context.Context, zipCode string) ([]model.BoundaryRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, zip_code, city, state, utility_name, category, rule_type, pattern, confidence,
		        sample_count, conflicting_provider, created_at, updated_at
		 FROM boundary_rules WHERE ($1 = '' OR zip_code = $1)
		 ORDER BY confidence DESC, zip_code, rule_type, pattern`,
		zipCode,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list boundary rules")
	}
	defer rows.Close()

	var out []model.BoundaryRule
	for rows.Next() {
		var r model.BoundaryRule
		var cat, rt string
		if err := rows.Scan(&r.ID, &r.ZipCode, &r.City, &r.State, &r.UtilityName, &cat, &rt, &r.Pattern,
			&r.Confidence, &r.SampleCount, &r.ConflictingProvider, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan boundary rule")
		}
		r.Category = model.Category(cat)
		r.RuleType = model.RuleType(rt)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate boundary rules")
}

func (s *PostgresStore) ReplaceOverrides(ctx context.Context, overrides []model.Override) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace overrides")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM overrides`); err != nil {
		return eris.Wrap(err, "postgres: clear overrides")
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(overrides))
	for _, o := range overrides {
		rows = append(rows, []any{
			o.ZipCode, o.Street, string(o.Category), o.Provider, o.Confidence, o.SampleCount, string(o.Action), now,
		})
	}
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"overrides"},
			[]string{"zip_code", "street", "category", "provider", "confidence", "sample_count", "action", "updated_at"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return eris.Wrap(err, "postgres: copy overrides")
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace overrides")
}

func (s *PostgresStore) ListOverrides(ctx context.Context) ([]model.Override, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT zip_code, street, category, provider, confidence, sample_count, action, updated_at
		 FROM overrides ORDER BY zip_code, street, category`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list overrides")
	}
	defer rows.Close()

	var out []model.Override
	for rows.Next() {
		var o model.Override
		var cat, action string
		if err := rows.Scan(&o.ZipCode, &o.Street, &cat, &o.Provider, &o.Confidence, &o.SampleCount, &action, &o.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan override")
		}
		o.Category = model.Category(cat)
		o.Action = model.Action(action)
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate overrides")
}

func (s *PostgresStore) ReplaceZipContexts(ctx context.Context, contexts []model.ZipContext) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace contexts")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM zip_contexts`); err != nil {
		return eris.Wrap(err, "postgres: clear contexts")
	}

	now := time.Now().UTC()
	for _, zc := range contexts {
		if _, err := tx.Exec(ctx,
			`INSERT INTO zip_contexts (zip_code, category, observed_providers, patterns, is_split_territory, context_text, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			zc.ZipCode, string(zc.Category), zc.ObservedProviders, zc.Patterns, zc.IsSplitTerritory, zc.ContextText, now,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert context %s", zc.ZipCode)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace contexts")
}

func (s *PostgresStore) ListZipContexts(ctx context.Context) ([]model.ZipContext, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT zip_code, category, observed_providers, patterns, is_split_territory, context_text, updated_at
		 FROM zip_contexts ORDER BY zip_code, category`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list contexts")
	}
	defer rows.Close()

	var out []model.ZipContext
	for rows.Next() {
		var zc model.ZipContext
		var cat string
		if err := rows.Scan(&zc.ZipCode, &cat, &zc.ObservedProviders, &zc.Patterns, &zc.IsSplitTerritory, &zc.ContextText, &zc.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan context")
		}
		zc.Category = model.Category(cat)
		out = append(out, zc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate contexts")
}

func (s *PostgresStore) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, table := range []string{"observations", "corrections", "confirmations", "verified_utilities", "boundary_rules", "overrides", "zip_contexts"} {
		var n int64
		if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			return nil, eris.Wrapf(err, "postgres: count %s", table)
		}
		counts[table] = n
	}
	return counts, nil
}

func scanPgCorrection(row pgx.Row) (*model.Correction, error) {
	var c model.Correction
	var utilityType, status string

	err := row.Scan(&c.ID, &utilityType, &c.CorrectProvider, &c.CanonicalProvider, &c.State, &c.ZipCode,
		&c.City, &c.Street, &c.IncorrectProvider, &c.ConfirmationCount, &status,
		&c.EvidenceConfidence, &c.EvidenceNote, &c.CreatedAt, &c.UpdatedAt, &c.VerifiedAt)
	if err != nil {
		return nil, err
	}

	c.UtilityType = model.Category(utilityType)
	c.Status = model.CorrectionStatus(status)
	return &c, nil
}
