package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/probegate/probegate/pkg/models"
)

// PostgresStore implements Store on PostgreSQL with the pgvector
// extension. All vector search runs in SQL using the cosine distance
// operator; everything else is plain parameterized queries.
type PostgresStore struct {
	pool *pgxpool.Pool
	dims int
}

// NewPostgresStore connects a pool and verifies reachability.
func NewPostgresStore(ctx context.Context, url string, maxConns int, dims int) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool, dims: dims}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Migrate creates the schema. Statements are idempotent so startup can
// always run them.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS targets (
			id UUID PRIMARY KEY,
			host TEXT NOT NULL,
			port INT NOT NULL,
			protocol TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			risk_level TEXT NOT NULL DEFAULT 'medium',
			notes TEXT NOT NULL DEFAULT '',
			current_context_id UUID,
			first_seen TIMESTAMPTZ NOT NULL,
			last_activity TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (host, port, protocol)
		)`,
		`CREATE TABLE IF NOT EXISTS target_contexts (
			id UUID PRIMARY KEY,
			target_id UUID NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
			version INT NOT NULL,
			parent_version_id UUID,
			user_context TEXT NOT NULL DEFAULT '',
			agent_context TEXT NOT NULL DEFAULT '',
			change_type TEXT NOT NULL DEFAULT 'initial',
			change_summary TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (target_id, version)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS missions (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			goal TEXT NOT NULL,
			mission_type TEXT NOT NULL DEFAULT 'general',
			hypothesis TEXT NOT NULL DEFAULT '',
			scope JSONB NOT NULL DEFAULT '{}',
			status TEXT NOT NULL DEFAULT 'active',
			context JSONB NOT NULL DEFAULT '{}',
			goal_embedding vector(%d),
			hypothesis_embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			completed_at TIMESTAMPTZ
		)`, s.dims, s.dims),
		`CREATE TABLE IF NOT EXISTS mission_targets (
			mission_id UUID NOT NULL REFERENCES missions(id) ON DELETE CASCADE,
			target_id UUID NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
			PRIMARY KEY (mission_id, target_id)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS mission_actions (
			id UUID PRIMARY KEY,
			mission_id UUID NOT NULL REFERENCES missions(id) ON DELETE CASCADE,
			target_id UUID,
			technique TEXT NOT NULL,
			hypothesis TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL DEFAULT '',
			result TEXT NOT NULL DEFAULT '',
			success BOOLEAN,
			learning TEXT NOT NULL DEFAULT '',
			action_embedding vector(%d),
			result_embedding vector(%d),
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.dims, s.dims),
		`CREATE INDEX IF NOT EXISTS idx_actions_mission_created
			ON mission_actions (mission_id, created_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_embedding
			ON mission_actions USING ivfflat (action_embedding vector_cosine_ops) WITH (lists = 100)`,
		`CREATE TABLE IF NOT EXISTS http_requests (
			id UUID PRIMARY KEY,
			target_id UUID,
			mission_id UUID,
			action_id UUID,
			method TEXT NOT NULL,
			url TEXT NOT NULL,
			final_url TEXT NOT NULL DEFAULT '',
			host TEXT NOT NULL,
			path TEXT NOT NULL DEFAULT '',
			query TEXT NOT NULL DEFAULT '',
			request_headers JSONB NOT NULL DEFAULT '{}',
			request_cookies JSONB NOT NULL DEFAULT '{}',
			request_body TEXT NOT NULL DEFAULT '',
			request_size BIGINT NOT NULL DEFAULT 0,
			response_status INT NOT NULL DEFAULT 0,
			response_headers JSONB NOT NULL DEFAULT '{}',
			response_body TEXT NOT NULL DEFAULT '',
			response_size BIGINT NOT NULL DEFAULT 0,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			tags TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_target_created
			ON http_requests (target_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_mission_created
			ON http_requests (mission_id, created_at DESC)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS technique_library (
			id UUID PRIMARY KEY,
			category TEXT NOT NULL,
			technique TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			embedding vector(%d),
			success_count INT NOT NULL DEFAULT 0,
			failure_count INT NOT NULL DEFAULT 0,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.dims),
		`CREATE INDEX IF NOT EXISTS idx_library_category ON technique_library (category)`,
		`CREATE INDEX IF NOT EXISTS idx_library_embedding
			ON technique_library USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	log.Info().Msg("database schema ready")
	return nil
}

// ── helpers ─────────────────────────────────────────────────

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullVec(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return vectorLiteral(v)
}

func jsonArg(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func headerArg(h map[string]string) string {
	if len(h) == 0 {
		return "{}"
	}
	b, err := json.Marshal(h)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func strOf(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

type scanner interface{ Scan(dest ...any) error }

// ── Target Store ────────────────────────────────────────────

const targetCols = `id, host, port, protocol, title, status, risk_level, notes,
	current_context_id, first_seen, last_activity, created_at, updated_at`

func scanTarget(row scanner) (*models.Target, error) {
	var t models.Target
	var curCtx *string
	if err := row.Scan(&t.ID, &t.Host, &t.Port, &t.Protocol, &t.Title, &t.Status,
		&t.RiskLevel, &t.Notes, &curCtx, &t.FirstSeen, &t.LastActivity,
		&t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.CurrentContextID = strOf(curCtx)
	return &t, nil
}

func (s *PostgresStore) CreateTarget(ctx context.Context, t *models.Target) error {
	prepareTarget(t)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO targets (id, host, port, protocol, title, status, risk_level, notes,
			first_seen, last_activity, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		t.ID, t.Host, t.Port, t.Protocol, t.Title, t.Status, t.RiskLevel, t.Notes,
		t.FirstSeen, t.LastActivity, t.CreatedAt, t.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict{Entity: "target", Detail: t.Endpoint() + " already exists"}
	}
	if err != nil {
		return fmt.Errorf("create target: %w", err)
	}
	return nil
}

func prepareTarget(t *models.Target) {
	now := time.Now().UTC()
	t.Host, t.Port = normalizeEndpoint(t.Host, t.Port, t.Protocol)
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = models.TargetActive
	}
	if t.RiskLevel == "" {
		t.RiskLevel = models.RiskMedium
	}
	if t.FirstSeen.IsZero() {
		t.FirstSeen = now
	}
	if t.LastActivity.IsZero() {
		t.LastActivity = now
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
}

func (s *PostgresStore) GetTarget(ctx context.Context, id string) (*models.Target, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+targetCols+` FROM targets WHERE id = $1`, id)
	t, err := scanTarget(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound{Entity: "target", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) GetTargetByEndpoint(ctx context.Context, host string, port int, protocol string) (*models.Target, error) {
	host, port = normalizeEndpoint(host, port, protocol)
	row := s.pool.QueryRow(ctx, `SELECT `+targetCols+`
		FROM targets WHERE host = $1 AND port = $2 AND protocol = $3`,
		host, port, protocol)
	t, err := scanTarget(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound{Entity: "target", Key: fmt.Sprintf("%s://%s:%d", protocol, host, port)}
	}
	if err != nil {
		return nil, fmt.Errorf("get target by endpoint: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) UpsertTarget(ctx context.Context, t *models.Target) (*models.Target, bool, error) {
	existing, err := s.GetTargetByEndpoint(ctx, t.Host, t.Port, t.Protocol)
	if err == nil {
		_ = s.TouchTarget(ctx, existing.ID, time.Now().UTC())
		existing.LastActivity = time.Now().UTC()
		return existing, false, nil
	}
	if !IsNotFound(err) {
		return nil, false, err
	}
	if err := s.CreateTarget(ctx, t); err != nil {
		// Lost an insert race: another caller created the endpoint first.
		var conflict ErrConflict
		if errors.As(err, &conflict) {
			existing, gerr := s.GetTargetByEndpoint(ctx, t.Host, t.Port, t.Protocol)
			if gerr != nil {
				return nil, false, gerr
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	return t, true, nil
}

func (s *PostgresStore) UpdateTarget(ctx context.Context, t *models.Target) error {
	t.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE targets SET title = $2, status = $3, risk_level = $4, notes = $5, updated_at = $6
		WHERE id = $1`,
		t.ID, t.Title, t.Status, t.RiskLevel, t.Notes, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound{Entity: "target", Key: t.ID}
	}
	return nil
}

func (s *PostgresStore) TouchTarget(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE targets SET last_activity = $2, updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch target: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTargets(ctx context.Context, f TargetFilter) ([]models.Target, error) {
	query := `SELECT ` + targetCols + ` FROM targets WHERE 1=1`
	args := []any{}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.RiskLevel != "" {
		args = append(args, f.RiskLevel)
		query += fmt.Sprintf(" AND risk_level = $%d", len(args))
	}
	if f.HostContains != "" {
		args = append(args, "%"+f.HostContains+"%")
		query += fmt.Sprintf(" AND host ILIKE $%d", len(args))
	}
	query += " ORDER BY last_activity DESC"
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()
	var out []models.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) TargetSummary(ctx context.Context, id string) (*models.TargetSummary, error) {
	t, err := s.GetTarget(ctx, id)
	if err != nil {
		return nil, err
	}
	sum := &models.TargetSummary{Target: t}
	row := s.pool.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM http_requests WHERE target_id = $1),
		(SELECT COALESCE(MAX(version), 0) FROM target_contexts WHERE target_id = $1),
		(SELECT COUNT(*) FROM mission_actions WHERE target_id = $1)`, id)
	if err := row.Scan(&sum.RequestCount, &sum.ContextVersion, &sum.ActionCount); err != nil {
		return nil, fmt.Errorf("target summary: %w", err)
	}
	if sum.ContextVersion > 0 {
		if head, err := s.GetCurrentContext(ctx, id); err == nil {
			sum.ContextExcerpt = contextExcerpt(head)
		}
	}
	return sum, nil
}

// ── Context Store ───────────────────────────────────────────

const contextCols = `id, target_id, version, parent_version_id, user_context, agent_context,
	change_type, change_summary, created_by, created_at`

func scanContext(row scanner) (*models.TargetContext, error) {
	var tc models.TargetContext
	var parent *string
	if err := row.Scan(&tc.ID, &tc.TargetID, &tc.Version, &parent, &tc.UserContext,
		&tc.AgentContext, &tc.ChangeType, &tc.ChangeSummary, &tc.CreatedBy, &tc.CreatedAt); err != nil {
		return nil, err
	}
	tc.ParentVersionID = strOf(parent)
	return &tc, nil
}

func (s *PostgresStore) AppendContext(ctx context.Context, tc *models.TargetContext, expectedVersion int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append context: %w", err)
	}
	defer tx.Rollback(ctx)

	// Row lock on the target serializes concurrent appends.
	var headID *string
	err = tx.QueryRow(ctx,
		`SELECT current_context_id FROM targets WHERE id = $1 FOR UPDATE`,
		tc.TargetID).Scan(&headID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound{Entity: "target", Key: tc.TargetID}
	}
	if err != nil {
		return fmt.Errorf("lock target: %w", err)
	}

	var headVersion int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM target_contexts WHERE target_id = $1`,
		tc.TargetID).Scan(&headVersion); err != nil {
		return fmt.Errorf("head version: %w", err)
	}
	if expectedVersion >= 0 && expectedVersion != headVersion {
		return ErrConflict{
			Entity: "target_context",
			Detail: fmt.Sprintf("expected version %d, head is %d", expectedVersion, headVersion),
		}
	}

	tc.ID = uuid.NewString()
	tc.Version = headVersion + 1
	tc.ParentVersionID = strOf(headID)
	tc.CreatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx, `
		INSERT INTO target_contexts (id, target_id, version, parent_version_id, user_context,
			agent_context, change_type, change_summary, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		tc.ID, tc.TargetID, tc.Version, nullStr(tc.ParentVersionID),
		tc.UserContext, tc.AgentContext, tc.ChangeType, tc.ChangeSummary,
		tc.CreatedBy, tc.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict{Entity: "target_context", Detail: "concurrent append"}
	}
	if err != nil {
		return fmt.Errorf("insert context: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE targets SET current_context_id = $2, updated_at = $3 WHERE id = $1`,
		tc.TargetID, tc.ID, tc.CreatedAt); err != nil {
		return fmt.Errorf("advance context head: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetCurrentContext(ctx context.Context, targetID string) (*models.TargetContext, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+contextCols+`
		FROM target_contexts WHERE target_id = $1 ORDER BY version DESC LIMIT 1`, targetID)
	tc, err := scanContext(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound{Entity: "target_context", Key: targetID}
	}
	if err != nil {
		return nil, fmt.Errorf("current context: %w", err)
	}
	return tc, nil
}

func (s *PostgresStore) GetContextVersion(ctx context.Context, targetID string, version int) (*models.TargetContext, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+contextCols+`
		FROM target_contexts WHERE target_id = $1 AND version = $2`, targetID, version)
	tc, err := scanContext(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound{Entity: "target_context", Key: fmt.Sprintf("%s@v%d", targetID, version)}
	}
	if err != nil {
		return nil, fmt.Errorf("context version: %w", err)
	}
	return tc, nil
}

func (s *PostgresStore) ContextHistory(ctx context.Context, targetID string, limit int) ([]models.TargetContext, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `SELECT `+contextCols+`
		FROM target_contexts WHERE target_id = $1 ORDER BY version DESC LIMIT $2`,
		targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("context history: %w", err)
	}
	defer rows.Close()
	var out []models.TargetContext
	for rows.Next() {
		tc, err := scanContext(rows)
		if err != nil {
			return nil, fmt.Errorf("scan context: %w", err)
		}
		out = append(out, *tc)
	}
	return out, rows.Err()
}

// ── Mission Store ───────────────────────────────────────────

const missionCols = `id, name, goal, mission_type, hypothesis, scope, status, context,
	created_at, updated_at, completed_at`

func scanMission(row scanner) (*models.Mission, error) {
	var m models.Mission
	var scopeRaw, contextRaw []byte
	if err := row.Scan(&m.ID, &m.Name, &m.Goal, &m.MissionType, &m.Hypothesis, &scopeRaw,
		&m.Status, &contextRaw, &m.CreatedAt, &m.UpdatedAt, &m.CompletedAt); err != nil {
		return nil, err
	}
	if len(scopeRaw) > 0 {
		_ = json.Unmarshal(scopeRaw, &m.Scope)
	}
	if len(contextRaw) > 0 {
		_ = json.Unmarshal(contextRaw, &m.Context)
	}
	return &m, nil
}

func (s *PostgresStore) CreateMission(ctx context.Context, m *models.Mission) error {
	now := time.Now().UTC()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = models.MissionActive
	}
	if m.MissionType == "" {
		m.MissionType = "general"
	}
	m.CreatedAt = now
	m.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO missions (id, name, goal, mission_type, hypothesis, scope, status, context,
			goal_embedding, hypothesis_embedding, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6::jsonb,$7,$8::jsonb,$9::vector,$10::vector,$11,$12)`,
		m.ID, m.Name, m.Goal, m.MissionType, m.Hypothesis, jsonArg(m.Scope), m.Status,
		jsonArg(m.Context), nullVec(m.GoalEmbedding), nullVec(m.HypothesisEmbedding),
		m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create mission: %w", err)
	}
	for _, tid := range m.TargetIDs {
		if err := s.AttachMissionTarget(ctx, m.ID, tid); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) GetMission(ctx context.Context, id string) (*models.Mission, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+missionCols+` FROM missions WHERE id = $1`, id)
	m, err := scanMission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound{Entity: "mission", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get mission: %w", err)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT target_id FROM mission_targets WHERE mission_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("mission targets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tid string
		if err := rows.Scan(&tid); err != nil {
			return nil, err
		}
		m.TargetIDs = append(m.TargetIDs, tid)
	}
	return m, rows.Err()
}

func (s *PostgresStore) UpdateMission(ctx context.Context, m *models.Mission) error {
	m.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE missions SET name = $2, goal = $3, mission_type = $4, hypothesis = $5,
			scope = $6::jsonb, status = $7, context = $8::jsonb, updated_at = $9, completed_at = $10
		WHERE id = $1`,
		m.ID, m.Name, m.Goal, m.MissionType, m.Hypothesis, jsonArg(m.Scope),
		m.Status, jsonArg(m.Context), m.UpdatedAt, m.CompletedAt)
	if err != nil {
		return fmt.Errorf("update mission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound{Entity: "mission", Key: m.ID}
	}
	return nil
}

func (s *PostgresStore) ListMissions(ctx context.Context, f MissionFilter) ([]models.Mission, error) {
	query := `SELECT ` + missionCols + ` FROM missions`
	args := []any{}
	if f.Status != "" {
		args = append(args, f.Status)
		query += " WHERE status = $1"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	defer rows.Close()
	var out []models.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mission: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AttachMissionTarget(ctx context.Context, missionID, targetID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO mission_targets (mission_id, target_id)
		VALUES ($1,$2) ON CONFLICT DO NOTHING`, missionID, targetID)
	if err != nil {
		return fmt.Errorf("attach mission target: %w", err)
	}
	return nil
}

// ── Action Store ────────────────────────────────────────────

const actionCols = `id, mission_id, target_id, technique, hypothesis, payload,
	result, success, learning, metadata, created_at`

func scanAction(row scanner) (*models.MissionAction, error) {
	var a models.MissionAction
	var targetID *string
	var meta []byte
	if err := row.Scan(&a.ID, &a.MissionID, &targetID, &a.Technique, &a.Hypothesis,
		&a.Payload, &a.Result, &a.Success, &a.Learning, &meta, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.TargetID = strOf(targetID)
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &a.Metadata)
	}
	return &a, nil
}

func (s *PostgresStore) RecordAction(ctx context.Context, a *models.MissionAction) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO mission_actions (id, mission_id, target_id, technique, hypothesis,
			payload, result, success, learning, action_embedding, result_embedding,
			metadata, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10::vector,$11::vector,$12::jsonb,$13)`,
		a.ID, a.MissionID, nullStr(a.TargetID), a.Technique, a.Hypothesis,
		a.Payload, a.Result, a.Success, a.Learning, nullVec(a.ActionEmbedding),
		nullVec(a.ResultEmbedding), jsonArg(a.Metadata), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("record action: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActions(ctx context.Context, missionID string, limit int) ([]models.MissionAction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `SELECT `+actionCols+`
		FROM mission_actions WHERE mission_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		missionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()
	var out []models.MissionAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) LatestAction(ctx context.Context, missionID string) (*models.MissionAction, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+actionCols+`
		FROM mission_actions WHERE mission_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`,
		missionID)
	a, err := scanAction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound{Entity: "mission_action", Key: missionID}
	}
	if err != nil {
		return nil, fmt.Errorf("latest action: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) LinkRecentRequests(ctx context.Context, actionID, missionID string, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE http_requests SET action_id = $1
		WHERE id IN (
			SELECT id FROM http_requests WHERE mission_id = $2
			ORDER BY created_at DESC, id DESC LIMIT $3
		)`, actionID, missionID, n)
	if err != nil {
		return 0, fmt.Errorf("link recent requests: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) SimilarActions(ctx context.Context, embedding []float32, missionID string, limit int, minScore float64) ([]models.ActionMatch, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + actionCols + `, 1 - (action_embedding <=> $1::vector) AS score
		FROM mission_actions WHERE action_embedding IS NOT NULL`
	args := []any{vectorLiteral(embedding)}
	if missionID != "" {
		args = append(args, missionID)
		query += fmt.Sprintf(" AND mission_id = $%d", len(args))
	}
	args = append(args, minScore)
	query += fmt.Sprintf(" AND 1 - (action_embedding <=> $1::vector) >= $%d", len(args))
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY action_embedding <=> $1::vector LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("similar actions: %w", err)
	}
	defer rows.Close()
	var out []models.ActionMatch
	for rows.Next() {
		var a models.MissionAction
		var targetID *string
		var meta []byte
		var score float64
		if err := rows.Scan(&a.ID, &a.MissionID, &targetID, &a.Technique, &a.Hypothesis,
			&a.Payload, &a.Result, &a.Success, &a.Learning, &meta, &a.CreatedAt, &score); err != nil {
			return nil, fmt.Errorf("scan action match: %w", err)
		}
		a.TargetID = strOf(targetID)
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &a.Metadata)
		}
		action := a
		out = append(out, models.ActionMatch{Action: &action, Score: score})
	}
	return out, rows.Err()
}

func (s *PostgresStore) TechniqueStats(ctx context.Context, missionID string) ([]models.TechniqueStat, error) {
	query := `SELECT technique, COUNT(*) AS uses,
		COUNT(*) FILTER (WHERE success IS TRUE) AS successes,
		COUNT(*) FILTER (WHERE success IS FALSE) AS failures,
		MAX(created_at) AS last_used
		FROM mission_actions`
	args := []any{}
	if missionID != "" {
		args = append(args, missionID)
		query += " WHERE mission_id = $1"
	}
	query += " GROUP BY technique ORDER BY uses DESC, technique"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("technique stats: %w", err)
	}
	defer rows.Close()
	return scanStats(rows)
}

func scanStats(rows pgx.Rows) ([]models.TechniqueStat, error) {
	var out []models.TechniqueStat
	for rows.Next() {
		var st models.TechniqueStat
		if err := rows.Scan(&st.Technique, &st.Uses, &st.Successes, &st.Failures, &st.LastUsed); err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		if decided := st.Successes + st.Failures; decided > 0 {
			st.SuccessRate = float64(st.Successes) / float64(decided)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SearchTechniques(ctx context.Context, f TechniqueFilter) ([]models.TechniqueStat, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	minUses := f.MinUses
	if minUses <= 0 {
		minUses = 1
	}
	query := `SELECT a.technique, COUNT(*) AS uses,
		COUNT(*) FILTER (WHERE a.success IS TRUE) AS successes,
		COUNT(*) FILTER (WHERE a.success IS FALSE) AS failures,
		MAX(a.created_at) AS last_used
		FROM mission_actions a
		JOIN missions m ON m.id = a.mission_id
		WHERE 1=1`
	args := []any{}
	if f.MissionType != "" {
		args = append(args, f.MissionType)
		query += fmt.Sprintf(" AND m.mission_type = $%d", len(args))
	}
	if f.TechniqueSubstring != "" {
		args = append(args, "%"+f.TechniqueSubstring+"%")
		query += fmt.Sprintf(" AND a.technique ILIKE $%d", len(args))
	}
	args = append(args, minUses)
	query += fmt.Sprintf(" GROUP BY a.technique HAVING COUNT(*) >= $%d", len(args))
	if f.SuccessOnly {
		query += " AND COUNT(*) FILTER (WHERE a.success IS TRUE) > 0"
	}
	if f.MinSuccessRate > 0 {
		args = append(args, f.MinSuccessRate)
		query += fmt.Sprintf(` AND COALESCE(COUNT(*) FILTER (WHERE a.success IS TRUE)::float
			/ NULLIF(COUNT(*) FILTER (WHERE a.success IS NOT NULL), 0), 0) >= $%d`, len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY COALESCE(COUNT(*) FILTER (WHERE a.success IS TRUE)::float
		/ NULLIF(COUNT(*) FILTER (WHERE a.success IS NOT NULL), 0), 0) DESC,
		uses DESC, a.technique LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search techniques: %w", err)
	}
	defer rows.Close()
	return scanStats(rows)
}

func (s *PostgresStore) TechniqueDetail(ctx context.Context, technique string) (*models.TechniqueStat, error) {
	row := s.pool.QueryRow(ctx, `SELECT technique, COUNT(*) AS uses,
		COUNT(*) FILTER (WHERE success IS TRUE) AS successes,
		COUNT(*) FILTER (WHERE success IS FALSE) AS failures,
		MAX(created_at) AS last_used
		FROM mission_actions WHERE technique = $1 GROUP BY technique`, technique)
	var st models.TechniqueStat
	err := row.Scan(&st.Technique, &st.Uses, &st.Successes, &st.Failures, &st.LastUsed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound{Entity: "technique", Key: technique}
	}
	if err != nil {
		return nil, fmt.Errorf("technique detail: %w", err)
	}
	if decided := st.Successes + st.Failures; decided > 0 {
		st.SuccessRate = float64(st.Successes) / float64(decided)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT learning FROM mission_actions
		WHERE technique = $1 AND success IS FALSE AND learning <> ''
		ORDER BY created_at DESC, id DESC LIMIT 5`, technique)
	if err != nil {
		return nil, fmt.Errorf("technique learnings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("scan learning: %w", err)
		}
		st.FailedLearnings = append(st.FailedLearnings, l)
	}
	return &st, rows.Err()
}

// ── Request Store ───────────────────────────────────────────

const requestCols = `id, target_id, mission_id, action_id, method, url, final_url, host, path, query,
	request_headers, request_cookies, request_body, request_size, response_status,
	response_headers, response_body, response_size, duration_ms, error, tags, created_at`

func scanRequest(row scanner) (*models.HTTPRequest, error) {
	var r models.HTTPRequest
	var targetID, missionID, actionID *string
	var reqHeaders, reqCookies, respHeaders []byte
	if err := row.Scan(&r.ID, &targetID, &missionID, &actionID, &r.Method, &r.URL,
		&r.FinalURL, &r.Host, &r.Path, &r.Query, &reqHeaders, &reqCookies,
		&r.RequestBody, &r.RequestSize, &r.ResponseStatus, &respHeaders,
		&r.ResponseBody, &r.ResponseSize, &r.DurationMS, &r.Error, &r.Tags, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.TargetID = strOf(targetID)
	r.MissionID = strOf(missionID)
	r.ActionID = strOf(actionID)
	if len(reqHeaders) > 0 {
		_ = json.Unmarshal(reqHeaders, &r.RequestHeaders)
	}
	if len(reqCookies) > 0 {
		_ = json.Unmarshal(reqCookies, &r.RequestCookies)
	}
	if len(respHeaders) > 0 {
		_ = json.Unmarshal(respHeaders, &r.ResponseHeaders)
	}
	return &r, nil
}

func (s *PostgresStore) InsertRequest(ctx context.Context, r *models.HTTPRequest) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO http_requests (id, target_id, mission_id, action_id, method, url,
			final_url, host, path, query, request_headers, request_cookies, request_body,
			request_size, response_status, response_headers, response_body, response_size,
			duration_ms, error, tags, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::jsonb,$12::jsonb,$13,$14,$15,
			$16::jsonb,$17,$18,$19,$20,$21,$22)`,
		r.ID, nullStr(r.TargetID), nullStr(r.MissionID), nullStr(r.ActionID),
		r.Method, r.URL, r.FinalURL, r.Host, r.Path, r.Query,
		headerArg(r.RequestHeaders), headerArg(r.RequestCookies), r.RequestBody,
		r.RequestSize, r.ResponseStatus, headerArg(r.ResponseHeaders), r.ResponseBody,
		r.ResponseSize, r.DurationMS, r.Error, r.Tags, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRequest(ctx context.Context, id string) (*models.HTTPRequest, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+requestCols+` FROM http_requests WHERE id = $1`, id)
	r, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound{Entity: "http_request", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListRequestsByTarget(ctx context.Context, targetID string, limit int) ([]models.HTTPRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryRequests(ctx, `SELECT `+requestCols+`
		FROM http_requests WHERE target_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		targetID, limit)
}

func (s *PostgresStore) LinkRequestToAction(ctx context.Context, requestID, actionID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE http_requests SET action_id = $2 WHERE id = $1`, requestID, actionID)
	if err != nil {
		return fmt.Errorf("link request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound{Entity: "http_request", Key: requestID}
	}
	return nil
}

func (s *PostgresStore) RecentRequests(ctx context.Context, missionID string, limit int) ([]models.HTTPRequest, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryRequests(ctx, `SELECT `+requestCols+`
		FROM http_requests
		WHERE mission_id = $1
		   OR action_id IN (SELECT id FROM mission_actions WHERE mission_id = $1)
		ORDER BY created_at DESC, id DESC LIMIT $2`,
		missionID, limit)
}

func (s *PostgresStore) SearchRequests(ctx context.Context, f RequestFilter) ([]models.HTTPRequest, error) {
	query := `SELECT ` + requestCols + ` FROM http_requests WHERE 1=1`
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND "+cond, len(args))
	}
	if f.TargetID != "" {
		add("target_id = $%d", f.TargetID)
	}
	if f.MissionID != "" {
		add("mission_id = $%d", f.MissionID)
	}
	if f.Method != "" {
		add("method = $%d", strings.ToUpper(f.Method))
	}
	if f.Status != 0 {
		add("response_status = $%d", f.Status)
	}
	if f.HostContains != "" {
		add("host ILIKE $%d", "%"+f.HostContains+"%")
	}
	if f.PathContains != "" {
		add("path ILIKE $%d", "%"+f.PathContains+"%")
	}
	if f.Tag != "" {
		add("$%d = ANY(tags)", f.Tag)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return s.queryRequests(ctx, query, args...)
}

func (s *PostgresStore) queryRequests(ctx context.Context, query string, args ...any) ([]models.HTTPRequest, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()
	var out []models.HTTPRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// ── Library Store ───────────────────────────────────────────

const libraryCols = `id, category, technique, description, content,
	success_count, failure_count, metadata, created_at, updated_at`

func scanLibrary(row scanner) (*models.LibraryEntry, error) {
	var e models.LibraryEntry
	var meta []byte
	if err := row.Scan(&e.ID, &e.Category, &e.Technique, &e.Description, &e.Content,
		&e.SuccessCount, &e.FailureCount, &meta, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &e.Metadata)
	}
	return &e, nil
}

func (s *PostgresStore) AddLibraryEntry(ctx context.Context, e *models.LibraryEntry) error {
	if len(e.Embedding) > 0 {
		var existingID string
		var score float64
		err := s.pool.QueryRow(ctx, `
			SELECT id, 1 - (embedding <=> $1::vector) AS score
			FROM technique_library
			WHERE category = $2 AND embedding IS NOT NULL
			ORDER BY embedding <=> $1::vector LIMIT 1`,
			vectorLiteral(e.Embedding), e.Category).Scan(&existingID, &score)
		if err == nil && score >= DuplicateThreshold {
			return ErrDuplicate{ExistingID: existingID, Score: score}
		}
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("duplicate check: %w", err)
		}
	}

	now := time.Now().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = now
	e.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO technique_library (id, category, technique, description, content,
			embedding, success_count, failure_count, metadata, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6::vector,$7,$8,$9::jsonb,$10,$11)`,
		e.ID, e.Category, e.Technique, e.Description, e.Content,
		nullVec(e.Embedding), e.SuccessCount, e.FailureCount,
		jsonArg(e.Metadata), e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("add library entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetLibraryEntry(ctx context.Context, id string) (*models.LibraryEntry, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+libraryCols+` FROM technique_library WHERE id = $1`, id)
	e, err := scanLibrary(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound{Entity: "library_entry", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get library entry: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) UpdateLibraryEntry(ctx context.Context, e *models.LibraryEntry) error {
	e.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE technique_library SET technique = $2, description = $3, content = $4,
			metadata = $5::jsonb, updated_at = $6
		WHERE id = $1`,
		e.ID, e.Technique, e.Description, e.Content, jsonArg(e.Metadata), e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update library entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound{Entity: "library_entry", Key: e.ID}
	}
	return nil
}

func (s *PostgresStore) SearchLibrary(ctx context.Context, embedding []float32, category string, limit int, minScore float64) ([]models.LibraryMatch, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + libraryCols + `, 1 - (embedding <=> $1::vector) AS score
		FROM technique_library WHERE embedding IS NOT NULL`
	args := []any{vectorLiteral(embedding)}
	if category != "" {
		args = append(args, category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	args = append(args, minScore)
	query += fmt.Sprintf(" AND 1 - (embedding <=> $1::vector) >= $%d", len(args))
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY embedding <=> $1::vector LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search library: %w", err)
	}
	defer rows.Close()
	var out []models.LibraryMatch
	for rows.Next() {
		var e models.LibraryEntry
		var meta []byte
		var score float64
		if err := rows.Scan(&e.ID, &e.Category, &e.Technique, &e.Description, &e.Content,
			&e.SuccessCount, &e.FailureCount, &meta, &e.CreatedAt, &e.UpdatedAt, &score); err != nil {
			return nil, fmt.Errorf("scan library match: %w", err)
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &e.Metadata)
		}
		entry := e
		out = append(out, models.LibraryMatch{Entry: &entry, Score: score})
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecordLibraryOutcome(ctx context.Context, id string, success bool) (*models.LibraryEntry, error) {
	col := "failure_count"
	if success {
		col = "success_count"
	}
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(
		`UPDATE technique_library SET %s = %s + 1, updated_at = now() WHERE id = $1`, col, col), id)
	if err != nil {
		return nil, fmt.Errorf("record outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound{Entity: "library_entry", Key: id}
	}
	return s.GetLibraryEntry(ctx, id)
}

func (s *PostgresStore) LibraryStats(ctx context.Context) (*models.LibraryStats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category, COUNT(*),
			COALESCE(AVG(CASE WHEN success_count + failure_count > 0
				THEN success_count::float / (success_count + failure_count)
				END), 0)
		FROM technique_library GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("library stats: %w", err)
	}
	defer rows.Close()
	stats := &models.LibraryStats{Categories: map[string]models.CatStats{}}
	for rows.Next() {
		var cat string
		var cs models.CatStats
		if err := rows.Scan(&cat, &cs.Entries, &cs.AvgSuccessRate); err != nil {
			return nil, fmt.Errorf("scan library stats: %w", err)
		}
		stats.Categories[cat] = cs
		stats.TotalEntries += cs.Entries
	}
	return stats, rows.Err()
}
