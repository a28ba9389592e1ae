package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"NewsAlerts/internal/domain"
	"NewsAlerts/internal/ports"
)

const uniqueViolation = "23505"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS alerts (
		alert_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		main_category TEXT NOT NULL,
		sub_categories JSONB NOT NULL DEFAULT '[]',
		followup_questions JSONB NOT NULL DEFAULT '[]',
		custom_question TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		schedule JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS alerts_user_idx ON alerts (user_id)`,
	`CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		country_code TEXT NOT NULL DEFAULT '',
		phone_number TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS alert_intents (
		alert_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		intent JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (alert_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS articles (
		alert_id TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		user_id TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (alert_id, content_hash)
	)`,
	`CREATE TABLE IF NOT EXISTS dispatch_records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		alert_id TEXT NOT NULL,
		template_name TEXT NOT NULL,
		broadcast_name TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL DEFAULT '',
		article_hash TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		payload JSONB,
		response JSONB,
		message_sent BOOLEAN NOT NULL,
		reason TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS dispatch_sent_content_uniq
		ON dispatch_records (user_id, template_name, content_hash) WHERE message_sent`,
	`CREATE INDEX IF NOT EXISTS dispatch_article_idx
		ON dispatch_records (user_id, template_name, article_hash) WHERE message_sent`,
	`CREATE INDEX IF NOT EXISTS dispatch_recent_idx
		ON dispatch_records (user_id, template_name, created_at DESC)`,
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore persists the same repositories as MongoStore in Postgres.
type PostgresStore struct {
	db *sql.DB
}

var _ ports.Store = (*PostgresStore)(nil)

// OpenPostgres opens a pgx-backed sql.DB and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := NewPostgresStore(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wires an existing sql.DB.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the idempotent schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

var alertColumns = []string{
	"alert_id", "user_id", "main_category", "sub_categories", "followup_questions",
	"custom_question", "is_active", "schedule", "created_at", "updated_at",
}

func (s *PostgresStore) ListActiveAlerts(ctx context.Context) ([]domain.Alert, error) {
	query, args, err := psql.Select(alertColumns...).
		From("alerts").
		Where(sq.Eq{"is_active": true}).
		OrderBy("created_at ASC", "alert_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return alerts, nil
}

func (s *PostgresStore) GetAlert(ctx context.Context, alertID string) (*domain.Alert, error) {
	query, args, err := psql.Select(alertColumns...).From("alerts").Where(sq.Eq{"alert_id": alertID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	alert, err := scanAlert(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (s *PostgresStore) CountUserAlerts(ctx context.Context, userID string) (int, error) {
	query, args, err := psql.Select("COUNT(*)").From("alerts").Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count alerts: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) GetIntent(ctx context.Context, alertID, userID string) (*domain.AlertIntent, error) {
	query, args, err := psql.Select("intent").
		From("alert_intents").
		Where(sq.Eq{"alert_id": alertID, "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var raw []byte
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		return nil, notFound("get intent", err)
	}
	var intent domain.AlertIntent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return nil, fmt.Errorf("decode intent: %w", err)
	}
	return &intent, nil
}

func (s *PostgresStore) UpsertIntent(ctx context.Context, intent domain.AlertIntent) error {
	raw, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("encode intent: %w", err)
	}
	query, args, err := psql.Insert("alert_intents").
		Columns("alert_id", "user_id", "intent", "created_at", "updated_at").
		Values(intent.AlertID, intent.UserID, raw, intent.CreatedAt, intent.UpdatedAt).
		Suffix("ON CONFLICT (alert_id, user_id) DO UPDATE SET intent = EXCLUDED.intent, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return writeErr("upsert intent", err)
	}
	return nil
}

func (s *PostgresStore) UpsertArticle(ctx context.Context, article domain.Article) error {
	query, args, err := psql.Insert("articles").
		Columns("alert_id", "content_hash", "user_id", "content", "created_at").
		Values(article.AlertID, article.ContentHash, article.UserID, article.Content, article.CreatedAt).
		Suffix("ON CONFLICT (alert_id, content_hash) DO UPDATE SET content = EXCLUDED.content").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return writeErr("upsert article", err)
	}
	return nil
}

func (s *PostgresStore) SentWithContentHash(ctx context.Context, userID, templateName, contentHash string) (bool, error) {
	return s.sentWith(ctx, sq.Eq{"user_id": userID, "template_name": templateName, "content_hash": contentHash})
}

func (s *PostgresStore) SentWithArticleHash(ctx context.Context, userID, templateName, articleHash string) (bool, error) {
	if articleHash == "" {
		return false, nil
	}
	return s.sentWith(ctx, sq.Eq{"user_id": userID, "template_name": templateName, "article_hash": articleHash})
}

func (s *PostgresStore) sentWith(ctx context.Context, where sq.Eq) (bool, error) {
	query, args, err := psql.Select("1").
		From("dispatch_records").
		Where(where).
		Where(sq.Eq{"message_sent": true}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}
	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("query dispatches: %w", err)
	}
	return true, nil
}

var dispatchColumns = []string{
	"id", "user_id", "alert_id", "template_name", "broadcast_name", "content_hash",
	"article_hash", "title", "description", "image_url", "payload", "response",
	"message_sent", "reason", "error", "created_at",
}

func (s *PostgresStore) RecentSent(ctx context.Context, userID, templateName string, since time.Time, limit int) ([]domain.DispatchRecord, error) {
	builder := psql.Select(dispatchColumns...).
		From("dispatch_records").
		Where(sq.Eq{"user_id": userID, "template_name": templateName, "message_sent": true}).
		Where(sq.GtOrEq{"created_at": since}).
		OrderBy("created_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	var records []domain.DispatchRecord
	for rows.Next() {
		var (
			rec              domain.DispatchRecord
			payload, respRaw []byte
			reason           string
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.AlertID, &rec.TemplateName, &rec.BroadcastName,
			&rec.ContentHash, &rec.ArticleHash, &rec.Title, &rec.Description, &rec.ImageURL,
			&payload, &respRaw, &rec.MessageSent, &reason, &rec.Error, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dispatch: %w", err)
		}
		rec.Reason = domain.DispatchReason(reason)
		if len(payload) > 0 {
			rec.Payload = &domain.TemplatePayload{}
			if err := json.Unmarshal(payload, rec.Payload); err != nil {
				return nil, fmt.Errorf("decode payload: %w", err)
			}
		}
		if len(respRaw) > 0 {
			if err := json.Unmarshal(respRaw, &rec.Response); err != nil {
				return nil, fmt.Errorf("decode response: %w", err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) InsertDispatch(ctx context.Context, record domain.DispatchRecord) error {
	payload, err := nullableJSON(record.Payload, record.Payload == nil)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	response, err := nullableJSON(record.Response, record.Response == nil)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	query, args, err := psql.Insert("dispatch_records").
		Columns(dispatchColumns...).
		Values(record.ID, record.UserID, record.AlertID, record.TemplateName, record.BroadcastName,
			record.ContentHash, record.ArticleHash, record.Title, record.Description, record.ImageURL,
			payload, response, record.MessageSent, string(record.Reason), record.Error, record.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return writeErr("insert dispatch", err)
	}
	return nil
}

func (s *PostgresStore) FindByUserID(ctx context.Context, userID string) (*domain.UserContact, error) {
	query, args, err := psql.Select("user_id", "country_code", "phone_number").
		From("users").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var c domain.UserContact
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&c.UserID, &c.CountryCode, &c.PhoneNumber); err != nil {
		return nil, notFound("find user", err)
	}
	return &c, nil
}

// Close closes the pool.
func (s *PostgresStore) Close(context.Context) error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (domain.Alert, error) {
	var (
		a                           domain.Alert
		category                    string
		subs, followups, scheduleJS []byte
	)
	if err := row.Scan(&a.ID, &a.UserID, &category, &subs, &followups, &a.CustomQuestion,
		&a.IsActive, &scheduleJS, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.Alert{}, notFound("scan alert", err)
	}
	a.MainCategory = domain.ParseCategory(category)
	for _, field := range []struct {
		raw []byte
		dst any
	}{{subs, &a.SubCategories}, {followups, &a.FollowupQuestions}, {scheduleJS, &a.Schedule}} {
		if len(field.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(field.raw, field.dst); err != nil {
			return domain.Alert{}, fmt.Errorf("decode alert %s: %w", a.ID, err)
		}
	}
	return a, nil
}

func nullableJSON(v any, isNil bool) (any, error) {
	if isNil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func notFound(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func writeErr(op string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, domain.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
