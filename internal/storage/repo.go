package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

func (s *Store) UpsertCredential(ctx context.Context, kind, encAPIKey string) error {
	q := s.sql.Insert("credentials").
		Columns("kind", "enc_api_key", "updated_at").
		Values(kind, encAPIKey, nowExpr(s.driver)).
		Suffix("ON CONFLICT(kind) DO UPDATE SET enc_api_key=excluded.enc_api_key, updated_at=excluded.updated_at")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build credential upsert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

func (s *Store) GetCredential(ctx context.Context, kind string) (Credential, error) {
	q := s.sql.Select("kind", "enc_api_key", "updated_at").
		From("credentials").
		Where(sq.Eq{"kind": kind})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Credential{}, fmt.Errorf("build credential query: %w", err)
	}

	var c Credential
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&c.Kind, &c.EncAPIKey, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Credential{}, ErrNotFound
		}
		return Credential{}, fmt.Errorf("get credential: %w", err)
	}
	return c, nil
}

func (s *Store) ListCredentials(ctx context.Context) ([]Credential, error) {
	q := s.sql.Select("kind", "enc_api_key", "updated_at").From("credentials").OrderBy("kind")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list credentials query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []Credential
	for rows.Next() {
		var c Credential
		if err := rows.Scan(&c.Kind, &c.EncAPIKey, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return out, nil
}

func (s *Store) DeleteCredential(ctx context.Context, kind string) error {
	q := s.sql.Delete("credentials").Where(sq.Eq{"kind": kind})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete credential query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordGeneration stores g, assigning an ID and timestamp when they are empty.
func (s *Store) RecordGeneration(ctx context.Context, g Generation) (string, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	q := s.sql.Insert("generations").
		Columns("id", "action", "provider", "model", "outcome", "status_code", "duration_ms", "prompt_chars", "result_chars", "error", "created_at").
		Values(g.ID, g.Action, g.Provider, g.Model, g.Outcome, g.StatusCode, g.DurationMS, g.PromptChars, g.ResultChars, g.Error, g.CreatedAt)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return "", fmt.Errorf("build record generation query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return "", fmt.Errorf("record generation: %w", err)
	}
	return g.ID, nil
}

// ListGenerations returns the most recent records first.
func (s *Store) ListGenerations(ctx context.Context, limit int) ([]Generation, error) {
	if limit <= 0 {
		limit = 20
	}
	q := s.sql.Select("id", "action", "provider", "model", "outcome", "status_code", "duration_ms", "prompt_chars", "result_chars", "error", "created_at").
		From("generations").
		OrderBy("created_at DESC").
		Limit(uint64(limit))
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list generations query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	out := make([]Generation, 0, limit)
	for rows.Next() {
		var g Generation
		if err := rows.Scan(&g.ID, &g.Action, &g.Provider, &g.Model, &g.Outcome, &g.StatusCode, &g.DurationMS, &g.PromptChars, &g.ResultChars, &g.Error, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generations: %w", err)
	}
	return out, nil
}

func nowExpr(driver string) any {
	if driver == "postgres" {
		return sq.Expr("NOW()")
	}
	return sq.Expr("CURRENT_TIMESTAMP")
}
