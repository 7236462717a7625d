package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/gamehub/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.SessionRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, uid, id_token, refresh_token, token_expires_at, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		session.ID, session.UID, session.IDToken, session.RefreshToken,
		nullTime(session.TokenExpiresAt), session.ExpiresAt, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.SessionRecord, error) {
	session := &model.SessionRecord{}
	var tokenExpiresAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, uid, id_token, refresh_token, token_expires_at, expires_at, created_at, updated_at
		 FROM sessions
		 WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&session.ID, &session.UID, &session.IDToken, &session.RefreshToken,
		&tokenExpiresAt, &session.ExpiresAt, &session.CreatedAt, &session.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if tokenExpiresAt.Valid {
		session.TokenExpiresAt = tokenExpiresAt.Time
	}

	return session, nil
}

// SaveCredential はセッションの認証情報をUPSERTする。
func (r *PostgresSessionRepo) SaveCredential(ctx context.Context, session *model.SessionRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, uid, id_token, refresh_token, token_expires_at, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   uid = EXCLUDED.uid,
		   id_token = EXCLUDED.id_token,
		   refresh_token = EXCLUDED.refresh_token,
		   token_expires_at = EXCLUDED.token_expires_at,
		   updated_at = EXCLUDED.updated_at`,
		session.ID, session.UID, session.IDToken, session.RefreshToken,
		nullTime(session.TokenExpiresAt), session.ExpiresAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session credential: %w", err)
	}
	return nil
}

// ClearCredential はセッションの認証情報を空にする。
func (r *PostgresSessionRepo) ClearCredential(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions
		 SET uid = '', id_token = '', refresh_token = '', token_expires_at = NULL, updated_at = now()
		 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to clear session credential: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired はexpires_atを過ぎたセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted session count: %w", err)
	}
	return deleted, nil
}

// nullTime はゼロ値のtime.TimeをNULLとして扱う。
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
