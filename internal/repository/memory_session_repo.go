package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/gamehub/internal/model"
)

// MemorySessionRepo はプロセス内メモリに保存するセッションリポジトリ。
// DATABASE_URL未設定時のローカル開発とテストで使用する。
type MemorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]model.SessionRecord
	now      func() time.Time
}

// NewMemorySessionRepo はMemorySessionRepoを生成する。
func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{
		sessions: make(map[string]model.SessionRecord),
		now:      time.Now,
	}
}

// Create はセッションを作成する。
func (r *MemorySessionRepo) Create(_ context.Context, session *model.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = *session
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *MemorySessionRepo) FindByID(_ context.Context, id string) (*model.SessionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || !s.ExpiresAt.After(r.now()) {
		return nil, nil
	}
	return &s, nil
}

// SaveCredential はセッションの認証情報を保存する。存在しない場合は作成する。
func (r *MemorySessionRepo) SaveCredential(_ context.Context, session *model.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.sessions[session.ID]
	if !ok {
		s := *session
		s.CreatedAt = session.UpdatedAt
		r.sessions[session.ID] = s
		return nil
	}

	existing.UID = session.UID
	existing.IDToken = session.IDToken
	existing.RefreshToken = session.RefreshToken
	existing.TokenExpiresAt = session.TokenExpiresAt
	existing.UpdatedAt = session.UpdatedAt
	r.sessions[session.ID] = existing
	return nil
}

// ClearCredential はセッションの認証情報を空にする。
func (r *MemorySessionRepo) ClearCredential(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	s.UID = ""
	s.IDToken = ""
	s.RefreshToken = ""
	s.TokenExpiresAt = time.Time{}
	s.UpdatedAt = r.now()
	r.sessions[id] = s
	return nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *MemorySessionRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// DeleteExpired は期限切れのセッションを削除する。
func (r *MemorySessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var deleted int64
	for id, s := range r.sessions {
		if s.ExpiresAt.Before(now) {
			delete(r.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// compile-time interface check
var _ SessionRepository = (*MemorySessionRepo)(nil)
