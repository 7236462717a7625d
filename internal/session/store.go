package session

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/gamehub/internal/identity"
	"github.com/hitoshi/gamehub/internal/model"
	"github.com/hitoshi/gamehub/internal/repository"
)

// credentialStore はブラウザセッション1件分の認証情報をSessionRepositoryに保存する。
type credentialStore struct {
	repo      repository.SessionRepository
	sessionID string
	expiresAt time.Time
	now       func() time.Time
}

// Load は保存済みの認証情報を返す。サインインしていなければnilを返す。
func (s *credentialStore) Load(ctx context.Context) (*identity.Credential, error) {
	rec, err := s.repo.FindByID(ctx, s.sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", s.sessionID, err)
	}
	if !rec.SignedIn() {
		return nil, nil
	}

	return &identity.Credential{
		User:         model.UserRecord{UID: rec.UID},
		IDToken:      rec.IDToken,
		RefreshToken: rec.RefreshToken,
		ExpiresAt:    rec.TokenExpiresAt,
	}, nil
}

// Save は認証情報を保存する。
func (s *credentialStore) Save(ctx context.Context, cred *identity.Credential) error {
	return s.repo.SaveCredential(ctx, &model.SessionRecord{
		ID:             s.sessionID,
		UID:            cred.User.UID,
		IDToken:        cred.IDToken,
		RefreshToken:   cred.RefreshToken,
		TokenExpiresAt: cred.ExpiresAt,
		ExpiresAt:      s.expiresAt,
		UpdatedAt:      s.now(),
	})
}

// Clear は認証情報を削除する。
func (s *credentialStore) Clear(ctx context.Context) error {
	return s.repo.ClearCredential(ctx, s.sessionID)
}

// compile-time interface check
var _ identity.Persistence = (*credentialStore)(nil)
