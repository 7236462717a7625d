package identity

import (
	"context"
	"time"

	"github.com/hitoshi/gamehub/internal/model"
)

// ProfileUpdate はプロフィール更新の差分。nilのフィールドは変更しない。
type ProfileUpdate struct {
	DisplayName *string
	PhotoURL    *string
}

// Credential はIdPが発行したトークンとその所有ユーザー。
type Credential struct {
	User         model.UserRecord
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired は指定時刻の時点でIDトークンが失効している（または失効間近である）かを返す。
func (c *Credential) Expired(now time.Time) bool {
	return c == nil || !now.Add(tokenExpirySkew).Before(c.ExpiresAt)
}

// tokenExpirySkew はIDトークンを失効扱いにする猶予。
const tokenExpirySkew = 30 * time.Second

// Backend はIdPへのリモート操作を抽象化するインターフェース。
// Backend自体はステートレスで、セッション状態はClientが保持する。
type Backend interface {
	// SignUp はメールアドレスとパスワードでアカウントを作成し、サインイン済みのCredentialを返す。
	SignUp(ctx context.Context, email, password string) (*Credential, error)
	// SignInWithPassword はメールアドレスとパスワードでサインインする。
	SignInWithPassword(ctx context.Context, email, password string) (*Credential, error)
	// Update はIDトークンの所有ユーザーのプロフィールを更新し、更新後のユーザーを返す。
	Update(ctx context.Context, idToken string, update ProfileUpdate) (*model.UserRecord, error)
	// Lookup はIDトークンの所有ユーザーを取得する。
	Lookup(ctx context.Context, idToken string) (*model.UserRecord, error)
	// Refresh はリフレッシュトークンで新しいIDトークンを取得する。
	Refresh(ctx context.Context, refreshToken string) (*Credential, error)
}

// TokenVerifier はIDトークンの署名と有効期限を検証し、ユーザー情報を取り出す。
type TokenVerifier interface {
	Verify(idToken string) (*model.UserRecord, time.Time, error)
}
