package identity

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/gamehub/internal/model"
)

const (
	// MemoryIssuer はMemoryBackendが発行するIDトークンのiss。
	MemoryIssuer = "gamehub-memory-identity"
	// MemoryAudience はMemoryBackendが発行するIDトークンのaud。
	MemoryAudience = "gamehub"

	minPasswordLength = 6
	memoryTokenTTL    = time.Hour
)

// memoryAccount はMemoryBackendが保持するアカウント。
type memoryAccount struct {
	user         model.UserRecord
	passwordHash []byte
	disabled     bool
}

// MemoryBackend はプロセス内で完結するIdP実装。ローカル開発とテストで使用する。
// Firebaseと同じエラーコードを返す。
type MemoryBackend struct {
	signingKey []byte
	now        func() time.Time

	mu             sync.Mutex
	accounts       map[string]*memoryAccount // key: 小文字化したemail
	byUID          map[string]*memoryAccount
	refreshTokens  map[string]string // refresh token -> uid
	passwordSignIn bool
}

// NewMemoryBackend はMemoryBackendを生成する。
func NewMemoryBackend(signingKey []byte) *MemoryBackend {
	return &MemoryBackend{
		signingKey:     signingKey,
		now:            time.Now,
		accounts:       make(map[string]*memoryAccount),
		byUID:          make(map[string]*memoryAccount),
		refreshTokens:  make(map[string]string),
		passwordSignIn: true,
	}
}

// Verifier はこのバックエンドが発行したトークンを検証するTokenVerifierを返す。
func (b *MemoryBackend) Verifier() *JWTVerifier {
	v := NewHMACVerifier(b.signingKey, MemoryIssuer, MemoryAudience)
	v.now = b.now
	return v
}

// SetPasswordSignInEnabled はメール/パスワード認証の有効・無効を切り替える。
func (b *MemoryBackend) SetPasswordSignInEnabled(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.passwordSignIn = enabled
}

// DisableUser は指定メールアドレスのアカウントを無効化する。
func (b *MemoryBackend) DisableUser(email string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[strings.ToLower(email)]
	if ok {
		acc.disabled = true
	}
	return ok
}

// SignUp はアカウントを作成してサインイン済みのCredentialを返す。
func (b *MemoryBackend) SignUp(ctx context.Context, email, password string) (*Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, &ProviderError{Code: CodeWeakPassword, Message: "WEAK_PASSWORD : Password should be at least 6 characters"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.passwordSignIn {
		return nil, &ProviderError{Code: CodeProviderDisabled, Message: "OPERATION_NOT_ALLOWED"}
	}
	key := strings.ToLower(email)
	if _, exists := b.accounts[key]; exists {
		return nil, &ProviderError{Code: CodeEmailInUse, Message: "EMAIL_EXISTS"}
	}

	acc := &memoryAccount{
		user:         model.UserRecord{UID: uuid.New().String(), Email: email},
		passwordHash: hash,
	}
	b.accounts[key] = acc
	b.byUID[acc.user.UID] = acc

	return b.issueLocked(acc)
}

// SignInWithPassword はパスワードを照合してサインインする。
func (b *MemoryBackend) SignInWithPassword(ctx context.Context, email, password string) (*Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.passwordSignIn {
		return nil, &ProviderError{Code: CodeProviderDisabled, Message: "OPERATION_NOT_ALLOWED"}
	}
	acc, ok := b.accounts[strings.ToLower(email)]
	if !ok {
		return nil, &ProviderError{Code: CodeUserNotFound, Message: "EMAIL_NOT_FOUND"}
	}
	if err := bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)); err != nil {
		return nil, &ProviderError{Code: CodeWrongPassword, Message: "INVALID_PASSWORD"}
	}
	if acc.disabled {
		return nil, &ProviderError{Code: CodeUserDisabled, Message: "USER_DISABLED"}
	}

	return b.issueLocked(acc)
}

// Update はIDトークンの所有ユーザーのプロフィールを更新する。
func (b *MemoryBackend) Update(ctx context.Context, idToken string, update ProfileUpdate) (*model.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	acc, err := b.accountForTokenLocked(idToken)
	if err != nil {
		return nil, err
	}

	next := acc.user
	if update.DisplayName != nil {
		next.DisplayName = *update.DisplayName
	}
	if update.PhotoURL != nil {
		next.PhotoURL = *update.PhotoURL
	}
	acc.user = next

	return &next, nil
}

// Lookup はIDトークンの所有ユーザーを返す。
func (b *MemoryBackend) Lookup(ctx context.Context, idToken string) (*model.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	acc, err := b.accountForTokenLocked(idToken)
	if err != nil {
		return nil, err
	}
	u := acc.user
	return &u, nil
}

// Refresh はリフレッシュトークンを検証して新しいトークンを発行する。
// 使用済みのリフレッシュトークンは失効させる。
func (b *MemoryBackend) Refresh(ctx context.Context, refreshToken string) (*Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	uid, ok := b.refreshTokens[refreshToken]
	if !ok {
		return nil, &ProviderError{Code: CodeSessionExpired, Message: "INVALID_REFRESH_TOKEN"}
	}
	delete(b.refreshTokens, refreshToken)

	acc, ok := b.byUID[uid]
	if !ok {
		return nil, &ProviderError{Code: CodeSessionExpired, Message: "USER_NOT_FOUND"}
	}
	if acc.disabled {
		return nil, &ProviderError{Code: CodeUserDisabled, Message: "USER_DISABLED"}
	}

	return b.issueLocked(acc)
}

// issueLocked はIDトークンとリフレッシュトークンを発行する。b.muを保持した状態で呼び出すこと。
func (b *MemoryBackend) issueLocked(acc *memoryAccount) (*Credential, error) {
	now := b.now()
	expiresAt := now.Add(memoryTokenTTL)

	claims := idTokenClaims{
		Email:   acc.user.Email,
		Name:    acc.user.DisplayName,
		Picture: acc.user.PhotoURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acc.user.UID,
			Issuer:    MemoryIssuer,
			Audience:  jwt.ClaimStrings{MemoryAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.signingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign id token: %w", err)
	}

	refresh := uuid.New().String()
	b.refreshTokens[refresh] = acc.user.UID

	return &Credential{
		User:         acc.user,
		IDToken:      signed,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, nil
}

// accountForTokenLocked はIDトークンを検証して所有アカウントを返す。b.muを保持した状態で呼び出すこと。
func (b *MemoryBackend) accountForTokenLocked(idToken string) (*memoryAccount, error) {
	user, _, err := b.Verifier().Verify(idToken)
	if err != nil {
		return nil, &ProviderError{Code: CodeSessionExpired, Message: "INVALID_ID_TOKEN"}
	}
	acc, ok := b.byUID[user.UID]
	if !ok {
		return nil, &ProviderError{Code: CodeSessionExpired, Message: "USER_NOT_FOUND"}
	}
	return acc, nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &ProviderError{Code: CodeInvalidEmail, Message: "INVALID_EMAIL"}
	}
	return nil
}

// compile-time interface check
var _ Backend = (*MemoryBackend)(nil)
