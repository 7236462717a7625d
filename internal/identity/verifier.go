package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/gamehub/internal/model"
)

const (
	// FirebaseJWKSURL はFirebase IDトークンの署名鍵（JWK Set）の公開URL。
	FirebaseJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

	firebaseIssuerPrefix = "https://securetoken.google.com/"
)

// idTokenClaims はIDトークンのクレーム。FirebaseとMemoryBackendで共通の形式を使う。
type idTokenClaims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier はjwt.Keyfuncで署名鍵を解決してIDトークンを検証する。
type JWTVerifier struct {
	keyfunc  jwt.Keyfunc
	issuer   string
	audience string
	methods  []string
	now      func() time.Time
}

// NewFirebaseVerifier はFirebase IDトークン（RS256）用のJWTVerifierを生成する。
// issは "https://securetoken.google.com/<projectID>"、audはprojectIDでなければならない。
func NewFirebaseVerifier(projectID string, kf jwt.Keyfunc) *JWTVerifier {
	return &JWTVerifier{
		keyfunc:  kf,
		issuer:   firebaseIssuerPrefix + projectID,
		audience: projectID,
		methods:  []string{jwt.SigningMethodRS256.Alg()},
		now:      time.Now,
	}
}

// NewHMACVerifier はMemoryBackendが発行するHS256トークン用のJWTVerifierを生成する。
func NewHMACVerifier(key []byte, issuer, audience string) *JWTVerifier {
	return &JWTVerifier{
		keyfunc: func(*jwt.Token) (interface{}, error) {
			return key, nil
		},
		issuer:   issuer,
		audience: audience,
		methods:  []string{jwt.SigningMethodHS256.Alg()},
		now:      time.Now,
	}
}

// Verify はIDトークンを検証し、所有ユーザーとトークンの有効期限を返す。
// 有効期限切れの場合はErrTokenExpiredを返す。
func (v *JWTVerifier) Verify(idToken string) (*model.UserRecord, time.Time, error) {
	claims := &idTokenClaims{}
	_, err := jwt.ParseWithClaims(idToken, claims, v.keyfunc,
		jwt.WithValidMethods(v.methods),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, time.Time{}, ErrTokenExpired
		}
		return nil, time.Time{}, fmt.Errorf("invalid id token: %w", err)
	}

	if claims.Subject == "" {
		return nil, time.Time{}, fmt.Errorf("invalid id token: empty subject")
	}

	return &model.UserRecord{
		UID:         claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
		PhotoURL:    claims.Picture,
	}, claims.ExpiresAt.Time, nil
}

// FetchFirebaseKeys はFirebaseの公開鍵セットを取得し、バックグラウンドで定期更新するJWKSを返す。
// ctxがキャンセルされるとバックグラウンド更新は停止する。
func FetchFirebaseKeys(ctx context.Context, client *http.Client) (*keyfunc.JWKS, error) {
	jwks, err := keyfunc.Get(FirebaseJWKSURL, keyfunc.Options{
		Ctx:    ctx,
		Client: client,
		RefreshErrorHandler: func(err error) {
			slog.Warn("JWKSのバックグラウンド更新に失敗しました", slog.String("error", err.Error()))
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch firebase signing keys: %w", err)
	}
	return jwks, nil
}

// compile-time interface check
var _ TokenVerifier = (*JWTVerifier)(nil)
