package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/gamehub/internal/model"
)

const (
	defaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	defaultSecureTokenURL     = "https://securetoken.googleapis.com/v1/token"

	// maxResponseSize はIdPレスポンスボディの読み取り上限。
	maxResponseSize = 1 << 20
)

// FirebaseConfig はFirebase Authentication REST APIの設定。
type FirebaseConfig struct {
	APIKey     string
	HTTPClient *http.Client

	// テスト用にオーバーライド可能なURL
	IdentityToolkitURL string
	SecureTokenURL     string
}

// FirebaseBackend はFirebase Authentication（Identity Toolkit / Secure Token）のREST APIを呼び出す。
type FirebaseBackend struct {
	config FirebaseConfig
	now    func() time.Time
}

// NewFirebaseBackend はFirebaseBackendを生成する。
func NewFirebaseBackend(config FirebaseConfig) *FirebaseBackend {
	if config.IdentityToolkitURL == "" {
		config.IdentityToolkitURL = defaultIdentityToolkitURL
	}
	if config.SecureTokenURL == "" {
		config.SecureTokenURL = defaultSecureTokenURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &FirebaseBackend{config: config, now: time.Now}
}

// firebaseAuthResponse はaccounts:signUp / accounts:signInWithPasswordのレスポンス。
type firebaseAuthResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoUrl"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

// firebaseUser はaccounts:lookup / accounts:updateが返すユーザー情報。
type firebaseUser struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
}

// firebaseLookupResponse はaccounts:lookupのレスポンス。
type firebaseLookupResponse struct {
	Users []firebaseUser `json:"users"`
}

// firebaseTokenResponse はSecure Tokenエンドポイントのレスポンス。
type firebaseTokenResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

// firebaseErrorResponse はFirebase REST APIのエラーボディ。
type firebaseErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignUp はaccounts:signUpでアカウントを作成する。
func (b *FirebaseBackend) SignUp(ctx context.Context, email, password string) (*Credential, error) {
	return b.passwordAuth(ctx, "accounts:signUp", email, password)
}

// SignInWithPassword はaccounts:signInWithPasswordでサインインする。
func (b *FirebaseBackend) SignInWithPassword(ctx context.Context, email, password string) (*Credential, error) {
	return b.passwordAuth(ctx, "accounts:signInWithPassword", email, password)
}

func (b *FirebaseBackend) passwordAuth(ctx context.Context, method, email, password string) (*Credential, error) {
	payload := map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}

	var resp firebaseAuthResponse
	if err := b.postJSON(ctx, b.toolkitURL(method), payload, &resp); err != nil {
		return nil, err
	}
	if resp.IDToken == "" || resp.LocalID == "" {
		return nil, fmt.Errorf("%s: empty token in response", method)
	}

	return &Credential{
		User: model.UserRecord{
			UID:         resp.LocalID,
			Email:       resp.Email,
			DisplayName: resp.DisplayName,
			PhotoURL:    resp.PhotoURL,
		},
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    b.expiresAt(resp.ExpiresIn),
	}, nil
}

// Update はaccounts:updateでプロフィールを更新する。
// 空文字列が指定された属性はIdP側で削除される。
func (b *FirebaseBackend) Update(ctx context.Context, idToken string, update ProfileUpdate) (*model.UserRecord, error) {
	payload := map[string]any{
		"idToken":           idToken,
		"returnSecureToken": false,
	}

	var deleteAttrs []string
	if update.DisplayName != nil {
		if *update.DisplayName == "" {
			deleteAttrs = append(deleteAttrs, "DISPLAY_NAME")
		} else {
			payload["displayName"] = *update.DisplayName
		}
	}
	if update.PhotoURL != nil {
		if *update.PhotoURL == "" {
			deleteAttrs = append(deleteAttrs, "PHOTO_URL")
		} else {
			payload["photoUrl"] = *update.PhotoURL
		}
	}
	if len(deleteAttrs) > 0 {
		payload["deleteAttribute"] = deleteAttrs
	}

	var resp firebaseUser
	if err := b.postJSON(ctx, b.toolkitURL("accounts:update"), payload, &resp); err != nil {
		return nil, err
	}

	return &model.UserRecord{
		UID:         resp.LocalID,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
		PhotoURL:    resp.PhotoURL,
	}, nil
}

// Lookup はaccounts:lookupでIDトークンの所有ユーザーを取得する。
func (b *FirebaseBackend) Lookup(ctx context.Context, idToken string) (*model.UserRecord, error) {
	var resp firebaseLookupResponse
	if err := b.postJSON(ctx, b.toolkitURL("accounts:lookup"), map[string]any{"idToken": idToken}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, &ProviderError{Code: CodeSessionExpired, Message: "USER_NOT_FOUND"}
	}

	u := resp.Users[0]
	return &model.UserRecord{
		UID:         u.LocalID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
	}, nil
}

// Refresh はSecure Tokenエンドポイントでトークンを更新し、最新のユーザー情報を付与して返す。
func (b *FirebaseBackend) Refresh(ctx context.Context, refreshToken string) (*Credential, error) {
	// 1. リフレッシュトークンをIDトークンに交換
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.withKey(b.config.SecureTokenURL), strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tokenResp firebaseTokenResponse
	if err := b.do(req, &tokenResp); err != nil {
		return nil, err
	}
	if tokenResp.IDToken == "" {
		return nil, fmt.Errorf("refresh: empty id token in response")
	}

	// 2. 新しいIDトークンでユーザー情報を取得
	user, err := b.Lookup(ctx, tokenResp.IDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to look up refreshed user: %w", err)
	}

	return &Credential{
		User:         *user,
		IDToken:      tokenResp.IDToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt:    b.expiresAt(tokenResp.ExpiresIn),
	}, nil
}

func (b *FirebaseBackend) toolkitURL(method string) string {
	return b.withKey(strings.TrimRight(b.config.IdentityToolkitURL, "/") + "/" + method)
}

func (b *FirebaseBackend) withKey(endpoint string) string {
	return endpoint + "?key=" + url.QueryEscape(b.config.APIKey)
}

// expiresAt はexpiresIn（秒数の文字列）を絶対時刻に変換する。解釈できない場合は1時間とみなす。
func (b *FirebaseBackend) expiresAt(expiresIn string) time.Time {
	secs, err := strconv.Atoi(expiresIn)
	if err != nil || secs <= 0 {
		secs = 3600
	}
	return b.now().Add(time.Duration(secs) * time.Second)
}

func (b *FirebaseBackend) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return b.do(req, out)
}

// do はリクエストを送信し、成功時はoutにデコードする。
// 4xxのエラーボディはProviderErrorに変換する。
func (b *FirebaseBackend) do(req *http.Request, out any) error {
	resp, err := b.config.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read identity response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp firebaseErrorResponse
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error.Message != "" {
			return parseFirebaseError(errResp.Error.Message)
		}
		return fmt.Errorf("identity request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse identity response: %w", err)
	}
	return nil
}

// compile-time interface check
var _ Backend = (*FirebaseBackend)(nil)
