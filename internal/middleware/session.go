// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/gamehub/internal/model"
	"github.com/hitoshi/gamehub/internal/session"
)

// SessionCookieName はブラウザセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	sessionContextKey   = contextKey("session")
	sessionIDContextKey = contextKey("session_id")
)

// SessionStore はブラウザセッションの検索と作成に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionStore interface {
	FindByID(ctx context.Context, id string) (*model.SessionRecord, error)
	Create(ctx context.Context, session *model.SessionRecord) error
}

// ContextProvider はブラウザセッションに対応するSession Contextを提供する。
type ContextProvider interface {
	Get(ctx context.Context, rec *model.SessionRecord) *session.Context
	Drop(id string)
}

// SessionConfig はセッションミドルウェアの設定。
type SessionConfig struct {
	Store        SessionStore
	Contexts     ContextProvider
	MaxAge       int // 秒
	CookieSecure bool
	CookieDomain string
}

// NewSessionMiddleware はHTTP Only CookieからブラウザセッションIDを読み取り、
// 対応するSession Contextをリクエストコンテキストに注入するミドルウェアを返す。
// Cookieがない場合や期限切れの場合は新しいセッションを発行する（未ログイン状態）。
// ストアの読み取りに失敗した場合は500を返し、既存のセッションには触れない。
func NewSessionMiddleware(config SessionConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. CookieからセッションIDを取得して検証
			var rec *model.SessionRecord
			if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
				found, err := config.Store.FindByID(r.Context(), cookie.Value)
				if err != nil {
					// 一時的な読み取り失敗でサインイン状態を失わせないため、セッションはそのまま残す
					slog.Error("failed to find session",
						slog.String("error", err.Error()),
					)
					WriteInternalServerError(w)
					return
				}
				if found == nil {
					config.Contexts.Drop(cookie.Value)
				}
				rec = found
			}

			// 2. 有効なセッションがなければ発行
			if rec == nil {
				created, err := issueSession(r.Context(), w, config)
				if err != nil {
					slog.Error("failed to create session",
						slog.String("error", err.Error()),
					)
					WriteInternalServerError(w)
					return
				}
				rec = created
			}

			// 3. Session Contextをコンテキストに注入
			sc := config.Contexts.Get(r.Context(), rec)
			if user := sc.State().User; user != nil {
				setLogUserID(r.Context(), user.UID)
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, sc)
			ctx = context.WithValue(ctx, sessionIDContextKey, rec.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// issueSession は新しいブラウザセッションを作成してCookieを設定する。
func issueSession(ctx context.Context, w http.ResponseWriter, config SessionConfig) (*model.SessionRecord, error) {
	now := time.Now()
	rec := &model.SessionRecord{
		ID:        uuid.NewString(),
		ExpiresAt: now.Add(time.Duration(config.MaxAge) * time.Second),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := config.Store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    rec.ID,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   config.MaxAge,
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return rec, nil
}

// SessionFromContext はリクエストコンテキストからSession Contextを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func SessionFromContext(ctx context.Context) (*session.Context, bool) {
	sc, ok := ctx.Value(sessionContextKey).(*session.Context)
	return sc, ok && sc != nil
}

// SessionIDFromContext はリクエストコンテキストからブラウザセッションIDを取得する。
func SessionIDFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(sessionIDContextKey).(string)
	if !ok || id == "" {
		return "", fmt.Errorf("session ID not found in context")
	}
	return id, nil
}

// ContextWithSession はコンテキストにSession Contextを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, sc *session.Context) context.Context {
	return context.WithValue(ctx, sessionContextKey, sc)
}

// SessionState はguard.StateFuncとして使用できる形でセッション状態を返す。
func SessionState(r *http.Request) (session.State, bool) {
	sc, ok := SessionFromContext(r.Context())
	if !ok {
		return session.State{}, false
	}
	return sc.State(), true
}
