// Package guard は認証が必要なページへのアクセス制御（Route Guard）を提供する。
// 判定は純粋関数Evaluateで行い、Guard自体は状態を持たない。
package guard

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/gamehub/internal/session"
)

// LoginPath はログインページのパス。
const LoginPath = "/auth/login"

// Decision はRoute Guardの判定結果。
type Decision int

const (
	// Pending は初期解決が未完了のためナビゲーションを判断しない。
	Pending Decision = iota
	// Authorized は保護されたコンテンツを表示してよい。
	Authorized
	// Denied はログインページへリダイレクトする。
	Denied
)

// String はメトリクスやログ用の判定名を返す。
func (d Decision) String() string {
	switch d {
	case Pending:
		return "pending"
	case Authorized:
		return "authorized"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Evaluate はセッション状態から判定を行う。
// メールアドレスを持たないユーザーはDeniedとする。
func Evaluate(st session.State) Decision {
	if st.Loading {
		return Pending
	}
	if st.User != nil && st.User.Email != "" {
		return Authorized
	}
	return Denied
}

// LoginURL は元のリクエスト先をfromパラメータに保持したログインURLを返す。
func LoginURL(from string) string {
	return LoginPath + "?" + url.Values{"from": {from}}.Encode()
}

// SafeRedirectTarget はログイン後の遷移先として安全なパスを返す。
// 同一オリジンの絶対パスのみを受け付け、それ以外は "/" を返す。
func SafeRedirectTarget(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") {
		return "/"
	}
	if strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") || strings.ContainsAny(raw, "\r\n") {
		return "/"
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	// 認証ページ自体への遷移はループになるため除外する
	if strings.HasPrefix(u.Path, "/auth/") {
		return "/"
	}
	return raw
}

// DecisionRecorder は判定結果を記録するインターフェース。
type DecisionRecorder interface {
	RecordGuardDecision(decision string)
}

// StateFunc はリクエストに紐づくセッション状態を返す。
// セッションが存在しない場合はfalseを返す。
type StateFunc func(r *http.Request) (session.State, bool)

// Guard は保護されたルートに適用するミドルウェアを提供する。
type Guard struct {
	stateOf  StateFunc
	pending  http.Handler
	recorder DecisionRecorder
}

// New はGuardを生成する。pendingは初期解決中に返すローディングページのハンドラー。
// recorderはnilでもよい。
func New(stateOf StateFunc, pending http.Handler, recorder DecisionRecorder) *Guard {
	return &Guard{stateOf: stateOf, pending: pending, recorder: recorder}
}

// Require は判定に応じてコンテンツの表示・ローディングページ・ログインへのリダイレクトを行う。
func (g *Guard) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := Denied
		if st, ok := g.stateOf(r); ok {
			decision = Evaluate(st)
		}

		if g.recorder != nil {
			g.recorder.RecordGuardDecision(decision.String())
		}

		switch decision {
		case Authorized:
			next.ServeHTTP(w, r)
		case Pending:
			w.Header().Set("Cache-Control", "no-store")
			g.pending.ServeHTTP(w, r)
		default:
			http.Redirect(w, r, LoginURL(r.URL.RequestURI()), http.StatusFound)
		}
	})
}
