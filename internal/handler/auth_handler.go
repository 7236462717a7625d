package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/gamehub/internal/account"
	"github.com/hitoshi/gamehub/internal/guard"
	"github.com/hitoshi/gamehub/internal/middleware"
	"github.com/hitoshi/gamehub/internal/model"
	"github.com/hitoshi/gamehub/internal/view"
)

// registeredParam はログインページに登録完了通知を表示させるクエリパラメーター。
const registeredParam = "registered"

// AccountService は認証ハンドラーが必要とするサービスインターフェース。
type AccountService interface {
	Login(ctx context.Context, sess account.Session, form account.LoginForm) (string, error)
	Register(ctx context.Context, sess account.Session, form account.RegistrationForm) error
	Logout(ctx context.Context, sess account.Session) error
}

// AuthHandler はログイン・登録・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service AccountService
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AccountService) *AuthHandler {
	return &AuthHandler{service: service}
}

// LoginPage はログインフォームを表示する。
// GET /auth/login?from=/allapps
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	params := view.LoginParams{
		Page: pageFor(r),
		From: r.URL.Query().Get("from"),
	}
	if r.URL.Query().Get(registeredParam) != "" {
		params.Notice = account.RegistrationNotice
	}
	view.Render(w, view.LoginTemplate, http.StatusOK, params)
}

// Login はログインフォームを処理する。
// 成功時は元のリクエスト先（なければ "/"）へリダイレクトし、失敗時はメッセージ付きでフォームを再表示する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	form := account.LoginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		From:     r.PostFormValue("from"),
	}

	target, err := h.service.Login(r.Context(), sess, form)
	if err != nil {
		view.Render(w, view.LoginTemplate, http.StatusOK, view.LoginParams{
			Page:  pageFor(r),
			Email: form.Email,
			From:  form.From,
			Error: loginError(err),
		})
		return
	}

	http.Redirect(w, r, target, http.StatusSeeOther)
}

// RegistrationPage は登録フォームを表示する。
// GET /auth/registration
func (h *AuthHandler) RegistrationPage(w http.ResponseWriter, r *http.Request) {
	view.Render(w, view.RegistrationTemplate, http.StatusOK, view.RegistrationParams{Page: pageFor(r)})
}

// Register は登録フォームを処理する。
// 成功時は登録完了通知付きでログインページへリダイレクトする。
// POST /auth/registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	form := account.RegistrationForm{
		Name:     r.PostFormValue("name"),
		PhotoURL: r.PostFormValue("photoURL"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}

	if err := h.service.Register(r.Context(), sess, form); err != nil {
		params := view.RegistrationParams{
			Page:     pageFor(r),
			Name:     form.Name,
			PhotoURL: form.PhotoURL,
			Email:    form.Email,
		}
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			params.NameError = verr.Field("name")
			params.Error = firstField(verr, "photoURL", "email", "password")
		} else {
			params.Error = account.RegistrationMessage(err)
		}
		view.Render(w, view.RegistrationTemplate, http.StatusOK, params)
		return
	}

	http.Redirect(w, r, guard.LoginPath+"?"+url.Values{registeredParam: {"1"}}.Encode(), http.StatusSeeOther)
}

// Logout はサインアウトしてホームへリダイレクトする。
// サインインしていない場合も同じ結果になる。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := middleware.SessionFromContext(r.Context()); ok {
		if err := h.service.Logout(r.Context(), sess); err != nil {
			slog.Warn("logout failed", slog.String("error", err.Error()))
		}
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// loginError はログインフォームに表示するメッセージを返す。
func loginError(err error) string {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		return firstField(verr, "email", "password")
	}
	return account.LoginMessage(err)
}

// firstField は指定順で最初に見つかったフィールドのメッセージを返す。
func firstField(verr *model.ValidationError, names ...string) string {
	for _, name := range names {
		if msg := verr.Field(name); msg != "" {
			return msg
		}
	}
	return ""
}
