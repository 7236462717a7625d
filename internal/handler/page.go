// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"net/http"

	"github.com/hitoshi/gamehub/internal/middleware"
	"github.com/hitoshi/gamehub/internal/view"
)

// pageFor はナビゲーションバーとフォームに必要な共通パラメーターを組み立てる。
// セッションミドルウェアを通過していないリクエストでは未ログインとして扱う。
func pageFor(r *http.Request) view.Page {
	page := view.Page{CSRFToken: middleware.CSRFTokenFromContext(r.Context())}
	if st, ok := middleware.SessionState(r); ok {
		page.User = st.User
	}
	return page
}
