package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/gamehub/internal/catalog"
	"github.com/hitoshi/gamehub/internal/guard"
	"github.com/hitoshi/gamehub/internal/metrics"
	"github.com/hitoshi/gamehub/internal/middleware"
	"github.com/hitoshi/gamehub/internal/view"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ログ・メトリクス（Metrics、Gathererはnilでもよい）
	Logger   *slog.Logger
	Metrics  metrics.MetricsCollector
	Gatherer prometheus.Gatherer

	// ミドルウェア依存
	SessionStore      middleware.SessionStore
	Contexts          middleware.ContextProvider
	SessionMaxAge     int
	CookieSecure      bool
	CookieDomain      string
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// ページ
	Catalog  catalog.Source
	Accounts AccountService

	// 静的ファイル
	StaticDir   string
	CatalogFile string

	HealthChecker HealthChecker
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Session → CSRF → (Guard | RateLimit)
//
// 静的ファイル・ヘルスチェック・メトリクスはセッションを発行しない。
func NewRouter(deps *RouterDeps) http.Handler {
	var (
		requests  middleware.RequestRecorder
		decisions guard.DecisionRecorder
	)
	if deps.Metrics != nil {
		requests = deps.Metrics
		decisions = deps.Metrics
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sessionMW := middleware.NewSessionMiddleware(middleware.SessionConfig{
		Store:        deps.SessionStore,
		Contexts:     deps.Contexts,
		MaxAge:       deps.SessionMaxAge,
		CookieSecure: deps.CookieSecure,
		CookieDomain: deps.CookieDomain,
	})
	csrfMW := middleware.NewCSRFMiddleware(middleware.CSRFConfig{
		CookieSecure:  deps.CookieSecure,
		CookieDomain:  deps.CookieDomain,
		MaxAge:        deps.SessionMaxAge,
		AllowedOrigin: deps.CORSAllowedOrigin,
	})
	loading := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		view.Render(w, view.LoadingTemplate, http.StatusOK, pageFor(r))
	})
	routeGuard := guard.New(middleware.SessionState, loading, decisions)

	catalogHandler := NewCatalogHandler(deps.Catalog)
	authHandler := NewAuthHandler(deps.Accounts)
	sessionHandler := NewSessionHandler(deps.CORSAllowedOrigin)

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, requests))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.CookieSecure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// --- セッション不要のルート ---
	r.Handle("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}
	if deps.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(deps.StaticDir))))
	}
	if deps.CatalogFile != "" {
		r.Get("/loadData.json", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, deps.CatalogFile)
		})
	}

	// --- セッションを使うルート ---
	// ミドルウェアスタック: Session → CSRF
	r.Group(func(r chi.Router) {
		r.Use(sessionMW)
		r.Use(csrfMW)

		r.Get("/", catalogHandler.Home)

		// 認証が必要なページ
		r.With(routeGuard.Require).Get("/allapps", catalogHandler.AllApps)
		r.With(routeGuard.Require).Get("/appDetails/{id}", catalogHandler.AppDetails)

		// 認証フォーム（POSTのみレート制限を適用）
		r.Route("/auth", func(r chi.Router) {
			r.Get("/login", authHandler.LoginPage)
			r.Get("/registration", authHandler.RegistrationPage)
			r.Post("/logout", authHandler.Logout)

			r.Group(func(r chi.Router) {
				if deps.RateLimiter != nil {
					r.Use(deps.RateLimiter.AuthMiddleware())
				}
				r.Post("/login", authHandler.Login)
				r.Post("/registration", authHandler.Register)
			})
		})

		// ローディングページが参照するセッション状態
		r.Get("/api/session", sessionHandler.State)
		r.Get("/ws/session", sessionHandler.Stream)
	})

	// 未定義のパスもナビゲーションバーを表示するためセッションを通す
	r.NotFound(sessionMW(csrfMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		view.Render(w, view.NotFoundTemplate, http.StatusNotFound, pageFor(r))
	}))).ServeHTTP)

	return r
}
