package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/gamehub/internal/account"
	"github.com/hitoshi/gamehub/internal/catalog"
	"github.com/hitoshi/gamehub/internal/config"
	"github.com/hitoshi/gamehub/internal/database"
	"github.com/hitoshi/gamehub/internal/handler"
	"github.com/hitoshi/gamehub/internal/identity"
	"github.com/hitoshi/gamehub/internal/logger"
	"github.com/hitoshi/gamehub/internal/metrics"
	"github.com/hitoshi/gamehub/internal/middleware"
	"github.com/hitoshi/gamehub/internal/repository"
	"github.com/hitoshi/gamehub/internal/security"
	"github.com/hitoshi/gamehub/internal/session"
	"github.com/hitoshi/gamehub/internal/worker/cleanup"
)

// errDatabaseRequired はDBが必須のサブコマンドでDATABASE_URLが未設定の場合のエラー。
var errDatabaseRequired = errors.New("DATABASE_URL is required for this command")

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. LOG_LEVELを反映する
	logger.SetLevel(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	if cmd == CommandHelp {
		_, err := io.WriteString(w, Usage())
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("identity_backend", cfg.IdentityBackend),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// server はserveモードで起動するHTTPサーバーと、その停止時に解放する依存関係を保持する。
type server struct {
	handler     http.Handler
	sessions    repository.SessionRepository
	registry    *session.Registry
	rateLimiter *middleware.RateLimiter
	collector   *metrics.Collector
	db          *sql.DB
}

// close はContextの購読解除、レート制限のクリーンアップ停止、DB切断を行う。
func (s *server) close() {
	s.registry.Close()
	s.rateLimiter.Stop()
	if s.db != nil {
		s.db.Close()
	}
}

// newServer は全依存関係をワイヤリングしたサーバーを構築する。
// ctxはIdentity Clientの初期解決とJWKSの更新に使われ、サーバーの寿命と同じであること。
func newServer(ctx context.Context, cfg *config.Config, reg *prometheus.Registry) (*server, error) {
	// 1. セッションストア（DATABASE_URLが未設定の場合はインメモリ）
	sessions, db, err := openSessionRepo(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 2. IdP
	backend, verifier, err := newIdentity(ctx, cfg)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}

	// 3. メトリクス
	collector := metrics.NewCollector(reg)

	// 4. カタログ
	source, err := newCatalogSource(cfg, collector)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}

	// 5. Session Context Registry
	registryConfig := session.DefaultRegistryConfig()
	registryConfig.IdleTimeout = cfg.SessionIdleTimeout
	registry := session.NewRegistry(ctx, backend, verifier, sessions, registryConfig)
	collector.ObserveActiveSessions(registry.Len)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.NewAuthRateLimiterConfig(cfg.RateLimitAuth))

	deps := &handler.RouterDeps{
		Logger:   slog.Default(),
		Metrics:  collector,
		Gatherer: reg,

		SessionStore:      sessions,
		Contexts:          registry,
		SessionMaxAge:     cfg.SessionMaxAge,
		CookieSecure:      cfg.CookieSecure,
		CookieDomain:      cfg.CookieDomain,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		Catalog:  source,
		Accounts: account.NewService(collector),

		StaticDir:   cfg.StaticDir,
		CatalogFile: cfg.CatalogPath,
	}
	if db != nil {
		deps.HealthChecker = db
	}

	return &server{
		handler:     handler.NewRouter(deps),
		sessions:    sessions,
		registry:    registry,
		rateLimiter: rateLimiter,
		collector:   collector,
		db:          db,
	}, nil
}

// openSessionRepo はセッションリポジトリを構築する。
// DATABASE_URLが設定されている場合はPostgreSQLに接続する。
func openSessionRepo(ctx context.Context, cfg *config.Config) (repository.SessionRepository, *sql.DB, error) {
	if cfg.DatabaseURL == "" {
		slog.Info("DATABASE_URL is not set; using in-memory session store")
		return repository.NewMemorySessionRepo(), nil, nil
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewPostgresSessionRepo(db), db, nil
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// newIdentity はIDENTITY_BACKENDに応じたIdPバックエンドとトークン検証器を構築する。
func newIdentity(ctx context.Context, cfg *config.Config) (identity.Backend, identity.TokenVerifier, error) {
	switch cfg.IdentityBackend {
	case config.IdentityBackendMemory:
		slog.Warn("using in-memory identity provider; accounts are lost on restart")
		backend := identity.NewMemoryBackend([]byte(cfg.IdentitySigningKey))
		return backend, backend.Verifier(), nil

	case config.IdentityBackendFirebase:
		client := &http.Client{Timeout: cfg.IdentityTimeout}
		backend := identity.NewFirebaseBackend(identity.FirebaseConfig{
			APIKey:     cfg.FirebaseAPIKey,
			HTTPClient: client,
		})
		jwks, err := identity.FetchFirebaseKeys(ctx, client)
		if err != nil {
			return nil, nil, err
		}
		return backend, identity.NewFirebaseVerifier(cfg.FirebaseProjectID, jwks.Keyfunc), nil

	default:
		return nil, nil, fmt.Errorf("unsupported identity backend: %q", cfg.IdentityBackend)
	}
}

// newCatalogSource はカタログの取得元を構築する。
// CATALOG_URLが設定されている場合はSSRF防止クライアントでHTTP取得し、それ以外はローカルファイルを読む。
func newCatalogSource(cfg *config.Config, recorder catalog.FailureRecorder) (catalog.Source, error) {
	sanitizer := security.NewTextSanitizer()

	if cfg.CatalogURL != "" {
		guard := security.NewRemoteGuard()
		if err := guard.ValidateURL(cfg.CatalogURL); err != nil {
			return nil, fmt.Errorf("invalid CATALOG_URL: %w", err)
		}
		source := &catalog.HTTPSource{
			URL:       cfg.CatalogURL,
			Client:    guard.NewSafeClient(cfg.CatalogFetchTimeout),
			MaxSize:   cfg.CatalogMaxSize,
			Sanitizer: sanitizer,
		}
		return catalog.NewCachedSource(source, cfg.CatalogCacheTTL, "http", recorder), nil
	}

	source := &catalog.FileSource{
		Path:      cfg.CatalogPath,
		MaxSize:   cfg.CatalogMaxSize,
		Sanitizer: sanitizer,
	}
	return catalog.NewCachedSource(source, cfg.CatalogCacheTTL, "file", recorder), nil
}

// runServe はWebサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := newServer(ctx, cfg, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer srv.close()

	// インメモリのセッションストアはworkerから参照できないため、期限切れセッションをここで削除する
	if cfg.DatabaseURL == "" {
		job := cleanup.NewCleanupJob(srv.sessions, slog.Default(), srv.collector)
		go job.Start(ctx, cfg.SessionCleanupInterval)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("web server starting",
			slog.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down web server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れセッションのクリーンアップを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errDatabaseRequired
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. DB接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(repository.NewPostgresSessionRepo(db), slog.Default(), nil)

	// グレースフルシャットダウンのためのシグナルハンドリング

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errDatabaseRequired
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
