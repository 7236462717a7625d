package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/gamehub/internal/identity"
	"github.com/hitoshi/gamehub/internal/model"
	"github.com/hitoshi/gamehub/internal/repository"
)

// RegistryConfig はRegistryの設定を保持する。
type RegistryConfig struct {
	IdleTimeout     time.Duration // 最終アクセスからContextを破棄するまでの時間
	CleanupInterval time.Duration // アイドルContextの走査間隔
}

// DefaultRegistryConfig はデフォルトのRegistry設定を返す。
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		IdleTimeout:     30 * time.Minute,
		CleanupInterval: time.Minute,
	}
}

type entry struct {
	ctx      *Context
	client   *identity.Client
	lastSeen time.Time
}

// Registry はブラウザセッションIDごとに1つのContextを保持する。
// アイドル状態が続いたContextはバックグラウンドでCloseされる。
type Registry struct {
	baseCtx  context.Context
	backend  identity.Backend
	verifier identity.TokenVerifier
	repo     repository.SessionRepository
	config   RegistryConfig
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRegistry は新しいRegistryを生成し、アイドルContextのクリーンアップを開始する。
// baseCtxはIdentity Clientの初期解決に使われ、アプリケーションの寿命と同じであること。
func NewRegistry(baseCtx context.Context, backend identity.Backend, verifier identity.TokenVerifier,
	repo repository.SessionRepository, config RegistryConfig) *Registry {
	r := &Registry{
		baseCtx:  baseCtx,
		backend:  backend,
		verifier: verifier,
		repo:     repo,
		config:   config,
		now:      time.Now,
		entries:  make(map[string]*entry),
		stopCh:   make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		go r.cleanupLoop()
	}

	return r
}

// Get はブラウザセッションに対応するContextを返す。
// 存在しない場合はIdentity Clientを生成して初期解決を開始し、購読済みのContextを登録する。
// 既存のContextではIDトークンの失効を確認し、必要であればリフレッシュする。
func (r *Registry) Get(ctx context.Context, rec *model.SessionRecord) *Context {
	r.mu.Lock()
	if e, ok := r.entries[rec.ID]; ok {
		e.lastSeen = r.now()
		r.mu.Unlock()

		if err := e.client.EnsureFresh(ctx); err != nil {
			slog.Warn("IDトークンのリフレッシュに失敗しました",
				slog.String("session_id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
		return e.ctx
	}

	client := identity.NewClient(r.backend, r.verifier, &credentialStore{
		repo:      r.repo,
		sessionID: rec.ID,
		expiresAt: rec.ExpiresAt,
		now:       r.now,
	})
	sc := NewContext(client)

	if r.closed {
		r.mu.Unlock()
		return sc
	}
	r.entries[rec.ID] = &entry{ctx: sc, client: client, lastSeen: r.now()}
	r.mu.Unlock()

	client.Start(r.baseCtx)
	sc.Activate()

	return sc
}

// Drop は指定セッションのContextを破棄する。
func (r *Registry) Drop(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if ok {
		e.ctx.Close()
	}
}

// Len は保持しているContextの数を返す。テストおよびメトリクス用。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close はクリーンアップを停止し、すべてのContextの購読を解除する。
func (r *Registry) Close() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})

	r.mu.Lock()
	r.closed = true
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		e.ctx.Close()
	}
}

// cleanupLoop はバックグラウンドでアイドルContextを定期的に破棄する。
func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle()
		case <-r.stopCh:
			return
		}
	}
}

// evictIdle は最終アクセスからIdleTimeoutを超えたContextを破棄する。
// 購読中のContextは破棄せず、最終アクセス時刻を更新する。
func (r *Registry) evictIdle() int {
	now := r.now()

	r.mu.Lock()
	var idle []*entry
	for id, e := range r.entries {
		// WebSocketなどで購読中のContextはアクセス中として扱う
		if e.ctx.watching() {
			e.lastSeen = now
			continue
		}
		if now.Sub(e.lastSeen) > r.config.IdleTimeout {
			idle = append(idle, e)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, e := range idle {
		e.ctx.Close()
	}

	if len(idle) > 0 {
		slog.Debug("アイドルセッションを破棄しました", slog.Int("count", len(idle)))
	}
	return len(idle)
}
