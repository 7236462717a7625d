package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/gamehub/internal/model"
)

// DefaultMaxSize はカタログデータの読み取り上限（5MiB）。
const DefaultMaxSize int64 = 5 * 1024 * 1024

// FileSource はローカルファイルからカタログを読み込む。
type FileSource struct {
	Path      string
	MaxSize   int64
	Sanitizer TextSanitizer
}

// FetchCatalog はファイルを読み込んでデコードする。
func (s *FileSource) FetchCatalog(ctx context.Context) ([]model.AppRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer f.Close()

	data, err := readLimited(f, s.MaxSize)
	if err != nil {
		return nil, err
	}
	return Decode(data, s.Sanitizer)
}

// HTTPSource はHTTP(S)でカタログを取得する。
// ClientにはSSRF防止機能付きのクライアントを渡すこと。
type HTTPSource struct {
	URL       string
	Client    *http.Client
	MaxSize   int64
	Sanitizer TextSanitizer
}

// FetchCatalog はURLからカタログを取得してデコードする。
func (s *HTTPSource) FetchCatalog(ctx context.Context) ([]model.AppRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrCatalogUnavailable, resp.StatusCode)
	}

	data, err := readLimited(resp.Body, s.MaxSize)
	if err != nil {
		return nil, err
	}
	return Decode(data, s.Sanitizer)
}

// readLimited はmaxSizeバイトまで読み込む。超過した場合はErrCatalogUnavailableを返す。
func readLimited(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: catalog exceeds %d bytes", ErrCatalogUnavailable, maxSize)
	}
	return data, nil
}

// FailureRecorder はカタログ取得失敗を記録するインターフェース。
type FailureRecorder interface {
	RecordCatalogFailure(source string)
}

const (
	// initialBackoff は取得失敗後に再取得を控える初回の期間。
	initialBackoff = 5 * time.Second
	// maxBackoff は再取得を控える期間の上限。
	maxBackoff = 5 * time.Minute
)

// calculateBackoff は連続失敗回数に基づいて指数バックオフ期間を計算する。
// 初回5秒、2倍ずつ増加、最大5分。
func calculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 1; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

const (
	// refreshKey はsingleflightで更新を1本にまとめるためのキー。
	refreshKey = "catalog"
	// defaultRefreshTimeout はリクエストから切り離した更新処理の上限時間。
	defaultRefreshTimeout = 30 * time.Second
)

// CachedSource は取得結果をTTLの間キャッシュするSource。
// 更新は同時に1本だけ、リクエストのキャンセルから切り離して実行する。
// 取得済みの結果がある場合は更新を待たずに前回の結果を返し、結果がなければ初回の更新を待つ。
// 失敗が続く間は指数バックオフで再取得を控える。
type CachedSource struct {
	source         Source
	ttl            time.Duration
	name           string
	recorder       FailureRecorder
	now            func() time.Time
	refreshTimeout time.Duration
	group          singleflight.Group

	// afterRefresh は更新処理の完了後に呼ばれる（テスト用）。
	afterRefresh func()

	mu        sync.Mutex
	apps      []model.AppRecord
	fetchedAt time.Time
	loaded    bool

	consecutiveErrors int
	retryAt           time.Time
	lastErr           error
}

// NewCachedSource はCachedSourceを生成する。nameはログとメトリクスのラベル、recorderはnilでもよい。
func NewCachedSource(source Source, ttl time.Duration, name string, recorder FailureRecorder) *CachedSource {
	return &CachedSource{
		source:         source,
		ttl:            ttl,
		name:           name,
		recorder:       recorder,
		now:            time.Now,
		refreshTimeout: defaultRefreshTimeout,
	}
}

// FetchCatalog はキャッシュが有効であればキャッシュを、期限切れであれば更新を開始する。
// 呼び出し元のctxがキャンセルされても更新は継続し、失敗として数えない。
func (c *CachedSource) FetchCatalog(ctx context.Context) ([]model.AppRecord, error) {
	c.mu.Lock()
	now := c.now()
	apps, loaded := c.apps, c.loaded
	if loaded && now.Sub(c.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return apps, nil
	}

	// バックオフ中は再取得しない
	if c.consecutiveErrors > 0 && now.Before(c.retryAt) {
		lastErr := c.lastErr
		c.mu.Unlock()
		if loaded {
			return apps, nil
		}
		return nil, lastErr
	}
	c.mu.Unlock()

	result := c.group.DoChan(refreshKey, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})

	if loaded {
		return apps, nil
	}

	select {
	case res := <-result:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]model.AppRecord), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, ctx.Err())
	}
}

// refresh は取得元から読み込み、結果または失敗をキャッシュに反映する。
func (c *CachedSource) refresh(ctx context.Context) ([]model.AppRecord, error) {
	if c.afterRefresh != nil {
		defer c.afterRefresh()
	}

	ctx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
	defer cancel()

	apps, err := c.source.FetchCatalog(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if err != nil {
		if c.recorder != nil {
			c.recorder.RecordCatalogFailure(c.name)
		}
		c.consecutiveErrors++
		c.retryAt = now.Add(calculateBackoff(c.consecutiveErrors))
		c.lastErr = err
		if c.loaded {
			slog.Warn("カタログの更新に失敗したため前回の結果を返し続けます",
				slog.String("source", c.name),
				slog.Int("consecutive_errors", c.consecutiveErrors),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}

	c.apps = apps
	c.fetchedAt = now
	c.loaded = true
	c.consecutiveErrors = 0
	c.lastErr = nil
	slog.Debug("カタログを更新しました",
		slog.String("source", c.name),
		slog.Int("apps_count", len(apps)),
	)

	return apps, nil
}

// compile-time interface check
var (
	_ Source = (*FileSource)(nil)
	_ Source = (*HTTPSource)(nil)
	_ Source = (*CachedSource)(nil)
)
