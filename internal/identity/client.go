package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/gamehub/internal/model"
)

// Adapter はIdPとのやり取りをアプリケーションから隠蔽するインターフェース。
type Adapter interface {
	Register(ctx context.Context, email, password string) (*model.UserRecord, error)
	SignIn(ctx context.Context, email, password string) (*model.UserRecord, error)
	UpdateProfile(ctx context.Context, update ProfileUpdate) error
	SignOut(ctx context.Context) error
	// Subscribe は初期解決の完了時に現在の状態で1回、以後はセッション変更のたびにfnを呼び出す。
	// 戻り値の関数で購読を解除する（複数回呼び出してもよい）。
	Subscribe(fn func(*model.UserRecord)) (unsubscribe func())
}

// Persistence はブラウザセッションに紐づくCredentialの保存先。
type Persistence interface {
	// Load は保存済みのCredentialを返す。存在しない場合はnil, nilを返す。
	Load(ctx context.Context) (*Credential, error)
	Save(ctx context.Context, cred *Credential) error
	Clear(ctx context.Context) error
}

type listener struct {
	id int
	fn func(*model.UserRecord)
}

// Client は1つのブラウザセッションに対応するステートフルなAdapter実装。
// 初期解決（Start）が完了するまで購読者は呼び出されない。
// リスナーはClientのロック外、登録順に呼び出されるが、リスナー内からClientの操作を呼び出してはならない。
type Client struct {
	backend     Backend
	verifier    TokenVerifier
	persistence Persistence
	now         func() time.Time

	startOnce sync.Once
	ready     chan struct{}

	// deliverMu は状態の確定とリスナー呼び出しを直列化する
	deliverMu sync.Mutex
	// refreshMu は同時リクエストによる二重リフレッシュを防ぐ
	refreshMu sync.Mutex

	mu        sync.Mutex
	cred      *Credential
	resolved  bool
	listeners []listener
	nextID    int
}

// NewClient はClientを生成する。初期解決はStartを呼び出すまで開始しない。
func NewClient(backend Backend, verifier TokenVerifier, persistence Persistence) *Client {
	return &Client{
		backend:     backend,
		verifier:    verifier,
		persistence: persistence,
		now:         time.Now,
		ready:       make(chan struct{}),
	}
}

// Start は保存済みCredentialからの初期解決を非同期に開始する。2回目以降の呼び出しは何もしない。
// ctxは解決処理全体に使われるため、リクエストスコープのコンテキストを渡してはならない。
func (c *Client) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		go c.resolve(ctx)
	})
}

// Ready は初期解決が完了するとcloseされるチャネルを返す。
func (c *Client) Ready() <-chan struct{} {
	return c.ready
}

// CurrentUser は現在のユーザーを返す。未解決またはサインインしていない場合はnil。
func (c *Client) CurrentUser() *model.UserRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return userOf(c.cred)
}

func (c *Client) resolve(ctx context.Context) {
	cred, err := c.restore(ctx)
	if err != nil {
		slog.Warn("セッションの復元に失敗しました", slog.String("error", err.Error()))
		cred = nil
	}

	c.deliverMu.Lock()
	c.mu.Lock()
	c.cred = cred
	c.resolved = true
	fns := c.snapshotLocked()
	c.mu.Unlock()
	deliver(fns, userOf(cred))
	c.deliverMu.Unlock()

	close(c.ready)
}

// restore は保存済みCredentialを検証し、IDトークンが失効していればリフレッシュする。
func (c *Client) restore(ctx context.Context) (*Credential, error) {
	// 1. 保存済みのCredentialを読み込む
	stored, err := c.persistence.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if stored == nil || stored.RefreshToken == "" {
		return nil, nil
	}

	// 2. IDトークンを検証する
	user, expiresAt, err := c.verifier.Verify(stored.IDToken)
	if err == nil {
		restored := *stored
		restored.User = *user
		restored.ExpiresAt = expiresAt
		return &restored, nil
	}
	if !errors.Is(err, ErrTokenExpired) {
		c.clearPersisted(ctx)
		return nil, err
	}

	// 3. 失効していればリフレッシュする
	fresh, err := c.backend.Refresh(ctx, stored.RefreshToken)
	if err != nil {
		if revoked(err) {
			c.clearPersisted(ctx)
		}
		return nil, fmt.Errorf("failed to refresh credential: %w", err)
	}
	c.save(ctx, fresh)

	return fresh, nil
}

// Register はアカウントを作成してサインインする。
func (c *Client) Register(ctx context.Context, email, password string) (*model.UserRecord, error) {
	return c.signInWith(ctx, func() (*Credential, error) {
		return c.backend.SignUp(ctx, email, password)
	})
}

// SignIn はメールアドレスとパスワードでサインインする。
func (c *Client) SignIn(ctx context.Context, email, password string) (*model.UserRecord, error) {
	return c.signInWith(ctx, func() (*Credential, error) {
		return c.backend.SignInWithPassword(ctx, email, password)
	})
}

func (c *Client) signInWith(ctx context.Context, authenticate func() (*Credential, error)) (*model.UserRecord, error) {
	if err := c.waitReady(ctx); err != nil {
		return nil, err
	}

	cred, err := authenticate()
	if err != nil {
		return nil, err
	}

	c.save(ctx, cred)
	c.commit(cred)

	return userOf(cred), nil
}

// UpdateProfile はサインイン中ユーザーのプロフィールを更新する。
// 更新後のプロフィールを含むトークンを再取得し、購読者に通知する。
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) error {
	if err := c.waitReady(ctx); err != nil {
		return err
	}

	cred, err := c.freshCredential(ctx)
	if err != nil {
		return err
	}
	if cred == nil {
		return ErrNoActiveSession
	}

	// 1. プロフィールを更新する
	user, err := c.backend.Update(ctx, cred.IDToken, update)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	// 2. 新しいプロフィールを反映したトークンを取得する
	next := *cred
	next.User = *user
	if refreshed, err := c.backend.Refresh(ctx, cred.RefreshToken); err != nil {
		slog.Warn("プロフィール更新後のトークン再取得に失敗しました",
			slog.String("uid", cred.User.UID),
			slog.String("error", err.Error()),
		)
	} else {
		next = *refreshed
	}

	if !c.swap(cred, &next) {
		return ErrNoActiveSession
	}
	c.save(ctx, &next)
	return nil
}

// SignOut はサインアウトする。サインインしていない場合も成功する。
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.waitReady(ctx); err != nil {
		return err
	}

	c.deliverMu.Lock()
	c.mu.Lock()
	wasSignedIn := c.cred != nil
	c.cred = nil
	fns := c.snapshotLocked()
	c.mu.Unlock()
	if wasSignedIn {
		deliver(fns, nil)
	}
	c.deliverMu.Unlock()

	if err := c.persistence.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

// EnsureFresh はIDトークンが失効していればリフレッシュする。
// IdPがセッションを無効化していた場合はサインアウト状態に遷移する。初期解決前は何もしない。
func (c *Client) EnsureFresh(ctx context.Context) error {
	if !c.isResolved() {
		return nil
	}
	_, err := c.freshCredential(ctx)
	return err
}

// Subscribe はセッション変更の購読を登録する。
func (c *Client) Subscribe(fn func(*model.UserRecord)) func() {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners = append(c.listeners, listener{id: id, fn: fn})
	resolved := c.resolved
	user := userOf(c.cred)
	c.mu.Unlock()

	if resolved {
		fn(user)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, l := range c.listeners {
				if l.id == id {
					c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
					break
				}
			}
		})
	}
}

// freshCredential は現在のCredentialを返す。IDトークンが失効していればリフレッシュしてから返す。
func (c *Client) freshCredential(ctx context.Context) (*Credential, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	cred := c.current()
	if cred == nil || !cred.Expired(c.now()) {
		return cred, nil
	}

	fresh, err := c.backend.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		if revoked(err) {
			slog.Info("IdPによりセッションが無効化されました",
				slog.String("uid", cred.User.UID),
				slog.String("code", string(CodeOf(err))),
			)
			if c.swap(cred, nil) {
				c.clearPersisted(ctx)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("failed to refresh credential: %w", err)
	}

	if !c.swap(cred, fresh) {
		return c.current(), nil
	}
	c.save(ctx, fresh)
	return fresh, nil
}

// commit は新しいCredentialを確定し、購読者に通知する。
func (c *Client) commit(cred *Credential) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	c.cred = cred
	fns := c.snapshotLocked()
	c.mu.Unlock()

	deliver(fns, userOf(cred))
}

// swap は現在のCredentialがexpectのままである場合に限りnextに置き換えて通知する。
func (c *Client) swap(expect, next *Credential) bool {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	if c.cred != expect {
		c.mu.Unlock()
		return false
	}
	c.cred = next
	fns := c.snapshotLocked()
	c.mu.Unlock()

	deliver(fns, userOf(next))
	return true
}

func (c *Client) current() *Credential {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cred
}

func (c *Client) isResolved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolved
}

// waitReady は初期解決の完了をctxの範囲で待つ。未開始であれば開始する。
func (c *Client) waitReady(ctx context.Context) error {
	c.Start(context.WithoutCancel(ctx))
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) save(ctx context.Context, cred *Credential) {
	if err := c.persistence.Save(ctx, cred); err != nil {
		slog.Error("認証情報の保存に失敗しました",
			slog.String("uid", cred.User.UID),
			slog.String("error", err.Error()),
		)
	}
}

func (c *Client) clearPersisted(ctx context.Context) {
	if err := c.persistence.Clear(ctx); err != nil {
		slog.Error("認証情報の削除に失敗しました", slog.String("error", err.Error()))
	}
}

func (c *Client) snapshotLocked() []func(*model.UserRecord) {
	fns := make([]func(*model.UserRecord), len(c.listeners))
	for i, l := range c.listeners {
		fns[i] = l.fn
	}
	return fns
}

func deliver(fns []func(*model.UserRecord), user *model.UserRecord) {
	for _, fn := range fns {
		fn(user)
	}
}

// userOf はCredentialからユーザーのスナップショットを生成する。
func userOf(cred *Credential) *model.UserRecord {
	if cred == nil {
		return nil
	}
	u := cred.User
	return &u
}

// revoked はIdPがリフレッシュトークンを受け付けなくなったことを示すエラーかを返す。
func revoked(err error) bool {
	switch CodeOf(err) {
	case CodeSessionExpired, CodeUserDisabled, CodeUserNotFound:
		return true
	}
	return false
}

// compile-time interface check
var _ Adapter = (*Client)(nil)
