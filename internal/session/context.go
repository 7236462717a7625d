// Package session はブラウザセッションごとの認証状態（Session Context）を提供する。
package session

import (
	"context"
	"sync"

	"github.com/hitoshi/gamehub/internal/identity"
	"github.com/hitoshi/gamehub/internal/model"
)

// State はSession Contextが公開する認証状態。
// Loadingは最初のコールバックを受け取るまでtrueで、以後falseに戻ることはない。
type State struct {
	User    *model.UserRecord `json:"user"`
	Loading bool              `json:"loading"`
}

type watcher struct {
	id int
	fn func(State)
}

// Context は1つのブラウザセッションの認証状態を保持する。
// 状態の書き込みはAdapterの購読コールバックからのみ行われる。
type Context struct {
	adapter identity.Adapter

	activateOnce sync.Once
	closeOnce    sync.Once

	mu          sync.Mutex
	state       State
	unsubscribe func()
	closed      bool
	done        chan struct{}
	watchers    []watcher
	nextID      int
}

// NewContext はLoading=trueの状態でContextを生成する。
func NewContext(adapter identity.Adapter) *Context {
	return &Context{
		adapter: adapter,
		state:   State{Loading: true},
		done:    make(chan struct{}),
	}
}

// Activate はAdapterのセッション変更を購読する。2回目以降の呼び出しは何もしない。
func (c *Context) Activate() {
	c.activateOnce.Do(func() {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}

		unsubscribe := c.adapter.Subscribe(c.onSessionChange)

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			unsubscribe()
			return
		}
		c.unsubscribe = unsubscribe
		c.mu.Unlock()
	})
}

// onSessionChange は購読コールバック。ユーザーを丸ごと置き換えてLoadingを下ろす。
func (c *Context) onSessionChange(user *model.UserRecord) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = State{User: user, Loading: false}
	state := c.state
	fns := make([]func(State), len(c.watchers))
	for i, w := range c.watchers {
		fns[i] = w.fn
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// State は現在の状態を返す。
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Watch は状態変更の通知を登録する。戻り値の関数で解除する。
// fnはロック外で呼び出されるが、ブロックしてはならない。
func (c *Context) Watch(fn func(State)) (cancel func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.watchers = append(c.watchers, watcher{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, w := range c.watchers {
				if w.id == id {
					c.watchers = append(c.watchers[:i:i], c.watchers[i+1:]...)
					break
				}
			}
		})
	}
}

// Done はCloseされると閉じるチャネルを返す。
// 閉じた後はWatchの通知が届かないため、購読側はこれを見て接続を終える。
func (c *Context) Done() <-chan struct{} {
	return c.done
}

// watching はWatchで登録された通知先が残っているかを返す。
func (c *Context) watching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.watchers) > 0
}

// SignIn はAdapterのSignInをそのまま呼び出す。
func (c *Context) SignIn(ctx context.Context, email, password string) (*model.UserRecord, error) {
	return c.adapter.SignIn(ctx, email, password)
}

// Register はAdapterのRegisterをそのまま呼び出す。
func (c *Context) Register(ctx context.Context, email, password string) (*model.UserRecord, error) {
	return c.adapter.Register(ctx, email, password)
}

// UpdateProfile はAdapterのUpdateProfileをそのまま呼び出す。
func (c *Context) UpdateProfile(ctx context.Context, update identity.ProfileUpdate) error {
	return c.adapter.UpdateProfile(ctx, update)
}

// SignOut はAdapterのSignOutをそのまま呼び出す。
func (c *Context) SignOut(ctx context.Context) error {
	return c.adapter.SignOut(ctx)
}

// Close は購読を解除し、以後のコールバックとWatch通知を止める。複数回呼び出してもよい。
func (c *Context) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		unsubscribe := c.unsubscribe
		c.unsubscribe = nil
		c.watchers = nil
		close(c.done)
		c.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
	})
}
