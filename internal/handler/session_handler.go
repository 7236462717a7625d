package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/gamehub/internal/middleware"
	"github.com/hitoshi/gamehub/internal/session"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendBuffer = 8
)

// SessionHandler はセッション状態を公開するHTTPハンドラー。
// ローディングページは初期解決の完了をここから受け取る。
type SessionHandler struct {
	upgrader websocket.Upgrader
}

// NewSessionHandler はSessionHandlerを生成する。
// WebSocketは同一ホストまたはallowedOriginからの接続のみ受け付ける。
func NewSessionHandler(allowedOrigin string) *SessionHandler {
	return &SessionHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return checkOrigin(r, allowedOrigin)
			},
		},
	}
}

// State は現在のセッション状態をJSONで返す。
// GET /api/session
func (h *SessionHandler) State(w http.ResponseWriter, r *http.Request) {
	st, ok := middleware.SessionState(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(st)
}

// Stream はWebSocketでセッション状態を送信する。
// 接続直後に現在の状態を1回送り、以後は状態が変わるたびに送る。
// GET /ws/session
func (h *SessionHandler) Stream(w http.ResponseWriter, r *http.Request) {
	sc, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	// 1. 状態変更の購読（送信が詰まっている場合は古い通知を捨てる）
	send := make(chan session.State, wsSendBuffer)
	cancel := sc.Watch(func(st session.State) {
		select {
		case send <- st:
		default:
		}
	})
	defer cancel()

	// 2. 現在の状態を送信キューに積む
	send <- sc.State()

	// 3. クライアントからの切断を検知
	done := make(chan struct{})
	go readPump(conn, done)

	writePump(conn, send, done, sc.Done())
}

// readPump はクライアントからのメッセージを読み捨て、切断時にdoneを閉じる。
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump は送信キューの状態とpingを書き込む。書き込みに失敗するか切断されると終了する。
// Session Contextが破棄された場合は以後の通知が届かないため、Close frameを送って接続を閉じる。
func writePump(conn *websocket.Conn, send <-chan session.State, done, closed <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case st := <-send:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(st); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
			return
		case <-done:
			return
		}
	}
}

// checkOrigin はOriginヘッダーが同一ホストまたは許可オリジンであるかを判定する。
// Originヘッダーがない場合（ブラウザ以外のクライアント）は許可する。
func checkOrigin(r *http.Request, allowedOrigin string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if allowedOrigin != "" && origin == allowedOrigin {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}
