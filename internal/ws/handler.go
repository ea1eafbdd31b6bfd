package ws

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nao1215/notifyhub/internal/registry"
)

// Options はWebSocketハンドラの設定。
type Options struct {
	// SendBuffer は接続ごとの送信キューの長さ。
	SendBuffer int
	// WriteTimeout は1回の書き込みのタイムアウト。
	WriteTimeout time.Duration
	// PingInterval はping送信間隔。0ならpingせず読み込みのタイムアウトも設けない。
	PingInterval time.Duration
	// AllowedOrigins は接続を許可するオリジン。"*" を含むか空なら全て許可する。
	AllowedOrigins []string
}

// maxMessageSize はクライアントから受け付ける1メッセージの最大バイト数。
// クライアントが送るのはハンドシェイクだけなので小さくてよい。
const maxMessageSize = 4096

// handshake は接続後最初に送られるユーザー識別メッセージ。
type handshake struct {
	// UserID は接続するユーザーのID。
	UserID string `json:"userId"`
}

// Handler はWebSocket接続を受け付け、ハンドシェイク後にRegistryへ登録する。
type Handler struct {
	registry *registry.Registry
	upgrader websocket.Upgrader
	opts     Options
	logger   *zap.Logger

	// mu はconnsを保護する。
	mu sync.Mutex
	// conns は受け付け中の全接続。シャットダウン時にクローズする。
	conns map[*Conn]struct{}
}

// NewHandler は新しいHandlerを生成する。
func NewHandler(reg *registry.Registry, opts Options, logger *zap.Logger) *Handler {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 16
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Handler{
		registry: reg,
		opts:     opts,
		logger:   logger,
		conns:    make(map[*Conn]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin は許可されたオリジンからの接続かを判定する。
func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 || slices.Contains(h.opts.AllowedOrigins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.ContainsFunc(h.opts.AllowedOrigins, func(o string) bool {
		return strings.EqualFold(o, origin)
	})
}

// ServeHTTP は接続をWebSocketにアップグレードし、切断されるまで読み込みを続ける。
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgradeがエラーレスポンスを書き込み済み
		h.logger.Debug("WebSocketへのアップグレードに失敗", zap.Error(err))
		return
	}

	c := newConn(wsConn, h.opts.SendBuffer)
	h.track(c)
	defer h.untrack(c)

	h.logger.Debug("WebSocket接続を受け付けました", zap.String("conn_id", c.ID()))

	go c.writeLoop(h.opts.WriteTimeout, h.opts.PingInterval)
	h.readLoop(c)
}

// readLoop はクライアントからのメッセージを読み、ユーザーIDを名乗るメッセージで登録する。
// 読み込みが失敗したら接続をクローズし、まだ登録中であれば登録を解除する。
func (h *Handler) readLoop(c *Conn) {
	defer func() {
		c.Close()
		if userID := c.UserID(); userID != "" {
			h.registry.Unregister(userID, c)
		}
		h.logger.Debug("WebSocket接続を終了しました",
			zap.String("conn_id", c.ID()),
			zap.String("user_id", c.UserID()),
		)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	if h.opts.PingInterval > 0 {
		pongWait := 2 * h.opts.PingInterval
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		c.ws.SetPongHandler(func(string) error {
			return c.ws.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if h.opts.PingInterval > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(2 * h.opts.PingInterval))
		}

		var hs handshake
		if err := json.Unmarshal(msg, &hs); err != nil || strings.TrimSpace(hs.UserID) == "" {
			// ユーザーIDを含まないメッセージは無視する
			continue
		}
		userID := strings.TrimSpace(hs.UserID)

		if previous := c.setUserID(userID); previous != "" && previous != userID {
			h.registry.Unregister(previous, c)
		}
		h.registry.Register(userID, c)
		h.logger.Info("ユーザーが接続しました",
			zap.String("conn_id", c.ID()),
			zap.String("user_id", userID),
		)
	}
}

func (h *Handler) track(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

func (h *Handler) untrack(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}

// ActiveConnections は受け付け中の接続数を返す。ハンドシェイク前の接続も含む。
func (h *Handler) ActiveConnections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// CloseAll は受け付け中の全接続をクローズする。
// 各接続の読み込みループが終了し、Registryからの登録解除が行われる。
func (h *Handler) CloseAll() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
