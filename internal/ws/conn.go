package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	// ErrClosed はクローズ済みの接続に送信しようとした場合のエラー。
	ErrClosed = errors.New("WebSocket接続はクローズ済みです")
	// ErrSendBufferFull は送信キューが満杯の場合のエラー。遅いクライアントを待たないために使う。
	ErrSendBufferFull = errors.New("WebSocket送信キューが満杯です")
)

// Conn はWebSocket接続1本分のライブセッション。
// Sendはキューに積むだけでブロックせず、実際の書き込みは書き込みループが行う。
type Conn struct {
	// id はログ用の接続識別子。
	id string
	// ws は下位のWebSocket接続。
	ws *websocket.Conn
	// send は書き込み待ちのメッセージ。
	send chan []byte
	// done はクローズ時に閉じられる。
	done chan struct{}
	// closeOnce はクローズ処理を1回に限定する。
	closeOnce sync.Once

	// mu はuserIDを保護する。
	mu sync.Mutex
	// userID はハンドシェイクで名乗ったユーザーID。名乗るまでは空。
	userID string
}

func newConn(ws *websocket.Conn, buffer int) *Conn {
	return &Conn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// ID は接続識別子を返す。
func (c *Conn) ID() string {
	return c.id
}

// UserID はハンドシェイク済みのユーザーIDを返す。未ハンドシェイクなら空。
func (c *Conn) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Conn) setUserID(userID string) (previous string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	previous, c.userID = c.userID, userID
	return previous
}

// IsOpen は接続が送信可能な状態かを返す。
func (c *Conn) IsOpen() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Send はメッセージを送信キューに積む。
// クローズ済みならErrClosed、キューが満杯ならErrSendBufferFullを返し、待つことはない。
func (c *Conn) Send(payload []byte) error {
	if !c.IsOpen() {
		return ErrClosed
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrSendBufferFull
	}
}

// Close は接続をクローズする。複数回呼んでもよい。
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

// writeLoop は送信キューのメッセージとpingを書き込む。
// 書き込みに失敗したら接続をクローズして終了する。
func (c *Conn) writeLoop(writeTimeout, pingInterval time.Duration) {
	var tick <-chan time.Time
	if pingInterval > 0 {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close()
				return
			}
		case <-tick:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
