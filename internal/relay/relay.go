package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nao1215/notifyhub/internal/store"
	"github.com/nao1215/notifyhub/pkg/event"
)

// ErrQueueFull は中継キューが満杯で通知を受け付けられない場合のエラー。
var ErrQueueFull = errors.New("中継キューが満杯です")

// ErrStopped は停止済みのRelayに通知を渡した場合のエラー。
var ErrStopped = errors.New("中継は停止しています")

// eventsPath はイベントストアのイベント追記API。
const eventsPath = "/api/v1/events"

// appendEventRequest はイベントストアへのイベント追記リクエストのJSON構造。
type appendEventRequest struct {
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType string `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType string `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
}

// Relay は保存済みの通知をNotificationSentイベントとしてイベントストアへ送る。
// Publishはキューに積むだけで、送信はバックグラウンドのゴルーチンが行う。
type Relay struct {
	client *Client
	queue  chan store.Notification
	logger *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// New は新しいRelayを生成する。bufferは送信待ちキューの長さ。
func New(baseURL string, buffer int, logger *zap.Logger) *Relay {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		client: NewClient(baseURL, 30*time.Second),
		queue:  make(chan store.Notification, buffer),
		logger: logger,
	}
}

// Publish は通知を送信キューに積む。キューが満杯の場合は待たずにErrQueueFullを返す。
func (r *Relay) Publish(_ context.Context, n store.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrStopped
	}

	select {
	case r.queue <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start はバックグラウンドで送信を開始する。
func (r *Relay) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go func() {
		defer close(done)
		r.logger.Info("Relay: 通知の中継を開始します")
		for {
			select {
			case <-ctx.Done():
				r.logger.Info("Relay: 通知の中継を停止しました")
				return
			case n := <-r.queue:
				if err := r.send(ctx, n); err != nil {
					r.logger.Warn("Relay: NotificationSentイベントの送信に失敗",
						zap.Int64("notification_id", n.ID),
						zap.Error(err),
					)
				}
			}
		}
	}()
}

// Stop はバックグラウンドの送信を停止し、ゴルーチンの終了を待つ。
// キューに残った通知は破棄する。
func (r *Relay) Stop() {
	r.mu.Lock()
	r.stopped = true
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// send は通知1件をイベントストアへ送る。
func (r *Relay) send(ctx context.Context, n store.Notification) error {
	data, err := json.Marshal(event.NotificationSentData{
		NotificationID: n.ID,
		SenderID:       n.SenderID,
		RecipientID:    n.RecipientID,
		Type:           n.Type,
		Message:        n.Message,
	})
	if err != nil {
		return fmt.Errorf("イベントデータのシリアライズに失敗: %w", err)
	}

	req := appendEventRequest{
		AggregateID:   fmt.Sprintf("notification-%d", n.ID),
		AggregateType: "User",
		EventType:     "NotificationSent",
		Data:          data,
	}
	return r.client.PostJSON(ctx, eventsPath, req, nil)
}
