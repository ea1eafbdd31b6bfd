package fanout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/notifyhub/internal/store"
	"github.com/nao1215/notifyhub/pkg/event"
)

var (
	// ErrInvalidEvent はイベントの必須項目が欠けている場合のエラー。
	ErrInvalidEvent = errors.New("イベントが不正です")
	// ErrResolveRecipients は通知先の解決に失敗した場合のエラー。
	// この場合は通知を1件も作成しない。
	ErrResolveRecipients = errors.New("通知先の解決に失敗")
)

// Store はファンアウトに必要な永続化操作。
type Store interface {
	// InsertNotification は通知を1件保存し、採番されたIDを返す。
	InsertNotification(ctx context.Context, n store.NewNotification) (int64, error)
	// ListFollowers はuserIDのフォロワーを返す。
	ListFollowers(ctx context.Context, userID string) ([]string, error)
}

// Deliverer は接続中のユーザーへのベストエフォート配信を行う。
type Deliverer interface {
	TryDeliver(userID string, payload []byte) bool
}

// Relay は永続化された通知を外部へ中継する。失敗は結果に影響しない。
type Relay interface {
	Publish(ctx context.Context, n store.Notification) error
}

// Outcome は通知先1人分の処理結果。
type Outcome struct {
	// RecipientID は通知先のユーザーID。
	RecipientID string
	// NotificationID は保存された通知のID。保存に失敗した場合は0。
	NotificationID int64
	// Err は保存に失敗した場合のエラー。
	Err error
}

// Result はDispatch1回分の結果。通知先の解決順に並ぶ。
type Result struct {
	Outcomes []Outcome
}

// Notified は通知の保存に成功した通知先を返す。
func (r Result) Notified() []string {
	ids := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.Err == nil {
			ids = append(ids, o.RecipientID)
		}
	}
	return ids
}

// Failed は通知の保存に失敗した通知先を返す。
func (r Result) Failed() []string {
	var ids []string
	for _, o := range r.Outcomes {
		if o.Err != nil {
			ids = append(ids, o.RecipientID)
		}
	}
	return ids
}

// PartialFailureError は一部の通知先で通知の保存に失敗したことを表す。
// 他の通知先の処理は完了している。
type PartialFailureError struct {
	Failures []Outcome
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%d件の通知先で通知の保存に失敗: %s",
		len(e.Failures), strings.Join(e.Recipients(), ", "))
}

// Recipients は保存に失敗した通知先のIDを返す。
func (e *PartialFailureError) Recipients() []string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.RecipientID)
	}
	return ids
}

// Unwrap は各通知先のエラーを返す。
func (e *PartialFailureError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Option はEngineの設定を変更する。
type Option func(*Engine)

// WithWorkers は通知先を並行処理する上限数を設定する。
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithRelay は保存した通知の中継先を設定する。
func WithRelay(r Relay) Option {
	return func(e *Engine) { e.relay = r }
}

// WithLogger はロガーを設定する。
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock は通知の作成日時に使う時計を差し替える。
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine はドメインイベントを通知の永続化とライブ配信に展開する。
type Engine struct {
	store     Store
	deliverer Deliverer
	relay     Relay
	logger    *zap.Logger
	workers   int
	now       func() time.Time
}

// New は新しいEngineを生成する。
func New(s Store, d Deliverer, opts ...Option) *Engine {
	e := &Engine{
		store:     s,
		deliverer: d,
		logger:    zap.NewNop(),
		workers:   8,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dispatch はイベントの通知先を解決し、通知先ごとに通知を保存してからライブ配信を試みる。
// 保存に失敗した通知先があっても残りの通知先は処理し、最後に*PartialFailureErrorを返す。
// ライブ配信の失敗はエラーにならない。
func (e *Engine) Dispatch(ctx context.Context, ev Event) (Result, error) {
	if ev.SenderID == "" {
		return Result{}, fmt.Errorf("%w: 送信元が空です", ErrInvalidEvent)
	}
	if !ev.Type.Valid() {
		return Result{}, fmt.Errorf("%w: 未知の通知種別 %q", ErrInvalidEvent, ev.Type)
	}

	recipients, err := e.resolve(ctx, ev)
	if err != nil {
		return Result{}, err
	}

	message := Render(ev)
	outcomes := make([]Outcome, len(recipients))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, recipient := range recipients {
		g.Go(func() error {
			outcomes[i] = e.notify(ctx, ev, recipient, message)
			return nil
		})
	}
	_ = g.Wait()

	result := Result{Outcomes: outcomes}
	var failures []Outcome
	for _, o := range outcomes {
		if o.Err != nil {
			failures = append(failures, o)
		}
	}
	if len(failures) > 0 {
		return result, &PartialFailureError{Failures: failures}
	}
	return result, nil
}

// resolve はイベントの通知先を返す。フォロワーは呼び出し時点のものを毎回問い合わせる。
func (e *Engine) resolve(ctx context.Context, ev Event) ([]string, error) {
	switch ev.Audience {
	case AudienceDirect:
		if ev.RecipientID == "" {
			return nil, fmt.Errorf("%w: 通知先が空です", ErrInvalidEvent)
		}
		return []string{ev.RecipientID}, nil
	case AudienceFollowers:
		followers, err := e.store.ListFollowers(ctx, ev.SenderID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrResolveRecipients, err)
		}
		return followers, nil
	default:
		return nil, fmt.Errorf("%w: 未知の通知先指定 %d", ErrInvalidEvent, ev.Audience)
	}
}

// notify は通知先1人分の保存と配信を行う。
func (e *Engine) notify(ctx context.Context, ev Event, recipient, message string) Outcome {
	createdAt := e.now().UTC()

	id, err := e.store.InsertNotification(ctx, store.NewNotification{
		SenderID:    ev.SenderID,
		RecipientID: recipient,
		Type:        ev.Type,
		Message:     message,
		CreatedAt:   createdAt,
	})
	if err != nil {
		e.logger.Warn("通知の保存に失敗しました",
			zap.String("sender_id", ev.SenderID),
			zap.String("recipient_id", recipient),
			zap.String("type", string(ev.Type)),
			zap.Error(err),
		)
		return Outcome{RecipientID: recipient, Err: err}
	}

	payload, err := event.Encode(event.Payload{
		SenderID:    ev.SenderID,
		RecipientID: recipient,
		Type:        ev.Type,
		Message:     message,
		CreatedAt:   createdAt,
	})
	if err != nil {
		e.logger.Error("配信ペイロードの生成に失敗しました", zap.Int64("notification_id", id), zap.Error(err))
	} else {
		delivered := e.deliverer.TryDeliver(recipient, payload)
		e.logger.Debug("通知を処理しました",
			zap.Int64("notification_id", id),
			zap.String("recipient_id", recipient),
			zap.Bool("delivered", delivered),
		)
	}

	if e.relay != nil {
		n := store.Notification{
			ID:          id,
			SenderID:    ev.SenderID,
			RecipientID: recipient,
			Type:        ev.Type,
			Message:     message,
			CreatedAt:   createdAt,
		}
		if err := e.relay.Publish(ctx, n); err != nil {
			e.logger.Warn("通知の中継に失敗しました", zap.Int64("notification_id", id), zap.Error(err))
		}
	}

	return Outcome{RecipientID: recipient, NotificationID: id}
}
