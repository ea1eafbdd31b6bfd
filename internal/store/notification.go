package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/notifyhub/pkg/event"
)

// Notification は永続化された通知1件。
type Notification struct {
	// ID は通知の一意識別子。作成順に単調増加する。
	ID int64 `db:"id" json:"id"`
	// SenderID は通知の送信元ユーザーID。
	SenderID string `db:"sender_id" json:"sender_id"`
	// RecipientID は通知先のユーザーID。
	RecipientID string `db:"recipient_id" json:"recipient_id"`
	// Type は通知の種類。
	Type event.Type `db:"type" json:"type"`
	// Message は通知メッセージ。
	Message string `db:"message" json:"message"`
	// CreatedAt は通知の作成日時。
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	// IsRead は通知の既読状態。
	IsRead bool `db:"is_read" json:"is_read"`
}

// NewNotification は通知作成時の入力。
type NewNotification struct {
	SenderID    string
	RecipientID string
	Type        event.Type
	Message     string
	// CreatedAt がゼロ値の場合は現在時刻を使う。
	CreatedAt time.Time
}

const notificationColumns = `id, sender_id, recipient_id, type, message, created_at, is_read`

// InsertNotification は通知を1件保存し、採番されたIDを返す。
func (s *Store) InsertNotification(ctx context.Context, n NewNotification) (int64, error) {
	if n.SenderID == "" || n.RecipientID == "" {
		return 0, errors.New("送信元と通知先のユーザーIDは必須です")
	}
	if !n.Type.Valid() {
		return 0, fmt.Errorf("未知の通知種別です: %q", n.Type)
	}
	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (sender_id, recipient_id, type, message, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		n.SenderID, n.RecipientID, n.Type, n.Message, createdAt,
	)
	if err != nil {
		return 0, fmt.Errorf("通知の保存に失敗 (recipient=%s): %w", n.RecipientID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("通知IDの取得に失敗: %w", err)
	}
	return id, nil
}

// ListNotifications はrecipientの通知を新しい順に返す。
func (s *Store) ListNotifications(ctx context.Context, recipient string) ([]Notification, error) {
	notifications := []Notification{}
	err := s.db.SelectContext(ctx, &notifications,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE recipient_id = ?
		 ORDER BY created_at DESC, id DESC`, recipient)
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗 (recipient=%s): %w", recipient, err)
	}
	return notifications, nil
}

// ListUnreadNotifications はrecipientの未読通知を新しい順に返す。
func (s *Store) ListUnreadNotifications(ctx context.Context, recipient string) ([]Notification, error) {
	notifications := []Notification{}
	err := s.db.SelectContext(ctx, &notifications,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE recipient_id = ? AND is_read = 0
		 ORDER BY created_at DESC, id DESC`, recipient)
	if err != nil {
		return nil, fmt.Errorf("未読通知一覧の取得に失敗 (recipient=%s): %w", recipient, err)
	}
	return notifications, nil
}

// GetNotification はIDで通知を取得する。存在しない場合はErrNotFoundを返す。
func (s *Store) GetNotification(ctx context.Context, id int64) (*Notification, error) {
	var n Notification
	err := s.db.GetContext(ctx, &n,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("通知の取得に失敗 (id=%d): %w", id, err)
	}
	return &n, nil
}

// MarkAsRead は通知を既読にする。
func (s *Store) MarkAsRead(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("通知の既読処理に失敗 (id=%d): %w", id, err)
	}
	return nil
}

// MarkAllAsRead はrecipientの全通知を既読にする。
func (s *Store) MarkAllAsRead(ctx context.Context, recipient string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE recipient_id = ? AND is_read = 0`, recipient); err != nil {
		return fmt.Errorf("全通知の既読処理に失敗 (recipient=%s): %w", recipient, err)
	}
	return nil
}
