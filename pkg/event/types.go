package event

import (
	"time"
)

// Type は通知の種類を表す。
type Type string

const (
	// TypeFollow はユーザーがフォローされたことを表す。
	TypeFollow Type = "FOLLOW"
	// TypeUnfollow はユーザーがフォロー解除されたことを表す。
	TypeUnfollow Type = "UNFOLLOW"
	// TypeNewPost はフォロー中のユーザーが新しい投稿をしたことを表す。
	TypeNewPost Type = "NEW_POST"
	// TypeLike は投稿にいいね/よくないねが付いたことを表す。
	TypeLike Type = "LIKE"
)

// Valid は通知種別が定義済みの値であるかを返す。
func (t Type) Valid() bool {
	switch t {
	case TypeFollow, TypeUnfollow, TypeNewPost, TypeLike:
		return true
	default:
		return false
	}
}

// Payload は接続中のクライアントへリアルタイム配信する通知のJSON構造。
// 永続化された通知と同じ内容を持つ。1回の配信につき1メッセージ。
type Payload struct {
	// SenderID は通知の送信元ユーザーID。
	SenderID string `json:"senderId"`
	// RecipientID は通知先のユーザーID。
	RecipientID string `json:"recipientId"`
	// Type は通知の種類。
	Type Type `json:"type"`
	// Message は表示用の通知メッセージ。
	Message string `json:"message"`
	// CreatedAt は通知の作成日時。
	CreatedAt time.Time `json:"createdAt"`
}

// NotificationSentData はイベントストアへ中継するNotificationSentイベントのデータ。
type NotificationSentData struct {
	// NotificationID は永続化された通知のID。
	NotificationID int64 `json:"notification_id"`
	// SenderID は通知の送信元ユーザーID。
	SenderID string `json:"sender_id"`
	// RecipientID は通知先のユーザーID。
	RecipientID string `json:"recipient_id"`
	// Type は通知の種類。
	Type Type `json:"type"`
	// Message は通知メッセージ。
	Message string `json:"message"`
}
