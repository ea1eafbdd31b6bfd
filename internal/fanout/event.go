package fanout

import (
	"fmt"

	"github.com/nao1215/notifyhub/pkg/event"
)

// Audience は通知先の決め方を表す。
type Audience int

const (
	// AudienceDirect は明示された1人のユーザーに通知する。
	AudienceDirect Audience = iota
	// AudienceFollowers は送信元の現在のフォロワー全員に通知する。
	AudienceFollowers
)

// Event はドメイン上の出来事1件。Dispatchに渡すと通知に展開される。
type Event struct {
	// SenderID は操作を行ったユーザーのID。
	SenderID string
	// Type は通知の種類。
	Type event.Type
	// Audience は通知先の決め方。
	Audience Audience
	// RecipientID はAudienceDirectの場合の通知先。
	RecipientID string
	// Content は新規投稿の本文。
	Content string
	// Liked はリアクションがいいねかどうか。
	Liked bool
	// Message が空でない場合はRenderの結果の代わりにそのまま使う。
	Message string
}

// FollowEvent はsenderがtargetをフォローしたイベントを返す。
func FollowEvent(sender, target string) Event {
	return Event{SenderID: sender, Type: event.TypeFollow, Audience: AudienceDirect, RecipientID: target}
}

// UnfollowEvent はsenderがtargetのフォローを解除したイベントを返す。
func UnfollowEvent(sender, target string) Event {
	return Event{SenderID: sender, Type: event.TypeUnfollow, Audience: AudienceDirect, RecipientID: target}
}

// NewPostEvent はauthorが投稿したイベントを返す。通知先はauthorのフォロワー。
func NewPostEvent(author, content string) Event {
	return Event{SenderID: author, Type: event.TypeNewPost, Audience: AudienceFollowers, Content: content}
}

// ReactionEvent はsenderがauthorの投稿にリアクションしたイベントを返す。
func ReactionEvent(sender, author string, liked bool) Event {
	return Event{SenderID: sender, Type: event.TypeLike, Audience: AudienceDirect, RecipientID: author, Liked: liked}
}

// DirectEvent は任意のメッセージを1人のユーザーに通知するイベントを返す。
func DirectEvent(sender, recipient string, typ event.Type, message string) Event {
	return Event{SenderID: sender, Type: typ, Audience: AudienceDirect, RecipientID: recipient, Message: message}
}

// Render は通知メッセージを組み立てる。
// 永続化する通知とライブ配信する通知の両方で同じ結果を使う。
func Render(e Event) string {
	if e.Message != "" {
		return e.Message
	}
	switch e.Type {
	case event.TypeFollow:
		return fmt.Sprintf("%s started following you", e.SenderID)
	case event.TypeUnfollow:
		return fmt.Sprintf("%s unfollowed you", e.SenderID)
	case event.TypeNewPost:
		return fmt.Sprintf("%s posted: %s", e.SenderID, e.Content)
	case event.TypeLike:
		if e.Liked {
			return fmt.Sprintf("%s liked your post", e.SenderID)
		}
		return fmt.Sprintf("%s disliked your post", e.SenderID)
	default:
		return ""
	}
}
