package event

import (
	"encoding/json"
	"testing"
	"time"
)

// TestTypeConstants は通知種別の定数値を検証する。
func TestTypeConstants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  Type
		want string
	}{
		{name: "TypeFollowの値が正しいこと", got: TypeFollow, want: "FOLLOW"},
		{name: "TypeUnfollowの値が正しいこと", got: TypeUnfollow, want: "UNFOLLOW"},
		{name: "TypeNewPostの値が正しいこと", got: TypeNewPost, want: "NEW_POST"},
		{name: "TypeLikeの値が正しいこと", got: TypeLike, want: "LIKE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if string(tt.got) != tt.want {
				t.Errorf("Type = %q, want %q", tt.got, tt.want)
			}
		})
	}
}

// TestTypeValid はValidメソッドを検証する。
func TestTypeValid(t *testing.T) {
	t.Parallel()

	t.Run("定義済みの種別はすべて有効であること", func(t *testing.T) {
		t.Parallel()
		for _, typ := range []Type{TypeFollow, TypeUnfollow, TypeNewPost, TypeLike} {
			if !typ.Valid() {
				t.Errorf("%q.Valid() = false, want true", typ)
			}
		}
	})

	t.Run("未定義の種別は無効であること", func(t *testing.T) {
		t.Parallel()
		for _, typ := range []Type{"", "follow", "COMMENT", "NotificationSent"} {
			if typ.Valid() {
				t.Errorf("%q.Valid() = true, want false", typ)
			}
		}
	})
}

// TestPayloadJSON はPayloadのJSONフィールド名を検証する。
// 接続中のクライアントはキャメルケースのキーを前提にしている。
func TestPayloadJSON(t *testing.T) {
	t.Parallel()

	p := Payload{
		SenderID:    "alice",
		RecipientID: "bob",
		Type:        TypeFollow,
		Message:     "alice started following you",
		CreatedAt:   time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
	}

	jsonBytes, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("json.Marshal()でエラーが発生: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(jsonBytes, &raw); err != nil {
		t.Fatalf("json.Unmarshal()でエラーが発生: %v", err)
	}

	expectedKeys := []string{"senderId", "recipientId", "type", "message", "createdAt"}
	for _, key := range expectedKeys {
		if _, ok := raw[key]; !ok {
			t.Errorf("JSONに期待するキー %q が存在しない", key)
		}
	}
	if len(raw) != len(expectedKeys) {
		t.Errorf("キー数 = %d, want %d", len(raw), len(expectedKeys))
	}
}

// TestNotificationSentDataJSON はNotificationSentDataのJSONフィールド名を検証する。
func TestNotificationSentDataJSON(t *testing.T) {
	t.Parallel()

	data := NotificationSentData{
		NotificationID: 42,
		SenderID:       "alice",
		RecipientID:    "bob",
		Type:           TypeLike,
		Message:        "alice liked your post",
	}

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("json.Marshal()でエラーが発生: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(jsonBytes, &raw); err != nil {
		t.Fatalf("json.Unmarshal()でエラーが発生: %v", err)
	}

	if raw["notification_id"] != float64(42) {
		t.Errorf("notification_id = %v, want 42", raw["notification_id"])
	}
	if raw["type"] != "LIKE" {
		t.Errorf("type = %v, want LIKE", raw["type"])
	}
}
