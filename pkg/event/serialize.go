package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidPayload はペイロードの必須項目が欠けている場合のエラー。
var ErrInvalidPayload = errors.New("通知ペイロードが不正です")

// Encode はペイロードを配信用のJSONにシリアライズする。
func Encode(p Payload) ([]byte, error) {
	if p.SenderID == "" || p.RecipientID == "" {
		return nil, fmt.Errorf("%w: 送信元と通知先は必須です", ErrInvalidPayload)
	}
	if !p.Type.Valid() {
		return nil, fmt.Errorf("%w: 未知の通知種別 %q", ErrInvalidPayload, p.Type)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("ペイロードのシリアライズに失敗: %w", err)
	}
	return data, nil
}
