package registry

import (
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// Session は接続中クライアント1つ分の配信チャネル。
// Unregisterは同一性で比較するため、実装はポインタ型であること。
// 比較できない型のセッションはUnregisterでは削除されず、Registerでの置き換えを待つ。
type Session interface {
	// IsOpen はトランスポートが送信可能な状態かを返す。
	IsOpen() bool
	// Send はシリアライズ済みのペイロードを送信する。ブロックしてはならない。
	Send(payload []byte) error
}

// Registry はユーザーIDと現在有効なライブセッションの対応を管理する。
// 1ユーザーにつき保持するセッションは最大1つ。
type Registry struct {
	// mu はsessionsへの並行アクセスを保護する。
	mu sync.RWMutex
	// sessions はユーザーIDごとの現在のセッション。
	sessions map[string]Session
	// logger は構造化ロガー。
	logger *zap.Logger
}

// New は空のRegistryを生成する。
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]Session),
		logger:   logger,
	}
}

// Register はuserIDの現在のセッションとしてsessionを登録する。
// 既存のセッションは無条件に置き換えられる（クローズはしない）。
func (r *Registry) Register(userID string, session Session) {
	r.mu.Lock()
	_, replaced := r.sessions[userID]
	r.sessions[userID] = session
	r.mu.Unlock()

	r.logger.Debug("セッションを登録しました",
		zap.String("user_id", userID),
		zap.Bool("replaced", replaced),
	)
}

// Unregister は登録中のセッションがsessionと同一の場合に限り削除する。
// 既に別のセッションに置き換わっている場合は何もしない。
func (r *Registry) Unregister(userID string, session Session) {
	r.mu.Lock()
	current, ok := r.sessions[userID]
	removed := ok && sameSession(current, session)
	if removed {
		delete(r.sessions, userID)
	}
	r.mu.Unlock()

	if !removed {
		r.logger.Debug("古いセッションの登録解除を無視しました", zap.String("user_id", userID))
		return
	}
	r.logger.Debug("セッションを登録解除しました", zap.String("user_id", userID))
}

// sameSession はaとbが同じセッションかを返す。
// 動的型が比較できない場合は==がpanicするため、同一とはみなさない。
func sameSession(a, b Session) bool {
	ta := reflect.TypeOf(a)
	if ta == nil {
		return b == nil
	}
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

// TryDeliver はuserIDのセッションが開いていればpayloadを1回だけ送信する。
// 未接続や送信失敗は呼び出し元に伝えず破棄する。送信を受け付けた場合はtrueを返す。
func (r *Registry) TryDeliver(userID string, payload []byte) bool {
	r.mu.RLock()
	session, ok := r.sessions[userID]
	r.mu.RUnlock()

	if !ok || !session.IsOpen() {
		return false
	}
	if err := session.Send(payload); err != nil {
		r.logger.Debug("ライブ配信を破棄しました",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return false
	}
	return true
}

// Lookup はuserIDに登録中のセッションを返す。
func (r *Registry) Lookup(userID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[userID]
	return session, ok
}

// Len は登録中のセッション数を返す。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
