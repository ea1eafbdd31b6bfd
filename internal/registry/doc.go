// Package registry は接続中ユーザーのライブセッションを管理する。
//
// WebSocket接続の確立・切断イベントとリクエスト処理の双方から
// 並行に参照・更新される。同一ユーザーの新しい接続は古い接続を置き換え、
// 切断時の登録解除は自分自身がまだ登録中の場合に限って行われる。
package registry
