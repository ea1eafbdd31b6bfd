// Package server は通知サービスのHTTP APIを提供する。
//
// フォロー、フォロー解除、投稿、いいねといったソーシャル操作を受け付けて
// fanoutエンジンで通知を作成し、通知履歴の取得と既読管理、
// WebSocketエンドポイントを公開する。
package server
