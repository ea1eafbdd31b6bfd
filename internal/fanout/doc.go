// Package fanout はドメインイベントを通知に展開するファンアウトエンジンを提供する。
//
// フォロー・フォロー解除・新規投稿・リアクションといった出来事から通知先を解決し、
// 通知先ごとに通知を永続化したうえで、接続中であればライブ配信を試みる。
package fanout
