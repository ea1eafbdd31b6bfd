// Package event は通知の種別とリアルタイム配信用ペイロードの型を提供する。
//
// HTTPハンドラ、ファンアウトエンジン、WebSocketトランスポートの間で
// 共有されるワイヤ形式を定義する。
package event
