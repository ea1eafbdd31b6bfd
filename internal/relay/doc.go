// Package relay は保存済みの通知を外部のイベントストアへ中継する。
//
// 中継はベストエフォートで、失敗してもファンアウトの結果には影響しない。
package relay
