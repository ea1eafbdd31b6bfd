// Package store はSQLiteを使った永続化層を提供する。
//
// 通知の追記と受信者ごとの参照に加え、フォロー関係・投稿・リアクションといった
// ドメイン操作が必要とするリレーショナルな状態を扱う。
// スキーマはmigrations/配下のSQLファイルで管理し、Open時に適用する。
package store
