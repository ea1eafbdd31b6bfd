// Package ws はWebSocketによるライブ配信のトランスポートを提供する。
//
// 接続直後のクライアントは匿名で、最初に {"userId": "..."} を送った時点で
// Registryに登録される。接続が切れると、その接続がまだ登録中であれば登録を解除する。
package ws
