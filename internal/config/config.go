// Package config は環境変数（と任意の設定ファイル）からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config はアプリケーション全体の設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// DatabasePath はSQLiteデータベースファイルのパス。
	DatabasePath string
	// JWTSecret は/api/v1配下の認証に使うJWTの署名鍵。
	JWTSecret string
	// JWTIssuer は受け付けるJWTの発行者（issクレーム）。
	JWTIssuer string
	// CORSOrigins は許可するオリジンの一覧。"*" は全オリジン許可。
	CORSOrigins []string
	// EventStoreURL は通知を中継するイベントストアのURL。空なら中継しない。
	EventStoreURL string
	// FanoutWorkers は通知先を並行処理する上限数。
	FanoutWorkers int
	// WSSendBuffer はWebSocket接続ごとの送信キューの長さ。
	WSSendBuffer int
	// WSWriteTimeout はWebSocketへの1回の書き込みのタイムアウト。
	WSWriteTimeout time.Duration
	// WSPingInterval はWebSocketのping送信間隔。0ならpingしない。
	WSPingInterval time.Duration
	// LogLevel はログレベル（debug / info / warn / error）。
	LogLevel string
	// ShutdownTimeout はグレースフルシャットダウンの待ち時間。
	ShutdownTimeout time.Duration
}

// Load は設定を読み込んで検証する。
// CONFIG_FILE が指定されていればそのYAMLを読み込み、環境変数で上書きする。
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("port", "4000")
	v.SetDefault("database_path", "./notifications.db")
	v.SetDefault("jwt_secret", "dev-secret-key")
	v.SetDefault("jwt_issuer", "notifyhub")
	v.SetDefault("cors_origins", "*")
	v.SetDefault("eventstore_url", "")
	v.SetDefault("fanout_workers", 8)
	v.SetDefault("ws_send_buffer", 16)
	v.SetDefault("ws_write_timeout", "10s")
	v.SetDefault("ws_ping_interval", "30s")
	v.SetDefault("log_level", "info")
	v.SetDefault("shutdown_timeout", "10s")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("設定ファイル %s の読み込みに失敗: %w", path, err)
		}
	}

	cfg := Config{
		Port:            v.GetString("port"),
		DatabasePath:    v.GetString("database_path"),
		JWTSecret:       v.GetString("jwt_secret"),
		JWTIssuer:       v.GetString("jwt_issuer"),
		CORSOrigins:     splitList(v.GetString("cors_origins")),
		EventStoreURL:   strings.TrimRight(v.GetString("eventstore_url"), "/"),
		FanoutWorkers:   v.GetInt("fanout_workers"),
		WSSendBuffer:    v.GetInt("ws_send_buffer"),
		WSWriteTimeout:  v.GetDuration("ws_write_timeout"),
		WSPingInterval:  v.GetDuration("ws_ping_interval"),
		LogLevel:        strings.ToLower(v.GetString("log_level")),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Port == "" {
		return errors.New("PORT は必須です")
	}
	if c.DatabasePath == "" {
		return errors.New("DATABASE_PATH は必須です")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET は必須です")
	}
	if c.JWTIssuer == "" {
		return errors.New("JWT_ISSUER は必須です")
	}
	if c.FanoutWorkers <= 0 {
		return fmt.Errorf("FANOUT_WORKERS は1以上である必要があります: %d", c.FanoutWorkers)
	}
	if c.WSSendBuffer <= 0 {
		return fmt.Errorf("WS_SEND_BUFFER は1以上である必要があります: %d", c.WSSendBuffer)
	}
	if c.WSWriteTimeout <= 0 {
		return fmt.Errorf("WS_WRITE_TIMEOUT は正の値である必要があります: %s", c.WSWriteTimeout)
	}
	if c.WSPingInterval < 0 {
		return fmt.Errorf("WS_PING_INTERVAL は0以上である必要があります: %s", c.WSPingInterval)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL が不正です: %q", c.LogLevel)
	}
	return nil
}

// splitList はカンマ区切りの文字列を空要素を除いて分割する。
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
