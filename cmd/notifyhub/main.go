// 通知サービスのエントリポイント。
// フォロー、投稿、いいねなどのソーシャル操作から通知を生成して保存し、
// WebSocketで接続中のユーザーへリアルタイムに配信する。
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/nao1215/notifyhub/internal/config"
	"github.com/nao1215/notifyhub/internal/fanout"
	"github.com/nao1215/notifyhub/internal/registry"
	"github.com/nao1215/notifyhub/internal/relay"
	"github.com/nao1215/notifyhub/internal/server"
	"github.com/nao1215/notifyhub/internal/store"
	"github.com/nao1215/notifyhub/internal/ws"
)

// relayBuffer は中継キューの長さ。
const relayBuffer = 256

func main() {
	if err := run(); err != nil {
		log.Fatalf("通知サービスの起動に失敗: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("ロガーの初期化に失敗: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("データベース %s の初期化に失敗: %w", cfg.DatabasePath, err)
	}
	defer st.Close()

	reg := registry.New(logger)

	opts := []fanout.Option{
		fanout.WithWorkers(cfg.FanoutWorkers),
		fanout.WithLogger(logger),
	}
	if cfg.EventStoreURL != "" {
		r := relay.New(cfg.EventStoreURL, relayBuffer, logger)
		r.Start(ctx)
		defer r.Stop()
		opts = append(opts, fanout.WithRelay(r))
		logger.Info("イベントストアへの中継を有効にしました", zap.String("url", cfg.EventStoreURL))
	}
	engine := fanout.New(st, reg, opts...)

	wsHandler := ws.NewHandler(reg, ws.Options{
		SendBuffer:     cfg.WSSendBuffer,
		WriteTimeout:   cfg.WSWriteTimeout,
		PingInterval:   cfg.WSPingInterval,
		AllowedOrigins: cfg.CORSOrigins,
	}, logger)

	srv := server.NewServer(cfg, server.Deps{
		Store:    st,
		Engine:   engine,
		Registry: reg,
		WS:       wsHandler,
		Logger:   logger,
	})

	logger.Info("通知サービスを起動します", zap.String("port", cfg.Port))
	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("通知サービスを停止しました")
	return nil
}

// newLogger はログレベルに応じたzapロガーを生成する。debugなら開発用の設定を使う。
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if level == "debug" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = lvl
	return zc.Build()
}
