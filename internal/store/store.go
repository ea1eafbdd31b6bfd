package store

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/nao1215/notifyhub/pkg/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound は対象のレコードが存在しない場合のエラー。
var ErrNotFound = errors.New("レコードが見つかりません")

// Store はSQLiteを使った永続化層。
// 通知・フォロー関係・投稿・リアクションを扱う。
type Store struct {
	// db はsqlxでラップしたSQLiteデータベース接続。
	db *sqlx.DB
}

// Open はSQLiteデータベースを開き、未適用のマイグレーションを適用する。
// pathに ":memory:" を指定するとインメモリDBになる。
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// SQLiteの書き込みは直列化されるため接続を1つに固定する。
	// インメモリDBは接続ごとに別のDBになるのでこの設定が必須。
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s の実行に失敗: %w", p, err)
		}
	}

	if err := migration.Run(ctx, db.DB, migrationsFS, "migrations", logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	return &Store{db: db}, nil
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping はデータベースへの疎通を確認する。
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
