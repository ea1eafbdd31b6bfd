package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Post はユーザーの投稿。
type Post struct {
	ID        int64     `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Follow はfollowerがfollowingをフォローした関係を保存する。既存の関係は無視する。
func (s *Store) Follow(ctx context.Context, follower, following string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO followers (follower_id, following_id) VALUES (?, ?)`,
		follower, following); err != nil {
		return fmt.Errorf("フォロー関係の保存に失敗 (%s -> %s): %w", follower, following, err)
	}
	return nil
}

// Unfollow はfollowerからfollowingへのフォロー関係を削除する。
func (s *Store) Unfollow(ctx context.Context, follower, following string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM followers WHERE follower_id = ? AND following_id = ?`,
		follower, following); err != nil {
		return fmt.Errorf("フォロー関係の削除に失敗 (%s -> %s): %w", follower, following, err)
	}
	return nil
}

// ListFollowers はuserIDをフォローしているユーザーIDをフォローした順に返す。
func (s *Store) ListFollowers(ctx context.Context, userID string) ([]string, error) {
	followers := []string{}
	err := s.db.SelectContext(ctx, &followers,
		`SELECT follower_id FROM followers WHERE following_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("フォロワー一覧の取得に失敗 (user=%s): %w", userID, err)
	}
	return followers, nil
}

// ListFollowing はuserIDがフォローしているユーザーIDを返す。
func (s *Store) ListFollowing(ctx context.Context, userID string) ([]string, error) {
	following := []string{}
	err := s.db.SelectContext(ctx, &following,
		`SELECT following_id FROM followers WHERE follower_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("フォロー一覧の取得に失敗 (user=%s): %w", userID, err)
	}
	return following, nil
}

// CreatePost は投稿を保存し、採番されたIDを返す。
func (s *Store) CreatePost(ctx context.Context, userID, content string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (user_id, content, created_at) VALUES (?, ?, ?)`,
		userID, content, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("投稿の保存に失敗 (user=%s): %w", userID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("投稿IDの取得に失敗: %w", err)
	}
	return id, nil
}

// GetPost はIDで投稿を取得する。存在しない場合はErrNotFoundを返す。
func (s *Store) GetPost(ctx context.Context, id int64) (*Post, error) {
	var p Post
	err := s.db.GetContext(ctx, &p,
		`SELECT id, user_id, content, created_at FROM posts WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("投稿の取得に失敗 (id=%d): %w", id, err)
	}
	return &p, nil
}

// ListPostsByAuthors はauthorsの投稿を新しい順に返す。
func (s *Store) ListPostsByAuthors(ctx context.Context, authors []string) ([]Post, error) {
	posts := []Post{}
	if len(authors) == 0 {
		return posts, nil
	}

	query, args, err := sqlx.In(
		`SELECT id, user_id, content, created_at FROM posts
		 WHERE user_id IN (?)
		 ORDER BY created_at DESC, id DESC`, authors)
	if err != nil {
		return nil, fmt.Errorf("投稿取得クエリの組み立てに失敗: %w", err)
	}
	if err := s.db.SelectContext(ctx, &posts, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗: %w", err)
	}
	return posts, nil
}

// SaveReaction は投稿へのいいね/よくないねを保存する。既存のリアクションは上書きする。
func (s *Store) SaveReaction(ctx context.Context, postID int64, userID string, liked bool) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO likes (post_id, user_id, liked) VALUES (?, ?, ?)`,
		postID, userID, liked); err != nil {
		return fmt.Errorf("リアクションの保存に失敗 (post=%d, user=%s): %w", postID, userID, err)
	}
	return nil
}
