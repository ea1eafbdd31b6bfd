package store

import (
	"errors"
	"testing"
	"time"

	"github.com/nao1215/notifyhub/pkg/event"
)

// setupTestStore はテスト用のストアをインメモリSQLiteで構築する。
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.Context(), ":memory:", nil)
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// insertTestNotification はテスト用に通知を挿入するヘルパー関数。
func insertTestNotification(t *testing.T, s *Store, sender, recipient string, typ event.Type, createdAt time.Time) int64 {
	t.Helper()

	id, err := s.InsertNotification(t.Context(), NewNotification{
		SenderID:    sender,
		RecipientID: recipient,
		Type:        typ,
		Message:     sender + " did something",
		CreatedAt:   createdAt,
	})
	if err != nil {
		t.Fatalf("テスト用通知の作成に失敗: %v", err)
	}
	return id
}

// TestOpen はOpenでスキーマが適用されることを検証する。
func TestOpen(t *testing.T) {
	t.Parallel()

	s := setupTestStore(t)
	if err := s.Ping(t.Context()); err != nil {
		t.Fatalf("Ping()でエラーが発生: %v", err)
	}

	for _, table := range []string{"users", "followers", "posts", "likes", "notifications", "schema_migrations"} {
		var count int
		err := s.db.Get(&count, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
		if err != nil {
			t.Fatalf("sqlite_masterの参照に失敗: %v", err)
		}
		if count != 1 {
			t.Errorf("テーブル %s が存在しない", table)
		}
	}
}

// TestInsertNotification は通知の保存を検証する。
func TestInsertNotification(t *testing.T) {
	t.Parallel()

	t.Run("IDが単調増加で採番されること", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		now := time.Now().UTC()
		id1 := insertTestNotification(t, s, "alice", "bob", event.TypeFollow, now)
		id2 := insertTestNotification(t, s, "alice", "bob", event.TypeUnfollow, now)
		if id2 <= id1 {
			t.Errorf("id2 = %d, id1 = %d; id2 > id1 であるべき", id2, id1)
		}
	})

	t.Run("保存した内容がそのまま読み出せること", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		createdAt := time.Date(2025, 4, 1, 9, 30, 15, 123456789, time.UTC)
		id, err := s.InsertNotification(t.Context(), NewNotification{
			SenderID:    "alice",
			RecipientID: "bob",
			Type:        event.TypeFollow,
			Message:     "alice started following you",
			CreatedAt:   createdAt,
		})
		if err != nil {
			t.Fatalf("InsertNotification()でエラーが発生: %v", err)
		}

		n, err := s.GetNotification(t.Context(), id)
		if err != nil {
			t.Fatalf("GetNotification()でエラーが発生: %v", err)
		}
		if n.SenderID != "alice" || n.RecipientID != "bob" {
			t.Errorf("sender/recipient = %q/%q, want alice/bob", n.SenderID, n.RecipientID)
		}
		if n.Type != event.TypeFollow {
			t.Errorf("Type = %q, want %q", n.Type, event.TypeFollow)
		}
		if n.Message != "alice started following you" {
			t.Errorf("Message = %q", n.Message)
		}
		if !n.CreatedAt.Equal(createdAt) {
			t.Errorf("CreatedAt = %v, want %v", n.CreatedAt, createdAt)
		}
		if n.IsRead {
			t.Error("IsRead = true, want false")
		}
	})

	t.Run("不正な入力はエラーになること", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		tests := []struct {
			name string
			n    NewNotification
		}{
			{name: "送信元が空", n: NewNotification{RecipientID: "bob", Type: event.TypeFollow}},
			{name: "通知先が空", n: NewNotification{SenderID: "alice", Type: event.TypeFollow}},
			{name: "未知の種別", n: NewNotification{SenderID: "alice", RecipientID: "bob", Type: "POKE"}},
		}
		for _, tt := range tests {
			if _, err := s.InsertNotification(t.Context(), tt.n); err == nil {
				t.Errorf("%s: エラーを返すべき", tt.name)
			}
		}
	})
}

// TestListNotifications は通知一覧の取得順序と絞り込みを検証する。
func TestListNotifications(t *testing.T) {
	t.Parallel()

	t.Run("通知が存在しない場合は空スライスを返すこと", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		got, err := s.ListNotifications(t.Context(), "nobody")
		if err != nil {
			t.Fatalf("ListNotifications()でエラーが発生: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("ListNotifications() = %v, want 空スライス", got)
		}
	})

	t.Run("新しい順に通知先の通知だけを返すこと", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		oldest := insertTestNotification(t, s, "alice", "bob", event.TypeFollow, base)
		newest := insertTestNotification(t, s, "carol", "bob", event.TypeLike, base.Add(2*time.Second))
		middle := insertTestNotification(t, s, "dave", "bob", event.TypeNewPost, base.Add(1500*time.Millisecond))
		insertTestNotification(t, s, "alice", "erin", event.TypeFollow, base.Add(time.Hour))

		got, err := s.ListNotifications(t.Context(), "bob")
		if err != nil {
			t.Fatalf("ListNotifications()でエラーが発生: %v", err)
		}
		want := []int64{newest, middle, oldest}
		if len(got) != len(want) {
			t.Fatalf("件数 = %d, want %d", len(got), len(want))
		}
		for i, id := range want {
			if got[i].ID != id {
				t.Errorf("got[%d].ID = %d, want %d", i, got[i].ID, id)
			}
		}
	})

	t.Run("同時刻の通知は後に作成したものが先になること", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		now := time.Now().UTC()
		first := insertTestNotification(t, s, "alice", "bob", event.TypeFollow, now)
		second := insertTestNotification(t, s, "carol", "bob", event.TypeFollow, now)

		got, err := s.ListNotifications(t.Context(), "bob")
		if err != nil {
			t.Fatalf("ListNotifications()でエラーが発生: %v", err)
		}
		if len(got) != 2 || got[0].ID != second || got[1].ID != first {
			t.Errorf("順序が不正: %+v", got)
		}
	})
}

// TestReadManagement は既読管理を検証する。
func TestReadManagement(t *testing.T) {
	t.Parallel()

	t.Run("MarkAsReadで未読一覧から外れること", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		now := time.Now().UTC()
		id1 := insertTestNotification(t, s, "alice", "bob", event.TypeFollow, now)
		insertTestNotification(t, s, "carol", "bob", event.TypeFollow, now)

		if err := s.MarkAsRead(t.Context(), id1); err != nil {
			t.Fatalf("MarkAsRead()でエラーが発生: %v", err)
		}

		unread, err := s.ListUnreadNotifications(t.Context(), "bob")
		if err != nil {
			t.Fatalf("ListUnreadNotifications()でエラーが発生: %v", err)
		}
		if len(unread) != 1 {
			t.Fatalf("未読件数 = %d, want 1", len(unread))
		}
		if unread[0].ID == id1 {
			t.Error("既読にした通知が未読一覧に含まれている")
		}

		n, err := s.GetNotification(t.Context(), id1)
		if err != nil {
			t.Fatalf("GetNotification()でエラーが発生: %v", err)
		}
		if !n.IsRead {
			t.Error("IsRead = false, want true")
		}
	})

	t.Run("MarkAllAsReadは通知先の通知だけを既読にすること", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		now := time.Now().UTC()
		insertTestNotification(t, s, "alice", "bob", event.TypeFollow, now)
		insertTestNotification(t, s, "carol", "bob", event.TypeLike, now)
		insertTestNotification(t, s, "alice", "erin", event.TypeFollow, now)

		if err := s.MarkAllAsRead(t.Context(), "bob"); err != nil {
			t.Fatalf("MarkAllAsRead()でエラーが発生: %v", err)
		}

		bob, _ := s.ListUnreadNotifications(t.Context(), "bob")
		erin, _ := s.ListUnreadNotifications(t.Context(), "erin")
		if len(bob) != 0 {
			t.Errorf("bobの未読件数 = %d, want 0", len(bob))
		}
		if len(erin) != 1 {
			t.Errorf("erinの未読件数 = %d, want 1", len(erin))
		}
	})

	t.Run("存在しない通知はErrNotFoundになること", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		if _, err := s.GetNotification(t.Context(), 999); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetNotification()のエラー = %v, want ErrNotFound", err)
		}
	})
}

// TestFollowers はフォロー関係の操作を検証する。
func TestFollowers(t *testing.T) {
	t.Parallel()

	t.Run("フォローした順にフォロワーが返ること", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		for _, f := range []string{"carol", "bob", "dave"} {
			if err := s.Follow(t.Context(), f, "alice"); err != nil {
				t.Fatalf("Follow()でエラーが発生: %v", err)
			}
		}

		got, err := s.ListFollowers(t.Context(), "alice")
		if err != nil {
			t.Fatalf("ListFollowers()でエラーが発生: %v", err)
		}
		want := []string{"carol", "bob", "dave"}
		if len(got) != len(want) {
			t.Fatalf("フォロワー数 = %d, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("二重フォローは無視されること", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		for i := 0; i < 3; i++ {
			if err := s.Follow(t.Context(), "bob", "alice"); err != nil {
				t.Fatalf("Follow()でエラーが発生: %v", err)
			}
		}
		got, _ := s.ListFollowers(t.Context(), "alice")
		if len(got) != 1 {
			t.Errorf("フォロワー数 = %d, want 1", len(got))
		}
	})

	t.Run("フォロー解除でフォロワー一覧とフォロー一覧から消えること", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		_ = s.Follow(t.Context(), "bob", "alice")
		_ = s.Follow(t.Context(), "bob", "carol")
		if err := s.Unfollow(t.Context(), "bob", "alice"); err != nil {
			t.Fatalf("Unfollow()でエラーが発生: %v", err)
		}

		followers, _ := s.ListFollowers(t.Context(), "alice")
		if len(followers) != 0 {
			t.Errorf("aliceのフォロワー数 = %d, want 0", len(followers))
		}
		following, err := s.ListFollowing(t.Context(), "bob")
		if err != nil {
			t.Fatalf("ListFollowing()でエラーが発生: %v", err)
		}
		if len(following) != 1 || following[0] != "carol" {
			t.Errorf("bobのフォロー一覧 = %v, want [carol]", following)
		}
	})
}

// TestPosts は投稿とリアクションの操作を検証する。
func TestPosts(t *testing.T) {
	t.Parallel()

	t.Run("投稿を作成して取得できること", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		id, err := s.CreatePost(t.Context(), "alice", "hello")
		if err != nil {
			t.Fatalf("CreatePost()でエラーが発生: %v", err)
		}
		p, err := s.GetPost(t.Context(), id)
		if err != nil {
			t.Fatalf("GetPost()でエラーが発生: %v", err)
		}
		if p.UserID != "alice" || p.Content != "hello" {
			t.Errorf("投稿 = %+v", p)
		}
		if p.CreatedAt.IsZero() {
			t.Error("CreatedAtがゼロ値")
		}
	})

	t.Run("存在しない投稿はErrNotFoundになること", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		if _, err := s.GetPost(t.Context(), 42); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetPost()のエラー = %v, want ErrNotFound", err)
		}
	})

	t.Run("指定した投稿者の投稿だけを新しい順に返すこと", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		a1, _ := s.CreatePost(t.Context(), "alice", "a1")
		_, _ = s.CreatePost(t.Context(), "mallory", "m1")
		c1, _ := s.CreatePost(t.Context(), "carol", "c1")
		a2, _ := s.CreatePost(t.Context(), "alice", "a2")

		got, err := s.ListPostsByAuthors(t.Context(), []string{"alice", "carol"})
		if err != nil {
			t.Fatalf("ListPostsByAuthors()でエラーが発生: %v", err)
		}
		want := []int64{a2, c1, a1}
		if len(got) != len(want) {
			t.Fatalf("件数 = %d, want %d", len(got), len(want))
		}
		for i, id := range want {
			if got[i].ID != id {
				t.Errorf("got[%d].ID = %d, want %d", i, got[i].ID, id)
			}
		}
	})

	t.Run("投稿者が空の場合は空スライスを返すこと", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		got, err := s.ListPostsByAuthors(t.Context(), nil)
		if err != nil {
			t.Fatalf("ListPostsByAuthors()でエラーが発生: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("ListPostsByAuthors() = %v, want 空スライス", got)
		}
	})

	t.Run("リアクションは上書きされること", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		id, _ := s.CreatePost(t.Context(), "alice", "hello")
		if err := s.SaveReaction(t.Context(), id, "bob", true); err != nil {
			t.Fatalf("SaveReaction()でエラーが発生: %v", err)
		}
		if err := s.SaveReaction(t.Context(), id, "bob", false); err != nil {
			t.Fatalf("SaveReaction()でエラーが発生: %v", err)
		}

		var rows []bool
		if err := s.db.SelectContext(t.Context(), &rows,
			`SELECT liked FROM likes WHERE post_id = ? AND user_id = ?`, id, "bob"); err != nil {
			t.Fatalf("リアクションの取得に失敗: %v", err)
		}
		if len(rows) != 1 || rows[0] {
			t.Errorf("リアクション = %v, want [false]", rows)
		}
	})
}
