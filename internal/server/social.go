package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nao1215/notifyhub/internal/fanout"
	"github.com/nao1215/notifyhub/internal/store"
)

// followingEntry はフォロー中ユーザー1件分のレスポンス。
type followingEntry struct {
	FollowingID string `json:"following_id"`
}

// handleListFollowing はユーザーがフォローしているユーザーの一覧を返すハンドラ。
func (s *Server) handleListFollowing() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")

		following, err := s.store.ListFollowing(c.Request.Context(), userID)
		if err != nil {
			s.logger.Error("フォロー一覧の取得に失敗", zap.String("user_id", userID), zap.Error(err))
			respondFailure(c, http.StatusInternalServerError, "Failed to fetch following list", "database error")
			return
		}

		entries := make([]followingEntry, 0, len(following))
		for _, id := range following {
			entries = append(entries, followingEntry{FollowingID: id})
		}
		respondSuccess(c, http.StatusOK, "Following list fetched successfully", entries)
	}
}

// handleFollow はフォロー関係を保存し、フォローされたユーザーにFOLLOW通知を送るハンドラ。
func (s *Server) handleFollow() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, targetID := c.Param("userId"), c.Param("targetId")
		if userID == targetID {
			respondFailure(c, http.StatusBadRequest, "Failed to follow user", "cannot follow yourself")
			return
		}

		if err := s.store.Follow(c.Request.Context(), userID, targetID); err != nil {
			s.logger.Error("フォローの保存に失敗", zap.String("user_id", userID), zap.String("target_id", targetID), zap.Error(err))
			respondFailure(c, http.StatusInternalServerError, "Failed to follow user", "database error")
			return
		}

		result, err := s.dispatch(c, fanout.FollowEvent(userID, targetID))
		if err != nil {
			s.respondDispatchError(c, err, result, "Failed to follow user", true)
			return
		}

		respondSuccess(c, http.StatusOK, "User followed successfully", true)
	}
}

// handleUnfollow はフォロー関係を削除し、対象ユーザーにUNFOLLOW通知を送るハンドラ。
func (s *Server) handleUnfollow() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, targetID := c.Param("userId"), c.Param("targetId")
		if userID == targetID {
			respondFailure(c, http.StatusBadRequest, "Failed to unfollow user", "cannot unfollow yourself")
			return
		}

		if err := s.store.Unfollow(c.Request.Context(), userID, targetID); err != nil {
			s.logger.Error("フォロー解除の保存に失敗", zap.String("user_id", userID), zap.String("target_id", targetID), zap.Error(err))
			respondFailure(c, http.StatusInternalServerError, "Failed to unfollow user", "database error")
			return
		}

		result, err := s.dispatch(c, fanout.UnfollowEvent(userID, targetID))
		if err != nil {
			s.respondDispatchError(c, err, result, "Failed to unfollow user", true)
			return
		}

		respondSuccess(c, http.StatusOK, "User unfollowed successfully", true)
	}
}

// createPostRequest は投稿作成リクエストのJSON構造。
type createPostRequest struct {
	// UserID は投稿者のユーザーID。
	UserID string `json:"userId" binding:"required"`
	// Content は投稿本文。
	Content string `json:"content" binding:"required"`
}

// createPostResponse は投稿作成の結果。
type createPostResponse struct {
	// PostID は作成された投稿のID。
	PostID int64 `json:"postId"`
	// NotifiedFollowers は通知を保存できたフォロワー。
	NotifiedFollowers []string `json:"notifiedFollowers"`
}

// handleCreatePost は投稿を保存し、投稿者のフォロワー全員にNEW_POST通知を送るハンドラ。
func (s *Server) handleCreatePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createPostRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondFailure(c, http.StatusBadRequest, "Failed to create post", "userId and content are required")
			return
		}

		postID, err := s.store.CreatePost(c.Request.Context(), req.UserID, req.Content)
		if err != nil {
			s.logger.Error("投稿の保存に失敗", zap.String("user_id", req.UserID), zap.Error(err))
			respondFailure(c, http.StatusInternalServerError, "Failed to create post", "database error")
			return
		}

		result, err := s.dispatch(c, fanout.NewPostEvent(req.UserID, req.Content))
		resp := createPostResponse{PostID: postID, NotifiedFollowers: result.Notified()}
		if err != nil {
			s.respondDispatchError(c, err, result, "Failed to create post", resp)
			return
		}

		respondSuccess(c, http.StatusCreated, "Post created and followers notified", resp)
	}
}

// handleListFollowingPosts はユーザーがフォローしているユーザーの投稿を新しい順に返すハンドラ。
func (s *Server) handleListFollowingPosts() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")

		following, err := s.store.ListFollowing(c.Request.Context(), userID)
		if err != nil {
			s.logger.Error("フォロー一覧の取得に失敗", zap.String("user_id", userID), zap.Error(err))
			respondFailure(c, http.StatusInternalServerError, "Failed to fetch following posts", "database error")
			return
		}
		if len(following) == 0 {
			respondSuccess(c, http.StatusOK, "No following users", []store.Post{})
			return
		}

		posts, err := s.store.ListPostsByAuthors(c.Request.Context(), following)
		if err != nil {
			s.logger.Error("投稿一覧の取得に失敗", zap.String("user_id", userID), zap.Error(err))
			respondFailure(c, http.StatusInternalServerError, "Failed to fetch following posts", "database error")
			return
		}

		respondSuccess(c, http.StatusOK, "Posts from followed users fetched successfully", posts)
	}
}

// reactRequest はいいね/よくないねリクエストのJSON構造。
type reactRequest struct {
	// UserID は反応したユーザーのID。
	UserID string `json:"userId" binding:"required"`
	// Liked はtrueならいいね、falseならよくないね。
	Liked *bool `json:"liked" binding:"required"`
}

// handleReact は投稿への反応を保存し、投稿者にLIKE通知を送るハンドラ。
// 自分の投稿への反応は保存するが通知しない。
func (s *Server) handleReact() gin.HandlerFunc {
	return func(c *gin.Context) {
		postID, err := strconv.ParseInt(c.Param("postId"), 10, 64)
		if err != nil {
			respondFailure(c, http.StatusBadRequest, "Failed to like/dislike post", "invalid post id")
			return
		}

		var req reactRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondFailure(c, http.StatusBadRequest, "Failed to like/dislike post", "userId and liked are required")
			return
		}

		post, err := s.store.GetPost(c.Request.Context(), postID)
		if errors.Is(err, store.ErrNotFound) {
			respondFailure(c, http.StatusNotFound, "Post not found", "Post not found")
			return
		}
		if err != nil {
			s.logger.Error("投稿の取得に失敗", zap.Int64("post_id", postID), zap.Error(err))
			respondFailure(c, http.StatusInternalServerError, "Failed to like/dislike post", "database error")
			return
		}

		if err := s.store.SaveReaction(c.Request.Context(), postID, req.UserID, *req.Liked); err != nil {
			s.logger.Error("反応の保存に失敗", zap.Int64("post_id", postID), zap.Error(err))
			respondFailure(c, http.StatusInternalServerError, "Failed to like/dislike post", "database error")
			return
		}

		if post.UserID == req.UserID {
			respondSuccess(c, http.StatusOK, "Reaction saved", true)
			return
		}

		result, err := s.dispatch(c, fanout.ReactionEvent(req.UserID, post.UserID, *req.Liked))
		if err != nil {
			s.respondDispatchError(c, err, result, "Failed to like/dislike post", true)
			return
		}

		respondSuccess(c, http.StatusOK, "Reaction saved and author notified", true)
	}
}
