package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nao1215/notifyhub/internal/fanout"
	"github.com/nao1215/notifyhub/internal/store"
	"github.com/nao1215/notifyhub/pkg/event"
	"github.com/nao1215/notifyhub/pkg/middleware"
)

// handleListByUser はユーザー宛ての通知を新しい順に返すハンドラ。
func (s *Server) handleListByUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")

		notifications, err := s.store.ListNotifications(c.Request.Context(), userID)
		if err != nil {
			s.logger.Error("通知一覧の取得に失敗", zap.String("user_id", userID), zap.Error(err))
			respondFailure(c, http.StatusInternalServerError, "Error fetching notifications", "database error")
			return
		}

		respondSuccess(c, http.StatusOK, "Notifications fetched successfully", notifications)
	}
}

// createRequest は通知を直接作成するリクエストのJSON構造。
type createRequest struct {
	// SenderID は通知の送信元ユーザーID。
	SenderID string `json:"senderId" binding:"required"`
	// RecipientID は通知先のユーザーID。
	RecipientID string `json:"recipientId" binding:"required"`
	// Type は通知の種類。
	Type event.Type `json:"type" binding:"required,oneof=FOLLOW UNFOLLOW NEW_POST LIKE"`
	// Message は通知メッセージ。
	Message string `json:"message" binding:"required"`
}

// handleCreate は任意の通知を1件保存し、通知先が接続中ならライブ配信するハンドラ。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondFailure(c, http.StatusBadRequest, "Error creating notification",
				"senderId, recipientId and message are required, type must be FOLLOW, UNFOLLOW, NEW_POST or LIKE")
			return
		}

		ev := fanout.DirectEvent(req.SenderID, req.RecipientID, req.Type, req.Message)
		result, err := s.dispatch(c, ev)
		if err != nil {
			s.respondDispatchError(c, err, result, "Error creating notification", true)
			return
		}

		respondSuccess(c, http.StatusCreated, "Notification created successfully", true)
	}
}

// notificationResponse は通知のJSONレスポンス構造。
type notificationResponse struct {
	// ID は通知の一意識別子。
	ID int64 `json:"id"`
	// SenderID は通知の送信元ユーザーID。
	SenderID string `json:"sender_id"`
	// RecipientID は通知先のユーザーID。
	RecipientID string `json:"recipient_id"`
	// Type は通知の種類。
	Type event.Type `json:"type"`
	// Message は通知メッセージ。
	Message string `json:"message"`
	// IsRead は通知の既読状態。
	IsRead bool `json:"is_read"`
	// CreatedAt は通知の作成日時（ナノ秒精度のRFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// toNotificationResponse はDB行をJSONレスポンスに変換する。
func toNotificationResponse(n store.Notification) notificationResponse {
	return notificationResponse{
		ID:          n.ID,
		SenderID:    n.SenderID,
		RecipientID: n.RecipientID,
		Type:        n.Type,
		Message:     n.Message,
		IsRead:      n.IsRead,
		CreatedAt:   n.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// toNotificationResponses はDB行のスライスをJSONレスポンスのスライスに変換する。
func toNotificationResponses(notifications []store.Notification) []notificationResponse {
	responses := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		responses = append(responses, toNotificationResponse(n))
	}
	return responses
}

// handleList は認証済みユーザーの通知一覧を返すハンドラ。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		notifications, err := s.store.ListNotifications(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知一覧の取得に失敗しました"})
			s.logger.Error("通知一覧取得エラー", zap.Error(err))
			return
		}

		c.JSON(http.StatusOK, toNotificationResponses(notifications))
	}
}

// handleListUnread は認証済みユーザーの未読通知一覧を返すハンドラ。
func (s *Server) handleListUnread() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		notifications, err := s.store.ListUnreadNotifications(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読通知一覧の取得に失敗しました"})
			s.logger.Error("未読通知一覧取得エラー", zap.Error(err))
			return
		}

		c.JSON(http.StatusOK, toNotificationResponses(notifications))
	}
}

// handleMarkAsRead は指定された通知を既読にするハンドラ。
func (s *Server) handleMarkAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		notificationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "通知IDが不正です"})
			return
		}

		// 通知の存在確認と所有者チェック
		n, err := s.store.GetNotification(c.Request.Context(), notificationID)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の取得に失敗しました"})
			s.logger.Error("通知取得エラー", zap.Error(err))
			return
		}

		if n.RecipientID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "この通知を操作する権限がありません"})
			return
		}

		if err := s.store.MarkAsRead(c.Request.Context(), notificationID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の既読処理に失敗しました"})
			s.logger.Error("通知既読処理エラー", zap.Error(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "通知を既読にしました"})
	}
}

// handleMarkAllAsRead は認証済みユーザーの全通知を既読にするハンドラ。
func (s *Server) handleMarkAllAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		if err := s.store.MarkAllAsRead(c.Request.Context(), userID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "全通知の既読処理に失敗しました"})
			s.logger.Error("全通知既読処理エラー", zap.Error(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "全通知を既読にしました"})
	}
}
