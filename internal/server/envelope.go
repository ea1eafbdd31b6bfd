package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nao1215/notifyhub/internal/fanout"
)

// envelope はソーシャルAPIと通知APIの共通レスポンス形式。
type envelope struct {
	// Status はHTTPステータスコード。
	Status int `json:"status"`
	// Message は処理結果の説明。
	Message string `json:"message"`
	// Data は成功時の結果と失敗時の理由。
	Data envelopeData `json:"data"`
}

// envelopeData は処理結果。部分的な失敗ではSuccessとFailureの両方を持つ。
type envelopeData struct {
	Success any `json:"success,omitempty"`
	Failure any `json:"failure,omitempty"`
}

// partialFailure は一部の通知先への保存に失敗した場合の詳細。
type partialFailure struct {
	// FailedRecipients は通知を保存できなかった通知先。
	FailedRecipients []string `json:"failedRecipients"`
}

func respondSuccess(c *gin.Context, status int, message string, success any) {
	c.JSON(status, envelope{
		Status:  status,
		Message: message,
		Data:    envelopeData{Success: success},
	})
}

func respondFailure(c *gin.Context, status int, message string, failure any) {
	c.JSON(status, envelope{
		Status:  status,
		Message: message,
		Data:    envelopeData{Failure: failure},
	})
}

// respondDispatchError はファンアウトのエラーをレスポンスに変換する。
// 一部の通知先だけが保存できた場合は207を返し、成功分と失敗した通知先を両方返す。
// messageはそれ以外の失敗時のメッセージ。
func (s *Server) respondDispatchError(c *gin.Context, err error, result fanout.Result, message string, success any) {
	var partial *fanout.PartialFailureError
	switch {
	case errors.As(err, &partial) && len(result.Notified()) > 0:
		c.JSON(http.StatusMultiStatus, envelope{
			Status:  http.StatusMultiStatus,
			Message: "Some notifications could not be stored",
			Data: envelopeData{
				Success: success,
				Failure: partialFailure{FailedRecipients: partial.Recipients()},
			},
		})
	case errors.Is(err, fanout.ErrInvalidEvent):
		respondFailure(c, http.StatusBadRequest, message, err.Error())
	default:
		s.logger.Error("通知の配信処理に失敗しました", zap.String("path", c.FullPath()), zap.Error(err))
		respondFailure(c, http.StatusInternalServerError, message, "failed to store notification")
	}
}
