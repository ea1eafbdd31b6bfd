package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nao1215/notifyhub/internal/config"
	"github.com/nao1215/notifyhub/internal/fanout"
	"github.com/nao1215/notifyhub/internal/registry"
	"github.com/nao1215/notifyhub/internal/store"
	"github.com/nao1215/notifyhub/internal/ws"
	"github.com/nao1215/notifyhub/pkg/middleware"
)

// dispatchTimeout は1イベント分のファンアウトに許す最大時間。
const dispatchTimeout = 30 * time.Second

// Deps はサーバーが利用するコンポーネント。mainで生成して渡す。
type Deps struct {
	// Store は永続化層。
	Store *store.Store
	// Engine は通知のファンアウトを行う。
	Engine *fanout.Engine
	// Registry は接続中ユーザーの管理。
	Registry *registry.Registry
	// WS はWebSocketエンドポイントのハンドラ。
	WS *ws.Handler
	// Logger は構造化ロガー。nilなら出力しない。
	Logger *zap.Logger
}

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// jwtSecret は/api/v1配下の認証に使う署名鍵。
	jwtSecret string
	// jwtIssuer は受け付けるJWTの発行者。
	jwtIssuer string
	// shutdownTimeout はグレースフルシャットダウンの待ち時間。
	shutdownTimeout time.Duration

	store    *store.Store
	engine   *fanout.Engine
	registry *registry.Registry
	ws       *ws.Handler
	logger   *zap.Logger
}

// NewServer は新しい通知サーバーを生成する。
func NewServer(cfg config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.CORSOrigins))

	s := &Server{
		router:          router,
		port:            cfg.Port,
		jwtSecret:       cfg.JWTSecret,
		jwtIssuer:       cfg.JWTIssuer,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           deps.Store,
		engine:          deps.Engine,
		registry:        deps.Registry,
		ws:              deps.WS,
		logger:          logger,
	}
	s.setupRoutes()

	return s
}

// Handler はルーティング済みのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// dispatch はイベントをファンアウトする。
// クライアントが切断しても残りの通知先への保存が打ち切られないよう、
// リクエストのキャンセルは引き継がずdispatchTimeoutで打ち切る。
func (s *Server) dispatch(c *gin.Context, ev fanout.Event) (fanout.Result, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), dispatchTimeout)
	defer cancel()
	return s.engine.Dispatch(ctx, ev)
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルシャットダウンする。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("シャットダウンを開始します", zap.Duration("timeout", s.shutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	// ハイジャック済みのWebSocket接続はShutdownの対象外なので個別に閉じる
	if s.ws != nil {
		s.ws.CloseAll()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTPサーバーのシャットダウンに失敗: %w", err)
	}
	return nil
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	notifications := s.router.Group("/notifications")
	{
		notifications.GET("/:userId", s.handleListByUser())
		notifications.POST("", s.handleCreate())
	}

	social := s.router.Group("/social")
	{
		social.GET("/following/:userId", s.handleListFollowing())
		social.POST("/users/:userId/follow/:targetId", s.handleFollow())
		social.POST("/users/:userId/unfollow/:targetId", s.handleUnfollow())
		social.POST("/posts", s.handleCreatePost())
		social.GET("/following-posts/:userId", s.handleListFollowingPosts())
		social.POST("/posts/:postId/like", s.handleReact())
	}

	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(s.jwtSecret, s.jwtIssuer))
	{
		inbox := api.Group("/notifications")
		{
			// 通知一覧取得
			inbox.GET("", s.handleList())
			// 未読通知一覧取得
			inbox.GET("/unread", s.handleListUnread())
			// 通知を既読にする
			inbox.PUT("/:id/read", s.handleMarkAsRead())
			// 全通知を既読にする
			inbox.PUT("/read-all", s.handleMarkAllAsRead())
		}
	}

	if s.ws != nil {
		s.router.GET("/ws", gin.WrapH(s.ws))
	}

	// ヘルスチェック
	s.router.GET("/health", s.handleHealth())
}

// handleHealth はデータベースの疎通と接続中ユーザー数を返すハンドラ。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.store.Ping(c.Request.Context()); err != nil {
			s.logger.Error("データベースの疎通確認に失敗", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": "notifyhub"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"service":     "notifyhub",
			"connections": s.registry.Len(),
		})
	}
}
