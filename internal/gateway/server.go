package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/userrelay/internal/config"
	"github.com/nao1215/userrelay/pkg/httpclient"
	"github.com/nao1215/userrelay/pkg/httpserver"
	"github.com/nao1215/userrelay/pkg/middleware"
	"go.uber.org/zap"
)

// Server はAPI GatewayサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// client はuser-managerへの転送に使う共有クライアント。
	client *httpclient.Client
	// propagateStatus がtrueの場合、user-managerのステータスコードをそのまま返す。
	// falseの場合はボディのみ転送し、ステータスは常に200になる。
	propagateStatus bool
	// logger は構造化ロガー。
	logger *zap.Logger
}

// listUsersQuery はユーザー一覧のページング条件。
type listUsersQuery struct {
	Skip  int `form:"skip,default=0"`
	Limit int `form:"limit,default=100"`
}

// NewServer は新しいGatewayサーバーを生成する。
// clientの解放は呼び出し元が行う。
func NewServer(cfg config.Gateway, client *httpclient.Client, logger *zap.Logger) *Server {
	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	s := &Server{
		router:          router,
		port:            cfg.Port,
		client:          client,
		propagateStatus: cfg.PropagateUpstreamStatus,
		logger:          logger,
	}
	s.setupRoutes()

	return s
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるまでブロックする。
func (s *Server) Run(ctx context.Context) error {
	return httpserver.Serve(ctx, fmt.Sprintf(":%s", s.port), s.router, s.logger)
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// user-managerへの転送（Bearerトークン必須）
	api := s.router.Group("/api/users")
	api.Use(middleware.RequireBearer())
	{
		api.POST("/", s.handleCreateUser())
		api.GET("/", s.handleListUsers())
		api.GET("/:id", s.handleProxyUser(http.MethodGet))
		api.PUT("/:id", s.handleUpdateUser())
		api.DELETE("/:id", s.handleProxyUser(http.MethodDelete))
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "api-gateway"})
	})
}

// handleCreateUser はユーザー作成を転送するハンドラを返す。
func (s *Server) handleCreateUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := s.readObjectBody(c)
		if !ok {
			return
		}
		s.doProxy(c, httpclient.Request{
			Method: http.MethodPost,
			Path:   "/users/",
			Body:   body,
		})
	}
}

// handleListUsers はユーザー一覧を転送するハンドラを返す。
// skipとlimitは省略時もデフォルト値を明示して転送する。
func (s *Server) handleListUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		var q listUsersQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": fmt.Sprintf("Invalid query parameters: %v", err)})
			return
		}
		s.doProxy(c, httpclient.Request{
			Method: http.MethodGet,
			Path:   "/users/",
			Query: url.Values{
				"skip":  {strconv.Itoa(q.Skip)},
				"limit": {strconv.Itoa(q.Limit)},
			},
		})
	}
}

// handleProxyUser はボディを持たない単一ユーザーへの操作を転送するハンドラを返す。
func (s *Server) handleProxyUser(method string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.doProxy(c, httpclient.Request{
			Method: method,
			Path:   userPath(c.Param("id")),
		})
	}
}

// handleUpdateUser はユーザー更新を転送するハンドラを返す。
func (s *Server) handleUpdateUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := s.readObjectBody(c)
		if !ok {
			return
		}
		s.doProxy(c, httpclient.Request{
			Method: http.MethodPut,
			Path:   userPath(c.Param("id")),
			Body:   body,
		})
	}
}

// readObjectBody はリクエストボディがJSONオブジェクトであることを確認して返す。
// オブジェクトでない場合は422を書き込み、falseを返す。
func (s *Server) readObjectBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "Unable to read request body"})
		return nil, false
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' || !json.Valid(body) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "Request body must be a JSON object"})
		return nil, false
	}
	return body, true
}

// doProxy はリクエストをuser-managerに転送する共通処理。
// Bearerトークンを転送し、user-managerが返したJSONボディをそのまま返す。
func (s *Server) doProxy(c *gin.Context, req httpclient.Request) {
	req.Authorization = "Bearer " + middleware.BearerToken(c)

	resp, err := s.client.Do(c.Request.Context(), req)
	if err != nil {
		var reqErr *httpclient.RequestError
		if errors.As(err, &reqErr) {
			s.logger.Warn("user-managerとの通信に失敗しました",
				zap.String("method", reqErr.Method),
				zap.String("url", reqErr.URL),
				zap.Error(reqErr.Err),
			)
		} else {
			s.logger.Error("転送リクエストの作成に失敗しました", zap.Error(err))
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "User service unavailable"})
		return
	}

	if !json.Valid(resp.Body) {
		s.logger.Error("user-managerが不正なレスポンスを返しました",
			zap.String("path", req.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("content_type", resp.ContentType),
		)
		c.JSON(http.StatusBadGateway, gin.H{"detail": "Invalid response from user service"})
		return
	}

	status := http.StatusOK
	if s.propagateStatus {
		status = resp.StatusCode
	}
	c.Data(status, "application/json; charset=utf-8", resp.Body)
}

// userPath は単一ユーザーの転送先パスを返す。
func userPath(id string) string {
	return "/users/" + url.PathEscape(id)
}
