package usermanager

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/userrelay/internal/user"
	"github.com/nao1215/userrelay/pkg/httpserver"
	"github.com/nao1215/userrelay/pkg/middleware"
	"go.uber.org/zap"
)

// Server はuser-managerサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// identity はIDプロバイダ。
	identity IdentityProvider
	// records はユーザーレコードのストア。
	records RecordStore
	// logger は構造化ロガー。
	logger *zap.Logger
	// now は現在時刻を返す。テストで差し替える。
	now func() time.Time
}

// createUserRequest はユーザー作成リクエスト。
type createUserRequest struct {
	Email       string  `json:"email" binding:"required,email"`
	Password    string  `json:"password" binding:"required"`
	DisplayName *string `json:"display_name"`
	PhoneNumber *string `json:"phone_number"`
}

// updateUserRequest はユーザー更新リクエスト。省略またはnullのフィールドは変更しない。
type updateUserRequest struct {
	DisplayName   *string `json:"display_name"`
	PhoneNumber   *string `json:"phone_number"`
	EmailVerified *bool   `json:"email_verified"`
}

// listUsersQuery はユーザー一覧のページング条件。
type listUsersQuery struct {
	Skip  int `form:"skip,default=0" binding:"min=0"`
	Limit int `form:"limit,default=100" binding:"min=0"`
}

// userResponse はユーザー情報のレスポンス。
type userResponse struct {
	UID           string     `json:"uid"`
	Email         string     `json:"email"`
	DisplayName   *string    `json:"display_name"`
	PhoneNumber   *string    `json:"phone_number"`
	EmailVerified bool       `json:"email_verified"`
	Disabled      bool       `json:"disabled"`
	CreatedAt     time.Time  `json:"created_at"`
	LastSignIn    *time.Time `json:"last_sign_in"`
}

// consistencyResponse はIDプロバイダとユーザーレコードの突き合わせ結果。
type consistencyResponse struct {
	UID            string   `json:"uid"`
	IdentityExists bool     `json:"identity_exists"`
	RecordExists   bool     `json:"record_exists"`
	Consistent     bool     `json:"consistent"`
	Mismatches     []string `json:"mismatches"`
}

// NewServer は新しいuser-managerサーバーを生成する。
// backendの解放は呼び出し元が行う。
func NewServer(port string, backend *Backend, allowedOrigins []string, logger *zap.Logger) *Server {
	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(allowedOrigins))

	s := &Server{
		router:   router,
		port:     port,
		identity: backend.Identity,
		records:  backend.Records,
		logger:   logger,
		now:      time.Now,
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
	users := s.router.Group("/users")
	users.Use(middleware.RequireBearer())
	{
		users.POST("/", s.handleCreateUser())
		users.GET("/", s.handleListUsers())
		users.GET("/:id", s.handleGetUser())
		users.PUT("/:id", s.handleUpdateUser())
		users.DELETE("/:id", s.handleDeleteUser())
		users.GET("/:id/consistency", s.handleCheckConsistency())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "user-manager"})
	})
}

// handleCreateUser はユーザー作成ハンドラを返す。
// IDプロバイダへの登録後にレコードを保存し、保存に失敗した場合は登録を取り消す。
func (s *Server) handleCreateUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": fmt.Sprintf("Invalid request body: %v", err)})
			return
		}

		ctx := c.Request.Context()
		var (
			created user.Identity
			record  user.User
		)
		err := runSteps(ctx, s.logger, "create_user",
			step{
				name: "identity.create",
				action: func(ctx context.Context) error {
					var err error
					created, err = s.identity.CreateUser(ctx, user.NewUser{
						Email:       req.Email,
						Password:    req.Password,
						DisplayName: req.DisplayName,
						PhoneNumber: req.PhoneNumber,
					})
					return err
				},
				compensate: func(ctx context.Context) error {
					return s.identity.DeleteUser(ctx, created.UID)
				},
			},
			step{
				name: "records.put",
				action: func(ctx context.Context) error {
					record = created.Record(s.now())
					return s.records.Put(ctx, record)
				},
			},
		)
		if errors.Is(err, user.ErrEmailAlreadyExists) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Email already exists"})
			return
		}
		if err != nil {
			s.logger.Error("ユーザー作成エラー", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to create user"})
			return
		}

		s.logger.Info("ユーザーを作成しました", zap.String("uid", record.UID))
		c.JSON(http.StatusCreated, toUserResponse(record))
	}
}

// handleGetUser はユーザー取得ハンドラを返す。
func (s *Server) handleGetUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.Param("id")

		u, err := s.records.Get(c.Request.Context(), uid)
		if errors.Is(err, user.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "User not found"})
			return
		}
		if err != nil {
			s.logger.Error("ユーザー取得エラー", zap.String("uid", uid), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to get user"})
			return
		}

		c.JSON(http.StatusOK, toUserResponse(u))
	}
}

// handleListUsers はユーザー一覧ハンドラを返す。
func (s *Server) handleListUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		var q listUsersQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": fmt.Sprintf("Invalid query parameters: %v", err)})
			return
		}

		users, err := s.records.List(c.Request.Context(), q.Skip, q.Limit)
		if err != nil {
			s.logger.Error("ユーザー一覧取得エラー", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to list users"})
			return
		}

		resp := make([]userResponse, 0, len(users))
		for _, u := range users {
			resp = append(resp, toUserResponse(u))
		}
		c.JSON(http.StatusOK, resp)
	}
}

// handleUpdateUser はユーザー更新ハンドラを返す。
// 指定されたフィールドのみIDプロバイダとレコードの両方に反映し、更新後のレコードを返す。
func (s *Server) handleUpdateUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.Param("id")

		req, err := decodeUpdateRequest(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": fmt.Sprintf("Invalid request body: %v", err)})
			return
		}
		changes := user.Changes{
			DisplayName:   req.DisplayName,
			PhoneNumber:   req.PhoneNumber,
			EmailVerified: req.EmailVerified,
		}

		ctx := c.Request.Context()
		var steps []step
		if !changes.IsEmpty() {
			var before user.Identity
			steps = append(steps,
				step{
					name: "identity.snapshot",
					action: func(ctx context.Context) error {
						var err error
						before, err = s.identity.GetUser(ctx, uid)
						return err
					},
				},
				step{
					name: "identity.update",
					action: func(ctx context.Context) error {
						return s.identity.UpdateUser(ctx, uid, changes)
					},
					compensate: func(ctx context.Context) error {
						return s.identity.UpdateUser(ctx, uid, restoreChanges(before, changes))
					},
				},
			)
		}
		steps = append(steps, step{
			name: "records.update",
			action: func(ctx context.Context) error {
				return s.records.Update(ctx, uid, changes)
			},
		})

		err = runSteps(ctx, s.logger, "update_user", steps...)
		if err == nil {
			var u user.User
			u, err = s.records.Get(ctx, uid)
			if err == nil {
				c.JSON(http.StatusOK, toUserResponse(u))
				return
			}
		}
		if errors.Is(err, user.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "User not found"})
			return
		}
		s.logger.Error("ユーザー更新エラー", zap.String("uid", uid), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to update user"})
	}
}

// handleDeleteUser はユーザー削除ハンドラを返す。
// IDプロバイダから削除した後、レコードを無条件に削除する。
func (s *Server) handleDeleteUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.Param("id")

		// パスワードを復元できないため、IDプロバイダからの削除は取り消せない。
		err := runSteps(c.Request.Context(), s.logger, "delete_user",
			step{
				name: "identity.delete",
				action: func(ctx context.Context) error {
					return s.identity.DeleteUser(ctx, uid)
				},
			},
			step{
				name: "records.delete",
				action: func(ctx context.Context) error {
					return s.records.Delete(ctx, uid)
				},
			},
		)
		if errors.Is(err, user.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "User not found"})
			return
		}
		if err != nil {
			s.logger.Error("ユーザー削除エラー", zap.String("uid", uid), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to delete user"})
			return
		}

		s.logger.Info("ユーザーを削除しました", zap.String("uid", uid))
		c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
	}
}

// handleCheckConsistency はIDプロバイダとレコードの同期状態を返すハンドラを返す。
func (s *Server) handleCheckConsistency() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.Param("id")
		ctx := c.Request.Context()

		id, idErr := s.identity.GetUser(ctx, uid)
		rec, recErr := s.records.Get(ctx, uid)
		for _, err := range []error{idErr, recErr} {
			if err != nil && !errors.Is(err, user.ErrNotFound) {
				s.logger.Error("整合性確認エラー", zap.String("uid", uid), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to check user consistency"})
				return
			}
		}

		resp := consistencyResponse{
			UID:            uid,
			IdentityExists: idErr == nil,
			RecordExists:   recErr == nil,
			Mismatches:     []string{},
		}
		if !resp.IdentityExists && !resp.RecordExists {
			c.JSON(http.StatusNotFound, gin.H{"detail": "User not found"})
			return
		}
		if resp.IdentityExists && resp.RecordExists {
			resp.Mismatches = compareSynced(id, rec)
			resp.Consistent = len(resp.Mismatches) == 0
		}
		if !resp.Consistent {
			s.logger.Warn("IDプロバイダとレコードが一致しません",
				zap.String("uid", uid),
				zap.Bool("identity_exists", resp.IdentityExists),
				zap.Bool("record_exists", resp.RecordExists),
				zap.Strings("mismatches", resp.Mismatches),
			)
		}

		c.JSON(http.StatusOK, resp)
	}
}

// decodeUpdateRequest は更新リクエストをデコードする。空のボディは変更なしとして扱う。
func decodeUpdateRequest(body io.Reader) (updateUserRequest, error) {
	var req updateUserRequest
	b, err := io.ReadAll(body)
	if err != nil {
		return req, fmt.Errorf("リクエストボディの読み取りに失敗: %w", err)
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return req, nil
	}
	if b[0] != '{' {
		return req, errors.New("request body must be a JSON object")
	}
	if err := json.Unmarshal(b, &req); err != nil {
		return req, err
	}
	return req, nil
}

// restoreChanges はchangesで変更したフィールドをbeforeの値に戻す変更を返す。
// 未設定だったフィールドは空文字で削除する。
func restoreChanges(before user.Identity, changes user.Changes) user.Changes {
	var restore user.Changes
	if changes.DisplayName != nil {
		v := deref(before.DisplayName)
		restore.DisplayName = &v
	}
	if changes.PhoneNumber != nil {
		v := deref(before.PhoneNumber)
		restore.PhoneNumber = &v
	}
	if changes.EmailVerified != nil {
		v := before.EmailVerified
		restore.EmailVerified = &v
	}
	return restore
}

// compareSynced は両方に保持されるフィールドを比較し、一致しないフィールド名を返す。
// 未設定と空文字は同じ値とみなす。
func compareSynced(id user.Identity, rec user.User) []string {
	mismatches := []string{}
	if !strings.EqualFold(id.Email, rec.Email) {
		mismatches = append(mismatches, "email")
	}
	if deref(id.DisplayName) != deref(rec.DisplayName) {
		mismatches = append(mismatches, "display_name")
	}
	if deref(id.PhoneNumber) != deref(rec.PhoneNumber) {
		mismatches = append(mismatches, "phone_number")
	}
	if id.EmailVerified != rec.EmailVerified {
		mismatches = append(mismatches, "email_verified")
	}
	if id.Disabled != rec.Disabled {
		mismatches = append(mismatches, "disabled")
	}
	return mismatches
}

func toUserResponse(u user.User) userResponse {
	return userResponse{
		UID:           u.UID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		PhoneNumber:   u.PhoneNumber,
		EmailVerified: u.EmailVerified,
		Disabled:      u.Disabled,
		CreatedAt:     u.CreatedAt,
		LastSignIn:    u.LastSignIn,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
