package usermanager

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	firebase "firebase.google.com/go/v4"
	"github.com/nao1215/userrelay/internal/config"
	"github.com/nao1215/userrelay/internal/identity"
	"github.com/nao1215/userrelay/internal/localdb"
	"github.com/nao1215/userrelay/internal/user"
	"github.com/nao1215/userrelay/internal/userstore"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// IdentityProvider はIDプロバイダへの操作。
// 対象が存在しない場合は user.ErrNotFound、メールアドレスの重複は
// user.ErrEmailAlreadyExists をラップしたエラーを返す。
type IdentityProvider interface {
	CreateUser(ctx context.Context, u user.NewUser) (user.Identity, error)
	UpdateUser(ctx context.Context, uid string, c user.Changes) error
	DeleteUser(ctx context.Context, uid string) error
	GetUser(ctx context.Context, uid string) (user.Identity, error)
}

// RecordStore はユーザーレコードを保存するドキュメントDBへの操作。
// Get と Update は対象が存在しない場合に user.ErrNotFound をラップしたエラーを返す。
type RecordStore interface {
	Put(ctx context.Context, u user.User) error
	Get(ctx context.Context, uid string) (user.User, error)
	List(ctx context.Context, skip, limit int) ([]user.User, error)
	Update(ctx context.Context, uid string, c user.Changes) error
	Delete(ctx context.Context, uid string) error
}

// バックエンドの種類。
const (
	// SourceFirebaseFile は証明書ファイルから初期化したFirebase。
	SourceFirebaseFile = "firebase-file"
	// SourceFirebaseEnv は環境変数の個別フィールドから初期化したFirebase。
	SourceFirebaseEnv = "firebase-env"
	// SourceLocal はローカルSQLite。
	SourceLocal = "local"
)

// Backend はIDプロバイダとドキュメントDBの組。
// プロセス起動時に1度だけOpenし、終了時にCloseする。
type Backend struct {
	// Identity はIDプロバイダ。
	Identity IdentityProvider
	// Records はドキュメントDB。
	Records RecordStore
	// Source は使用しているバックエンドの種類。
	Source string

	closeOnce sync.Once
	closeFn   func() error
	closeErr  error
}

// Close はバックエンドの接続を解放する。複数回呼び出しても解放は1度だけ行う。
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		if b.closeFn != nil {
			b.closeErr = b.closeFn()
		}
	})
	return b.closeErr
}

// credentials は解決済みのFirebase認証情報。
type credentials struct {
	source string
	file   string
	json   []byte
}

// resolveCredentials は証明書ファイル、個別フィールドの順に認証情報を探す。
// どちらも無い場合はローカルバックエンドを示す。
func resolveCredentials(fb config.Firebase) (credentials, error) {
	if fb.KeyPath != "" {
		if _, err := os.Stat(fb.KeyPath); err == nil {
			return credentials{source: SourceFirebaseFile, file: fb.KeyPath}, nil
		}
	}
	if !fb.HasPrivateKey() {
		return credentials{source: SourceLocal}, nil
	}

	b, err := json.Marshal(map[string]string{
		"type":                        "service_account",
		"project_id":                  fb.ProjectID,
		"private_key_id":              fb.PrivateKeyID,
		"private_key":                 fb.PrivateKey,
		"client_email":                fb.ClientEmail,
		"client_id":                   fb.ClientID,
		"auth_uri":                    "https://accounts.google.com/o/oauth2/auth",
		"token_uri":                   "https://oauth2.googleapis.com/token",
		"auth_provider_x509_cert_url": "https://www.googleapis.com/oauth2/v1/certs",
		"client_x509_cert_url":        fb.ClientX509CertURL,
	})
	if err != nil {
		return credentials{}, fmt.Errorf("サービスアカウント情報のシリアライズに失敗: %w", err)
	}
	return credentials{source: SourceFirebaseEnv, json: b}, nil
}

// OpenBackend は設定に応じてバックエンドを初期化する。
// Firebaseの認証情報が無い場合や初期化に失敗した場合は、起動を止めずに
// ローカルSQLiteバックエンドで動作する。
func OpenBackend(ctx context.Context, cfg config.UserManager, logger *zap.Logger) (*Backend, error) {
	creds, err := resolveCredentials(cfg.Firebase)
	if err != nil {
		logger.Error("Firebase認証情報の解決に失敗しました", zap.Error(err))
		creds = credentials{source: SourceLocal}
	}

	if creds.source != SourceLocal {
		b, err := openFirebase(ctx, cfg, creds)
		if err == nil {
			logger.Info("Firebaseを初期化しました", zap.String("source", creds.source))
			return b, nil
		}
		logger.Error("Firebaseの初期化に失敗しました", zap.Error(err))
	}

	logger.Warn("Firebaseの認証情報が利用できないため、ローカルバックエンドで動作します",
		zap.String("path", cfg.LocalDBPath),
	)
	return openLocal(ctx, cfg.LocalDBPath, logger)
}

func openFirebase(ctx context.Context, cfg config.UserManager, creds credentials) (*Backend, error) {
	var opt option.ClientOption
	if creds.file != "" {
		opt = option.WithCredentialsFile(creds.file)
	} else {
		opt = option.WithCredentialsJSON(creds.json)
	}

	var fbConfig *firebase.Config
	if cfg.Firebase.ProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.Firebase.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConfig, opt)
	if err != nil {
		return nil, fmt.Errorf("Firebaseアプリの初期化に失敗: %w", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("Firebase Authクライアントの初期化に失敗: %w", err)
	}
	fsClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("Firestoreクライアントの初期化に失敗: %w", err)
	}

	return &Backend{
		Identity: identity.NewFirebase(authClient),
		Records:  userstore.NewFirestore(fsClient, cfg.UsersCollection),
		Source:   creds.source,
		closeFn:  fsClient.Close,
	}, nil
}

func openLocal(ctx context.Context, path string, logger *zap.Logger) (*Backend, error) {
	db, err := localdb.Open(ctx, path, logger)
	if err != nil {
		return nil, fmt.Errorf("ローカルバックエンドの初期化に失敗: %w", err)
	}
	return &Backend{
		Identity: identity.NewLocal(db),
		Records:  userstore.NewSQLite(db),
		Source:   SourceLocal,
		closeFn:  db.Close,
	}, nil
}
