// Package config は環境変数からgatewayとuser-managerの設定を読み込む。
// カレントディレクトリに.envファイルがあれば先に読み込む。
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// privateKeyPlaceholder はサンプル設定に含まれる秘密鍵のプレースホルダ。
const privateKeyPlaceholder = "your-firebase-private-key"

// Gateway はAPI Gatewayの設定。
type Gateway struct {
	// Port はリッスンポート。
	Port string
	// UserManagerURL は転送先user-managerのベースURL。
	UserManagerURL string
	// UpstreamTimeout は転送リクエスト1回あたりのタイムアウト。
	UpstreamTimeout time.Duration
	// PropagateUpstreamStatus がtrueの場合、user-managerのステータスコードをそのまま返す。
	PropagateUpstreamStatus bool
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string
	// Debug はデバッグログを有効にするかどうか。
	Debug bool
}

// Firebase はFirebaseサービスアカウントの認証情報。
type Firebase struct {
	KeyPath           string
	ProjectID         string
	PrivateKeyID      string
	PrivateKey        string
	ClientEmail       string
	ClientID          string
	ClientX509CertURL string
}

// HasPrivateKey は個別フィールドの秘密鍵が有効な値で設定されているかを返す。
func (f Firebase) HasPrivateKey() bool {
	return f.PrivateKey != "" && f.PrivateKey != privateKeyPlaceholder
}

// UserManager はuser-managerの設定。
type UserManager struct {
	// Port はリッスンポート。
	Port string
	// Firebase はFirebaseの認証情報。
	Firebase Firebase
	// UsersCollection はユーザーレコードを保存するFirestoreのコレクション名。
	UsersCollection string
	// LocalDBPath はFirebaseを使わない場合のSQLiteファイルのパス。
	LocalDBPath string
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string
	// Debug はデバッグログを有効にするかどうか。
	Debug bool
}

// LoadDotEnv は.envファイルを読み込む。ファイルが無い場合は何もしない。
// 既に設定済みの環境変数は上書きしない。
func LoadDotEnv() {
	_ = godotenv.Load()
}

// LoadGateway は環境変数からGatewayの設定を読み込む。
func LoadGateway() Gateway {
	return Gateway{
		Port:                    getEnv("PORT", "8000"),
		UserManagerURL:          getEnv("USER_MANAGER_URL", "http://user-manager:8001"),
		UpstreamTimeout:         getEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		PropagateUpstreamStatus: getEnvBool("PROPAGATE_UPSTREAM_STATUS", false),
		AllowedOrigins:          getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		Debug:                   getEnvBool("DEBUG", false),
	}
}

// LoadUserManager は環境変数からuser-managerの設定を読み込む。
// FIREBASE_PRIVATE_KEY に含まれる "\n" の2文字は改行に置き換える。
func LoadUserManager() UserManager {
	return UserManager{
		Port: getEnv("PORT", "8001"),
		Firebase: Firebase{
			KeyPath:           os.Getenv("FIREBASE_KEY_PATH"),
			ProjectID:         os.Getenv("FIREBASE_PROJECT_ID"),
			PrivateKeyID:      os.Getenv("FIREBASE_PRIVATE_KEY_ID"),
			PrivateKey:        strings.ReplaceAll(os.Getenv("FIREBASE_PRIVATE_KEY"), `\n`, "\n"),
			ClientEmail:       os.Getenv("FIREBASE_CLIENT_EMAIL"),
			ClientID:          os.Getenv("FIREBASE_CLIENT_ID"),
			ClientX509CertURL: os.Getenv("FIREBASE_CLIENT_X509_CERT_URL"),
		},
		UsersCollection: getEnv("USERS_COLLECTION", "users"),
		LocalDBPath:     getEnv("LOCAL_DB_PATH", "user-manager.db"),
		AllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		Debug:           getEnvBool("DEBUG", false),
	}
}

// getEnv は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

// getEnvList はカンマ区切りの環境変数を空要素を除いて分割する。
func getEnvList(key string, defaultValue []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	var list []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	if len(list) == 0 {
		return defaultValue
	}
	return list
}
