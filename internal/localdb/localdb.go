// Package localdb はFirebaseの認証情報が無い場合に使うローカルSQLiteデータベースを提供する。
//
// identitiesテーブル（IDプロバイダの代替）とusersテーブル（ドキュメントDBの代替）を
// 1つのデータベースに持ち、起動時にマイグレーションを適用する。
package localdb

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/nao1215/userrelay/pkg/migration"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// MemoryPath はインメモリデータベースを使う場合のパス。
const MemoryPath = ":memory:"

//go:embed migrations/*.sql
var migrations embed.FS

// DSN はパスからmodernc.org/sqlite用の接続文字列を組み立てる。
func DSN(path string) string {
	if path == MemoryPath {
		return MemoryPath
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Open はSQLiteデータベースを開き、マイグレーションを適用する。
// インメモリDBは接続ごとに別のDBになるため、接続数は常に1に制限する。
func Open(ctx context.Context, path string, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("データベース疎通確認に失敗: %w", err)
	}

	if _, err := migration.Run(ctx, db, migrations, "migrations", logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return db, nil
}
