package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/userrelay/internal/user"
)

// SQLite はSQLiteのusersテーブルにユーザーレコードを保存するストア。
type SQLite struct {
	db *sql.DB
}

// NewSQLite はストアを生成する。
// dbにはlocaldb.Openでマイグレーション済みの接続を渡す。
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

const selectColumns = "uid, email, display_name, phone_number, email_verified, disabled, created_at, last_sign_in"

// Put はレコードをUIDをキーに保存する。既存のレコードは上書きする。
func (s *SQLite) Put(ctx context.Context, u user.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO users (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.UID, u.Email, nullString(u.DisplayName), nullString(u.PhoneNumber),
		u.EmailVerified, u.Disabled, formatTime(u.CreatedAt), nullTime(u.LastSignIn),
	)
	if err != nil {
		return fmt.Errorf("ユーザーレコードの保存に失敗: %w", err)
	}
	return nil
}

// Get はUIDに対応するレコードを取得する。
func (s *SQLite) Get(ctx context.Context, uid string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM users WHERE uid = ?", uid)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, fmt.Errorf("ユーザーレコードの取得に失敗: %w", user.ErrNotFound)
	}
	if err != nil {
		return user.User{}, fmt.Errorf("ユーザーレコードの取得に失敗: %w", err)
	}
	return u, nil
}

// List はskip件読み飛ばし、最大limit件を格納順に返す。
func (s *SQLite) List(ctx context.Context, skip, limit int) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM users ORDER BY rowid LIMIT ? OFFSET ?", limit, skip)
	if err != nil {
		return nil, fmt.Errorf("ユーザーレコード一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	users := make([]user.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ユーザーレコードの読み取りに失敗: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ユーザーレコード一覧の取得に失敗: %w", err)
	}
	return users, nil
}

// Update は指定されたフィールドのみ更新する。変更が空の場合は何もしない。
// レコードが存在しない場合は user.ErrNotFound を返す。
func (s *SQLite) Update(ctx context.Context, uid string, c user.Changes) error {
	var (
		sets []string
		args []any
	)
	if c.DisplayName != nil {
		sets = append(sets, "display_name = ?")
		args = append(args, *c.DisplayName)
	}
	if c.PhoneNumber != nil {
		sets = append(sets, "phone_number = ?")
		args = append(args, *c.PhoneNumber)
	}
	if c.EmailVerified != nil {
		sets = append(sets, "email_verified = ?")
		args = append(args, *c.EmailVerified)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, uid)

	res, err := s.db.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE uid = ?", args...)
	if err != nil {
		return fmt.Errorf("ユーザーレコードの更新に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ユーザーレコードの更新に失敗: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("ユーザーレコードの更新に失敗: %w", user.ErrNotFound)
	}
	return nil
}

// Delete はレコードを削除する。存在しない場合もエラーにしない。
func (s *SQLite) Delete(ctx context.Context, uid string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE uid = ?", uid); err != nil {
		return fmt.Errorf("ユーザーレコードの削除に失敗: %w", err)
	}
	return nil
}

// scanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(sc scanner) (user.User, error) {
	var (
		u           user.User
		displayName sql.NullString
		phoneNumber sql.NullString
		createdAt   string
		lastSignIn  sql.NullString
	)
	if err := sc.Scan(&u.UID, &u.Email, &displayName, &phoneNumber,
		&u.EmailVerified, &u.Disabled, &createdAt, &lastSignIn); err != nil {
		return user.User{}, err
	}

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return user.User{}, fmt.Errorf("created_atの解析に失敗: %w", err)
	}
	u.CreatedAt = t.UTC()

	if lastSignIn.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastSignIn.String)
		if err != nil {
			return user.User{}, fmt.Errorf("last_sign_inの解析に失敗: %w", err)
		}
		t = t.UTC()
		u.LastSignIn = &t
	}
	if displayName.Valid {
		v := displayName.String
		u.DisplayName = &v
	}
	if phoneNumber.Valid {
		v := phoneNumber.String
		u.PhoneNumber = &v
	}
	return u, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
