package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/userrelay/internal/user"
	"golang.org/x/crypto/bcrypt"
)

// minPasswordLength はFirebase Authと同じパスワードの最小文字数。
const minPasswordLength = 6

// Local はSQLiteのidentitiesテーブルを使うIDプロバイダ。
type Local struct {
	db  *sql.DB
	now func() time.Time
}

// NewLocal はローカルIDプロバイダを生成する。
// dbにはlocaldb.Openでマイグレーション済みの接続を渡す。
func NewLocal(db *sql.DB) *Local {
	return &Local{db: db, now: time.Now}
}

// CreateUser はユーザーを作成し、新しいUIDを発行する。
// メールアドレスは小文字に正規化して一意性を判定する。
func (l *Local) CreateUser(ctx context.Context, u user.NewUser) (user.Identity, error) {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if email == "" {
		return user.Identity{}, fmt.Errorf("メールアドレスが空です: %w", user.ErrInvalidArgument)
	}
	if len(u.Password) < minPasswordLength {
		return user.Identity{}, fmt.Errorf("パスワードは%d文字以上が必要です: %w", minPasswordLength, user.ErrInvalidArgument)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return user.Identity{}, fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}

	id := user.Identity{
		UID:         uuid.NewString(),
		Email:       email,
		DisplayName: u.DisplayName,
		PhoneNumber: u.PhoneNumber,
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO identities (uid, email, password_hash, display_name, phone_number, email_verified, disabled, created_at)
		VALUES (?, ?, ?, ?, ?, 0, 0, ?)`,
		id.UID, id.Email, string(hash), nullString(id.DisplayName), nullString(id.PhoneNumber),
		l.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return user.Identity{}, fmt.Errorf("ユーザー作成に失敗: %w", user.ErrEmailAlreadyExists)
		}
		return user.Identity{}, fmt.Errorf("ユーザー作成に失敗: %w", err)
	}
	return id, nil
}

// UpdateUser は指定されたフィールドのみ更新する。
// 変更が空の場合も対象ユーザーの存在は確認する。
func (l *Local) UpdateUser(ctx context.Context, uid string, c user.Changes) error {
	if c.IsEmpty() {
		_, err := l.GetUser(ctx, uid)
		return err
	}

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
	args = append(args, uid)

	res, err := l.db.ExecContext(ctx, "UPDATE identities SET "+strings.Join(sets, ", ")+" WHERE uid = ?", args...)
	if err != nil {
		return fmt.Errorf("ユーザー更新に失敗: %w", err)
	}
	return requireAffected(res, "ユーザー更新に失敗")
}

// DeleteUser はユーザーを削除する。
func (l *Local) DeleteUser(ctx context.Context, uid string) error {
	res, err := l.db.ExecContext(ctx, "DELETE FROM identities WHERE uid = ?", uid)
	if err != nil {
		return fmt.Errorf("ユーザー削除に失敗: %w", err)
	}
	return requireAffected(res, "ユーザー削除に失敗")
}

// GetUser はユーザー情報を取得する。
func (l *Local) GetUser(ctx context.Context, uid string) (user.Identity, error) {
	var (
		id          user.Identity
		displayName sql.NullString
		phoneNumber sql.NullString
	)
	err := l.db.QueryRowContext(ctx, `
		SELECT uid, email, display_name, phone_number, email_verified, disabled
		FROM identities WHERE uid = ?`, uid,
	).Scan(&id.UID, &id.Email, &displayName, &phoneNumber, &id.EmailVerified, &id.Disabled)
	if errors.Is(err, sql.ErrNoRows) {
		return user.Identity{}, fmt.Errorf("ユーザー取得に失敗: %w", user.ErrNotFound)
	}
	if err != nil {
		return user.Identity{}, fmt.Errorf("ユーザー取得に失敗: %w", err)
	}
	id.DisplayName = stringPtr(displayName)
	id.PhoneNumber = stringPtr(phoneNumber)
	return id, nil
}

func requireAffected(res sql.Result, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", msg, user.ErrNotFound)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
