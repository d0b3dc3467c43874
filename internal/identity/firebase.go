package identity

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"
	"github.com/nao1215/userrelay/internal/user"
)

// authClient はFirebase Authクライアントのうち使用する操作。
// *auth.Client が満たす。
type authClient interface {
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	UpdateUser(ctx context.Context, uid string, user *auth.UserToUpdate) (*auth.UserRecord, error)
	DeleteUser(ctx context.Context, uid string) error
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
}

// Firebase はFirebase Authを使うIDプロバイダ。
type Firebase struct {
	client authClient
}

// NewFirebase はFirebase AuthクライアントからIDプロバイダを生成する。
func NewFirebase(client *auth.Client) *Firebase {
	return &Firebase{client: client}
}

// CreateUser はFirebase Authにユーザーを作成する。
// メールアドレスが登録済みの場合は user.ErrEmailAlreadyExists を返す。
func (f *Firebase) CreateUser(ctx context.Context, u user.NewUser) (user.Identity, error) {
	params := (&auth.UserToCreate{}).Email(u.Email).Password(u.Password)
	if u.DisplayName != nil {
		params = params.DisplayName(*u.DisplayName)
	}
	if u.PhoneNumber != nil {
		params = params.PhoneNumber(*u.PhoneNumber)
	}

	rec, err := f.client.CreateUser(ctx, params)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return user.Identity{}, fmt.Errorf("Firebaseユーザー作成に失敗: %w", user.ErrEmailAlreadyExists)
		}
		return user.Identity{}, fmt.Errorf("Firebaseユーザー作成に失敗: %w", err)
	}
	return toIdentity(rec), nil
}

// UpdateUser はFirebase Authのユーザー情報のうち指定されたフィールドのみ更新する。
func (f *Firebase) UpdateUser(ctx context.Context, uid string, c user.Changes) error {
	params := &auth.UserToUpdate{}
	if c.DisplayName != nil {
		params = params.DisplayName(*c.DisplayName)
	}
	if c.PhoneNumber != nil {
		params = params.PhoneNumber(*c.PhoneNumber)
	}
	if c.EmailVerified != nil {
		params = params.EmailVerified(*c.EmailVerified)
	}

	if _, err := f.client.UpdateUser(ctx, uid, params); err != nil {
		return classify("Firebaseユーザー更新に失敗", err)
	}
	return nil
}

// DeleteUser はFirebase Authからユーザーを削除する。
func (f *Firebase) DeleteUser(ctx context.Context, uid string) error {
	if err := f.client.DeleteUser(ctx, uid); err != nil {
		return classify("Firebaseユーザー削除に失敗", err)
	}
	return nil
}

// GetUser はFirebase Authからユーザー情報を取得する。
func (f *Firebase) GetUser(ctx context.Context, uid string) (user.Identity, error) {
	rec, err := f.client.GetUser(ctx, uid)
	if err != nil {
		return user.Identity{}, classify("Firebaseユーザー取得に失敗", err)
	}
	return toIdentity(rec), nil
}

func classify(msg string, err error) error {
	if auth.IsUserNotFound(err) {
		return fmt.Errorf("%s: %w", msg, user.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// toIdentity はFirebaseのユーザーレコードを変換する。
// 未設定の表示名と電話番号は空文字列ではなくnilにする。
func toIdentity(rec *auth.UserRecord) user.Identity {
	id := user.Identity{
		EmailVerified: rec.EmailVerified,
		Disabled:      rec.Disabled,
	}
	if rec.UserInfo != nil {
		id.UID = rec.UID
		id.Email = rec.Email
		id.DisplayName = optional(rec.DisplayName)
		id.PhoneNumber = optional(rec.PhoneNumber)
	}
	return id
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
