package user

import "time"

// User はドキュメントDBに保存されるユーザーレコード。
// パスワードは保持しない。
type User struct {
	// UID はIDプロバイダが発行した一意識別子。作成後は変更されない。
	UID string
	// Email はメールアドレス。
	Email string
	// DisplayName は表示名。未設定の場合はnil。
	DisplayName *string
	// PhoneNumber は電話番号。未設定の場合はnil。
	PhoneNumber *string
	// EmailVerified はメールアドレスが確認済みかどうか。
	EmailVerified bool
	// Disabled はアカウントが無効化されているかどうか。
	Disabled bool
	// CreatedAt は作成日時（UTC）。
	CreatedAt time.Time
	// LastSignIn は最終サインイン日時。IDプロバイダ側でのみ更新される。
	LastSignIn *time.Time
}

// Identity はIDプロバイダが保持するユーザー情報。
type Identity struct {
	UID           string
	Email         string
	DisplayName   *string
	PhoneNumber   *string
	EmailVerified bool
	Disabled      bool
}

// NewUser はユーザー作成時の入力。
type NewUser struct {
	Email       string
	Password    string
	DisplayName *string
	PhoneNumber *string
}

// Changes は部分更新の入力。nilのフィールドは変更しない。
type Changes struct {
	DisplayName   *string
	PhoneNumber   *string
	EmailVerified *bool
}

// IsEmpty は変更対象のフィールドが1つもないかどうかを返す。
func (c Changes) IsEmpty() bool {
	return c.DisplayName == nil && c.PhoneNumber == nil && c.EmailVerified == nil
}

// Record はIDプロバイダの情報から作成直後のユーザーレコードを組み立てる。
func (i Identity) Record(createdAt time.Time) User {
	return User{
		UID:           i.UID,
		Email:         i.Email,
		DisplayName:   i.DisplayName,
		PhoneNumber:   i.PhoneNumber,
		EmailVerified: i.EmailVerified,
		Disabled:      i.Disabled,
		CreatedAt:     createdAt.UTC(),
		LastSignIn:    nil,
	}
}

// Apply は変更をレコードに適用した結果を返す。
func (u User) Apply(c Changes) User {
	if c.DisplayName != nil {
		v := *c.DisplayName
		u.DisplayName = &v
	}
	if c.PhoneNumber != nil {
		v := *c.PhoneNumber
		u.PhoneNumber = &v
	}
	if c.EmailVerified != nil {
		u.EmailVerified = *c.EmailVerified
	}
	return u
}
