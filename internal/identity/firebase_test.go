package identity

import (
	"testing"

	"firebase.google.com/go/v4/auth"
)

// TestToIdentity はFirebaseユーザーレコードの変換を検証する。
func TestToIdentity(t *testing.T) {
	t.Parallel()

	t.Run("未設定の表示名と電話番号がnilになること", func(t *testing.T) {
		t.Parallel()

		got := toIdentity(&auth.UserRecord{
			UserInfo:      &auth.UserInfo{UID: "uid-1", Email: "a@example.com"},
			EmailVerified: true,
		})
		if got.UID != "uid-1" || got.Email != "a@example.com" {
			t.Errorf("uid/email = %q/%q", got.UID, got.Email)
		}
		if got.DisplayName != nil {
			t.Errorf("DisplayName = %v, want nil", *got.DisplayName)
		}
		if got.PhoneNumber != nil {
			t.Errorf("PhoneNumber = %v, want nil", *got.PhoneNumber)
		}
		if !got.EmailVerified {
			t.Error("EmailVerified = false, want true")
		}
	})

	t.Run("設定済みのフィールドがそのまま変換されること", func(t *testing.T) {
		t.Parallel()

		got := toIdentity(&auth.UserRecord{
			UserInfo: &auth.UserInfo{
				UID:         "uid-2",
				Email:       "b@example.com",
				DisplayName: "Bob",
				PhoneNumber: "+15550002",
			},
			Disabled: true,
		})
		if got.DisplayName == nil || *got.DisplayName != "Bob" {
			t.Errorf("DisplayName = %v, want Bob", got.DisplayName)
		}
		if got.PhoneNumber == nil || *got.PhoneNumber != "+15550002" {
			t.Errorf("PhoneNumber = %v, want +15550002", got.PhoneNumber)
		}
		if !got.Disabled {
			t.Error("Disabled = false, want true")
		}
	})

	t.Run("UserInfoがnilでもパニックしないこと", func(t *testing.T) {
		t.Parallel()

		got := toIdentity(&auth.UserRecord{})
		if got.UID != "" {
			t.Errorf("UID = %q, want empty", got.UID)
		}
	})
}
