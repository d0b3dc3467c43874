package userstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nao1215/userrelay/internal/localdb"
	"github.com/nao1215/userrelay/internal/user"
	"go.uber.org/zap"
)

// newTestStore はインメモリSQLiteを使うストアを生成する。
func newTestStore(t *testing.T) *SQLite {
	t.Helper()

	db, err := localdb.Open(context.Background(), localdb.MemoryPath, zap.NewNop())
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLite(db)
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

// putTestUser はテスト用のレコードを保存するヘルパー関数。
func putTestUser(t *testing.T, s *SQLite, uid string) user.User {
	t.Helper()

	u := user.User{
		UID:         uid,
		Email:       uid + "@example.com",
		DisplayName: strPtr("name-" + uid),
		CreatedAt:   time.Date(2026, 10, 14, 9, 30, 0, 123456000, time.UTC),
	}
	if err := s.Put(context.Background(), u); err != nil {
		t.Fatalf("テスト用レコードの保存に失敗: %v", err)
	}
	return u
}

// TestSQLitePutGet はPutとGetを検証する。
func TestSQLitePutGet(t *testing.T) {
	t.Parallel()

	t.Run("保存したレコードがそのまま取得できること", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)
		want := putTestUser(t, s, "u1")

		got, err := s.Get(context.Background(), "u1")
		if err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		if got.UID != want.UID || got.Email != want.Email {
			t.Errorf("uid/email = %q/%q, want %q/%q", got.UID, got.Email, want.UID, want.Email)
		}
		if got.DisplayName == nil || *got.DisplayName != "name-u1" {
			t.Errorf("DisplayName = %v, want name-u1", got.DisplayName)
		}
		if got.PhoneNumber != nil {
			t.Errorf("PhoneNumber = %v, want nil", *got.PhoneNumber)
		}
		if !got.CreatedAt.Equal(want.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
		}
		if got.LastSignIn != nil {
			t.Errorf("LastSignIn = %v, want nil", got.LastSignIn)
		}
	})

	t.Run("最終サインイン日時が保存されること", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		signIn := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
		if err := s.Put(context.Background(), user.User{UID: "u2", Email: "u2@example.com", CreatedAt: signIn, LastSignIn: &signIn}); err != nil {
			t.Fatalf("Put()でエラーが発生: %v", err)
		}
		got, err := s.Get(context.Background(), "u2")
		if err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		if got.LastSignIn == nil || !got.LastSignIn.Equal(signIn) {
			t.Errorf("LastSignIn = %v, want %v", got.LastSignIn, signIn)
		}
	})

	t.Run("存在しないUIDはErrNotFoundになること", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, user.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

// TestSQLiteList はListのskip/limitを検証する。
func TestSQLiteList(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	for i := 1; i <= 3; i++ {
		putTestUser(t, s, fmt.Sprintf("u%d", i))
	}

	t.Run("全件取得できること", func(t *testing.T) {
		t.Parallel()
		got, err := s.List(context.Background(), 0, 100)
		if err != nil {
			t.Fatalf("List()でエラーが発生: %v", err)
		}
		if len(got) != 3 {
			t.Errorf("件数 = %d, want 3", len(got))
		}
	})

	t.Run("skip=1,limit=1でskip=0と異なる1件が返ること", func(t *testing.T) {
		t.Parallel()
		first, err := s.List(context.Background(), 0, 1)
		if err != nil {
			t.Fatalf("List()でエラーが発生: %v", err)
		}
		second, err := s.List(context.Background(), 1, 1)
		if err != nil {
			t.Fatalf("List()でエラーが発生: %v", err)
		}
		if len(first) != 1 || len(second) != 1 {
			t.Fatalf("件数 = %d/%d, want 1/1", len(first), len(second))
		}
		if first[0].UID == second[0].UID {
			t.Errorf("同じレコードが返った: %s", first[0].UID)
		}
	})

	t.Run("limit=0では空のスライスが返ること", func(t *testing.T) {
		t.Parallel()
		got, err := s.List(context.Background(), 0, 0)
		if err != nil {
			t.Fatalf("List()でエラーが発生: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("List() = %v, want empty slice", got)
		}
	})

	t.Run("件数を超えるskipでは空のスライスが返ること", func(t *testing.T) {
		t.Parallel()
		got, err := s.List(context.Background(), 10, 100)
		if err != nil {
			t.Fatalf("List()でエラーが発生: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("件数 = %d, want 0", len(got))
		}
	})
}

// TestSQLiteUpdate はUpdateを検証する。
func TestSQLiteUpdate(t *testing.T) {
	t.Parallel()

	t.Run("指定したフィールドのみ更新されること", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)
		putTestUser(t, s, "u1")

		err := s.Update(context.Background(), "u1", user.Changes{PhoneNumber: strPtr("+15550001"), EmailVerified: boolPtr(true)})
		if err != nil {
			t.Fatalf("Update()でエラーが発生: %v", err)
		}
		got, err := s.Get(context.Background(), "u1")
		if err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		if got.DisplayName == nil || *got.DisplayName != "name-u1" {
			t.Errorf("DisplayName = %v, want name-u1", got.DisplayName)
		}
		if got.PhoneNumber == nil || *got.PhoneNumber != "+15550001" {
			t.Errorf("PhoneNumber = %v, want +15550001", got.PhoneNumber)
		}
		if !got.EmailVerified {
			t.Error("EmailVerified = false, want true")
		}
	})

	t.Run("存在しないUIDはErrNotFoundになること", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		err := s.Update(context.Background(), "missing", user.Changes{DisplayName: strPtr("x")})
		if !errors.Is(err, user.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("空の変更では何もせずエラーにならないこと", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		if err := s.Update(context.Background(), "missing", user.Changes{}); err != nil {
			t.Errorf("err = %v, want nil", err)
		}
	})
}

// TestSQLiteDelete はDeleteが存在確認なしに成功することを検証する。
func TestSQLiteDelete(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	putTestUser(t, s, "u1")

	if err := s.Delete(context.Background(), "u1"); err != nil {
		t.Fatalf("Delete()でエラーが発生: %v", err)
	}
	if _, err := s.Get(context.Background(), "u1"); !errors.Is(err, user.ErrNotFound) {
		t.Errorf("削除後のGet() err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(context.Background(), "u1"); err != nil {
		t.Errorf("存在しないレコードのDelete() err = %v, want nil", err)
	}
}
