package userstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/nao1215/userrelay/internal/user"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultCollection はユーザーレコードを保存するコレクション名。
const DefaultCollection = "users"

// document はFirestoreに保存するドキュメントの形式。
type document struct {
	UID           string     `firestore:"uid"`
	Email         string     `firestore:"email"`
	DisplayName   *string    `firestore:"display_name"`
	PhoneNumber   *string    `firestore:"phone_number"`
	EmailVerified bool       `firestore:"email_verified"`
	Disabled      bool       `firestore:"disabled"`
	CreatedAt     time.Time  `firestore:"created_at"`
	LastSignIn    *time.Time `firestore:"last_sign_in"`
}

// Firestore はFirestoreのコレクションにユーザーレコードを保存するストア。
type Firestore struct {
	collection *firestore.CollectionRef
}

// NewFirestore はFirestoreクライアントとコレクション名からストアを生成する。
func NewFirestore(client *firestore.Client, collection string) *Firestore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Firestore{collection: client.Collection(collection)}
}

// Put はレコードをUIDをキーに保存する。既存のドキュメントは上書きする。
func (f *Firestore) Put(ctx context.Context, u user.User) error {
	if _, err := f.collection.Doc(u.UID).Set(ctx, toDocument(u)); err != nil {
		return fmt.Errorf("Firestoreへの保存に失敗: %w", err)
	}
	return nil
}

// Get はUIDに対応するレコードを取得する。
func (f *Firestore) Get(ctx context.Context, uid string) (user.User, error) {
	snap, err := f.collection.Doc(uid).Get(ctx)
	if err != nil {
		return user.User{}, classify("Firestoreからの取得に失敗", err)
	}
	return fromSnapshot(snap)
}

// List はコレクションをskip件読み飛ばし、最大limit件を返す。
// 並び順はFirestoreの既定の順序に従い、保証しない。
func (f *Firestore) List(ctx context.Context, skip, limit int) ([]user.User, error) {
	users := make([]user.User, 0)
	if limit == 0 {
		return users, nil
	}

	iter := f.collection.Offset(skip).Limit(limit).Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("Firestoreの一覧取得に失敗: %w", err)
		}
		u, err := fromSnapshot(snap)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// Update は指定されたフィールドのみ更新する。変更が空の場合は何もしない。
// ドキュメントが存在しない場合は user.ErrNotFound を返す。
func (f *Firestore) Update(ctx context.Context, uid string, c user.Changes) error {
	var updates []firestore.Update
	if c.DisplayName != nil {
		updates = append(updates, firestore.Update{Path: "display_name", Value: *c.DisplayName})
	}
	if c.PhoneNumber != nil {
		updates = append(updates, firestore.Update{Path: "phone_number", Value: *c.PhoneNumber})
	}
	if c.EmailVerified != nil {
		updates = append(updates, firestore.Update{Path: "email_verified", Value: *c.EmailVerified})
	}
	if len(updates) == 0 {
		return nil
	}

	if _, err := f.collection.Doc(uid).Update(ctx, updates); err != nil {
		return classify("Firestoreの更新に失敗", err)
	}
	return nil
}

// Delete はドキュメントを削除する。存在しない場合もエラーにしない。
func (f *Firestore) Delete(ctx context.Context, uid string) error {
	if _, err := f.collection.Doc(uid).Delete(ctx); err != nil {
		return fmt.Errorf("Firestoreからの削除に失敗: %w", err)
	}
	return nil
}

func classify(msg string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s: %w", msg, user.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func fromSnapshot(snap *firestore.DocumentSnapshot) (user.User, error) {
	var d document
	if err := snap.DataTo(&d); err != nil {
		return user.User{}, fmt.Errorf("ドキュメントの変換に失敗: id=%s: %w", snap.Ref.ID, err)
	}
	if d.UID == "" {
		d.UID = snap.Ref.ID
	}
	return fromDocument(d), nil
}

func toDocument(u user.User) document {
	return document{
		UID:           u.UID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		PhoneNumber:   u.PhoneNumber,
		EmailVerified: u.EmailVerified,
		Disabled:      u.Disabled,
		CreatedAt:     u.CreatedAt.UTC(),
		LastSignIn:    u.LastSignIn,
	}
}

func fromDocument(d document) user.User {
	u := user.User{
		UID:           d.UID,
		Email:         d.Email,
		DisplayName:   d.DisplayName,
		PhoneNumber:   d.PhoneNumber,
		EmailVerified: d.EmailVerified,
		Disabled:      d.Disabled,
		CreatedAt:     d.CreatedAt.UTC(),
	}
	if d.LastSignIn != nil {
		t := d.LastSignIn.UTC()
		u.LastSignIn = &t
	}
	return u
}
