// Package userstore はユーザーレコードを保存するドキュメントDBの実装を提供する。
//
// Firestoreはcloud.google.com/go/firestoreを使う本番用の実装で、
// 1ユーザー1ドキュメントをUIDをキーにコレクションへ保存する。
// SQLiteは認証情報が無い環境向けの代替実装。
package userstore
