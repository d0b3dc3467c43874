// Package identity はIDプロバイダ（認証バックエンド）の実装を提供する。
//
// Firebaseはfirebase.google.com/go/v4のAuthクライアントを使う本番用の実装。
// Localは認証情報が無い環境向けに、同等の振る舞いをSQLite上で再現する。
// どちらもバックエンド固有のエラーをuserパッケージのエラーに変換して返す。
package identity
