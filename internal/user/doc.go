// Package user はユーザー管理で共有するドメイン型とエラーを提供する。
//
// IDプロバイダ（認証バックエンド）とドキュメントDBの両方が同じ型を扱い、
// user-managerサービスのハンドラがこれらを組み合わせてレスポンスを組み立てる。
package user
