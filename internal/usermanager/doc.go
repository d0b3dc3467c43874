// Package usermanager はuser-managerサービスの内部実装を提供する。
//
// /users 以下のREST APIを、IDプロバイダ（Firebase Auth）への操作と
// ドキュメントDB（Firestore）への操作の組に変換する。
// 書き込みはIDプロバイダ、DBの順に実行し、後段が失敗した場合は
// 前段の補償アクションを実行してからエラーを返す。
// Bearerトークンは受け取るが検証しない。
package usermanager
