// Package gateway はAPI Gatewayサービスの内部実装を提供する。
//
// 外部からアクセス可能な唯一のサービスとして /api/users 以下のリクエストを受け付け、
// Bearerトークンとともにuser-managerの /users 以下へ転送する。
// トークンの検証は行わない。user-managerに到達できない場合は503を返す。
package gateway
