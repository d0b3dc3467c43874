// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// Bearerトークンの抽出、リクエストログ、パニックリカバリ、
// CORS設定など、gatewayとuser-managerの両方で使用するミドルウェアを含む。
package middleware
