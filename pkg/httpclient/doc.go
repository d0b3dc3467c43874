// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// gatewayがuser-managerへリクエストを転送する際に使用する。
// クライアントはプロセス起動時に1つだけ生成し、終了時にCloseで解放する。
package httpclient
