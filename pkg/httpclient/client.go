package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout は転送リクエスト1回あたりのタイムアウト。
const DefaultTimeout = 30 * time.Second

// Client はサービス間通信用のHTTPクライアント。
// 接続プールを共有するため、リクエストごとに生成しないこと。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先サービスのベースURL。
	baseURL string
}

// New は新しいサービス間通信用HTTPクライアントを生成する。
// baseURLには接続先サービスのベースURL（例: "http://user-manager:8001"）を指定する。
// timeoutが0以下の場合はDefaultTimeoutを使用する。
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Request は転送するリクエストの内容。
type Request struct {
	// Method はHTTPメソッド。
	Method string
	// Path はベースURLからの相対パス（例: "/users/abc"）。
	Path string
	// Query はクエリパラメータ。nilの場合は付与しない。
	Query url.Values
	// Body はJSONボディ。nilの場合はボディなしで送信する。
	Body []byte
	// Authorization はそのまま転送するAuthorizationヘッダーの値。
	Authorization string
}

// Response は転送先から受け取ったレスポンス。
type Response struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// ContentType はContent-Typeヘッダーの値。
	ContentType string
	// Body はレスポンスボディ全体。
	Body []byte
}

// RequestError は転送先との通信自体に失敗したことを示すエラー。
// タイムアウト、接続拒否、名前解決の失敗、ボディ読み取り中の切断を含む。
// 転送先が返したHTTPエラーステータスはRequestErrorにならない。
type RequestError struct {
	// Method はHTTPメソッド。
	Method string
	// URL は転送先のURL。
	URL string
	// Err は元のエラー。
	Err error
}

// Error はエラーメッセージを返す。
func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s への通信に失敗: %v", e.Method, e.URL, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *RequestError) Unwrap() error {
	return e.Err
}

// Do はリクエストを転送先に送信し、レスポンスを返す。
// ステータスコードに関わらずレスポンスボディを読み切って返す。
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	target := c.baseURL + r.Path
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	var bodyReader io.Reader
	if r.Body != nil {
		bodyReader = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if r.Authorization != "" {
		req.Header.Set("Authorization", r.Authorization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Method: r.Method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Method: r.Method, URL: target, Err: err}
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// Close はアイドル状態の接続を解放する。プロセス終了時に1度だけ呼び出す。
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
