package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// contextKeyBearerToken はGinコンテキストにBearerトークンを格納するためのキー。
const contextKeyBearerToken = "bearer_token"

// RequireBearer はAuthorizationヘッダーからBearerトークンを取り出すGinミドルウェアを返す。
// トークンの署名や有効期限は検証しない。内容は下流への転送にのみ使用する。
// ヘッダーが無い場合やスキームがBearerでない場合は403を返す。
func RequireBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, credentials, _ := strings.Cut(strings.TrimSpace(c.GetHeader("Authorization")), " ")
		credentials = strings.TrimSpace(credentials)
		if scheme == "" || credentials == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"detail": "Not authenticated",
			})
			return
		}
		if !strings.EqualFold(scheme, "bearer") {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"detail": "Invalid authentication credentials",
			})
			return
		}

		c.Set(contextKeyBearerToken, credentials)
		c.Next()
	}
}

// BearerToken はGinコンテキストからBearerトークンを取得する。
// RequireBearerミドルウェアが事前に適用されている必要がある。
func BearerToken(c *gin.Context) string {
	v, _ := c.Get(contextKeyBearerToken)
	if token, ok := v.(string); ok {
		return token
	}
	return ""
}
