package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ctxKeyUserID は認証済みユーザーIDを格納するGinコンテキストのキー。
const ctxKeyUserID = "user_id"

// JWTAuth は受信箱APIのBearerトークン認証を行うGinミドルウェアを返す。
//
// HS256で署名され、issuerが発行し、有効期限(exp)を持つトークンだけを受け付ける。
// subクレームを通知の受信者IDとしてコンテキストに設定する。
func JWTAuth(secret, issuer string) gin.HandlerFunc {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	keyFunc := func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorizationヘッダーが必要です",
			})
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer トークン形式が不正です",
			})
			return
		}

		var claims jwt.RegisteredClaims
		if _, err := parser.ParseWithClaims(tokenString, &claims, keyFunc); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "トークンが無効です",
			})
			return
		}
		if claims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "トークンにユーザーIDがありません",
			})
			return
		}

		c.Set(ctxKeyUserID, claims.Subject)
		c.Next()
	}
}

// GetUserID はJWTAuthが設定した認証済みユーザーIDを返す。未認証なら空文字。
func GetUserID(c *gin.Context) string {
	return c.GetString(ctxKeyUserID)
}
