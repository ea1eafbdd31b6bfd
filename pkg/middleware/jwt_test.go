package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testSecret = "test-secret-key-for-unit-tests"
	testIssuer = "notifyhub"
)

// signToken はテスト用のトークンを署名するヘルパー関数。
func signToken(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("トークンの署名に失敗: %v", err)
	}
	return signed
}

// validClaims は受け付けられるクレームを返す。
func validClaims(subject string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    testIssuer,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

// newAuthRouter はJWTAuthを通した後に認証済みユーザーIDを返すルーターを作る。
func newAuthRouter() *gin.Engine {
	router := gin.New()
	router.Use(JWTAuth(testSecret, testIssuer))
	router.GET("/inbox", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c)})
	})
	return router
}

// TestJWTAuth はJWTAuthミドルウェアを検証する。
func TestJWTAuth(t *testing.T) {
	t.Parallel()

	t.Run("有効なトークンでsubがユーザーIDとして設定されること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/inbox", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, testSecret, validClaims("alice")))
		w := httptest.NewRecorder()
		newAuthRouter().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}
		if got := w.Body.String(); got != `{"user_id":"alice"}` {
			t.Errorf("body = %s", got)
		}
	})

	expired := validClaims("alice")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExpiry := validClaims("alice")
	noExpiry.ExpiresAt = nil

	otherIssuer := validClaims("alice")
	otherIssuer.Issuer = "someone-else"

	tests := []struct {
		name   string
		header string
	}{
		{name: "Authorizationヘッダーが無い", header: ""},
		{name: "Bearer形式ではない", header: "Basic dXNlcjpwYXNz"},
		{name: "壊れたトークン", header: "Bearer not.a.jwt"},
		{name: "発行者が異なる", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, otherIssuer)},
		{name: "有効期限切れ", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, expired)},
		{name: "有効期限が無い", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, noExpiry)},
		{name: "署名鍵が異なる", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, "wrong-secret", validClaims("alice"))},
		{name: "HS256以外の署名方式", header: "Bearer " + signToken(t, jwt.SigningMethodHS512, testSecret, validClaims("alice"))},
		{name: "subが空", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, validClaims(""))},
	}

	for _, tt := range tests {
		t.Run(tt.name+"場合は401が返ること", func(t *testing.T) {
			t.Parallel()

			handlerCalled := false
			router := gin.New()
			router.Use(JWTAuth(testSecret, testIssuer))
			router.GET("/inbox", func(c *gin.Context) {
				handlerCalled = true
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/inbox", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if handlerCalled {
				t.Error("認証に失敗した場合ハンドラーが呼ばれるべきではない")
			}
		})
	}
}

// TestGetUserID はJWTAuthを通していないコンテキストでの動作を検証する。
func TestGetUserID(t *testing.T) {
	t.Parallel()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := GetUserID(c); got != "" {
		t.Errorf("GetUserID() = %q, want empty", got)
	}
}
