package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"boxoffice/internal/shared/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newAdminEngine(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", JWTAuthWithConfig(cfg), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestJWTAuthAndRequireAdmin(t *testing.T) {
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret"}}
	r := newAdminEngine(cfg)
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Token abc", http.StatusUnauthorized},
		{"bad signature", "Bearer " + signToken(t, "other", jwt.MapClaims{"type": "access", "role": "ADMIN", "exp": exp}), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, "test-secret", jwt.MapClaims{"type": "access", "role": "ADMIN", "exp": time.Now().Add(-time.Minute).Unix()}), http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"refresh token", "Bearer " + signToken(t, "test-secret", jwt.MapClaims{"type": "refresh", "role": "ADMIN", "exp": exp}), http.StatusUnauthorized},
		{"non admin", "Bearer " + signToken(t, "test-secret", jwt.MapClaims{"type": "access", "role": "USER", "exp": exp}), http.StatusForbidden},
		{"admin", "Bearer " + signToken(t, "test-secret", jwt.MapClaims{"type": "access", "role": "ADMIN", "exp": exp}), http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestJWTAuthSetsOperatorIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret"}}

	var operator, email string
	r := gin.New()
	r.GET("/me", JWTAuthWithConfig(cfg), func(c *gin.Context) {
		operator = OperatorID(c)
		email = c.GetString(ContextUserEmail)
		c.Status(http.StatusNoContent)
	})

	token := signToken(t, "test-secret", jwt.MapClaims{
		"type":    "access",
		"role":    "ADMIN",
		"user_id": "op-17",
		"email":   "ops@example.com",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "op-17", operator)
	assert.Equal(t, "ops@example.com", email)
}

func TestJWTAuthRejectsOtherSigningMethods(t *testing.T) {
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret"}}
	r := newAdminEngine(cfg)

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"type": "access", "role": "ADMIN", "exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOperatorIDDefaultsToAnonymous(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "anonymous", OperatorID(c))
}
