package middleware

import (
	"errors"
	"net/http"
	"strings"

	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const RoleAdmin = "ADMIN"

// gin context keys set by JWTAuthWithConfig
const (
	ContextUserID    = "user_id"
	ContextUserEmail = "user_email"
	ContextUserRole  = "user_role"
)

const accessTokenType = "access"

var errNotAccessToken = errors.New("invalid token type")

// Claims is the access token payload issued by the identity service
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

// Valid checks expiry through RegisteredClaims and rejects refresh tokens
func (c *Claims) Valid() error {
	if err := c.RegisteredClaims.Valid(); err != nil {
		return err
	}
	if c.Type != accessTokenType {
		return errNotAccessToken
	}
	return nil
}

// JWTAuthWithConfig authenticates HS256 bearer tokens and stores the
// operator's identity on the gin context.
func JWTAuthWithConfig(cfg *config.Config) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	keyFunc := func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.JWT.Secret), nil
	}

	return func(c *gin.Context) {
		raw, msg := bearerToken(c.GetHeader("Authorization"))
		if msg != "" {
			unauthorized(c, msg)
			return
		}

		var claims Claims
		if _, err := parser.ParseWithClaims(raw, &claims, keyFunc); err != nil {
			if errors.Is(err, errNotAccessToken) {
				unauthorized(c, errNotAccessToken.Error())
				return
			}
			unauthorized(c, "invalid or expired token")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserEmail, claims.Email)
		c.Set(ContextUserRole, claims.Role)
		c.Next()
	}
}

func bearerToken(header string) (string, string) {
	if header == "" {
		return "", "Authorization header is required"
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" {
		return "", "authorization header format must be Bearer {token}"
	}
	return token, ""
}

func unauthorized(c *gin.Context, msg string) {
	response.RespondJSON(c, "error", http.StatusUnauthorized, msg, nil, nil)
	c.Abort()
}

// OperatorID returns the authenticated user id, or "anonymous"
func OperatorID(c *gin.Context) string {
	if id := c.GetString(ContextUserID); id != "" {
		return id
	}
	return "anonymous"
}

// RequireAdmin allows only the admin role through
func RequireAdmin() gin.HandlerFunc {
	return RequireRoles(RoleAdmin)
}

// RequireRoles allows any of the given roles through
func RequireRoles(requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextUserRole); !exists {
			unauthorized(c, "user role not found in context")
			return
		}

		role := c.GetString(ContextUserRole)
		for _, required := range requiredRoles {
			if role == required {
				c.Next()
				return
			}
		}

		response.RespondJSON(c, "error", http.StatusForbidden, "Insufficient permissions", nil, nil)
		c.Abort()
	}
}
