package httpgin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/kirinyoku/staygo/internal/domain"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// Claims are issued by the external identity provider. uid is the numeric
// user id, role is "user" or "admin".
type Claims struct {
	UserID int64       `json:"uid"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Auth verifies HS256 bearer tokens and puts the caller's id and role on the
// context.
func Auth(secret []byte) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			unauthorized(c, "missing bearer token")
			return
		}

		var claims Claims
		_, err := parser.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (any, error) {
			return secret, nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				unauthorized(c, "token expired")
				return
			}
			unauthorized(c, "invalid token")
			return
		}

		if claims.UserID <= 0 {
			unauthorized(c, "invalid token subject")
			return
		}

		role := claims.Role
		if role != domain.RoleAdmin {
			role = domain.RoleUser
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxRole, string(role))

		c.Next()
	}
}

// RequireRole must run after Auth.
func RequireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, got := actor(c); got != role {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Error: "requires role " + string(role),
				Kind:  domain.KindForbidden.String(),
			})
			return
		}
		c.Next()
	}
}

func actor(c *gin.Context) (int64, domain.Role) {
	return c.GetInt64(ctxUserID), domain.Role(c.GetString(ctxRole))
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="staygo"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: msg, Kind: "unauthorized"})
}
