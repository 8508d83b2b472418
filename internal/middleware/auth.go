package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tienda/core/internal/models"
	"github.com/tienda/core/internal/pkg/jwt"
	"github.com/tienda/core/internal/pkg/response"
	"github.com/tienda/core/internal/pkg/session"
)

const ContextKeyUser = "current_user"

// Authenticate resolves the bearer token into a user and stores it in the
// request context. Requests without an Authorization header pass through
// anonymous; a present but invalid token is rejected so that a client
// holding an expired token gets a 401 instead of acting as a guest.
func Authenticate(db *gorm.DB, codec *jwt.Codec) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		if raw == "" {
			c.Next()
			return
		}

		user, err := resolveUser(db, codec, NormalizeToken(raw))
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}
		c.Set(ContextKeyUser, user)
		c.Next()
	}
}

func resolveUser(db *gorm.DB, codec *jwt.Codec, token string) (*models.UserModel, error) {
	if token == "" {
		return nil, errors.New("token is required")
	}
	claims, err := codec.Decode(token)
	if err != nil {
		return nil, err
	}

	// Access tokens carry the row id claim; refresh tokens carry the
	// refresh key and must not pass as access tokens.
	if _, ok := claims[session.ClaimRefreshKey]; ok {
		return nil, errors.New("refresh token used as access token")
	}
	if _, ok := claims[session.ClaimTokenRowID].(string); !ok {
		return nil, errors.New("not an access token")
	}
	userID := claims["sub"].(string)

	var user models.UserModel
	if err := db.Preload("Roles").First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, errors.New("account disabled")
	}
	return &user, nil
}

// CurrentUser extracts the authenticated user from context, nil when anonymous.
func CurrentUser(c *gin.Context) *models.UserModel {
	v, ok := c.Get(ContextKeyUser)
	if !ok {
		return nil
	}
	user, _ := v.(*models.UserModel)
	return user
}

// RequireUser blocks anonymous requests.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			response.Unauthorized(c, "")
			return
		}
		c.Next()
	}
}

// RequireAdmin blocks requests from users without the admin role.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			response.Unauthorized(c, "")
			return
		}
		if !user.HasRole(models.RoleAdmin) {
			response.Forbidden(c, "")
			return
		}
		c.Next()
	}
}

// NormalizeToken trims spaces and strips an optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
