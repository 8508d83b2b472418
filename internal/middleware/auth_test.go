package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tienda/core/internal/database"
	"github.com/tienda/core/internal/models"
	jwtpkg "github.com/tienda/core/internal/pkg/jwt"
	"github.com/tienda/core/internal/pkg/security"
	"github.com/tienda/core/internal/pkg/session"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, admin bool) *models.UserModel {
	t.Helper()
	digest, err := security.HashPassword("Sup3r-secret!")
	require.NoError(t, err)
	now := time.Now()
	user := &models.UserModel{
		Username:   "carlos",
		Email:      "carlos@example.com",
		Password:   digest,
		IsActive:   true,
		VerifiedAt: &now,
	}
	require.NoError(t, db.Create(user).Error)

	roleName := models.RoleClient
	if admin {
		roleName = models.RoleAdmin
	}
	var role models.RoleModel
	require.NoError(t, db.Where("name = ?", roleName).First(&role).Error)
	require.NoError(t, db.Model(user).Association("Roles").Append(&role))
	user.Roles = []models.RoleModel{role}
	return user
}

func testRouter(db *gorm.DB, codec *jwtpkg.Codec) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(db, codec))
	r.GET("/open", func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusOK, gin.H{"user": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user.Username})
	})
	r.GET("/private", RequireUser(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/admin", RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func issueAccessToken(t *testing.T, db *gorm.DB, codec *jwtpkg.Codec, user *models.UserModel) (string, string) {
	t.Helper()
	pair, err := session.Issue(db, codec, user, 30*time.Minute, 24*time.Hour)
	require.NoError(t, err)
	return pair.AccessToken, pair.RefreshToken
}

func perform(r *gin.Engine, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticateAnonymousPassThrough(t *testing.T) {
	db := testDB(t)
	codec, err := jwtpkg.NewCodec("test-secret", "HS256")
	require.NoError(t, err)
	r := testRouter(db, codec)

	w := perform(r, "/open", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "null")
}

func TestAuthenticateBadToken(t *testing.T) {
	db := testDB(t)
	codec, err := jwtpkg.NewCodec("test-secret", "HS256")
	require.NoError(t, err)
	r := testRouter(db, codec)

	w := perform(r, "/open", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticateValidToken(t *testing.T) {
	db := testDB(t)
	codec, err := jwtpkg.NewCodec("test-secret", "HS256")
	require.NoError(t, err)
	user := seedUser(t, db, false)
	r := testRouter(db, codec)

	access, _ := issueAccessToken(t, db, codec, user)
	w := perform(r, "/open", "Bearer "+access)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "carlos")
}

func TestAuthenticateRejectsRefreshToken(t *testing.T) {
	db := testDB(t)
	codec, err := jwtpkg.NewCodec("test-secret", "HS256")
	require.NoError(t, err)
	user := seedUser(t, db, false)
	r := testRouter(db, codec)

	_, refresh := issueAccessToken(t, db, codec, user)
	w := perform(r, "/open", "Bearer "+refresh)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticateDisabledUser(t *testing.T) {
	db := testDB(t)
	codec, err := jwtpkg.NewCodec("test-secret", "HS256")
	require.NoError(t, err)
	user := seedUser(t, db, false)
	r := testRouter(db, codec)

	access, _ := issueAccessToken(t, db, codec, user)
	require.NoError(t, db.Model(user).Update("is_active", false).Error)

	w := perform(r, "/open", "Bearer "+access)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireUser(t *testing.T) {
	db := testDB(t)
	codec, err := jwtpkg.NewCodec("test-secret", "HS256")
	require.NoError(t, err)
	user := seedUser(t, db, false)
	r := testRouter(db, codec)

	w := perform(r, "/private", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	access, _ := issueAccessToken(t, db, codec, user)
	w = perform(r, "/private", "Bearer "+access)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	db := testDB(t)
	codec, err := jwtpkg.NewCodec("test-secret", "HS256")
	require.NoError(t, err)
	r := testRouter(db, codec)

	client := seedUser(t, db, false)
	access, _ := issueAccessToken(t, db, codec, client)
	w := perform(r, "/admin", "Bearer "+access)
	assert.Equal(t, http.StatusForbidden, w.Code)

	adminUser := &models.UserModel{
		Username: "admin", Email: "admin@example.com",
		Password: client.Password, IsActive: true, VerifiedAt: client.VerifiedAt,
	}
	require.NoError(t, db.Create(adminUser).Error)
	var role models.RoleModel
	require.NoError(t, db.Where("name = ?", models.RoleAdmin).First(&role).Error)
	require.NoError(t, db.Model(adminUser).Association("Roles").Append(&role))

	adminAccess, _ := issueAccessToken(t, db, codec, adminUser)
	w = perform(r, "/admin", "Bearer "+adminAccess)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, "abc", NormalizeToken("abc"))
	assert.Equal(t, "abc", NormalizeToken("Bearer abc"))
	assert.Equal(t, "abc", NormalizeToken("bearer abc"))
	assert.Equal(t, "abc", NormalizeToken("  Bearer   abc  "))
	assert.Equal(t, "", NormalizeToken("   "))
}
