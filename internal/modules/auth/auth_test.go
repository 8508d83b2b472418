package auth

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tienda/core/internal/config"
	"github.com/tienda/core/internal/database"
	"github.com/tienda/core/internal/models"
	jwtpkg "github.com/tienda/core/internal/pkg/jwt"
	"github.com/tienda/core/internal/pkg/security"
)

const testPassword = "Sup3r-secret!"

func testService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	cfg := &config.AppConfig{
		AppName:      "tienda",
		FrontendHost: "http://localhost:3000",
		JWT: config.JWTConfig{
			Secret:            "test-secret",
			Algorithm:         "HS256",
			AccessTTLMinutes:  30,
			RefreshTTLMinutes: 24 * 60,
		},
	}
	codec, err := jwtpkg.NewCodec(cfg.JWT.Secret, cfg.JWT.Algorithm)
	require.NoError(t, err)

	return NewService(db, cfg, codec, nil, nil), db
}

func seedUser(t *testing.T, db *gorm.DB, verified, active bool) *models.UserModel {
	t.Helper()
	digest, err := security.HashPassword(testPassword)
	require.NoError(t, err)

	user := &models.UserModel{
		Username: "maria",
		Email:    "maria@example.com",
		Password: digest,
		IsActive: active,
	}
	if verified {
		now := time.Now()
		user.VerifiedAt = &now
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestLogin(t *testing.T) {
	svc, db := testService(t)
	seedUser(t, db, true, true)

	pair, err := svc.Login(&LoginDTO{Username: "maria@example.com", Password: testPassword})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "Bearer", pair.TokenType)
}

func TestLoginUniformCredentialError(t *testing.T) {
	svc, db := testService(t)
	seedUser(t, db, true, true)

	_, unknownErr := svc.Login(&LoginDTO{Username: "nobody@example.com", Password: testPassword})
	_, wrongErr := svc.Login(&LoginDTO{Username: "maria@example.com", Password: "Wr0ng-pass!"})

	assert.ErrorIs(t, unknownErr, ErrInvalidCredentials)
	assert.ErrorIs(t, wrongErr, ErrInvalidCredentials)
	// identical error for both, no account enumeration
	assert.Equal(t, unknownErr, wrongErr)
}

func TestLoginUnverified(t *testing.T) {
	svc, db := testService(t)
	seedUser(t, db, false, false)

	_, err := svc.Login(&LoginDTO{Username: "maria@example.com", Password: testPassword})
	assert.ErrorIs(t, err, ErrAccountNotVerified)
}

func TestLoginDisabled(t *testing.T) {
	svc, db := testService(t)
	seedUser(t, db, true, false)

	_, err := svc.Login(&LoginDTO{Username: "maria@example.com", Password: testPassword})
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestRefreshRotates(t *testing.T) {
	svc, db := testService(t)
	seedUser(t, db, true, true)

	first, err := svc.Login(&LoginDTO{Username: "maria@example.com", Password: testPassword})
	require.NoError(t, err)

	second, err := svc.Refresh(first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)

	// the spent token is dead
	_, err = svc.Refresh(first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// the new one still works
	_, err = svc.Refresh(second.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc, db := testService(t)
	seedUser(t, db, true, true)

	pair, err := svc.Login(&LoginDTO{Username: "maria@example.com", Password: testPassword})
	require.NoError(t, err)

	_, err = svc.Refresh(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshGarbage(t *testing.T) {
	svc, _ := testService(t)

	_, err := svc.Refresh("definitely.not.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequestPasswordResetUnknownEmail(t *testing.T) {
	svc, _ := testService(t)

	err := svc.RequestPasswordReset(&ForgotPasswordDTO{Email: "nobody@example.com"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResetPasswordFlow(t *testing.T) {
	svc, db := testService(t)
	user := seedUser(t, db, true, true)

	// open session that must die with the password
	pair, err := svc.Login(&LoginDTO{Username: user.Email, Password: testPassword})
	require.NoError(t, err)

	var stored models.UserModel
	require.NoError(t, db.First(&stored, "id = ?", user.ID).Error)
	token, err := security.ProofToken(security.PurposeForgotPassword, stored.Password, stored.UpdatedAt)
	require.NoError(t, err)

	const newPassword = "N3w-secret-pass!"
	require.NoError(t, svc.ResetPassword(&ResetPasswordDTO{
		Email: user.Email, Token: token, Password: newPassword,
	}))

	// old password gone, new one works
	_, err = svc.Login(&LoginDTO{Username: user.Email, Password: testPassword})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(&LoginDTO{Username: user.Email, Password: newPassword})
	assert.NoError(t, err)

	// the used token died with the updated_at bump
	err = svc.ResetPassword(&ResetPasswordDTO{Email: user.Email, Token: token, Password: "An0ther-pass!"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	// pre-reset refresh tokens were revoked
	_, err = svc.Refresh(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResetPasswordTamperedToken(t *testing.T) {
	svc, db := testService(t)
	user := seedUser(t, db, true, true)

	var before models.UserModel
	require.NoError(t, db.First(&before, "id = ?", user.ID).Error)

	err := svc.ResetPassword(&ResetPasswordDTO{
		Email: user.Email, Token: "forged-token", Password: "N3w-secret-pass!",
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	var after models.UserModel
	require.NoError(t, db.First(&after, "id = ?", user.ID).Error)
	assert.Equal(t, before.Password, after.Password)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestResetPasswordWeak(t *testing.T) {
	svc, db := testService(t)
	user := seedUser(t, db, true, true)

	var stored models.UserModel
	require.NoError(t, db.First(&stored, "id = ?", user.ID).Error)
	token, err := security.ProofToken(security.PurposeForgotPassword, stored.Password, stored.UpdatedAt)
	require.NoError(t, err)

	err = svc.ResetPassword(&ResetPasswordDTO{Email: user.Email, Token: token, Password: "weak"})
	assert.ErrorIs(t, err, ErrWeakPassword)
}
