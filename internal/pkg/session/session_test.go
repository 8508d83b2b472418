package session

import (
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tienda/core/internal/database"
	"github.com/tienda/core/internal/models"
	jwtpkg "github.com/tienda/core/internal/pkg/jwt"
	"github.com/tienda/core/internal/pkg/security"
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

func testUser(t *testing.T, db *gorm.DB) *models.UserModel {
	t.Helper()
	digest, err := security.HashPassword("Sup3r-secret!")
	require.NoError(t, err)
	now := time.Now()
	user := &models.UserModel{
		Username:   "maria",
		Email:      "maria@example.com",
		Password:   digest,
		IsActive:   true,
		VerifiedAt: &now,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func testCodec(t *testing.T) *jwtpkg.Codec {
	t.Helper()
	codec, err := jwtpkg.NewCodec("test-secret", "HS256")
	require.NoError(t, err)
	return codec
}

func TestIssue(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	codec := testCodec(t)

	pair, err := Issue(db, codec, user, 30*time.Minute, 24*time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.Equal(t, int((30 * time.Minute).Seconds()), pair.ExpiresIn)
	assert.Equal(t, "Bearer", pair.TokenType)

	var row models.UserTokenModel
	require.NoError(t, db.First(&row, "user_id = ?", user.ID).Error)
	assert.Nil(t, row.RevokedAt)
	assert.True(t, row.ExpiresAt.After(time.Now()))

	accessClaims, err := codec.Decode(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, accessClaims["sub"])
	assert.Equal(t, row.AccessKey, accessClaims[ClaimAccessKey])

	refreshClaims, err := codec.Decode(pair.RefreshToken)
	require.NoError(t, err)
	sub, err := security.DecodeID(refreshClaims["sub"].(string))
	require.NoError(t, err)
	assert.Equal(t, user.ID, sub)
	assert.Equal(t, row.RefreshKey, refreshClaims[ClaimRefreshKey])
	assert.Equal(t, row.AccessKey, refreshClaims[ClaimAccessKey])
}

func TestConsumeSingleUse(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	codec := testCodec(t)

	_, err := Issue(db, codec, user, 30*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	var row models.UserTokenModel
	require.NoError(t, db.First(&row, "user_id = ?", user.ID).Error)

	require.NoError(t, Consume(db, row.RefreshKey, row.AccessKey, user.ID))

	// replay of the same token must fail
	assert.ErrorIs(t, Consume(db, row.RefreshKey, row.AccessKey, user.ID), ErrNotFound)

	var after models.UserTokenModel
	require.NoError(t, db.First(&after, "id = ?", row.ID).Error)
	assert.NotNil(t, after.RevokedAt)
	assert.False(t, after.ExpiresAt.After(time.Now()))
}

func TestConsumeRejectsMismatches(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	codec := testCodec(t)

	_, err := Issue(db, codec, user, 30*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	var row models.UserTokenModel
	require.NoError(t, db.First(&row, "user_id = ?", user.ID).Error)

	assert.ErrorIs(t, Consume(db, "wrong", row.AccessKey, user.ID), ErrNotFound)
	assert.ErrorIs(t, Consume(db, row.RefreshKey, "wrong", user.ID), ErrNotFound)
	assert.ErrorIs(t, Consume(db, row.RefreshKey, row.AccessKey, "other-user"), ErrNotFound)

	// the row is still live after failed attempts
	require.NoError(t, Consume(db, row.RefreshKey, row.AccessKey, user.ID))
}

func TestConsumeExpiredRow(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)

	row := &models.UserTokenModel{
		UserID:     user.ID,
		AccessKey:  security.RandomKey(security.AccessKeyBytes),
		RefreshKey: security.RandomKey(security.RefreshKeyBytes),
		ExpiresAt:  time.Now().Add(-time.Minute),
	}
	require.NoError(t, db.Create(row).Error)

	assert.ErrorIs(t, Consume(db, row.RefreshKey, row.AccessKey, user.ID), ErrNotFound)
}

func TestConsumeConcurrentDoubleSpend(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	codec := testCodec(t)

	_, err := Issue(db, codec, user, 30*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	var row models.UserTokenModel
	require.NoError(t, db.First(&row, "user_id = ?", user.ID).Error)

	const attempts = 8
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- Consume(db, row.RefreshKey, row.AccessKey, user.ID)
		}()
	}
	wg.Wait()
	close(results)

	var wins, replays int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case assert.ErrorIs(t, err, ErrNotFound):
			replays++
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent consume may succeed")
	assert.Equal(t, attempts-1, replays)
}

func TestRevokeAll(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	codec := testCodec(t)

	for i := 0; i < 3; i++ {
		_, err := Issue(db, codec, user, 30*time.Minute, 24*time.Hour)
		require.NoError(t, err)
	}

	require.NoError(t, RevokeAll(db, user.ID))

	var live int64
	require.NoError(t, db.Model(&models.UserTokenModel{}).
		Where("user_id = ? AND revoked_at IS NULL", user.ID).
		Count(&live).Error)
	assert.Zero(t, live)
}
