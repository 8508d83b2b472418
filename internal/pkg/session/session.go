package session

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/tienda/core/internal/models"
	jwtpkg "github.com/tienda/core/internal/pkg/jwt"
	"github.com/tienda/core/internal/pkg/security"
	"gorm.io/gorm"
)

// ErrNotFound means no live token row matched a consume or revoke attempt:
// the refresh token was already spent, expired, or never issued.
var ErrNotFound = errors.New("active session token not found")

// Claim keys shared by issuance and refresh.
const (
	ClaimAccessKey  = "a"
	ClaimTokenRowID = "r"
	ClaimUsername   = "n"
	ClaimRefreshKey = "t"
)

// TokenPair is the login/refresh response payload.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Issue persists a fresh UserToken row for the user and signs the matching
// access/refresh JWT pair. The row and the refresh token share refreshTTL so
// they expire together.
func Issue(db *gorm.DB, codec *jwtpkg.Codec, user *models.UserModel, accessTTL, refreshTTL time.Duration) (*TokenPair, error) {
	row := &models.UserTokenModel{
		UserID:     user.ID,
		AccessKey:  security.RandomKey(security.AccessKeyBytes),
		RefreshKey: security.RandomKey(security.RefreshKeyBytes),
		ExpiresAt:  time.Now().Add(refreshTTL),
	}
	if err := db.Create(row).Error; err != nil {
		return nil, err
	}

	accessToken, err := codec.Encode(jwtlib.MapClaims{
		"sub":           user.ID,
		ClaimAccessKey:  row.AccessKey,
		ClaimTokenRowID: security.EncodeID(row.ID),
		ClaimUsername:   security.EncodeID(user.Username),
	}, accessTTL)
	if err != nil {
		_ = db.Delete(row).Error
		return nil, err
	}

	refreshToken, err := codec.Encode(jwtlib.MapClaims{
		"sub":           security.EncodeID(user.ID),
		ClaimRefreshKey: row.RefreshKey,
		ClaimAccessKey:  row.AccessKey,
	}, refreshTTL)
	if err != nil {
		_ = db.Delete(row).Error
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(accessTTL.Seconds()),
		TokenType:    "Bearer",
	}, nil
}

// Consume spends the token row matching the refresh/access key pair for the
// user in a single conditional update. Exactly one concurrent caller can win:
// the revoked_at IS NULL guard makes replay and double-spend fail regardless
// of clock resolution. The row is kept, force-expired, for audit.
func Consume(db *gorm.DB, refreshKey, accessKey, userID string) error {
	now := time.Now()
	res := db.Model(&models.UserTokenModel{}).
		Where("refresh_key = ? AND access_key = ? AND user_id = ? AND revoked_at IS NULL AND expires_at > ?",
			refreshKey, accessKey, userID, now).
		Updates(map[string]interface{}{"revoked_at": now, "expires_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeAll force-expires every live token row of a user (password reset,
// account deletion).
func RevokeAll(db *gorm.DB, userID string) error {
	now := time.Now()
	return db.Model(&models.UserTokenModel{}).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, now).
		Updates(map[string]interface{}{"revoked_at": now, "expires_at": now}).Error
}
