package auth

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tienda/core/internal/config"
	"github.com/tienda/core/internal/models"
	jwtpkg "github.com/tienda/core/internal/pkg/jwt"
	"github.com/tienda/core/internal/pkg/mail"
	"github.com/tienda/core/internal/pkg/response"
	"github.com/tienda/core/internal/pkg/security"
	"github.com/tienda/core/internal/pkg/session"
	"github.com/tienda/core/internal/pkg/taskqueue"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password,
	// so responses do not reveal which accounts exist.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountNotVerified = errors.New("account is not verified")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrInvalidToken       = errors.New("invalid or expired token")
	// ErrInvalidRequest covers every failure mode of a password reset except
	// a weak new password, again to avoid account enumeration.
	ErrInvalidRequest = errors.New("invalid reset request")
	ErrWeakPassword   = errors.New("password does not meet strength requirements")
)

// LoginDTO carries the email in the username field, mirroring the
// password-grant form shape storefront clients already send.
type LoginDTO struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type ForgotPasswordDTO struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordDTO struct {
	Email    string `json:"email"    binding:"required,email"`
	Token    string `json:"token"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

type Service struct {
	db     *gorm.DB
	cfg    *config.AppConfig
	codec  *jwtpkg.Codec
	queue  *taskqueue.Queue
	mailer *mail.Sender
}

func NewService(db *gorm.DB, cfg *config.AppConfig, codec *jwtpkg.Codec, queue *taskqueue.Queue, mailer *mail.Sender) *Service {
	return &Service{db: db, cfg: cfg, codec: codec, queue: queue, mailer: mailer}
}

// Login verifies credentials and issues a fresh token pair.
func (s *Service) Login(dto *LoginDTO) (*session.TokenPair, error) {
	var user models.UserModel
	err := s.db.First(&user, "email = ?", dto.Username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !security.VerifyPassword(dto.Password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	if user.VerifiedAt == nil {
		return nil, ErrAccountNotVerified
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	return session.Issue(s.db, s.codec, &user, s.cfg.JWT.AccessTTL(), s.cfg.JWT.RefreshTTL())
}

// Refresh exchanges a valid refresh token for a new pair. The stored token
// row is consumed in the same statement that checks it, so a refresh token
// can be redeemed at most once even under concurrent requests.
func (s *Service) Refresh(refreshToken string) (*session.TokenPair, error) {
	claims, err := s.codec.Decode(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	refreshKey, _ := claims[session.ClaimRefreshKey].(string)
	accessKey, _ := claims[session.ClaimAccessKey].(string)
	if refreshKey == "" || accessKey == "" {
		return nil, ErrInvalidToken
	}
	userID, err := security.DecodeID(claims["sub"].(string))
	if err != nil {
		return nil, ErrInvalidToken
	}

	if err := session.Consume(s.db, refreshKey, accessKey, userID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	var user models.UserModel
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	return session.Issue(s.db, s.codec, &user, s.cfg.JWT.AccessTTL(), s.cfg.JWT.RefreshTTL())
}

// RequestPasswordReset emails a single-use reset link. The proof token is
// bound to the current password digest and updated_at, so it dies the
// moment either changes.
func (s *Service) RequestPasswordReset(dto *ForgotPasswordDTO) error {
	var user models.UserModel
	err := s.db.First(&user, "email = ?", dto.Email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	if user.VerifiedAt == nil {
		return ErrAccountNotVerified
	}
	if !user.IsActive {
		return ErrAccountDisabled
	}

	token, err := security.ProofToken(security.PurposeForgotPassword, user.Password, user.UpdatedAt)
	if err != nil {
		return err
	}

	msg := mail.NewPasswordResetMessage(s.cfg.AppName, s.cfg.FrontendHost, user.Username, user.Email, token)
	s.sendMail("password-reset-email", msg)
	return nil
}

// ResetPassword validates the proof token and replaces the password.
// Bumping updated_at invalidates the token that was just used, and every
// open session is revoked so stolen refresh tokens die with the password.
func (s *Service) ResetPassword(dto *ResetPasswordDTO) error {
	var user models.UserModel
	err := s.db.First(&user, "email = ?", dto.Email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidRequest
	}
	if err != nil {
		return err
	}
	if user.VerifiedAt == nil || !user.IsActive {
		return ErrInvalidRequest
	}
	if !security.VerifyProofToken(security.PurposeForgotPassword, user.Password, user.UpdatedAt, dto.Token) {
		return ErrInvalidRequest
	}
	if !security.IsPasswordStrong(dto.Password) {
		return ErrWeakPassword
	}

	digest, err := security.HashPassword(dto.Password)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{
		"password":   digest,
		"updated_at": time.Now(),
	}
	if err := s.db.Model(&user).Updates(updates).Error; err != nil {
		return err
	}
	return session.RevokeAll(s.db, user.ID)
}

func (s *Service) sendMail(name string, msg mail.Message) {
	if s.mailer == nil {
		return
	}
	if s.queue == nil {
		if err := s.mailer.Send(msg); err != nil {
			zap.L().Warn("send mail", zap.String("task", name), zap.Error(err))
		}
		return
	}
	s.queue.Enqueue(name, func() error {
		return s.mailer.Send(msg)
	})
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, limiter gin.HandlerFunc) {
	g := rg.Group("/auth", limiter)
	g.POST("/login", h.login)
	g.POST("/refresh", h.refresh)
	g.POST("/forgot-password", h.forgotPassword)
	g.PUT("/reset-password", h.resetPassword)
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBind(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	pair, err := h.svc.Login(&dto)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			response.Unauthorized(c, err.Error())
		case errors.Is(err, ErrAccountNotVerified), errors.Is(err, ErrAccountDisabled):
			response.Forbidden(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.OK(c, pair)
}

func (h *Handler) refresh(c *gin.Context) {
	token := c.GetHeader("refresh-token")
	if token == "" {
		response.BadRequest(c, "refresh-token header is required")
		return
	}
	pair, err := h.svc.Refresh(token)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidToken):
			response.Unauthorized(c, err.Error())
		case errors.Is(err, ErrAccountDisabled):
			response.Forbidden(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.OK(c, pair)
}

// forgotPassword always answers 200 with the same body. A refused request
// is logged server-side only.
func (h *Handler) forgotPassword(c *gin.Context) {
	var dto ForgotPasswordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.svc.RequestPasswordReset(&dto); err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials),
			errors.Is(err, ErrAccountNotVerified),
			errors.Is(err, ErrAccountDisabled):
			zap.L().Info("password reset refused", zap.Error(err))
		default:
			response.InternalError(c, err)
			return
		}
	}
	response.Message(c, "if the account exists, a reset email has been sent")
}

func (h *Handler) resetPassword(c *gin.Context) {
	var dto ResetPasswordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.svc.ResetPassword(&dto); err != nil {
		switch {
		case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrWeakPassword):
			response.BadRequest(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.Message(c, "password updated")
}
