package user

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tienda/core/internal/config"
	"github.com/tienda/core/internal/middleware"
	"github.com/tienda/core/internal/models"
	"github.com/tienda/core/internal/pkg/mail"
	"github.com/tienda/core/internal/pkg/pagination"
	"github.com/tienda/core/internal/pkg/response"
	"github.com/tienda/core/internal/pkg/security"
	"github.com/tienda/core/internal/pkg/session"
	"github.com/tienda/core/internal/pkg/taskqueue"
)

var (
	ErrEmailTaken   = errors.New("email is already registered")
	ErrWeakPassword = errors.New("password does not meet strength requirements")
	// ErrInvalidToken covers unknown email, wrong token and repeated
	// verification alike.
	ErrInvalidToken = errors.New("invalid or expired verification token")
	ErrNotFound     = errors.New("user not found")
)

type RegisterDTO struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type VerifyDTO struct {
	Email string `json:"email" binding:"required,email"`
	Token string `json:"token" binding:"required"`
}

type UpdateUsernameDTO struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
}

type userResponse struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	IsActive   bool       `json:"is_active"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	Roles      []string   `json:"roles"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toResponse(u *models.UserModel) userResponse {
	roles := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = r.Name
	}
	return userResponse{
		ID: u.ID, Username: u.Username, Email: u.Email,
		IsActive: u.IsActive, VerifiedAt: u.VerifiedAt,
		Roles: roles, CreatedAt: u.CreatedAt,
	}
}

type Service struct {
	db     *gorm.DB
	cfg    *config.AppConfig
	queue  *taskqueue.Queue
	mailer *mail.Sender
}

func NewService(db *gorm.DB, cfg *config.AppConfig, queue *taskqueue.Queue, mailer *mail.Sender) *Service {
	return &Service{db: db, cfg: cfg, queue: queue, mailer: mailer}
}

// Register creates an inactive account and emails a verification link.
func (s *Service) Register(dto *RegisterDTO) (*models.UserModel, error) {
	var count int64
	if err := s.db.Model(&models.UserModel{}).Where("email = ?", dto.Email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}
	if !security.IsPasswordStrong(dto.Password) {
		return nil, ErrWeakPassword
	}

	digest, err := security.HashPassword(dto.Password)
	if err != nil {
		return nil, err
	}

	user := models.UserModel{
		Username: dto.Username,
		Email:    dto.Email,
		Password: digest,
		IsActive: false,
	}
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		role := models.RoleModel{Name: models.RoleClient}
		if err := tx.Where("name = ?", models.RoleClient).FirstOrCreate(&role).Error; err != nil {
			return err
		}
		return tx.Model(&user).Association("Roles").Append(&role)
	}); err != nil {
		return nil, err
	}

	token, err := security.ProofToken(security.PurposeVerifyAccount, user.Password, user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.sendMail("account-verification-email",
		mail.NewAccountVerificationMessage(s.cfg.AppName, s.cfg.FrontendHost, user.Username, user.Email, token))

	return &user, nil
}

// Verify activates the account named by a valid proof token. Activation
// bumps updated_at, which retires the token after its first use.
func (s *Service) Verify(dto *VerifyDTO) error {
	var user models.UserModel
	err := s.db.First(&user, "email = ?", dto.Email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}
	if !security.VerifyProofToken(security.PurposeVerifyAccount, user.Password, user.UpdatedAt, dto.Token) {
		return ErrInvalidToken
	}

	now := time.Now()
	updates := map[string]interface{}{
		"is_active":   true,
		"verified_at": now,
		"updated_at":  now,
	}
	if err := s.db.Model(&user).Updates(updates).Error; err != nil {
		return err
	}

	s.sendMail("welcome-email",
		mail.NewWelcomeMessage(s.cfg.AppName, s.cfg.FrontendHost, user.Username, user.Email))
	return nil
}

func (s *Service) GetByID(id string) (*models.UserModel, error) {
	var user models.UserModel
	err := s.db.Preload("Roles").Preload("Profile").First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) List(q pagination.Query) ([]models.UserModel, response.Pagination, error) {
	tx := s.db.Model(&models.UserModel{}).Preload("Roles").Order("created_at DESC")
	var users []models.UserModel
	pag, err := pagination.Paginate(tx, q, &users)
	return users, pag, err
}

func (s *Service) UpdateUsername(id, username string) (*models.UserModel, error) {
	user, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(user).Update("username", username).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Delete soft-deletes the account together with its profile and revokes
// every open session.
func (s *Service) Delete(id string) error {
	user, err := s.GetByID(id)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.UserProfileModel{}, "user_id = ?", user.ID).Error; err != nil {
			return err
		}
		if err := tx.Delete(user).Error; err != nil {
			return err
		}
		return session.RevokeAll(tx, user.ID)
	})
}

func (s *Service) sendMail(name string, msg mail.Message) {
	if s.mailer == nil {
		return
	}
	if s.queue == nil {
		_ = s.mailer.Send(msg)
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
	g := rg.Group("/users")
	g.POST("", limiter, h.register)
	g.POST("/verify", limiter, h.verify)

	me := g.Group("/me", middleware.RequireUser())
	me.GET("", h.me)
	me.PUT("", h.updateUsername)
	me.DELETE("", h.deleteMe)

	admin := rg.Group("/admin/users", middleware.RequireAdmin())
	admin.GET("", h.list)
	admin.GET("/:id", h.get)
	admin.DELETE("/:id", h.delete)
}

func (h *Handler) register(c *gin.Context) {
	var dto RegisterDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	user, err := h.svc.Register(&dto)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			response.Conflict(c, err.Error())
		case errors.Is(err, ErrWeakPassword):
			response.BadRequest(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.Created(c, toResponse(user))
}

func (h *Handler) verify(c *gin.Context) {
	var dto VerifyDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.svc.Verify(&dto); err != nil {
		if errors.Is(err, ErrInvalidToken) {
			response.BadRequest(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Message(c, "account verified")
}

func (h *Handler) me(c *gin.Context) {
	current := middleware.CurrentUser(c)
	user, err := h.svc.GetByID(current.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, toResponse(user))
}

func (h *Handler) updateUsername(c *gin.Context) {
	var dto UpdateUsernameDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	current := middleware.CurrentUser(c)
	user, err := h.svc.UpdateUsername(current.ID, dto.Username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, toResponse(user))
}

func (h *Handler) deleteMe(c *gin.Context) {
	current := middleware.CurrentUser(c)
	if err := h.svc.Delete(current.ID); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	users, pag, err := h.svc.List(q)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	out := make([]userResponse, len(users))
	for i, u := range users {
		out[i] = toResponse(&u)
	}
	response.Paged(c, out, pag)
}

func (h *Handler) get(c *gin.Context) {
	user, err := h.svc.GetByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, toResponse(user))
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Param("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}
