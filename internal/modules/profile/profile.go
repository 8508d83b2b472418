package profile

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tienda/core/internal/middleware"
	"github.com/tienda/core/internal/models"
	"github.com/tienda/core/internal/pkg/response"
	"github.com/tienda/core/internal/pkg/security"
)

var (
	ErrNotFound      = errors.New("profile not found")
	ErrAlreadyExists = errors.New("profile already exists for this user")
	ErrInvalidDNI    = errors.New("dni must be 8 digits followed by an uppercase letter")
	ErrDNITaken      = errors.New("dni is already registered")
)

type CreateProfileDTO struct {
	FirstName string     `json:"first_name" binding:"required"`
	LastName  string     `json:"last_name"  binding:"required"`
	DNI       string     `json:"dni"        binding:"required"`
	Phone     string     `json:"phone"`
	Address   string     `json:"address"    binding:"required"`
	BirthDate *time.Time `json:"birth_date"`
	City      string     `json:"city"`
	ZipCode   string     `json:"zip_code"`
}

type UpdateProfileDTO struct {
	Address string `json:"address" binding:"required"`
	City    string `json:"city"`
	ZipCode string `json:"zip_code"`
}

type profileResponse struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	DNI       string     `json:"dni"`
	Phone     string     `json:"phone"`
	Address   string     `json:"address"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	City      string     `json:"city"`
	ZipCode   string     `json:"zip_code"`
	CreatedAt time.Time  `json:"created_at"`
}

func toResponse(p *models.UserProfileModel) profileResponse {
	return profileResponse{
		ID: p.ID, UserID: p.UserID,
		FirstName: p.FirstName, LastName: p.LastName,
		DNI: p.DNI, Phone: p.Phone, Address: p.Address,
		BirthDate: p.BirthDate, City: p.City, ZipCode: p.ZipCode,
		CreatedAt: p.CreatedAt,
	}
}

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// Create attaches a profile to a user. Each user carries at most one
// profile and each DNI belongs to at most one profile.
func (s *Service) Create(userID string, dto *CreateProfileDTO) (*models.UserProfileModel, error) {
	if !security.IsValidDNI(dto.DNI) {
		return nil, ErrInvalidDNI
	}

	var count int64
	if err := s.db.Model(&models.UserProfileModel{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrAlreadyExists
	}
	if err := s.db.Model(&models.UserProfileModel{}).Where("dni = ?", dto.DNI).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrDNITaken
	}

	p := models.UserProfileModel{
		UserID:    userID,
		FirstName: dto.FirstName,
		LastName:  dto.LastName,
		DNI:       dto.DNI,
		Phone:     dto.Phone,
		Address:   dto.Address,
		BirthDate: dto.BirthDate,
		City:      dto.City,
		ZipCode:   dto.ZipCode,
	}
	return &p, s.db.Create(&p).Error
}

func (s *Service) GetByUserID(userID string) (*models.UserProfileModel, error) {
	var p models.UserProfileModel
	err := s.db.First(&p, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Update only touches the mutable address fields. Identity fields (name,
// DNI, birth date) are fixed once the profile exists.
func (s *Service) Update(userID string, dto *UpdateProfileDTO) (*models.UserProfileModel, error) {
	p, err := s.GetByUserID(userID)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"address":  dto.Address,
		"city":     dto.City,
		"zip_code": dto.ZipCode,
	}
	if err := s.db.Model(p).Updates(updates).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Delete(userID string) error {
	p, err := s.GetByUserID(userID)
	if err != nil {
		return err
	}
	return s.db.Delete(p).Error
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/profile", middleware.RequireUser())
	g.POST("", h.create)
	g.GET("", h.get)
	g.PUT("", h.update)
	g.DELETE("", h.delete)

	admin := rg.Group("/admin/profiles", middleware.RequireAdmin())
	admin.GET("/:userId", h.adminGet)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateProfileDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	user := middleware.CurrentUser(c)
	p, err := h.svc.Create(user.ID, &dto)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidDNI):
			response.BadRequest(c, err.Error())
		case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrDNITaken):
			response.Conflict(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.Created(c, toResponse(p))
}

func (h *Handler) get(c *gin.Context) {
	user := middleware.CurrentUser(c)
	p, err := h.svc.GetByUserID(user.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, toResponse(p))
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdateProfileDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	user := middleware.CurrentUser(c)
	p, err := h.svc.Update(user.ID, &dto)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, toResponse(p))
}

func (h *Handler) delete(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if err := h.svc.Delete(user.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) adminGet(c *gin.Context) {
	p, err := h.svc.GetByUserID(c.Param("userId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, toResponse(p))
}
