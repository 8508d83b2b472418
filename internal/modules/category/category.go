package category

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tienda/core/internal/middleware"
	"github.com/tienda/core/internal/models"
	"github.com/tienda/core/internal/pkg/response"
)

var (
	ErrNotFound  = errors.New("category not found")
	ErrNameTaken = errors.New("category name already exists")
)

type CreateCategoryDTO struct {
	Name        string `json:"name" binding:"required,min=2,max=100"`
	Description string `json:"description"`
}

type UpdateCategoryDTO struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type categoryResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func toResponse(cat *models.CategoryModel) categoryResponse {
	return categoryResponse{
		ID: cat.ID, Name: cat.Name,
		Description: cat.Description, CreatedAt: cat.CreatedAt,
	}
}

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

func (s *Service) List() ([]models.CategoryModel, error) {
	var cats []models.CategoryModel
	err := s.db.Order("name ASC").Find(&cats).Error
	return cats, err
}

func (s *Service) GetByID(id string) (*models.CategoryModel, error) {
	var cat models.CategoryModel
	err := s.db.First(&cat, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

func (s *Service) Create(dto *CreateCategoryDTO) (*models.CategoryModel, error) {
	var count int64
	if err := s.db.Model(&models.CategoryModel{}).Where("name = ?", dto.Name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrNameTaken
	}
	cat := models.CategoryModel{Name: dto.Name, Description: dto.Description}
	return &cat, s.db.Create(&cat).Error
}

func (s *Service) Update(id string, dto *UpdateCategoryDTO) (*models.CategoryModel, error) {
	cat, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if dto.Name != nil && *dto.Name != cat.Name {
		var count int64
		if err := s.db.Model(&models.CategoryModel{}).Where("name = ?", *dto.Name).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, ErrNameTaken
		}
		updates["name"] = *dto.Name
	}
	if dto.Description != nil {
		updates["description"] = *dto.Description
	}
	if len(updates) == 0 {
		return cat, nil
	}
	return cat, s.db.Model(cat).Updates(updates).Error
}

// Delete soft-deletes the category. Products keep their category_id and
// simply resolve to no category afterwards.
func (s *Service) Delete(id string) error {
	cat, err := s.GetByID(id)
	if err != nil {
		return err
	}
	return s.db.Delete(cat).Error
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/categories")
	g.GET("", h.list)
	g.GET("/:id", h.get)

	a := g.Group("", middleware.RequireAdmin())
	a.POST("", h.create)
	a.PUT("/:id", h.update)
	a.DELETE("/:id", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	cats, err := h.svc.List()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	out := make([]categoryResponse, len(cats))
	for i, cat := range cats {
		out[i] = toResponse(&cat)
	}
	response.OK(c, out)
}

func (h *Handler) get(c *gin.Context) {
	cat, err := h.svc.GetByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, toResponse(cat))
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateCategoryDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	cat, err := h.svc.Create(&dto)
	if err != nil {
		if errors.Is(err, ErrNameTaken) {
			response.Conflict(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Created(c, toResponse(cat))
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdateCategoryDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	cat, err := h.svc.Update(c.Param("id"), &dto)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, err.Error())
		case errors.Is(err, ErrNameTaken):
			response.Conflict(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.OK(c, toResponse(cat))
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
