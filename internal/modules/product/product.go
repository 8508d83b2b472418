package product

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tienda/core/internal/middleware"
	"github.com/tienda/core/internal/models"
	"github.com/tienda/core/internal/pkg/pagination"
	"github.com/tienda/core/internal/pkg/response"
)

var (
	ErrNotFound         = errors.New("product not found")
	ErrNameTaken        = errors.New("product name already exists")
	ErrCategoryNotFound = errors.New("category not found")
)

type CreateProductDTO struct {
	Name        string  `json:"name"        binding:"required,min=2,max=150"`
	Description string  `json:"description"`
	Price       float64 `json:"price"       binding:"required,gt=0"`
	Stock       int     `json:"stock"       binding:"gte=0"`
	CategoryID  *string `json:"category_id"`
}

type UpdateProductDTO struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Stock       *int     `json:"stock"`
	CategoryID  *string  `json:"category_id"`
}

type categoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type productResponse struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Price       float64      `json:"price"`
	Stock       int          `json:"stock"`
	Category    *categoryRef `json:"category,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

func toResponse(p *models.ProductModel) productResponse {
	out := productResponse{
		ID: p.ID, Name: p.Name, Description: p.Description,
		Price: p.Price, Stock: p.Stock, CreatedAt: p.CreatedAt,
	}
	if p.Category != nil {
		out.Category = &categoryRef{ID: p.Category.ID, Name: p.Category.Name}
	}
	return out
}

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

func (s *Service) List(q pagination.Query) ([]models.ProductModel, response.Pagination, error) {
	tx := s.db.Model(&models.ProductModel{}).Preload("Category").Order("created_at DESC")
	var items []models.ProductModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

func (s *Service) ListByCategory(categoryID string, q pagination.Query) ([]models.ProductModel, response.Pagination, error) {
	tx := s.db.Model(&models.ProductModel{}).
		Preload("Category").
		Where("category_id = ?", categoryID).
		Order("created_at DESC")
	var items []models.ProductModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

func (s *Service) GetByID(id string) (*models.ProductModel, error) {
	var p models.ProductModel
	err := s.db.Preload("Category").First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) Create(dto *CreateProductDTO) (*models.ProductModel, error) {
	var count int64
	if err := s.db.Model(&models.ProductModel{}).Where("name = ?", dto.Name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrNameTaken
	}
	if dto.CategoryID != nil {
		if err := s.categoryExists(*dto.CategoryID); err != nil {
			return nil, err
		}
	}

	p := models.ProductModel{
		Name:        dto.Name,
		Description: dto.Description,
		Price:       dto.Price,
		Stock:       dto.Stock,
		CategoryID:  dto.CategoryID,
	}
	if err := s.db.Create(&p).Error; err != nil {
		return nil, err
	}
	return s.GetByID(p.ID)
}

func (s *Service) Update(id string, dto *UpdateProductDTO) (*models.ProductModel, error) {
	p, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if dto.Name != nil && *dto.Name != p.Name {
		var count int64
		if err := s.db.Model(&models.ProductModel{}).Where("name = ?", *dto.Name).Count(&count).Error; err != nil {
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
	if dto.Price != nil {
		updates["price"] = *dto.Price
	}
	if dto.Stock != nil {
		updates["stock"] = *dto.Stock
	}
	if dto.CategoryID != nil {
		if *dto.CategoryID == "" {
			updates["category_id"] = nil
		} else {
			if err := s.categoryExists(*dto.CategoryID); err != nil {
				return nil, err
			}
			updates["category_id"] = *dto.CategoryID
		}
	}

	if len(updates) > 0 {
		if err := s.db.Model(p).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetByID(id)
}

func (s *Service) Delete(id string) error {
	p, err := s.GetByID(id)
	if err != nil {
		return err
	}
	return s.db.Delete(p).Error
}

func (s *Service) categoryExists(id string) error {
	var count int64
	if err := s.db.Model(&models.CategoryModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/products")
	g.GET("", h.list)
	g.GET("/:id", h.get)

	a := g.Group("", middleware.RequireAdmin())
	a.POST("", h.create)
	a.PUT("/:id", h.update)
	a.DELETE("/:id", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)

	var (
		items []models.ProductModel
		pag   response.Pagination
		err   error
	)
	if categoryID := c.Query("category_id"); categoryID != "" {
		items, pag, err = h.svc.ListByCategory(categoryID, q)
	} else {
		items, pag, err = h.svc.List(q)
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	out := make([]productResponse, len(items))
	for i, p := range items {
		out[i] = toResponse(&p)
	}
	response.Paged(c, out, pag)
}

func (h *Handler) get(c *gin.Context) {
	p, err := h.svc.GetByID(c.Param("id"))
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

func (h *Handler) create(c *gin.Context) {
	var dto CreateProductDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.svc.Create(&dto)
	if err != nil {
		switch {
		case errors.Is(err, ErrNameTaken):
			response.Conflict(c, err.Error())
		case errors.Is(err, ErrCategoryNotFound):
			response.BadRequest(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.Created(c, toResponse(p))
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdateProductDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.svc.Update(c.Param("id"), &dto)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, err.Error())
		case errors.Is(err, ErrNameTaken):
			response.Conflict(c, err.Error())
		case errors.Is(err, ErrCategoryNotFound):
			response.BadRequest(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.OK(c, toResponse(p))
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
