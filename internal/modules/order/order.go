package order

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
	ErrNotFound        = errors.New("order not found")
	ErrEmptyOrder      = errors.New("order must contain at least one item")
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidStatus   = errors.New("invalid order status")
	ErrNotPending      = errors.New("only pending orders can be deleted")
	ErrInsufficientQty = errors.New("quantity must be positive")
)

var validStatuses = map[string]bool{
	models.OrderStatusPending:   true,
	models.OrderStatusPaid:      true,
	models.OrderStatusShipped:   true,
	models.OrderStatusDelivered: true,
	models.OrderStatusCancelled: true,
}

type OrderItemDTO struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"   binding:"required"`
}

type CreateOrderDTO struct {
	Items []OrderItemDTO `json:"items" binding:"required"`
}

type UpdateOrderDTO struct {
	Status *string        `json:"status"`
	Items  []OrderItemDTO `json:"items"`
}

type orderItemResponse struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Subtotal    float64 `json:"subtotal"`
}

type orderResponse struct {
	ID         string              `json:"id"`
	UserID     string              `json:"user_id"`
	Status     string              `json:"status"`
	TotalPrice float64             `json:"total_price"`
	Items      []orderItemResponse `json:"items"`
	CreatedAt  time.Time           `json:"created_at"`
}

func toResponse(o *models.OrderModel) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		name := ""
		if it.Product != nil {
			name = it.Product.Name
		}
		items[i] = orderItemResponse{
			ProductID:   it.ProductID,
			ProductName: name,
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal,
		}
	}
	return orderResponse{
		ID: o.ID, UserID: o.UserID, Status: o.Status,
		TotalPrice: o.TotalPrice, Items: items, CreatedAt: o.CreatedAt,
	}
}

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// Create builds a pending order from an item list inside one transaction.
// Each line subtotal is price at order time multiplied by quantity.
func (s *Service) Create(userID string, dto *CreateOrderDTO) (*models.OrderModel, error) {
	if len(dto.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	var order models.OrderModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		items, total, err := buildItems(tx, dto.Items)
		if err != nil {
			return err
		}
		order = models.OrderModel{
			UserID:     userID,
			Status:     models.OrderStatusPending,
			TotalPrice: total,
			Items:      items,
		}
		return tx.Create(&order).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(order.ID)
}

func buildItems(tx *gorm.DB, dtos []OrderItemDTO) ([]models.OrderItemModel, float64, error) {
	items := make([]models.OrderItemModel, 0, len(dtos))
	var total float64
	for _, it := range dtos {
		if it.Quantity <= 0 {
			return nil, 0, ErrInsufficientQty
		}
		var product models.ProductModel
		err := tx.First(&product, "id = ?", it.ProductID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrProductNotFound
		}
		if err != nil {
			return nil, 0, err
		}
		subtotal := product.Price * float64(it.Quantity)
		total += subtotal
		items = append(items, models.OrderItemModel{
			ProductID: product.ID,
			Quantity:  it.Quantity,
			Subtotal:  subtotal,
		})
	}
	return items, total, nil
}

func (s *Service) GetByID(id string) (*models.OrderModel, error) {
	var o models.OrderModel
	err := s.db.Preload("Items").Preload("Items.Product").First(&o, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Service) ListByUser(userID string, q pagination.Query) ([]models.OrderModel, response.Pagination, error) {
	tx := s.db.Model(&models.OrderModel{}).
		Preload("Items").Preload("Items.Product").
		Where("user_id = ?", userID).
		Order("created_at DESC")
	var orders []models.OrderModel
	pag, err := pagination.Paginate(tx, q, &orders)
	return orders, pag, err
}

func (s *Service) ListAll(q pagination.Query) ([]models.OrderModel, response.Pagination, error) {
	tx := s.db.Model(&models.OrderModel{}).
		Preload("Items").Preload("Items.Product").
		Order("created_at DESC")
	var orders []models.OrderModel
	pag, err := pagination.Paginate(tx, q, &orders)
	return orders, pag, err
}

// Update changes the status and, when items are given, replaces the item
// list and recomputes the total.
func (s *Service) Update(id string, dto *UpdateOrderDTO) (*models.OrderModel, error) {
	o, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if dto.Status != nil && !validStatuses[*dto.Status] {
		return nil, ErrInvalidStatus
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{}
		if dto.Status != nil {
			updates["status"] = *dto.Status
		}
		if len(dto.Items) > 0 {
			items, total, err := buildItems(tx, dto.Items)
			if err != nil {
				return err
			}
			if err := tx.Where("order_id = ?", o.ID).Delete(&models.OrderItemModel{}).Error; err != nil {
				return err
			}
			for i := range items {
				items[i].OrderID = o.ID
			}
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
			updates["total_price"] = total
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&models.OrderModel{}).Where("id = ?", o.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

// Delete soft-deletes an order. Only pending orders may go.
func (s *Service) Delete(id string) error {
	o, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if o.Status != models.OrderStatusPending {
		return ErrNotPending
	}
	return s.db.Delete(o).Error
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/orders", middleware.RequireUser())
	g.POST("", h.create)
	g.GET("", h.listMine)
	g.GET("/:id", h.get)
	g.PATCH("/:id/delete", h.deleteMine)

	admin := rg.Group("/admin/orders", middleware.RequireAdmin())
	admin.GET("", h.listAll)
	admin.PUT("/:id", h.update)
	admin.DELETE("/:id", h.delete)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateOrderDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	user := middleware.CurrentUser(c)
	o, err := h.svc.Create(user.ID, &dto)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyOrder), errors.Is(err, ErrInsufficientQty):
			response.BadRequest(c, err.Error())
		case errors.Is(err, ErrProductNotFound):
			response.BadRequest(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.Created(c, toResponse(o))
}

func (h *Handler) listMine(c *gin.Context) {
	user := middleware.CurrentUser(c)
	q := pagination.FromContext(c)
	orders, pag, err := h.svc.ListByUser(user.ID, q)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	out := make([]orderResponse, len(orders))
	for i, o := range orders {
		out[i] = toResponse(&o)
	}
	response.Paged(c, out, pag)
}

// get returns an order to its owner; admins can read any order.
func (h *Handler) get(c *gin.Context) {
	o, err := h.svc.GetByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	user := middleware.CurrentUser(c)
	if o.UserID != user.ID && !user.HasRole(models.RoleAdmin) {
		response.NotFound(c, ErrNotFound.Error())
		return
	}
	response.OK(c, toResponse(o))
}

func (h *Handler) deleteMine(c *gin.Context) {
	o, err := h.svc.GetByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	user := middleware.CurrentUser(c)
	if o.UserID != user.ID && !user.HasRole(models.RoleAdmin) {
		response.NotFound(c, ErrNotFound.Error())
		return
	}
	if err := h.svc.Delete(o.ID); err != nil {
		if errors.Is(err, ErrNotPending) {
			response.BadRequest(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) listAll(c *gin.Context) {
	q := pagination.FromContext(c)
	orders, pag, err := h.svc.ListAll(q)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	out := make([]orderResponse, len(orders))
	for i, o := range orders {
		out[i] = toResponse(&o)
	}
	response.Paged(c, out, pag)
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdateOrderDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	o, err := h.svc.Update(c.Param("id"), &dto)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, err.Error())
		case errors.Is(err, ErrInvalidStatus),
			errors.Is(err, ErrProductNotFound),
			errors.Is(err, ErrInsufficientQty):
			response.BadRequest(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.OK(c, toResponse(o))
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Param("id")); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, err.Error())
		case errors.Is(err, ErrNotPending):
			response.BadRequest(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.NoContent(c)
}
