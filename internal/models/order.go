package models

// Order statuses. Only pending orders may be cancelled/deleted.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// OrderModel is a purchase placed by a user.
type OrderModel struct {
	Base
	UserID     string           `json:"user_id"     gorm:"type:char(36);index;not null"`
	TotalPrice float64          `json:"total_price" gorm:"type:decimal(10,2);not null"`
	Status     string           `json:"status"      gorm:"size:50;not null;default:'pending'"`
	Items      []OrderItemModel `json:"items"       gorm:"foreignKey:OrderID"`
}

func (OrderModel) TableName() string { return "orders" }

// OrderItemModel is a single product line within an order.
type OrderItemModel struct {
	Base
	OrderID   string        `json:"-"          gorm:"type:char(36);index;not null"`
	ProductID string        `json:"product_id" gorm:"type:char(36);index;not null"`
	Quantity  int           `json:"quantity"   gorm:"not null"`
	Subtotal  float64       `json:"subtotal"   gorm:"type:decimal(10,2);not null"`
	Product   *ProductModel `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

func (OrderItemModel) TableName() string { return "order_items" }
