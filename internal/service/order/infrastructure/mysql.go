// internal/service/order/infrastructure/mysql.go
package infrastructure

import (
	"context"
	"errors"
	"time"

	"checkout/internal/service/order/domain"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

// OrderModel 是 orders 表的映射。
type OrderModel struct {
	ID              string `gorm:"primaryKey;size:64"`
	UserID          string `gorm:"size:64;index"`
	PaymentMethod   string `gorm:"size:32"`
	ShippingAddress string `gorm:"type:text"`
	TotalAmount     float64
	Status          string `gorm:"size:32;index"`
	PaymentID       string `gorm:"size:64"`
	FailureReason   string `gorm:"size:512"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Items           []OrderItemModel `gorm:"foreignKey:OrderID"`
}

func (OrderModel) TableName() string { return "orders" }

// OrderItemModel 是 order_items 表的映射，订单创建后不再变化。
type OrderItemModel struct {
	ID        uint   `gorm:"primaryKey"`
	OrderID   string `gorm:"size:64;index"`
	ProductID string `gorm:"size:64"`
	Quantity  int
	UnitPrice float64
}

func (OrderItemModel) TableName() string { return "order_items" }

var terminalStatuses = []string{
	string(domain.StatusConfirmed),
	string(domain.StatusFailed),
	string(domain.StatusCompensatingFailed),
}

// GormOrderRepository 是订单台账的 MySQL 实现。
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// AutoMigrate 创建或更新表结构。
func (r *GormOrderRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&OrderModel{}, &OrderItemModel{})
}

// Save 先尝试更新非终态的订单，没有命中时插入新订单和它的商品行。
func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	m := toModel(order)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&OrderModel{}).
			Where("id = ? AND status NOT IN ?", m.ID, terminalStatuses).
			Updates(map[string]any{
				"status":         m.Status,
				"payment_id":     m.PaymentID,
				"failure_reason": m.FailureReason,
				"updated_at":     m.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		return tx.Create(&m).Error
	})
	return pkgerrors.Wrapf(err, "save order %s", order.ID)
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var m OrderModel
	err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "find order %s", id)
	}
	return m.toDomain(), nil
}

func (r *GormOrderRepository) FindByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return r.find(ctx, "user_id = ?", userID)
}

func (r *GormOrderRepository) FindByStatus(ctx context.Context, status domain.Status) ([]*domain.Order, error) {
	return r.find(ctx, "status = ?", string(status))
}

func (r *GormOrderRepository) find(ctx context.Context, query string, arg any) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).Preload("Items").Where(query, arg).Order("created_at DESC").Find(&models).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "query orders")
	}
	out := make([]*domain.Order, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out, nil
}

func toModel(o *domain.Order) OrderModel {
	m := OrderModel{
		ID:              o.ID,
		UserID:          o.UserID,
		PaymentMethod:   o.PaymentMethod,
		ShippingAddress: string(o.ShippingAddress),
		TotalAmount:     o.TotalAmount,
		Status:          string(o.Status),
		PaymentID:       o.PaymentID,
		FailureReason:   o.FailureReason,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, it := range o.Items {
		m.Items = append(m.Items, OrderItemModel{OrderID: o.ID, ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return m
}

func (m *OrderModel) toDomain() *domain.Order {
	o := &domain.Order{
		ID:            m.ID,
		UserID:        m.UserID,
		PaymentMethod: m.PaymentMethod,
		TotalAmount:   m.TotalAmount,
		Status:        domain.Status(m.Status),
		PaymentID:     m.PaymentID,
		FailureReason: m.FailureReason,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.ShippingAddress != "" {
		o.ShippingAddress = []byte(m.ShippingAddress)
	}
	for _, it := range m.Items {
		o.Items = append(o.Items, domain.Item{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return o
}
