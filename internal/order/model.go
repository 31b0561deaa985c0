package order

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

// ParseStatus проверяет, что строка — известный статус заказа.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return Status(raw), nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, raw)
	}
}

// OrderItem — позиция заказа. Price и ProductName — снапшот на момент
// покупки: исторические заказы не меняются при смене цены или удалении
// товара из каталога (тогда ProductID становится NULL).
type OrderItem struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	OrderID     uuid.UUID  `json:"order_id" db:"order_id"`
	ProductID   *uuid.UUID `json:"product_id" db:"product_id"`
	ProductName string     `json:"product_name" db:"product_name"`
	Quantity    int        `json:"quantity" db:"quantity"`
	Price       float64    `json:"price" db:"price"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// Customer — данные владельца заказа для админского списка.
type Customer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type Order struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	UserID    uuid.UUID   `json:"user_id" db:"user_id"`
	Status    Status      `json:"status" db:"status"`
	Items     []OrderItem `json:"items" db:"-"`
	Total     float64     `json:"total" db:"total"`
	Customer  *Customer   `json:"customer,omitempty" db:"-"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// Line — строка корзины на входе в оформление заказа.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// Caller — кто выполняет операцию. Заполняется из проверенного токена.
type Caller struct {
	UserID  uuid.UUID
	IsAdmin bool
}
