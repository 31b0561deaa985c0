package product

import (
	"time"

	"github.com/gofrs/uuid"
)

// Product — позиция каталога с авторитетным остатком и ценой.
type Product struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Price       float64   `json:"price" db:"price"` // Используем float64 для денег, как и в остальных сервисах
	Image       *string   `json:"image" db:"image"`
	CategoryID  uuid.UUID `json:"category_id" db:"category_id"`
	Quantity    int       `json:"quantity" db:"quantity"`
	// InStock — производное поле, всегда quantity > 0.
	// В БД не хранится, заполняется при чтении.
	InStock      bool      `json:"in_stock" db:"-"`
	CategoryName string    `json:"category_name,omitempty" db:"-"`
	CategorySlug string    `json:"category_slug,omitempty" db:"-"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Filter ограничивает выборку товаров. Нулевые поля не применяются.
type Filter struct {
	CategoryID *uuid.UUID
	MinPrice   *float64
	MaxPrice   *float64
	// Search — регистронезависимый поиск подстроки по имени и описанию.
	Search string
}
