package user

import (
	"time"

	"github.com/gofrs/uuid"
)

// User представляет аккаунт покупателя или администратора магазина.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	Email        string    `json:"email" db:"email"`
	Phone        string    `json:"phone" db:"phone"`
	PasswordHash string    `json:"-" db:"password_hash"` // Хеш не возвращаем в ответах
	IsAdmin      bool      `json:"is_admin" db:"is_admin"`
	IsBlocked    bool      `json:"is_blocked" db:"is_blocked"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
