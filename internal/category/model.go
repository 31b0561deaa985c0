package category

import "github.com/gofrs/uuid"

// Category — узел двухуровневого дерева каталога.
// ParentID == nil у корневой категории, у подкатегории он указывает
// на корневую. Глубже двух уровней дерево не бывает.
type Category struct {
	ID       uuid.UUID  `json:"id" db:"id"`
	Name     string     `json:"name" db:"name"`
	Slug     string     `json:"slug" db:"slug"`
	ParentID *uuid.UUID `json:"parent_id" db:"parent_id"`
}

// IsLeaf сообщает, является ли категория подкатегорией.
// Товары привязываются только к таким категориям.
func (c *Category) IsLeaf() bool {
	return c.ParentID != nil
}
