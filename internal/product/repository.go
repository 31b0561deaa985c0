package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid product input")
)

// Querier покрывает и *pgxpool.Pool, и pgx.Tx: резервирование остатка
// должно уметь работать внутри чужой транзакции (заказ резервирует
// несколько позиций атомарно).
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository interface {
	Create(ctx context.Context, p *Product) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	List(ctx context.Context, f Filter) ([]Product, error)
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	ReserveStock(ctx context.Context, id uuid.UUID, quantity int) error
	RestoreStock(ctx context.Context, id uuid.UUID, quantity int) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const productColumns = `p.id, p.name, p.description, p.price, p.image, p.category_id, p.quantity, p.created_at, p.updated_at, c.name, c.slug`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Image,
		&p.CategoryID,
		&p.Quantity,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.CategoryName,
		&p.CategorySlug,
	)
	if err != nil {
		return nil, err
	}
	p.InStock = p.Quantity > 0
	return &p, nil
}

func (r *postgresRepository) Create(ctx context.Context, p *Product) (uuid.UUID, error) {
	productID := p.ID
	if productID == uuid.Nil {
		genID, err := uuid.NewV4()
		if err != nil {
			return uuid.Nil, fmt.Errorf("repository: failed to generate product ID: %w", err)
		}
		productID = genID
	}
	p.ID = productID

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `
		INSERT INTO products (id, name, description, price, image, category_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		p.ID,
		p.Name,
		p.Description,
		p.Price,
		p.Image,
		p.CategoryID,
		p.Quantity,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to insert product: %w", err)
	}

	p.InStock = p.Quantity > 0
	return productID, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products p
		JOIN categories c ON p.category_id = c.id
		WHERE p.id = $1
	`

	p, err := scanProduct(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select product by id %s: %w", id, err)
	}

	return p, nil
}

func (r *postgresRepository) List(ctx context.Context, f Filter) ([]Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products p
		JOIN categories c ON p.category_id = c.id
	`

	var (
		conds []string
		args  []any
	)

	if f.CategoryID != nil {
		args = append(args, *f.CategoryID)
		conds = append(conds, fmt.Sprintf("p.category_id = $%d", len(args)))
	}
	if f.MinPrice != nil {
		args = append(args, *f.MinPrice)
		conds = append(conds, fmt.Sprintf("p.price >= $%d", len(args)))
	}
	if f.MaxPrice != nil {
		args = append(args, *f.MaxPrice)
		conds = append(conds, fmt.Sprintf("p.price <= $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		conds = append(conds, fmt.Sprintf("(p.name ILIKE $%d OR p.description ILIKE $%d)", len(args), len(args)))
	}

	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY p.created_at DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating products: %w", err)
	}

	return products, nil
}

func (r *postgresRepository) Update(ctx context.Context, p *Product) error {
	query := `
		UPDATE products
		SET name = $1, description = $2, price = $3, image = $4, category_id = $5, quantity = $6, updated_at = $7
		WHERE id = $8
	`

	now := time.Now().UTC()

	cmdTag, err := r.db.Exec(ctx, query,
		p.Name,
		p.Description,
		p.Price,
		p.Image,
		p.CategoryID,
		p.Quantity,
		now,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update product %s: %w", p.ID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}

	p.UpdatedAt = now
	p.InStock = p.Quantity > 0
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete product %s: %w", id, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *postgresRepository) ReserveStock(ctx context.Context, id uuid.UUID, quantity int) error {
	_, _, err := ReserveStock(ctx, r.db, id, quantity)
	return err
}

func (r *postgresRepository) RestoreStock(ctx context.Context, id uuid.UUID, quantity int) error {
	return RestoreStock(ctx, r.db, id, quantity)
}

// ReserveStock атомарно проверяет и списывает остаток одним UPDATE
// с охранным условием quantity >= $2: два конкурентных заказа на
// последнюю единицу не спишут её дважды. Возвращает имя и текущую
// цену товара — заказ снимает с них снапшот в той же транзакции.
func ReserveStock(ctx context.Context, q Querier, id uuid.UUID, quantity int) (string, float64, error) {
	if quantity <= 0 {
		return "", 0, fmt.Errorf("%w: reserve quantity must be positive", ErrInvalidInput)
	}

	query := `
		UPDATE products
		SET quantity = quantity - $2, updated_at = $3
		WHERE id = $1 AND quantity >= $2
		RETURNING name, price
	`

	var (
		name  string
		price float64
	)
	err := q.QueryRow(ctx, query, id, quantity, time.Now().UTC()).Scan(&name, &price)
	if err == nil {
		return name, price, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", 0, fmt.Errorf("repository: failed to reserve stock for product %s: %w", id, err)
	}

	// UPDATE никого не задел: либо товара нет, либо остатка не хватает.
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
		return "", 0, fmt.Errorf("repository: failed to check product %s existence: %w", id, err)
	}
	if !exists {
		return "", 0, ErrNotFound
	}
	return "", 0, ErrInsufficientStock
}

// RestoreStock возвращает остаток на склад (отмена заказа).
func RestoreStock(ctx context.Context, q Querier, id uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: restore quantity must be positive", ErrInvalidInput)
	}

	cmdTag, err := q.Exec(ctx, `
		UPDATE products
		SET quantity = quantity + $2, updated_at = $3
		WHERE id = $1
	`, id, quantity, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("repository: failed to restore stock for product %s: %w", id, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
