package category

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("category not found")

type Repository interface {
	List(ctx context.Context) ([]Category, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Category, error)
	ChildrenOf(ctx context.Context, parentID uuid.UUID) ([]Category, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// List возвращает все категории: сначала корневые, затем подкатегории,
// внутри уровня — по алфавиту.
func (r *postgresRepository) List(ctx context.Context) ([]Category, error) {
	query := `
		SELECT id, name, slug, parent_id
		FROM categories
		ORDER BY (parent_id IS NOT NULL), name
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query categories: %w", err)
	}
	defer rows.Close()

	return scanCategories(rows)
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Category, error) {
	query := `
		SELECT id, name, slug, parent_id
		FROM categories
		WHERE id = $1
	`

	var c Category
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Slug, &c.ParentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select category by id %s: %w", id, err)
	}

	return &c, nil
}

func (r *postgresRepository) ChildrenOf(ctx context.Context, parentID uuid.UUID) ([]Category, error) {
	query := `
		SELECT id, name, slug, parent_id
		FROM categories
		WHERE parent_id = $1
		ORDER BY name
	`

	rows, err := r.db.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query children of category %s: %w", parentID, err)
	}
	defer rows.Close()

	return scanCategories(rows)
}

func scanCategories(rows pgx.Rows) ([]Category, error) {
	categories := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.ParentID); err != nil {
			return nil, fmt.Errorf("repository: failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating categories: %w", err)
	}

	return categories, nil
}
