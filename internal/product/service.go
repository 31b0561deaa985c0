package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/don-sigaron/shop-backend/internal/category"
)

// Input — поля товара при создании/обновлении.
type Input struct {
	Name        string
	Description string
	Price       float64
	CategoryID  uuid.UUID
	Quantity    int
	// Image — публичный путь к загруженному изображению.
	// nil означает "не менять" при обновлении и "без картинки" при создании.
	Image *string
}

type Service interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	ListProducts(ctx context.Context, f Filter) ([]Product, error)
	CreateProduct(ctx context.Context, in Input) (*Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, in Input) (*Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo         Repository
	categoryRepo category.Repository
}

func NewService(repo Repository, categoryRepo category.Repository) Service {
	return &service{
		repo:         repo,
		categoryRepo: categoryRepo,
	}
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to get product")
		return nil, fmt.Errorf("service: failed to get product %s: %w", id, err)
	}

	return p, nil
}

func (s *service) ListProducts(ctx context.Context, f Filter) ([]Product, error) {
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return nil, fmt.Errorf("%w: min_price is greater than max_price", ErrInvalidInput)
	}

	products, err := s.repo.List(ctx, f)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list products")
		return nil, fmt.Errorf("service: failed to list products: %w", err)
	}

	return products, nil
}

func (s *service) CreateProduct(ctx context.Context, in Input) (*Product, error) {
	if err := s.validateInput(ctx, &in); err != nil {
		return nil, err
	}

	p := &Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Image:       in.Image,
		CategoryID:  in.CategoryID,
		Quantity:    in.Quantity,
	}

	if _, err := s.repo.Create(ctx, p); err != nil {
		log.Error().Err(err).Msg("service: failed to create product in repository")
		return nil, fmt.Errorf("service: failed to create product: %w", err)
	}

	log.Info().Stringer("product_id", p.ID).Str("name", p.Name).Msg("service: product created")

	// Перечитываем, чтобы отдать товар вместе с данными категории
	return s.GetProduct(ctx, p.ID)
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, in Input) (*Product, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to get product for update")
		return nil, fmt.Errorf("service: failed to get product %s for update: %w", id, err)
	}

	if err := s.validateInput(ctx, &in); err != nil {
		return nil, err
	}

	current.Name = in.Name
	current.Description = in.Description
	current.Price = in.Price
	current.CategoryID = in.CategoryID
	current.Quantity = in.Quantity
	if in.Image != nil {
		// Старая картинка остаётся, если новую не загружали
		current.Image = in.Image
	}

	if err := s.repo.Update(ctx, current); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to update product in repository")
		return nil, fmt.Errorf("service: failed to update product %s: %w", id, err)
	}

	log.Info().Stringer("product_id", id).Msg("service: product updated")

	return s.GetProduct(ctx, id)
}

func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to delete product")
		return fmt.Errorf("service: failed to delete product %s: %w", id, err)
	}

	log.Info().Stringer("product_id", id).Msg("service: product deleted")
	return nil
}

func (s *service) validateInput(ctx context.Context, in *Input) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)

	if in.Name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
	}
	if in.Description == "" {
		return fmt.Errorf("%w: description must not be empty", ErrInvalidInput)
	}
	if in.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	if in.Quantity < 0 {
		return fmt.Errorf("%w: quantity cannot be negative", ErrInvalidInput)
	}
	if in.CategoryID == uuid.Nil {
		return fmt.Errorf("%w: category_id is required", ErrInvalidInput)
	}

	cat, err := s.categoryRepo.GetByID(ctx, in.CategoryID)
	if err != nil {
		if errors.Is(err, category.ErrNotFound) {
			return fmt.Errorf("%w: category_id references a missing category", ErrInvalidInput)
		}
		log.Error().Err(err).Stringer("category_id", in.CategoryID).Msg("service: failed to check product category")
		return fmt.Errorf("service: failed to check category %s: %w", in.CategoryID, err)
	}
	if !cat.IsLeaf() {
		return fmt.Errorf("%w: category_id must reference a subcategory", ErrInvalidInput)
	}

	return nil
}
