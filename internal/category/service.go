package category

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

type Service interface {
	ListCategories(ctx context.Context) ([]Category, error)
	ChildrenOf(ctx context.Context, parentID uuid.UUID) ([]Category, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) ListCategories(ctx context.Context) ([]Category, error) {
	categories, err := s.repo.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list categories")
		return nil, fmt.Errorf("service: failed to list categories: %w", err)
	}

	return categories, nil
}

func (s *service) ChildrenOf(ctx context.Context, parentID uuid.UUID) ([]Category, error) {
	// Убеждаемся, что родитель вообще существует: пустой список
	// для несуществующей категории вводил бы клиента в заблуждение.
	if _, err := s.repo.GetByID(ctx, parentID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("category_id", parentID).Msg("service: failed to get parent category")
		return nil, fmt.Errorf("service: failed to get category %s: %w", parentID, err)
	}

	children, err := s.repo.ChildrenOf(ctx, parentID)
	if err != nil {
		log.Error().Err(err).Stringer("category_id", parentID).Msg("service: failed to list subcategories")
		return nil, fmt.Errorf("service: failed to list subcategories of %s: %w", parentID, err)
	}

	return children, nil
}
