package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

// Допустимые переходы статусов. Из delivered и cancelled пути нет.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusShipped:   true,
		StatusCancelled: true,
	},
	StatusShipped: {
		StatusDelivered: true,
		StatusCancelled: true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

type Service interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, lines []Line) (*Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID, caller Caller) (*Order, error)
	ListOrders(ctx context.Context, caller Caller) ([]Order, error)
	SetStatus(ctx context.Context, orderID uuid.UUID, newStatus Status, caller Caller) (*Order, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) PlaceOrder(ctx context.Context, userID uuid.UUID, lines []Line) (*Order, error) {
	if len(lines) == 0 {
		log.Warn().Stringer("user_id", userID).Msg("service: attempt to place order with no items")
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrInvalidInput)
	}

	items := make([]OrderItem, 0, len(lines))
	for i := range lines {
		line := lines[i]
		if line.ProductID == uuid.Nil {
			return nil, fmt.Errorf("%w: product id in order line cannot be empty", ErrInvalidInput)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for product %s must be greater than zero", ErrInvalidInput, line.ProductID)
		}

		productID := line.ProductID
		items = append(items, OrderItem{
			ProductID: &productID,
			Quantity:  line.Quantity,
		})
	}

	o := &Order{
		UserID: userID,
		Status: StatusPending,
		Items:  items,
	}

	if _, err := s.repo.Create(ctx, o); err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to create order in repository")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().
		Stringer("order_id", o.ID).
		Stringer("user_id", userID).
		Float64("total", o.Total).
		Int("items", len(o.Items)).
		Msg("service: order placed")

	return o, nil
}

func (s *service) GetOrderByID(ctx context.Context, id uuid.UUID, caller Caller) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order by id")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}

	// Чужой заказ обычному пользователю не показываем
	if !caller.IsAdmin && o.UserID != caller.UserID {
		return nil, ErrForbidden
	}

	return o, nil
}

func (s *service) ListOrders(ctx context.Context, caller Caller) ([]Order, error) {
	var (
		orders []Order
		err    error
	)
	if caller.IsAdmin {
		orders, err = s.repo.ListAll(ctx)
	} else {
		orders, err = s.repo.ListByUser(ctx, caller.UserID)
	}
	if err != nil {
		log.Error().Err(err).Stringer("caller_id", caller.UserID).Msg("service: failed to list orders")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}

	return orders, nil
}

func (s *service) SetStatus(ctx context.Context, orderID uuid.UUID, newStatus Status, caller Caller) (*Order, error) {
	currentOrder, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn().Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("service: order not found, cannot update status")
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to get order for status update")
		return nil, fmt.Errorf("service: failed to get order for status update: %w", err)
	}

	// Любой переход — административная операция; владельцу заказа
	// разрешена только отмена собственного заказа.
	if !caller.IsAdmin {
		ownCancellation := newStatus == StatusCancelled && currentOrder.UserID == caller.UserID
		if !ownCancellation {
			log.Warn().
				Stringer("order_id", orderID).
				Stringer("caller_id", caller.UserID).
				Stringer("new_status", newStatus).
				Msg("service: status change denied for non-admin caller")
			return nil, ErrForbidden
		}
	}

	if !allowedTransitions[currentOrder.Status][newStatus] {
		log.Warn().
			Stringer("order_id", orderID).
			Stringer("current_status", currentOrder.Status).
			Stringer("new_status", newStatus).
			Msg("service: invalid status transition attempt")
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, currentOrder.Status, newStatus)
	}

	// Репозиторию передаётся ожидаемый текущий статус: переход
	// применяется атомарно, только если заказ всё ещё в нём.
	if newStatus == StatusCancelled {
		// Отмена возвращает остатки на склад в той же транзакции
		err = s.repo.Cancel(ctx, orderID, currentOrder.Status)
	} else {
		err = s.repo.UpdateStatus(ctx, orderID, currentOrder.Status, newStatus)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("service: failed to update order status in repository")
		return nil, fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().
		Stringer("order_id", orderID).
		Stringer("old_status", currentOrder.Status).
		Stringer("new_status", newStatus).
		Msg("service: order status updated")

	return s.repo.GetByID(ctx, orderID)
}
