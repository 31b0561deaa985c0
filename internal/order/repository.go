package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/don-sigaron/shop-backend/internal/product"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidInput      = errors.New("invalid order input")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrForbidden         = errors.New("operation is not permitted for this caller")
)

type Repository interface {
	Create(ctx context.Context, o *Order) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to Status) error
	Cancel(ctx context.Context, orderID uuid.UUID, from Status) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

// querier покрывает и *pgxpool.Pool, и pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// Create резервирует остатки и сохраняет заказ с позициями в одной
// транзакции. Любая несошедшаяся позиция откатывает всё: ни одно
// списание не переживает неудачный заказ. Цена и имя товара
// фиксируются в позициях на момент этого же резервирования.
func (r *postgresRepository) Create(ctx context.Context, o *Order) (orderID uuid.UUID, err error) {
	orderID = o.ID
	if orderID == uuid.Nil {
		genID, genErr := uuid.NewV4()
		if genErr != nil {
			return uuid.Nil, fmt.Errorf("repository: failed to generate order ID: %w", genErr)
		}
		orderID = genID
	}
	o.ID = orderID

	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", orderID).Msg("repository: failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", orderID).Msg("repository: failed to rollback transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				log.Error().Err(commitErr).Stringer("order_id", orderID).Msg("repository: failed to commit transaction")
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	// 1. Списываем остаток по каждой позиции и фиксируем снапшоты
	total := 0.0
	for i := range o.Items {
		item := &o.Items[i]
		if item.ProductID == nil {
			err = fmt.Errorf("%w: order item product id is required", ErrInvalidInput)
			return uuid.Nil, err
		}

		name, price, reserveErr := product.ReserveStock(ctx, tx, *item.ProductID, item.Quantity)
		if reserveErr != nil {
			err = fmt.Errorf("repository: failed to reserve product %s: %w", *item.ProductID, reserveErr)
			return uuid.Nil, err
		}

		item.ProductName = name
		item.Price = price
		total += price * float64(item.Quantity)
	}
	o.Total = total

	// 2. Вставляем заказ
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, status, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, orderID, o.UserID, string(o.Status), o.Total, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		err = fmt.Errorf("repository: failed to insert order: %w", err)
		return uuid.Nil, err
	}

	// 3. Вставляем позиции
	for i := range o.Items {
		item := &o.Items[i]

		itemID, genErr := uuid.NewV4()
		if genErr != nil {
			err = fmt.Errorf("repository: failed to generate order item ID: %w", genErr)
			return uuid.Nil, err
		}
		item.ID = itemID
		item.OrderID = orderID
		item.CreatedAt = now

		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, product_name, quantity, price, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.Price, item.CreatedAt)
		if err != nil {
			err = fmt.Errorf("repository: failed to insert order item for order %s: %w", orderID, err)
			return uuid.Nil, err
		}
	}

	return orderID, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	query := `
		SELECT id, user_id, status, total, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var o Order
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&o.ID,
		&o.UserID,
		&o.Status,
		&o.Total,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", orderID, err)
	}

	items, err := r.loadItems(ctx, []uuid.UUID{orderID})
	if err != nil {
		return nil, err
	}
	o.Items = items[orderID]
	if o.Items == nil {
		o.Items = make([]OrderItem, 0)
	}

	return &o, nil
}

func (r *postgresRepository) ListAll(ctx context.Context) ([]Order, error) {
	query := `
		SELECT o.id, o.user_id, o.status, o.total, o.created_at, o.updated_at,
		       u.first_name, u.last_name, u.email
		FROM orders o
		JOIN users u ON o.user_id = u.id
		ORDER BY o.created_at DESC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query all orders: %w", err)
	}
	defer rows.Close()

	var (
		orders   []Order
		orderIDs []uuid.UUID
	)
	for rows.Next() {
		var (
			o Order
			c Customer
		)
		err := rows.Scan(
			&o.ID,
			&o.UserID,
			&o.Status,
			&o.Total,
			&o.CreatedAt,
			&o.UpdatedAt,
			&c.FirstName,
			&c.LastName,
			&c.Email,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		o.Customer = &c
		orders = append(orders, o)
		orderIDs = append(orderIDs, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	return r.attachItems(ctx, orders, orderIDs)
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	query := `
		SELECT id, user_id, status, total, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for user %s: %w", userID, err)
	}
	defer rows.Close()

	var (
		orders   []Order
		orderIDs []uuid.UUID
	)
	for rows.Next() {
		var o Order
		err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.Total, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order for user %s: %w", userID, err)
		}
		orders = append(orders, o)
		orderIDs = append(orderIDs, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders for user %s: %w", userID, err)
	}

	return r.attachItems(ctx, orders, orderIDs)
}

// attachItems догружает позиции одним запросом и раскладывает их по
// заказам в коде — без JSON-агрегации на стороне БД.
func (r *postgresRepository) attachItems(ctx context.Context, orders []Order, orderIDs []uuid.UUID) ([]Order, error) {
	if len(orders) == 0 {
		return []Order{}, nil
	}

	itemsByOrder, err := r.loadItems(ctx, orderIDs)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		items := itemsByOrder[orders[i].ID]
		if items == nil {
			items = make([]OrderItem, 0)
		}
		orders[i].Items = items
	}

	return orders, nil
}

func (r *postgresRepository) loadItems(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, product_name, quantity, price, created_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer rows.Close()

	itemsByOrder := make(map[uuid.UUID][]OrderItem)
	for rows.Next() {
		var item OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.Price,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		itemsByOrder[item.OrderID] = append(itemsByOrder[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items: %w", err)
	}

	return itemsByOrder, nil
}

// UpdateStatus меняет статус атомарно: UPDATE срабатывает только если
// заказ всё ещё в статусе from. Два конкурентных перехода из одного
// статуса не пройдут оба — проигравший получит ErrInvalidTransition.
func (r *postgresRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to Status) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`, string(to), time.Now().UTC(), orderID, string(from))
	if err != nil {
		return fmt.Errorf("repository: failed to update order status %s: %w", orderID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return r.classifyMissedUpdate(ctx, r.db, orderID, from)
	}

	return nil
}

// classifyMissedUpdate различает, почему охранный UPDATE никого не
// задел: заказа нет вовсе или его статус уже не from.
func (r *postgresRepository) classifyMissedUpdate(ctx context.Context, q querier, orderID uuid.UUID, from Status) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return fmt.Errorf("repository: failed to check order %s existence: %w", orderID, err)
	}
	if !exists {
		return ErrNotFound
	}
	return fmt.Errorf("%w: order %s is no longer %s", ErrInvalidTransition, orderID, from)
}

// Cancel переводит заказ в cancelled и в той же транзакции возвращает
// списанные остатки. UPDATE охраняется ожидаемым статусом from: из
// двух конкурентных отмен остатки вернёт ровно одна, проигравшая
// получит ErrInvalidTransition. Позиции удалённых товаров
// (product_id IS NULL) возвращать некуда — они пропускаются.
func (r *postgresRepository) Cancel(ctx context.Context, orderID uuid.UUID, from Status) (err error) {
	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", orderID).Msg("repository: failed to rollback cancel transaction after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", orderID).Msg("repository: failed to rollback cancel transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				log.Error().Err(commitErr).Stringer("order_id", orderID).Msg("repository: failed to commit cancel transaction")
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	cmdTag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`, string(StatusCancelled), time.Now().UTC(), orderID, string(from))
	if err != nil {
		return fmt.Errorf("repository: failed to cancel order %s: %w", orderID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		err = r.classifyMissedUpdate(ctx, tx, orderID, from)
		return err
	}

	rows, err := tx.Query(ctx, `
		SELECT product_id, quantity
		FROM order_items
		WHERE order_id = $1 AND product_id IS NOT NULL
	`, orderID)
	if err != nil {
		return fmt.Errorf("repository: failed to query items of cancelled order %s: %w", orderID, err)
	}

	type restock struct {
		productID uuid.UUID
		quantity  int
	}
	var restocks []restock
	for rows.Next() {
		var rs restock
		if err = rows.Scan(&rs.productID, &rs.quantity); err != nil {
			rows.Close()
			return fmt.Errorf("repository: failed to scan item of cancelled order %s: %w", orderID, err)
		}
		restocks = append(restocks, rs)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return fmt.Errorf("repository: error iterating items of cancelled order %s: %w", orderID, err)
	}

	for _, rs := range restocks {
		if err = product.RestoreStock(ctx, tx, rs.productID, rs.quantity); err != nil {
			return fmt.Errorf("repository: failed to restore stock for product %s: %w", rs.productID, err)
		}
	}

	return nil
}
