package order_test

import (
	"context"
	"os"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/don-sigaron/shop-backend/internal/order"
	"github.com/don-sigaron/shop-backend/internal/product"
)

// Интеграционные тесты ходят в настоящий PostgreSQL с накатанными
// миграциями. Без TEST_DATABASE_URL они пропускаются.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set, skipping integration test")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(context.Background()))
	t.Cleanup(pool.Close)
	return pool
}

func createTestBuyer(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()

	userID := uuid.Must(uuid.NewV4())
	_, err := pool.Exec(context.Background(), `
		INSERT INTO users (id, first_name, last_name, email, phone, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, userID, "Тест", "Покупатель", userID.String()+"@example.com", "+77000000000", "not-a-real-hash")
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, userID)
	})

	return userID
}

// createTestProduct создаёт товар в собственной подкатегории.
func createTestProduct(t *testing.T, pool *pgxpool.Pool, price float64, quantity int) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	rootID := uuid.Must(uuid.NewV4())
	leafID := uuid.Must(uuid.NewV4())
	_, err := pool.Exec(ctx, `
		INSERT INTO categories (id, name, slug, parent_id)
		VALUES ($1, $2, $3, NULL), ($4, $5, $6, $1)
	`, rootID, "test-root-"+rootID.String(), "test-root-"+rootID.String(),
		leafID, "test-leaf-"+leafID.String(), "test-leaf-"+leafID.String())
	require.NoError(t, err)

	productID := uuid.Must(uuid.NewV4())
	_, err = pool.Exec(ctx, `
		INSERT INTO products (id, name, description, price, category_id, quantity)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, productID, "Тестовый товар "+productID.String(), "Описание", price, leafID, quantity)
	require.NoError(t, err)

	t.Cleanup(func() {
		cleanupCtx := context.Background()
		_, _ = pool.Exec(cleanupCtx, `DELETE FROM products WHERE id = $1`, productID)
		_, _ = pool.Exec(cleanupCtx, `DELETE FROM categories WHERE id IN ($1, $2)`, leafID, rootID)
	})

	return productID
}

func productQuantity(t *testing.T, pool *pgxpool.Pool, productID uuid.UUID) int {
	t.Helper()

	var quantity int
	err := pool.QueryRow(context.Background(), `SELECT quantity FROM products WHERE id = $1`, productID).Scan(&quantity)
	require.NoError(t, err)
	return quantity
}

func cleanupOrder(t *testing.T, pool *pgxpool.Pool, orderID uuid.UUID) {
	t.Helper()
	t.Cleanup(func() {
		cleanupCtx := context.Background()
		_, _ = pool.Exec(cleanupCtx, `DELETE FROM order_items WHERE order_id = $1`, orderID)
		_, _ = pool.Exec(cleanupCtx, `DELETE FROM orders WHERE id = $1`, orderID)
	})
}

func TestOrderRepository_Create_ReservesAndSnapshots(t *testing.T) {
	pool := newTestPool(t)
	repo := order.NewRepository(pool)
	ctx := context.Background()

	buyerID := createTestBuyer(t, pool)
	firstProduct := createTestProduct(t, pool, 1000, 10)
	secondProduct := createTestProduct(t, pool, 500, 5)

	o := &order.Order{
		UserID: buyerID,
		Status: order.StatusPending,
		Items: []order.OrderItem{
			{ProductID: &firstProduct, Quantity: 2},
			{ProductID: &secondProduct, Quantity: 3},
		},
	}

	orderID, err := repo.Create(ctx, o)
	require.NoError(t, err)
	cleanupOrder(t, pool, orderID)

	require.Equal(t, 2*1000.0+3*500.0, o.Total)
	require.Equal(t, 8, productQuantity(t, pool, firstProduct))
	require.Equal(t, 2, productQuantity(t, pool, secondProduct))

	got, err := repo.GetByID(ctx, orderID)
	require.NoError(t, err)
	require.Equal(t, o.Total, got.Total)
	require.Len(t, got.Items, 2)
	for _, item := range got.Items {
		require.NotEmpty(t, item.ProductName)
		require.Greater(t, item.Price, 0.0)
	}
}

// Нехватка по одной позиции откатывает весь заказ: остатки остальных
// позиций не трогаются, заказ в базе не появляется.
func TestOrderRepository_Create_AllOrNothing(t *testing.T) {
	pool := newTestPool(t)
	repo := order.NewRepository(pool)
	ctx := context.Background()

	buyerID := createTestBuyer(t, pool)
	availableProduct := createTestProduct(t, pool, 1000, 10)
	scarceProduct := createTestProduct(t, pool, 500, 1)

	o := &order.Order{
		UserID: buyerID,
		Status: order.StatusPending,
		Items: []order.OrderItem{
			{ProductID: &availableProduct, Quantity: 2},
			{ProductID: &scarceProduct, Quantity: 5},
		},
	}

	_, err := repo.Create(ctx, o)
	require.Error(t, err)
	require.ErrorIs(t, err, product.ErrInsufficientStock)

	require.Equal(t, 10, productQuantity(t, pool, availableProduct))
	require.Equal(t, 1, productQuantity(t, pool, scarceProduct))

	var count int
	err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, buyerID).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestOrderRepository_Cancel_RestoresStock(t *testing.T) {
	pool := newTestPool(t)
	repo := order.NewRepository(pool)
	ctx := context.Background()

	buyerID := createTestBuyer(t, pool)
	productID := createTestProduct(t, pool, 1000, 10)

	o := &order.Order{
		UserID: buyerID,
		Status: order.StatusPending,
		Items:  []order.OrderItem{{ProductID: &productID, Quantity: 4}},
	}

	orderID, err := repo.Create(ctx, o)
	require.NoError(t, err)
	cleanupOrder(t, pool, orderID)
	require.Equal(t, 6, productQuantity(t, pool, productID))

	require.NoError(t, repo.Cancel(ctx, orderID, order.StatusPending))

	got, err := repo.GetByID(ctx, orderID)
	require.NoError(t, err)
	require.Equal(t, order.StatusCancelled, got.Status)
	require.Equal(t, 10, productQuantity(t, pool, productID))
}

// Повторная отмена с устаревшим представлением о статусе не проходит
// и не возвращает остатки второй раз.
func TestOrderRepository_Cancel_NoDoubleRestock(t *testing.T) {
	pool := newTestPool(t)
	repo := order.NewRepository(pool)
	ctx := context.Background()

	buyerID := createTestBuyer(t, pool)
	productID := createTestProduct(t, pool, 1000, 10)

	o := &order.Order{
		UserID: buyerID,
		Status: order.StatusPending,
		Items:  []order.OrderItem{{ProductID: &productID, Quantity: 4}},
	}

	orderID, err := repo.Create(ctx, o)
	require.NoError(t, err)
	cleanupOrder(t, pool, orderID)
	require.Equal(t, 6, productQuantity(t, pool, productID))

	require.NoError(t, repo.Cancel(ctx, orderID, order.StatusPending))
	require.Equal(t, 10, productQuantity(t, pool, productID))

	// Второй вызов видел заказ ещё pending, но UPDATE охраняется статусом
	err = repo.Cancel(ctx, orderID, order.StatusPending)
	require.ErrorIs(t, err, order.ErrInvalidTransition)
	require.Equal(t, 10, productQuantity(t, pool, productID))

	// Подтвердить отменённый заказ тоже нельзя
	err = repo.UpdateStatus(ctx, orderID, order.StatusPending, order.StatusConfirmed)
	require.ErrorIs(t, err, order.ErrInvalidTransition)

	got, err := repo.GetByID(ctx, orderID)
	require.NoError(t, err)
	require.Equal(t, order.StatusCancelled, got.Status)
}

func TestOrderRepository_UpdateStatus(t *testing.T) {
	pool := newTestPool(t)
	repo := order.NewRepository(pool)
	ctx := context.Background()

	buyerID := createTestBuyer(t, pool)
	productID := createTestProduct(t, pool, 1000, 10)

	o := &order.Order{
		UserID: buyerID,
		Status: order.StatusPending,
		Items:  []order.OrderItem{{ProductID: &productID, Quantity: 1}},
	}

	orderID, err := repo.Create(ctx, o)
	require.NoError(t, err)
	cleanupOrder(t, pool, orderID)

	require.NoError(t, repo.UpdateStatus(ctx, orderID, order.StatusPending, order.StatusConfirmed))

	got, err := repo.GetByID(ctx, orderID)
	require.NoError(t, err)
	require.Equal(t, order.StatusConfirmed, got.Status)
}

func TestOrderRepository_UpdateStatus_NotFound(t *testing.T) {
	pool := newTestPool(t)
	repo := order.NewRepository(pool)

	err := repo.UpdateStatus(context.Background(), uuid.Must(uuid.NewV4()), order.StatusPending, order.StatusConfirmed)
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestOrderRepository_ListByUser(t *testing.T) {
	pool := newTestPool(t)
	repo := order.NewRepository(pool)
	ctx := context.Background()

	buyerID := createTestBuyer(t, pool)
	productID := createTestProduct(t, pool, 1000, 10)

	o := &order.Order{
		UserID: buyerID,
		Status: order.StatusPending,
		Items:  []order.OrderItem{{ProductID: &productID, Quantity: 1}},
	}
	orderID, err := repo.Create(ctx, o)
	require.NoError(t, err)
	cleanupOrder(t, pool, orderID)

	orders, err := repo.ListByUser(ctx, buyerID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, orderID, orders[0].ID)
	require.Len(t, orders[0].Items, 1)
}
