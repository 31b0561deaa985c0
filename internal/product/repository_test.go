package product_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

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

// createLeafCategory вставляет корневую категорию с подкатегорией и
// возвращает id подкатегории. Созданное удаляется после теста.
func createLeafCategory(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
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

	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM categories WHERE id IN ($1, $2)`, leafID, rootID)
	})

	return leafID
}

func createTestProduct(t *testing.T, pool *pgxpool.Pool, repo product.Repository, quantity int) *product.Product {
	t.Helper()

	p := &product.Product{
		Name:        "Тестовый кальян " + uuid.Must(uuid.NewV4()).String(),
		Description: "Товар для интеграционного теста",
		Price:       12500,
		CategoryID:  createLeafCategory(t, pool),
		Quantity:    quantity,
	}

	id, err := repo.Create(context.Background(), p)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM products WHERE id = $1`, id)
	})

	return p
}

func TestProductRepository_CreateAndGet(t *testing.T) {
	pool := newTestPool(t)
	repo := product.NewRepository(pool)

	created := createTestProduct(t, pool, repo, 3)

	got, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, created.Name, got.Name)
	require.Equal(t, created.Price, got.Price)
	require.Equal(t, 3, got.Quantity)
	require.True(t, got.InStock)
	require.NotEmpty(t, got.CategoryName)
	require.NotEmpty(t, got.CategorySlug)
}

func TestProductRepository_GetByID_NotFound(t *testing.T) {
	pool := newTestPool(t)
	repo := product.NewRepository(pool)

	_, err := repo.GetByID(context.Background(), uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestProductRepository_List_FiltersByCategory(t *testing.T) {
	pool := newTestPool(t)
	repo := product.NewRepository(pool)

	created := createTestProduct(t, pool, repo, 1)

	products, err := repo.List(context.Background(), product.Filter{CategoryID: &created.CategoryID})
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, created.ID, products[0].ID)
}

func TestProductRepository_ReserveStock(t *testing.T) {
	pool := newTestPool(t)
	repo := product.NewRepository(pool)
	ctx := context.Background()

	created := createTestProduct(t, pool, repo, 5)

	name, price, err := product.ReserveStock(ctx, pool, created.ID, 3)
	require.NoError(t, err)
	require.Equal(t, created.Name, name)
	require.Equal(t, created.Price, price)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.Quantity)

	// На большее, чем осталось, резерв не проходит и остаток не трогает
	_, _, err = product.ReserveStock(ctx, pool, created.ID, 3)
	require.ErrorIs(t, err, product.ErrInsufficientStock)

	got, err = repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.Quantity)
}

func TestProductRepository_ReserveStock_NotFound(t *testing.T) {
	pool := newTestPool(t)

	_, _, err := product.ReserveStock(context.Background(), pool, uuid.Must(uuid.NewV4()), 1)
	require.ErrorIs(t, err, product.ErrNotFound)
}

// Два конкурентных резерва последней единицы: ровно один проходит.
func TestProductRepository_ReserveStock_Concurrent(t *testing.T) {
	pool := newTestPool(t)
	repo := product.NewRepository(pool)
	ctx := context.Background()

	created := createTestProduct(t, pool, repo, 1)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = product.ReserveStock(ctx, pool, created.ID, 1)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, product.ErrInsufficientStock)
		}
	}
	require.Equal(t, 1, succeeded)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.Quantity)
	require.False(t, got.InStock)
}

func TestProductRepository_RestoreStock(t *testing.T) {
	pool := newTestPool(t)
	repo := product.NewRepository(pool)
	ctx := context.Background()

	created := createTestProduct(t, pool, repo, 0)

	require.NoError(t, product.RestoreStock(ctx, pool, created.ID, 4))

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 4, got.Quantity)
	require.True(t, got.InStock)
}
