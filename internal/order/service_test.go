package order_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/don-sigaron/shop-backend/internal/order"
	"github.com/don-sigaron/shop-backend/internal/product"
)

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, o *order.Order) (uuid.UUID, error) {
	args := m.Called(ctx, o)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) ListAll(ctx context.Context) ([]order.Order, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]order.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to order.Status) error {
	args := m.Called(ctx, orderID, from, to)
	return args.Error(0)
}

func (m *MockOrderRepository) Cancel(ctx context.Context, orderID uuid.UUID, from order.Status) error {
	args := m.Called(ctx, orderID, from)
	return args.Error(0)
}

func TestOrderService_PlaceOrder_Success(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	orderService := order.NewService(mockRepo)

	userID := uuid.Must(uuid.NewV4())
	productID := uuid.Must(uuid.NewV4())
	expectedID := uuid.Must(uuid.NewV4())

	mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(o *order.Order) bool {
		return o.UserID == userID &&
			o.Status == order.StatusPending &&
			len(o.Items) == 1 &&
			*o.Items[0].ProductID == productID &&
			o.Items[0].Quantity == 2
	})).Run(func(args mock.Arguments) {
		// Репозиторий резервирует остаток и фиксирует снапшоты в транзакции
		o := args.Get(1).(*order.Order)
		o.ID = expectedID
		o.Items[0].Price = 1000
		o.Items[0].ProductName = "Кальян Alpha"
		o.Total = 2000
	}).Return(expectedID, nil).Once()

	placed, err := orderService.PlaceOrder(context.Background(), userID, []order.Line{
		{ProductID: productID, Quantity: 2},
	})

	require.NoError(t, err)
	require.NotNil(t, placed)
	require.Equal(t, expectedID, placed.ID)
	require.Equal(t, order.StatusPending, placed.Status)
	require.Equal(t, 2000.0, placed.Total)
	mockRepo.AssertExpectations(t)
}

func TestOrderService_PlaceOrder_EmptyItems(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	orderService := order.NewService(mockRepo)

	placed, err := orderService.PlaceOrder(context.Background(), uuid.Must(uuid.NewV4()), nil)
	require.Error(t, err)
	require.ErrorIs(t, err, order.ErrInvalidInput)
	require.Nil(t, placed)
	mockRepo.AssertNotCalled(t, "Create")
}

func TestOrderService_PlaceOrder_NonPositiveQuantity(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	orderService := order.NewService(mockRepo)

	placed, err := orderService.PlaceOrder(context.Background(), uuid.Must(uuid.NewV4()), []order.Line{
		{ProductID: uuid.Must(uuid.NewV4()), Quantity: 0},
	})
	require.Error(t, err)
	require.ErrorIs(t, err, order.ErrInvalidInput)
	require.Nil(t, placed)
	mockRepo.AssertNotCalled(t, "Create")
}

func TestOrderService_PlaceOrder_InsufficientStock(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	orderService := order.NewService(mockRepo)

	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*order.Order")).
		Return(uuid.Nil, product.ErrInsufficientStock).
		Once()

	placed, err := orderService.PlaceOrder(context.Background(), uuid.Must(uuid.NewV4()), []order.Line{
		{ProductID: uuid.Must(uuid.NewV4()), Quantity: 10},
	})
	require.Error(t, err)
	require.ErrorIs(t, err, product.ErrInsufficientStock)
	require.Nil(t, placed)
	mockRepo.AssertExpectations(t)
}

func TestOrderService_SetStatus_AdminConfirms(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	orderService := order.NewService(mockRepo)

	orderID := uuid.Must(uuid.NewV4())
	admin := order.Caller{UserID: uuid.Must(uuid.NewV4()), IsAdmin: true}

	pendingOrder := order.Order{ID: orderID, UserID: uuid.Must(uuid.NewV4()), Status: order.StatusPending}
	confirmedOrder := pendingOrder
	confirmedOrder.Status = order.StatusConfirmed

	mockRepo.On("GetByID", mock.Anything, orderID).Return(&pendingOrder, nil).Once()
	mockRepo.On("UpdateStatus", mock.Anything, orderID, order.StatusPending, order.StatusConfirmed).Return(nil).Once()
	mockRepo.On("GetByID", mock.Anything, orderID).Return(&confirmedOrder, nil).Once()

	updated, err := orderService.SetStatus(context.Background(), orderID, order.StatusConfirmed, admin)
	require.NoError(t, err)
	require.Equal(t, order.StatusConfirmed, updated.Status)
	mockRepo.AssertExpectations(t)
}

func TestOrderService_SetStatus_NonAdminForbidden(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	orderService := order.NewService(mockRepo)

	orderID := uuid.Must(uuid.NewV4())
	owner := uuid.Must(uuid.NewV4())
	caller := order.Caller{UserID: owner, IsAdmin: false}

	mockRepo.On("GetByID", mock.Anything, orderID).
		Return(&order.Order{ID: orderID, UserID: owner, Status: order.StatusPending}, nil).
		Once()

	// Владелец не может подтвердить собственный заказ — только отменить
	updated, err := orderService.SetStatus(context.Background(), orderID, order.StatusConfirmed, caller)
	require.Error(t, err)
	require.ErrorIs(t, err, order.ErrForbidden)
	require.Nil(t, updated)
	mockRepo.AssertNotCalled(t, "UpdateStatus")
	mockRepo.AssertExpectations(t)
}

func TestOrderService_SetStatus_OwnerCancels(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	orderService := order.NewService(mockRepo)

	orderID := uuid.Must(uuid.NewV4())
	owner := uuid.Must(uuid.NewV4())
	caller := order.Caller{UserID: owner, IsAdmin: false}

	pendingOrder := order.Order{ID: orderID, UserID: owner, Status: order.StatusPending}
	cancelledOrder := pendingOrder
	cancelledOrder.Status = order.StatusCancelled

	mockRepo.On("GetByID", mock.Anything, orderID).Return(&pendingOrder, nil).Once()
	mockRepo.On("Cancel", mock.Anything, orderID, order.StatusPending).Return(nil).Once()
	mockRepo.On("GetByID", mock.Anything, orderID).Return(&cancelledOrder, nil).Once()

	updated, err := orderService.SetStatus(context.Background(), orderID, order.StatusCancelled, caller)
	require.NoError(t, err)
	require.Equal(t, order.StatusCancelled, updated.Status)
	mockRepo.AssertExpectations(t)
}

func TestOrderService_SetStatus_StrangerCannotCancel(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	orderService := order.NewService(mockRepo)

	orderID := uuid.Must(uuid.NewV4())
	caller := order.Caller{UserID: uuid.Must(uuid.NewV4()), IsAdmin: false}

	mockRepo.On("GetByID", mock.Anything, orderID).
		Return(&order.Order{ID: orderID, UserID: uuid.Must(uuid.NewV4()), Status: order.StatusPending}, nil).
		Once()

	updated, err := orderService.SetStatus(context.Background(), orderID, order.StatusCancelled, caller)
	require.Error(t, err)
	require.ErrorIs(t, err, order.ErrForbidden)
	require.Nil(t, updated)
	mockRepo.AssertNotCalled(t, "Cancel")
	mockRepo.AssertExpectations(t)
}

func TestOrderService_SetStatus_InvalidTransition(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	orderService := order.NewService(mockRepo)

	orderID := uuid.Must(uuid.NewV4())
	admin := order.Caller{UserID: uuid.Must(uuid.NewV4()), IsAdmin: true}

	mockRepo.On("GetByID", mock.Anything, orderID).
		Return(&order.Order{ID: orderID, Status: order.StatusDelivered}, nil).
		Once()

	updated, err := orderService.SetStatus(context.Background(), orderID, order.StatusPending, admin)
	require.Error(t, err)
	require.ErrorIs(t, err, order.ErrInvalidTransition)
	require.Nil(t, updated)
	mockRepo.AssertNotCalled(t, "UpdateStatus")
	mockRepo.AssertExpectations(t)
}

func TestOrderService_SetStatus_TerminalCancelledStays(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	orderService := order.NewService(mockRepo)

	orderID := uuid.Must(uuid.NewV4())
	admin := order.Caller{UserID: uuid.Must(uuid.NewV4()), IsAdmin: true}

	mockRepo.On("GetByID", mock.Anything, orderID).
		Return(&order.Order{ID: orderID, Status: order.StatusCancelled}, nil).
		Once()

	updated, err := orderService.SetStatus(context.Background(), orderID, order.StatusConfirmed, admin)
	require.Error(t, err)
	require.ErrorIs(t, err, order.ErrInvalidTransition)
	require.Nil(t, updated)
	mockRepo.AssertExpectations(t)
}

// Статус меняется между чтением и записью: репозиторий отвергает
// устаревший переход, сервис отдаёт ошибку как есть.
func TestOrderService_SetStatus_StaleTransition(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	orderService := order.NewService(mockRepo)

	orderID := uuid.Must(uuid.NewV4())
	owner := uuid.Must(uuid.NewV4())
	caller := order.Caller{UserID: owner, IsAdmin: false}

	mockRepo.On("GetByID", mock.Anything, orderID).
		Return(&order.Order{ID: orderID, UserID: owner, Status: order.StatusPending}, nil).
		Once()
	mockRepo.On("Cancel", mock.Anything, orderID, order.StatusPending).
		Return(order.ErrInvalidTransition).
		Once()

	updated, err := orderService.SetStatus(context.Background(), orderID, order.StatusCancelled, caller)
	require.Error(t, err)
	require.ErrorIs(t, err, order.ErrInvalidTransition)
	require.Nil(t, updated)
	mockRepo.AssertExpectations(t)
}

func TestOrderService_SetStatus_NotFound(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	orderService := order.NewService(mockRepo)

	orderID := uuid.Must(uuid.NewV4())
	admin := order.Caller{UserID: uuid.Must(uuid.NewV4()), IsAdmin: true}

	mockRepo.On("GetByID", mock.Anything, orderID).Return(nil, order.ErrNotFound).Once()

	updated, err := orderService.SetStatus(context.Background(), orderID, order.StatusConfirmed, admin)
	require.Error(t, err)
	require.ErrorIs(t, err, order.ErrNotFound)
	require.Nil(t, updated)
	mockRepo.AssertExpectations(t)
}

func TestOrderService_ListOrders_AdminSeesAll(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	orderService := order.NewService(mockRepo)

	admin := order.Caller{UserID: uuid.Must(uuid.NewV4()), IsAdmin: true}
	allOrders := []order.Order{{ID: uuid.Must(uuid.NewV4())}, {ID: uuid.Must(uuid.NewV4())}}

	mockRepo.On("ListAll", mock.Anything).Return(allOrders, nil).Once()

	orders, err := orderService.ListOrders(context.Background(), admin)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	mockRepo.AssertNotCalled(t, "ListByUser")
	mockRepo.AssertExpectations(t)
}

func TestOrderService_ListOrders_UserSeesOwn(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	orderService := order.NewService(mockRepo)

	caller := order.Caller{UserID: uuid.Must(uuid.NewV4()), IsAdmin: false}
	ownOrders := []order.Order{{ID: uuid.Must(uuid.NewV4()), UserID: caller.UserID}}

	mockRepo.On("ListByUser", mock.Anything, caller.UserID).Return(ownOrders, nil).Once()

	orders, err := orderService.ListOrders(context.Background(), caller)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	mockRepo.AssertNotCalled(t, "ListAll")
	mockRepo.AssertExpectations(t)
}

func TestOrderService_GetOrderByID_ForeignOrderForbidden(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	orderService := order.NewService(mockRepo)

	orderID := uuid.Must(uuid.NewV4())
	caller := order.Caller{UserID: uuid.Must(uuid.NewV4()), IsAdmin: false}

	mockRepo.On("GetByID", mock.Anything, orderID).
		Return(&order.Order{ID: orderID, UserID: uuid.Must(uuid.NewV4())}, nil).
		Once()

	found, err := orderService.GetOrderByID(context.Background(), orderID, caller)
	require.Error(t, err)
	require.ErrorIs(t, err, order.ErrForbidden)
	require.Nil(t, found)
	mockRepo.AssertExpectations(t)
}

func TestParseStatus(t *testing.T) {
	status, err := order.ParseStatus("confirmed")
	require.NoError(t, err)
	require.Equal(t, order.StatusConfirmed, status)

	_, err = order.ParseStatus("paid")
	require.Error(t, err)
	require.ErrorIs(t, err, order.ErrInvalidInput)
}
