package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/don-sigaron/shop-backend/internal/auth"
	"github.com/don-sigaron/shop-backend/internal/order"
)

type OrderLineRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

type CreateOrderRequest struct {
	Items []OrderLineRequest `json:"items" validate:"required,min=1,dive"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type OrderHandler struct {
	service  order.Service
	validate *validator.Validate
}

func NewOrderHandler(service order.Service) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes вешает маршруты заказов; router уже обёрнут
// в Authenticator, права проверяет сервис по клеймам.
func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders", h.handleCreateOrder)
	router.Get("/orders", h.handleListOrders)
	router.Get("/orders/{id}", h.handleGetOrder)
	router.Put("/orders/{id}/status", h.handleUpdateStatus)
}

func callerFromContext(r *http.Request) (order.Caller, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return order.Caller{}, false
	}
	return order.Caller{
		UserID:  claims.UserID,
		IsAdmin: claims.IsAdmin,
	}, true
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	var requestPayload CreateOrderRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&requestPayload); err != nil {
		log.Warn().Err(err).Msg("Failed to decode create order request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		respondValidationError(w, err)
		return
	}

	lines := make([]order.Line, 0, len(requestPayload.Items))
	for _, item := range requestPayload.Items {
		lines = append(lines, order.Line{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	createdOrder, err := h.service.PlaceOrder(r.Context(), caller.UserID, lines)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", caller.UserID).Msg("Failed to place order via service")
		respondServiceError(w, err, "Failed to place order")
		return
	}

	respondWithJSON(w, http.StatusCreated, createdOrder)
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	orders, err := h.service.ListOrders(r.Context(), caller)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", caller.UserID).Msg("Failed to list orders via service")
		respondServiceError(w, err, "Failed to list orders")
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	orderID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	foundOrder, err := h.service.GetOrderByID(r.Context(), orderID, caller)
	if err != nil {
		respondServiceError(w, err, "Failed to get order")
		return
	}

	respondWithJSON(w, http.StatusOK, foundOrder)
}

func (h *OrderHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	orderID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	var requestPayload UpdateOrderStatusRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&requestPayload); err != nil {
		log.Warn().Err(err).Msg("Failed to decode update status request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		respondValidationError(w, err)
		return
	}

	newStatus, err := order.ParseStatus(requestPayload.Status)
	if err != nil {
		respondServiceError(w, err, "Invalid status")
		return
	}

	updatedOrder, err := h.service.SetStatus(r.Context(), orderID, newStatus, caller)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Str("new_status", requestPayload.Status).Msg("Failed to update order status via service")
		respondServiceError(w, err, "Failed to update order status")
		return
	}

	respondWithJSON(w, http.StatusOK, updatedOrder)
}
