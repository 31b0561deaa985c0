package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/don-sigaron/shop-backend/internal/auth"
	"github.com/don-sigaron/shop-backend/internal/category"
	"github.com/don-sigaron/shop-backend/internal/order"
	"github.com/don-sigaron/shop-backend/internal/product"
	"github.com/don-sigaron/shop-backend/internal/storage"
	"github.com/don-sigaron/shop-backend/internal/user"
)

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// respondWithError отправляет JSON ошибку
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON отправляет JSON ответ
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func formatValidationErrors(validationErrors validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[fieldErr.Field()] = "failed validation rule '" + fieldErr.Tag() + "'"
	}
	return details
}

// respondValidationError обрабатывает результат validate.Struct.
func respondValidationError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Error:   "Validation failed",
			Details: formatValidationErrors(validationErrors),
		})
		return
	}
	log.Error().Err(err).Msg("Unexpected error type during validation")
	respondWithError(w, http.StatusInternalServerError, "Internal validation error")
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, user.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, category.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, user.ErrEmailExists),
		errors.Is(err, product.ErrInsufficientStock),
		errors.Is(err, order.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, user.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, user.ErrBlocked),
		errors.Is(err, auth.ErrForbidden),
		errors.Is(err, order.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, user.ErrInvalidInput),
		errors.Is(err, product.ErrInvalidInput),
		errors.Is(err, order.ErrInvalidInput),
		errors.Is(err, storage.ErrNotAnImage),
		errors.Is(err, storage.ErrTooLarge):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage выбирает сообщение для клиента: известные ошибки
// переводим как есть, внутренние детали наружу не отдаём.
func clientMessage(err error, fallback string) string {
	if mapErrorToStatusCode(err) == http.StatusInternalServerError {
		return fallback
	}
	switch {
	case errors.Is(err, user.ErrNotFound):
		return "User not found"
	case errors.Is(err, product.ErrNotFound):
		return "Product not found"
	case errors.Is(err, order.ErrNotFound):
		return "Order not found"
	case errors.Is(err, category.ErrNotFound):
		return "Category not found"
	case errors.Is(err, user.ErrEmailExists):
		return "Email already exists"
	case errors.Is(err, user.ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, user.ErrBlocked):
		return "Account is blocked"
	case errors.Is(err, auth.ErrForbidden):
		return "Admin rights required"
	case errors.Is(err, order.ErrForbidden):
		return "Operation not permitted"
	case errors.Is(err, auth.ErrInvalidToken):
		return "Invalid or expired token"
	case errors.Is(err, product.ErrInsufficientStock):
		return "Insufficient stock"
	case errors.Is(err, order.ErrInvalidTransition):
		return "Invalid order status transition"
	default:
		// Ошибки валидации несут понятное сообщение сами
		return err.Error()
	}
}

// respondServiceError — общий путь для ошибок, пришедших из сервисов.
func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, fallback))
}
