package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/don-sigaron/shop-backend/internal/auth"
	"github.com/don-sigaron/shop-backend/internal/user"
)

type UpdateProfileRequest struct {
	FirstName string `json:"first_name" validate:"required,min=2"`
	LastName  string `json:"last_name" validate:"required,min=2"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,min=5"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

type UpdateUserStatusRequest struct {
	IsBlocked *bool `json:"is_blocked" validate:"required"`
}

type UserHandler struct {
	service  user.Service
	validate *validator.Validate
}

func NewUserHandler(service user.Service) *UserHandler {
	return &UserHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterProfileRoutes — операции владельца аккаунта.
// Router уже обёрнут в Authenticator.
func (h *UserHandler) RegisterProfileRoutes(router chi.Router) {
	router.Put("/profile", h.handleUpdateProfile)
	router.Put("/profile/password", h.handleChangePassword)
}

// RegisterAdminRoutes — административное управление пользователями.
// Router уже обёрнут в Authenticator + RequireAdmin.
func (h *UserHandler) RegisterAdminRoutes(router chi.Router) {
	router.Get("/users", h.handleListUsers)
	router.Put("/users/{id}/status", h.handleUpdateUserStatus)
	router.Delete("/users/{id}", h.handleDeleteUser)
}

func (h *UserHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	var requestPayload UpdateProfileRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&requestPayload); err != nil {
		log.Warn().Err(err).Msg("Failed to decode profile request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		respondValidationError(w, err)
		return
	}

	domainUser := user.User{
		ID:        claims.UserID,
		FirstName: requestPayload.FirstName,
		LastName:  requestPayload.LastName,
		Email:     requestPayload.Email,
		Phone:     requestPayload.Phone,
	}

	updatedUser, err := h.service.UpdateProfile(r.Context(), &domainUser)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", claims.UserID).Msg("Failed to update profile via service")
		respondServiceError(w, err, "Failed to update profile")
		return
	}

	respondWithJSON(w, http.StatusOK, updatedUser)
}

func (h *UserHandler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	var requestPayload ChangePasswordRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&requestPayload); err != nil {
		log.Warn().Err(err).Msg("Failed to decode password request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		respondValidationError(w, err)
		return
	}

	err := h.service.ChangePassword(r.Context(), claims.UserID, requestPayload.CurrentPassword, requestPayload.NewPassword)
	if err != nil {
		log.Warn().Err(err).Stringer("user_id", claims.UserID).Msg("Failed to change password via service")
		respondServiceError(w, err, "Failed to change password")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list users via service")
		respondServiceError(w, err, "Failed to list users")
		return
	}

	respondWithJSON(w, http.StatusOK, users)
}

func (h *UserHandler) handleUpdateUserStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	var requestPayload UpdateUserStatusRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&requestPayload); err != nil {
		log.Warn().Err(err).Msg("Failed to decode user status request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		respondValidationError(w, err)
		return
	}

	if err := h.service.SetBlocked(r.Context(), userID, *requestPayload.IsBlocked); err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("Failed to update user status via service")
		respondServiceError(w, err, "Failed to update user status")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	if err := h.service.DeleteUser(r.Context(), userID); err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("Failed to delete user via service")
		respondServiceError(w, err, "Failed to delete user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
