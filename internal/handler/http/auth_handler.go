package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/don-sigaron/shop-backend/internal/auth"
	"github.com/don-sigaron/shop-backend/internal/user"
)

type RegisterRequest struct {
	FirstName string `json:"first_name" validate:"required,min=2"`
	LastName  string `json:"last_name" validate:"required,min=2"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,min=5"`
	Password  string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse — токен сессии вместе с данными пользователя,
// как их ожидает клиент после входа или регистрации.
type AuthResponse struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

type AuthHandler struct {
	userService user.Service
	tokens      *auth.TokenManager
	validate    *validator.Validate
}

func NewAuthHandler(userService user.Service, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		tokens:      tokens,
		validate:    validator.New(),
	}
}

func (h *AuthHandler) RegisterRoutes(router chi.Router) {
	router.Post("/register", h.handleRegister)
	router.Post("/login", h.handleLogin)
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var requestPayload RegisterRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&requestPayload); err != nil {
		log.Warn().Err(err).Msg("Failed to decode register request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		respondValidationError(w, err)
		return
	}

	domainUser := user.User{
		FirstName: requestPayload.FirstName,
		LastName:  requestPayload.LastName,
		Email:     requestPayload.Email,
		Phone:     requestPayload.Phone,
	}

	createdUser, err := h.userService.Register(r.Context(), &domainUser, requestPayload.Password)
	if err != nil {
		log.Error().Err(err).Msg("Failed to register user via service")
		respondServiceError(w, err, "Failed to register user")
		return
	}

	token, err := h.tokens.Issue(createdUser)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", createdUser.ID).Msg("Failed to issue token after registration")
		respondWithError(w, http.StatusInternalServerError, "Failed to register user")
		return
	}

	respondWithJSON(w, http.StatusCreated, AuthResponse{
		Token: token,
		User:  *createdUser,
	})
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var requestPayload LoginRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&requestPayload); err != nil {
		log.Warn().Err(err).Msg("Failed to decode login request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		respondValidationError(w, err)
		return
	}

	authenticatedUser, err := h.userService.Authenticate(r.Context(), requestPayload.Email, requestPayload.Password)
	if err != nil {
		respondServiceError(w, err, "Failed to log in")
		return
	}

	token, err := h.tokens.Issue(authenticatedUser)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", authenticatedUser.ID).Msg("Failed to issue token on login")
		respondWithError(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	respondWithJSON(w, http.StatusOK, AuthResponse{
		Token: token,
		User:  *authenticatedUser,
	})
}
