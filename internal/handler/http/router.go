package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/don-sigaron/shop-backend/internal/auth"
	"github.com/don-sigaron/shop-backend/internal/storage"
)

// Handlers собирает все обработчики сервиса для маршрутизации.
type Handlers struct {
	Auth     *AuthHandler
	Category *CategoryHandler
	Product  *ProductHandler
	Order    *OrderHandler
	User     *UserHandler
}

// NewRouter строит дерево маршрутов: публичный каталог,
// пользовательские операции за Authenticator и административные
// мутации за RequireAdmin.
func NewRouter(h Handlers, tokens *auth.TokenManager, media *storage.Storage) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(RequestLogger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	router.Route("/api", func(api chi.Router) {
		// Публичные маршруты: каталог и вход
		h.Auth.RegisterRoutes(api)
		h.Category.RegisterRoutes(api)
		h.Product.RegisterRoutes(api)

		// Маршруты владельца аккаунта
		api.Group(func(authed chi.Router) {
			authed.Use(Authenticator(tokens))
			h.Order.RegisterRoutes(authed)
			h.User.RegisterProfileRoutes(authed)
		})

		// Административные мутации
		api.Group(func(admin chi.Router) {
			admin.Use(Authenticator(tokens))
			admin.Use(RequireAdmin)
			h.Product.RegisterAdminRoutes(admin)
			h.User.RegisterAdminRoutes(admin)
		})
	})

	// Загруженные изображения товаров
	fileServer := http.FileServer(http.Dir(media.Dir()))
	router.Handle("/media/*", http.StripPrefix("/media/", fileServer))

	return router
}
