package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/don-sigaron/shop-backend/internal/category"
	"github.com/don-sigaron/shop-backend/internal/product"
)

type CategoryHandler struct {
	service        category.Service
	productService product.Service
}

func NewCategoryHandler(service category.Service, productService product.Service) *CategoryHandler {
	return &CategoryHandler{
		service:        service,
		productService: productService,
	}
}

func (h *CategoryHandler) RegisterRoutes(router chi.Router) {
	router.Get("/categories", h.handleListCategories)
	router.Get("/categories/{id}/children", h.handleListChildren)
	router.Get("/categories/{id}/products", h.handleListCategoryProducts)
}

func (h *CategoryHandler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list categories via service")
		respondServiceError(w, err, "Failed to list categories")
		return
	}

	respondWithJSON(w, http.StatusOK, categories)
}

func (h *CategoryHandler) handleListChildren(w http.ResponseWriter, r *http.Request) {
	categoryID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	children, err := h.service.ChildrenOf(r.Context(), categoryID)
	if err != nil {
		respondServiceError(w, err, "Failed to list subcategories")
		return
	}

	respondWithJSON(w, http.StatusOK, children)
}

func (h *CategoryHandler) handleListCategoryProducts(w http.ResponseWriter, r *http.Request) {
	categoryID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	products, err := h.productService.ListProducts(r.Context(), product.Filter{CategoryID: &categoryID})
	if err != nil {
		log.Error().Err(err).Stringer("category_id", categoryID).Msg("Failed to list category products via service")
		respondServiceError(w, err, "Failed to list products")
		return
	}

	respondWithJSON(w, http.StatusOK, products)
}
