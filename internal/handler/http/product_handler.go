package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/don-sigaron/shop-backend/internal/product"
	"github.com/don-sigaron/shop-backend/internal/storage"
)

type ProductHandler struct {
	service product.Service
	media   *storage.Storage
}

func NewProductHandler(service product.Service, media *storage.Storage) *ProductHandler {
	return &ProductHandler{
		service: service,
		media:   media,
	}
}

// RegisterRoutes вешает публичные маршруты каталога.
func (h *ProductHandler) RegisterRoutes(router chi.Router) {
	router.Get("/products", h.handleListProducts)
	router.Get("/products/{id}", h.handleGetProduct)
}

// RegisterAdminRoutes вешает мутации каталога; router уже должен быть
// обёрнут в Authenticator + RequireAdmin.
func (h *ProductHandler) RegisterAdminRoutes(router chi.Router) {
	router.Post("/products", h.handleCreateProduct)
	router.Put("/products/{id}", h.handleUpdateProduct)
	router.Delete("/products/{id}", h.handleDeleteProduct)
}

func (h *ProductHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProductFilter(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	products, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list products via service")
		respondServiceError(w, err, "Failed to list products")
		return
	}

	respondWithJSON(w, http.StatusOK, products)
}

func parseProductFilter(r *http.Request) (product.Filter, error) {
	var filter product.Filter

	q := r.URL.Query()

	if raw := q.Get("category_id"); raw != "" {
		categoryID, err := uuid.FromString(raw)
		if err != nil {
			return filter, errors.New("invalid category_id parameter")
		}
		filter.CategoryID = &categoryID
	}
	if raw := q.Get("min_price"); raw != "" {
		minPrice, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return filter, errors.New("invalid min_price parameter")
		}
		filter.MinPrice = &minPrice
	}
	if raw := q.Get("max_price"); raw != "" {
		maxPrice, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return filter, errors.New("invalid max_price parameter")
		}
		filter.MaxPrice = &maxPrice
	}
	filter.Search = q.Get("search")

	return filter, nil
}

func (h *ProductHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	p, err := h.service.GetProduct(r.Context(), productID)
	if err != nil {
		respondServiceError(w, err, "Failed to get product")
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

// parseProductForm разбирает multipart-форму товара: текстовые поля
// плюс опциональная картинка. Картинка сохраняется сразу, в Input
// попадает только публичный путь.
func (h *ProductHandler) parseProductForm(r *http.Request) (product.Input, error) {
	var in product.Input

	// Запас к лимиту самой картинки — на текстовые поля формы
	if err := r.ParseMultipartForm(storage.MaxImageSize + 1<<20); err != nil {
		return in, fmt.Errorf("%w: invalid multipart form", product.ErrInvalidInput)
	}

	in.Name = r.FormValue("name")
	in.Description = r.FormValue("description")

	price, err := strconv.ParseFloat(r.FormValue("price"), 64)
	if err != nil {
		return in, fmt.Errorf("%w: invalid price field", product.ErrInvalidInput)
	}
	in.Price = price

	categoryID, err := uuid.FromString(r.FormValue("category_id"))
	if err != nil {
		return in, fmt.Errorf("%w: invalid category_id field", product.ErrInvalidInput)
	}
	in.CategoryID = categoryID

	quantity, err := strconv.Atoi(r.FormValue("quantity"))
	if err != nil {
		return in, fmt.Errorf("%w: invalid quantity field", product.ErrInvalidInput)
	}
	in.Quantity = quantity

	file, _, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return in, nil
		}
		return in, fmt.Errorf("%w: invalid image upload", product.ErrInvalidInput)
	}
	defer file.Close()

	imagePath, err := h.media.SaveImage(file)
	if err != nil {
		return in, err
	}
	in.Image = &imagePath

	return in, nil
}

func (h *ProductHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := h.parseProductForm(r)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	created, err := h.service.CreateProduct(r.Context(), in)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create product via service")
		respondServiceError(w, err, "Failed to create product")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *ProductHandler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	in, err := h.parseProductForm(r)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	updated, err := h.service.UpdateProduct(r.Context(), productID, in)
	if err != nil {
		log.Error().Err(err).Stringer("product_id", productID).Msg("Failed to update product via service")
		respondServiceError(w, err, "Failed to update product")
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *ProductHandler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	if err := h.service.DeleteProduct(r.Context(), productID); err != nil {
		log.Error().Err(err).Stringer("product_id", productID).Msg("Failed to delete product via service")
		respondServiceError(w, err, "Failed to delete product")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
