package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/product"
	"ecoStepAPI/middleware"
	"ecoStepAPI/services"
)

type MarketplaceHandler struct {
	marketplaceService *services.MarketplaceService
}

func NewMarketplaceHandler(marketplaceService *services.MarketplaceService) *MarketplaceHandler {
	return &MarketplaceHandler{
		marketplaceService: marketplaceService,
	}
}

// viewerID is empty for anonymous requests on optionally authenticated
// routes.
func viewerID(ctx context.Context) string {
	userID, _ := middleware.GetUserID(ctx)
	return userID
}

func productQuery(r *http.Request) (services.ProductQuery, error) {
	v := r.URL.Query()
	q := services.ProductQuery{
		Category: product.Category(v.Get("category")),
		SortBy:   product.SortBy(v.Get("sortBy")),
	}

	if raw := v.Get("minEcoScore"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, apperr.Validation("Query parameter 'minEcoScore' must be an integer")
		}
		q.MinEcoScore = &n
	}
	if raw := v.Get("maxPrice"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, apperr.Validation("Query parameter 'maxPrice' must be a number")
		}
		q.MaxPrice = &f
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		return q, err
	}
	q.Limit = limit
	return q, nil
}

func (h *MarketplaceHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q, err := productQuery(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	products, err := h.marketplaceService.ListProducts(ctx, viewerID(ctx), q)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, products)
}

func (h *MarketplaceHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.marketplaceService.GetProduct(ctx, viewerID(ctx), mux.Vars(r)["id"])
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

func (h *MarketplaceHandler) TrackClick(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := authenticatedUser(ctx, w)
	if !ok {
		return
	}

	res, err := h.marketplaceService.TrackClick(ctx, userID, mux.Vars(r)["id"])
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, res)
}

func (h *MarketplaceHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	categories, err := h.marketplaceService.Categories(ctx)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, categories)
}

func (h *MarketplaceHandler) GetFeatured(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	products, err := h.marketplaceService.Featured(ctx)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, products)
}

func (h *MarketplaceHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	catalog, err := h.marketplaceService.Catalog(ctx, viewerID(ctx))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, catalog)
}
