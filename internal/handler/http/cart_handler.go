package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pavel-morozov/gelato-shop/internal/auth"
	"github.com/pavel-morozov/gelato-shop/internal/cart"
)

type AddCartItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type CartHandler struct {
	service  cart.Service
	validate *validator.Validate
}

func NewCartHandler(service cart.Service) *CartHandler {
	return &CartHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *CartHandler) RegisterRoutes(router chi.Router) {
	router.Get("/cart", h.handleGetCart)
	router.Post("/cart/items", h.handleAddItem)
	router.Put("/cart/items/{itemID}", h.handleUpdateItem)
	router.Delete("/cart/items/{itemID}", h.handleRemoveItem)
	router.Delete("/cart", h.handleClear)
}

func (h *CartHandler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	c, err := h.service.GetCart(r.Context(), claims.UserID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get cart")
		respondWithError(w, http.StatusInternalServerError, "Failed to get cart")
		return
	}

	respondWithJSON(w, http.StatusOK, c)
}

func (h *CartHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	var payload AddCartItemRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		if respondWithValidationErrors(w, err) {
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		return
	}

	productID, err := uuid.FromString(payload.ProductID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	item, err := h.service.AddItem(r.Context(), claims.UserID, productID, payload.Quantity)
	if err != nil {
		var clientMessage string
		switch {
		case errors.Is(err, cart.ErrProductNotFound):
			clientMessage = "Product not found"
		case errors.Is(err, cart.ErrInvalidQuantity):
			clientMessage = "Quantity must be at least 1"
		default:
			log.Error().Err(err).Msg("Failed to add cart item")
			clientMessage = "Failed to add cart item"
		}
		respondWithError(w, mapErrorToStatusCode(err), clientMessage)
		return
	}

	respondWithJSON(w, http.StatusCreated, item)
}

func (h *CartHandler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	itemID, err := uuid.FromString(chi.URLParam(r, "itemID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	var payload UpdateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		if respondWithValidationErrors(w, err) {
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		return
	}

	item, err := h.service.UpdateItemQuantity(r.Context(), claims.UserID, itemID, payload.Quantity)
	if err != nil {
		var clientMessage string
		switch {
		case errors.Is(err, cart.ErrItemNotFound), errors.Is(err, cart.ErrCartNotFound):
			clientMessage = "Cart item not found"
		case errors.Is(err, cart.ErrInvalidQuantity):
			clientMessage = "Quantity must be at least 1"
		default:
			log.Error().Err(err).Msg("Failed to update cart item")
			clientMessage = "Failed to update cart item"
		}
		respondWithError(w, mapErrorToStatusCode(err), clientMessage)
		return
	}

	respondWithJSON(w, http.StatusOK, item)
}

func (h *CartHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	itemID, err := uuid.FromString(chi.URLParam(r, "itemID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	if err := h.service.RemoveItem(r.Context(), claims.UserID, itemID); err != nil {
		var clientMessage string
		switch {
		case errors.Is(err, cart.ErrItemNotFound), errors.Is(err, cart.ErrCartNotFound):
			clientMessage = "Cart item not found"
		default:
			log.Error().Err(err).Msg("Failed to remove cart item")
			clientMessage = "Failed to remove cart item"
		}
		respondWithError(w, mapErrorToStatusCode(err), clientMessage)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) handleClear(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	if err := h.service.Clear(r.Context(), claims.UserID); err != nil {
		var clientMessage string
		switch {
		case errors.Is(err, cart.ErrCartNotFound):
			clientMessage = "Cart not found"
		default:
			log.Error().Err(err).Msg("Failed to clear cart")
			clientMessage = "Failed to clear cart"
		}
		respondWithError(w, mapErrorToStatusCode(err), clientMessage)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
