package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/pavel-morozov/gelato-shop/internal/auth"
	"github.com/pavel-morozov/gelato-shop/internal/order"
)

type AddressPayload struct {
	PostalCode string `json:"postal_code" validate:"required"`
	Street     string `json:"street" validate:"required"`
	Number     string `json:"number" validate:"required"`
	Complement string `json:"complement"`
	District   string `json:"district" validate:"required"`
	City       string `json:"city" validate:"required"`
	Region     string `json:"region" validate:"required"`
}

type CheckoutRequest struct {
	DeliveryAddress AddressPayload `json:"delivery_address" validate:"required"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type OrderItemResponse struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderResponse struct {
	ID              uuid.UUID           `json:"id"`
	UserID          uuid.UUID           `json:"user_id"`
	Status          string              `json:"status"`
	Total           decimal.Decimal     `json:"total"`
	DeliveryAddress AddressPayload      `json:"delivery_address"`
	Items           []OrderItemResponse `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
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

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders", h.handleCheckout)
	router.Get("/orders", h.handleListOwnOrders)
	router.Get("/orders/{id}", h.handleGetOrder)
}

func (h *OrderHandler) RegisterStaffRoutes(router chi.Router) {
	router.Get("/orders/all", h.handleListAllOrders)
	router.Patch("/orders/{id}/status", h.handleUpdateStatus)
}

func (h *OrderHandler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	var payload CheckoutRequest
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
		log.Error().Err(err).Msg("Unexpected error type during checkout validation")
		respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		return
	}

	created, err := h.service.Checkout(r.Context(), claims.UserID, addressFromPayload(payload.DeliveryAddress))
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), checkoutErrorMessage(err))
		return
	}

	respondWithJSON(w, http.StatusCreated, orderToResponse(created))
}

func checkoutErrorMessage(err error) string {
	switch {
	case errors.Is(err, order.ErrEmptyCart):
		return "Cart is empty"
	case errors.Is(err, order.ErrInvalidLineItem):
		var lineErr *order.InvalidLineItemError
		if errors.As(err, &lineErr) {
			return lineErr.Error()
		}
		return "Cart contains an invalid line item"
	default:
		return "Failed to create order"
	}
}

func (h *OrderHandler) handleListOwnOrders(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	orders, err := h.service.ListUserOrders(r.Context(), claims.UserID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list user orders")
		respondWithError(w, http.StatusInternalServerError, "Failed to list orders")
		return
	}

	respondWithJSON(w, http.StatusOK, ordersToResponse(orders))
}

func (h *OrderHandler) handleListAllOrders(w http.ResponseWriter, r *http.Request) {
	var statusFilter *order.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := order.ParseStatus(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid status filter")
			return
		}
		statusFilter = &status
	}

	orders, err := h.service.ListOrders(r.Context(), statusFilter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list orders")
		respondWithError(w, http.StatusInternalServerError, "Failed to list orders")
		return
	}

	respondWithJSON(w, http.StatusOK, ordersToResponse(orders))
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	orderID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	o, err := h.service.GetOrderByID(r.Context(), orderID, claims.UserID, claims.Role)
	if err != nil {
		var clientMessage string
		switch {
		case errors.Is(err, order.ErrOrderNotFound):
			clientMessage = "Order not found"
		case errors.Is(err, order.ErrForbidden):
			clientMessage = "Access denied"
		default:
			log.Error().Err(err).Msg("Failed to get order")
			clientMessage = "Failed to get order"
		}
		respondWithError(w, mapErrorToStatusCode(err), clientMessage)
		return
	}

	respondWithJSON(w, http.StatusOK, orderToResponse(o))
}

func (h *OrderHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	var payload UpdateOrderStatusRequest
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

	newStatus, err := order.ParseStatus(payload.Status)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Unrecognized status value")
		return
	}

	updated, err := h.service.UpdateStatus(r.Context(), orderID, newStatus)
	if err != nil {
		var clientMessage string
		switch {
		case errors.Is(err, order.ErrOrderNotFound):
			clientMessage = "Order not found"
		case errors.Is(err, order.ErrInvalidTransition):
			clientMessage = err.Error()
		default:
			log.Error().Err(err).Msg("Failed to update order status")
			clientMessage = "Failed to update order status"
		}
		respondWithError(w, mapErrorToStatusCode(err), clientMessage)
		return
	}

	respondWithJSON(w, http.StatusOK, orderToResponse(updated))
}

func addressFromPayload(p AddressPayload) order.Address {
	return order.Address{
		PostalCode: p.PostalCode,
		Street:     p.Street,
		Number:     p.Number,
		Complement: p.Complement,
		District:   p.District,
		City:       p.City,
		Region:     p.Region,
	}
}

func addressToPayload(a order.Address) AddressPayload {
	return AddressPayload{
		PostalCode: a.PostalCode,
		Street:     a.Street,
		Number:     a.Number,
		Complement: a.Complement,
		District:   a.District,
		City:       a.City,
		Region:     a.Region,
	}
}

func orderToResponse(o *order.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return OrderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          o.Status.String(),
		Total:           o.Total,
		DeliveryAddress: addressToPayload(o.Address),
		Items:           items,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func ordersToResponse(orders []order.Order) []OrderResponse {
	result := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		result = append(result, orderToResponse(&orders[i]))
	}
	return result
}
