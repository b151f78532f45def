package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavel-morozov/gelato-shop/internal/auth"
	"github.com/pavel-morozov/gelato-shop/internal/order"
	"github.com/pavel-morozov/gelato-shop/internal/user"
)

type mockOrderService struct {
	checkoutFunc       func(ctx context.Context, userID uuid.UUID, addr order.Address) (*order.Order, error)
	getOrderByIDFunc   func(ctx context.Context, orderID, requesterID uuid.UUID, requesterRole string) (*order.Order, error)
	listUserOrdersFunc func(ctx context.Context, userID uuid.UUID) ([]order.Order, error)
	listOrdersFunc     func(ctx context.Context, status *order.Status) ([]order.Order, error)
	updateStatusFunc   func(ctx context.Context, orderID uuid.UUID, newStatus order.Status) (*order.Order, error)
}

func (m *mockOrderService) Checkout(ctx context.Context, userID uuid.UUID, addr order.Address) (*order.Order, error) {
	return m.checkoutFunc(ctx, userID, addr)
}

func (m *mockOrderService) GetOrderByID(ctx context.Context, orderID, requesterID uuid.UUID, requesterRole string) (*order.Order, error) {
	return m.getOrderByIDFunc(ctx, orderID, requesterID, requesterRole)
}

func (m *mockOrderService) ListUserOrders(ctx context.Context, userID uuid.UUID) ([]order.Order, error) {
	return m.listUserOrdersFunc(ctx, userID)
}

func (m *mockOrderService) ListOrders(ctx context.Context, status *order.Status) ([]order.Order, error) {
	return m.listOrdersFunc(ctx, status)
}

func (m *mockOrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus order.Status) (*order.Order, error) {
	return m.updateStatusFunc(ctx, orderID, newStatus)
}

// newOrderRouter mirrors the production mounting: customer routes behind the
// authenticator, staff routes additionally behind the role check.
func newOrderRouter(svc order.Service, tokens *auth.Manager) chi.Router {
	handler := NewOrderHandler(svc)
	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(tokens.Authenticator)
		handler.RegisterRoutes(r)
	})
	router.Group(func(r chi.Router) {
		r.Use(tokens.Authenticator)
		r.Use(auth.RequireRole(user.RoleStaff, user.RoleAdmin))
		handler.RegisterStaffRoutes(r)
	})
	return router
}

func validCheckoutBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(CheckoutRequest{
		DeliveryAddress: AddressPayload{
			PostalCode: "01310-100",
			Street:     "Avenida Paulista",
			Number:     "1578",
			District:   "Bela Vista",
			City:       "Sao Paulo",
			Region:     "SP",
		},
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func bearerFor(t *testing.T, tokens *auth.Manager, userID uuid.UUID, role string) string {
	t.Helper()
	token, err := tokens.Issue(userID, role)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestOrderHandler_Checkout(t *testing.T) {
	tokens := auth.NewManager("test-secret", time.Hour)
	userID := uuid.Must(uuid.NewV4())

	created := &order.Order{
		ID:     uuid.Must(uuid.NewV4()),
		UserID: userID,
		Status: order.StatusPending,
		Total:  decimal.RequireFromString("35.00"),
		Items: []order.Item{
			{ID: uuid.Must(uuid.NewV4()), Name: "Chocolate", Quantity: 2, UnitPrice: decimal.RequireFromString("12.50")},
			{ID: uuid.Must(uuid.NewV4()), Name: "Vanilla", Quantity: 1, UnitPrice: decimal.RequireFromString("10.00")},
		},
	}

	t.Run("success", func(t *testing.T) {
		svc := &mockOrderService{
			checkoutFunc: func(ctx context.Context, gotUserID uuid.UUID, addr order.Address) (*order.Order, error) {
				assert.Equal(t, userID, gotUserID, "user id must come from the token, not the payload")
				assert.Equal(t, "Avenida Paulista", addr.Street)
				return created, nil
			},
		}
		router := newOrderRouter(svc, tokens)

		req := httptest.NewRequest(http.MethodPost, "/orders", validCheckoutBody(t))
		req.Header.Set("Authorization", bearerFor(t, tokens, userID, user.RoleCustomer))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		var got OrderResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "pending", got.Status)
		assert.True(t, got.Total.Equal(decimal.RequireFromString("35.00")))
		assert.Len(t, got.Items, 2)
	})

	t.Run("empty_cart", func(t *testing.T) {
		svc := &mockOrderService{
			checkoutFunc: func(ctx context.Context, userID uuid.UUID, addr order.Address) (*order.Order, error) {
				return nil, order.ErrEmptyCart
			},
		}
		router := newOrderRouter(svc, tokens)

		req := httptest.NewRequest(http.MethodPost, "/orders", validCheckoutBody(t))
		req.Header.Set("Authorization", bearerFor(t, tokens, userID, user.RoleCustomer))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "Cart is empty")
	})

	t.Run("invalid_line_item", func(t *testing.T) {
		svc := &mockOrderService{
			checkoutFunc: func(ctx context.Context, userID uuid.UUID, addr order.Address) (*order.Order, error) {
				return nil, &order.InvalidLineItemError{
					CartItemID: uuid.Must(uuid.NewV4()),
					ProductID:  uuid.Must(uuid.NewV4()),
				}
			},
		}
		router := newOrderRouter(svc, tokens)

		req := httptest.NewRequest(http.MethodPost, "/orders", validCheckoutBody(t))
		req.Header.Set("Authorization", bearerFor(t, tokens, userID, user.RoleCustomer))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("missing_address_fields", func(t *testing.T) {
		router := newOrderRouter(&mockOrderService{}, tokens)

		body := bytes.NewBufferString(`{"delivery_address": {"street": "Avenida Paulista"}}`)
		req := httptest.NewRequest(http.MethodPost, "/orders", body)
		req.Header.Set("Authorization", bearerFor(t, tokens, userID, user.RoleCustomer))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)

		var resp ValidationErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "Validation failed", resp.Error)
		assert.Contains(t, resp.Details, "PostalCode")
	})

	t.Run("unknown_field_rejected", func(t *testing.T) {
		router := newOrderRouter(&mockOrderService{}, tokens)

		body := bytes.NewBufferString(`{"cart_id": "ignored"}`)
		req := httptest.NewRequest(http.MethodPost, "/orders", body)
		req.Header.Set("Authorization", bearerFor(t, tokens, userID, user.RoleCustomer))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		router := newOrderRouter(&mockOrderService{}, tokens)

		req := httptest.NewRequest(http.MethodPost, "/orders", validCheckoutBody(t))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestOrderHandler_GetOrder(t *testing.T) {
	tokens := auth.NewManager("test-secret", time.Hour)
	ownerID := uuid.Must(uuid.NewV4())
	orderID := uuid.Must(uuid.NewV4())

	stored := &order.Order{ID: orderID, UserID: ownerID, Status: order.StatusPending}

	svc := &mockOrderService{
		getOrderByIDFunc: func(ctx context.Context, gotOrderID, requesterID uuid.UUID, requesterRole string) (*order.Order, error) {
			if gotOrderID != orderID {
				return nil, order.ErrOrderNotFound
			}
			if requesterID != ownerID && requesterRole == user.RoleCustomer {
				return nil, order.ErrForbidden
			}
			return stored, nil
		},
	}
	router := newOrderRouter(svc, tokens)

	get := func(t *testing.T, path string, requesterID uuid.UUID, role string) *httptest.ResponseRecorder {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", bearerFor(t, tokens, requesterID, role))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	t.Run("owner_reads_own_order", func(t *testing.T) {
		rr := get(t, "/orders/"+orderID.String(), ownerID, user.RoleCustomer)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("stranger_gets_403", func(t *testing.T) {
		rr := get(t, "/orders/"+orderID.String(), uuid.Must(uuid.NewV4()), user.RoleCustomer)
		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Contains(t, rr.Body.String(), "Access denied")
	})

	t.Run("unknown_order_404", func(t *testing.T) {
		rr := get(t, "/orders/"+uuid.Must(uuid.NewV4()).String(), ownerID, user.RoleCustomer)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("malformed_id_400", func(t *testing.T) {
		rr := get(t, "/orders/not-a-uuid", ownerID, user.RoleCustomer)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestOrderHandler_ListAllOrders(t *testing.T) {
	tokens := auth.NewManager("test-secret", time.Hour)
	staffID := uuid.Must(uuid.NewV4())

	t.Run("status_filter_parsed", func(t *testing.T) {
		svc := &mockOrderService{
			listOrdersFunc: func(ctx context.Context, status *order.Status) ([]order.Order, error) {
				require.NotNil(t, status)
				assert.Equal(t, order.StatusShipped, *status)
				return []order.Order{}, nil
			},
		}
		router := newOrderRouter(svc, tokens)

		req := httptest.NewRequest(http.MethodGet, "/orders/all?status=shipped", nil)
		req.Header.Set("Authorization", bearerFor(t, tokens, staffID, user.RoleStaff))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("bad_status_filter", func(t *testing.T) {
		router := newOrderRouter(&mockOrderService{}, tokens)

		req := httptest.NewRequest(http.MethodGet, "/orders/all?status=lost", nil)
		req.Header.Set("Authorization", bearerFor(t, tokens, staffID, user.RoleStaff))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("customer_gets_403", func(t *testing.T) {
		router := newOrderRouter(&mockOrderService{}, tokens)

		req := httptest.NewRequest(http.MethodGet, "/orders/all", nil)
		req.Header.Set("Authorization", bearerFor(t, tokens, uuid.Must(uuid.NewV4()), user.RoleCustomer))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestOrderHandler_UpdateStatus(t *testing.T) {
	tokens := auth.NewManager("test-secret", time.Hour)
	staffID := uuid.Must(uuid.NewV4())
	orderID := uuid.Must(uuid.NewV4())

	patch := func(t *testing.T, svc order.Service, body string) *httptest.ResponseRecorder {
		t.Helper()
		router := newOrderRouter(svc, tokens)
		req := httptest.NewRequest(http.MethodPatch, "/orders/"+orderID.String()+"/status", bytes.NewBufferString(body))
		req.Header.Set("Authorization", bearerFor(t, tokens, staffID, user.RoleStaff))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	t.Run("success", func(t *testing.T) {
		svc := &mockOrderService{
			updateStatusFunc: func(ctx context.Context, gotOrderID uuid.UUID, newStatus order.Status) (*order.Order, error) {
				assert.Equal(t, orderID, gotOrderID)
				assert.Equal(t, order.StatusProcessing, newStatus)
				return &order.Order{ID: orderID, Status: order.StatusProcessing}, nil
			},
		}
		rr := patch(t, svc, `{"status": "processing"}`)

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Contains(t, rr.Body.String(), `"status":"processing"`)
	})

	t.Run("illegal_transition", func(t *testing.T) {
		svc := &mockOrderService{
			updateStatusFunc: func(ctx context.Context, orderID uuid.UUID, newStatus order.Status) (*order.Order, error) {
				return nil, order.ErrInvalidTransition
			},
		}
		rr := patch(t, svc, `{"status": "delivered"}`)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("unknown_status_value", func(t *testing.T) {
		rr := patch(t, &mockOrderService{}, `{"status": "misplaced"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing_status", func(t *testing.T) {
		rr := patch(t, &mockOrderService{}, `{}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("order_not_found", func(t *testing.T) {
		svc := &mockOrderService{
			updateStatusFunc: func(ctx context.Context, orderID uuid.UUID, newStatus order.Status) (*order.Order, error) {
				return nil, order.ErrOrderNotFound
			},
		}
		rr := patch(t, svc, `{"status": "processing"}`)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
