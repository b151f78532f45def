package cart_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavel-morozov/gelato-shop/internal/cart"
)

type mockRepository struct {
	getOrCreateFunc        func(ctx context.Context, userID uuid.UUID) (*cart.Cart, error)
	addItemFunc            func(ctx context.Context, userID, productID uuid.UUID, quantity int) (*cart.Item, error)
	updateItemQuantityFunc func(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*cart.Item, error)
	removeItemFunc         func(ctx context.Context, userID, itemID uuid.UUID) error
	clearFunc              func(ctx context.Context, userID uuid.UUID) error
}

func (m *mockRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*cart.Cart, error) {
	return m.getOrCreateFunc(ctx, userID)
}

func (m *mockRepository) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*cart.Item, error) {
	return m.addItemFunc(ctx, userID, productID, quantity)
}

func (m *mockRepository) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*cart.Item, error) {
	return m.updateItemQuantityFunc(ctx, userID, itemID, quantity)
}

func (m *mockRepository) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	return m.removeItemFunc(ctx, userID, itemID)
}

func (m *mockRepository) Clear(ctx context.Context, userID uuid.UUID) error {
	return m.clearFunc(ctx, userID)
}

func TestService_AddItem(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())
	productID := uuid.Must(uuid.NewV4())

	item := &cart.Item{
		ID:           uuid.Must(uuid.NewV4()),
		ProductID:    productID,
		Quantity:     2,
		ProductName:  "Chocolate",
		ProductPrice: decimal.RequireFromString("12.50"),
	}

	tests := []struct {
		name      string
		productID uuid.UUID
		quantity  int
		repoErr   error
		wantErr   error
	}{
		{"success", productID, 2, nil, nil},
		{"zero_quantity", productID, 0, nil, cart.ErrInvalidQuantity},
		{"negative_quantity", productID, -3, nil, cart.ErrInvalidQuantity},
		{"nil_product_id", uuid.Nil, 1, nil, cart.ErrProductNotFound},
		{"unknown_product", productID, 1, cart.ErrProductNotFound, cart.ErrProductNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{
				addItemFunc: func(ctx context.Context, gotUserID, gotProductID uuid.UUID, quantity int) (*cart.Item, error) {
					if tt.repoErr != nil {
						return nil, tt.repoErr
					}
					assert.Equal(t, userID, gotUserID)
					return item, nil
				},
			}
			svc := cart.NewService(repo)

			got, err := svc.AddItem(context.Background(), userID, tt.productID, tt.quantity)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, item, got)
		})
	}
}

func TestService_UpdateItemQuantity(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())
	itemID := uuid.Must(uuid.NewV4())

	t.Run("rejects_invalid_quantity", func(t *testing.T) {
		svc := cart.NewService(&mockRepository{})
		_, err := svc.UpdateItemQuantity(context.Background(), userID, itemID, 0)
		assert.ErrorIs(t, err, cart.ErrInvalidQuantity)
	})

	t.Run("item_not_found", func(t *testing.T) {
		repo := &mockRepository{
			updateItemQuantityFunc: func(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*cart.Item, error) {
				return nil, cart.ErrItemNotFound
			},
		}
		svc := cart.NewService(repo)
		_, err := svc.UpdateItemQuantity(context.Background(), userID, itemID, 5)
		assert.ErrorIs(t, err, cart.ErrItemNotFound)
	})

	t.Run("wraps_storage_error", func(t *testing.T) {
		repo := &mockRepository{
			updateItemQuantityFunc: func(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*cart.Item, error) {
				return nil, errors.New("connection lost")
			},
		}
		svc := cart.NewService(repo)
		_, err := svc.UpdateItemQuantity(context.Background(), userID, itemID, 5)
		require.Error(t, err)
		assert.NotErrorIs(t, err, cart.ErrItemNotFound)
	})
}

func TestService_GetCart(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())
	stored := &cart.Cart{
		ID:     uuid.Must(uuid.NewV4()),
		UserID: userID,
		Items:  []cart.Item{},
	}

	repo := &mockRepository{
		getOrCreateFunc: func(ctx context.Context, gotUserID uuid.UUID) (*cart.Cart, error) {
			assert.Equal(t, userID, gotUserID)
			return stored, nil
		},
	}
	svc := cart.NewService(repo)

	got, err := svc.GetCart(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, stored, got)
}

func TestService_RemoveItem(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())
	itemID := uuid.Must(uuid.NewV4())

	repo := &mockRepository{
		removeItemFunc: func(ctx context.Context, userID, gotItemID uuid.UUID) error {
			if gotItemID != itemID {
				return cart.ErrItemNotFound
			}
			return nil
		},
	}
	svc := cart.NewService(repo)

	assert.NoError(t, svc.RemoveItem(context.Background(), userID, itemID))
	assert.ErrorIs(t, svc.RemoveItem(context.Background(), userID, uuid.Must(uuid.NewV4())), cart.ErrItemNotFound)
}
