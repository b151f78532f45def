package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavel-morozov/gelato-shop/internal/catalog"
)

type mockRepository struct {
	createFunc  func(ctx context.Context, p *catalog.Product) error
	getByIDFunc func(ctx context.Context, id uuid.UUID) (*catalog.Product, error)
	listFunc    func(ctx context.Context, filter catalog.ListFilter) ([]catalog.Product, error)
	updateFunc  func(ctx context.Context, p *catalog.Product) error
	deleteFunc  func(ctx context.Context, id uuid.UUID) error
}

func (m *mockRepository) Create(ctx context.Context, p *catalog.Product) error {
	return m.createFunc(ctx, p)
}

func (m *mockRepository) GetByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockRepository) List(ctx context.Context, filter catalog.ListFilter) ([]catalog.Product, error) {
	return m.listFunc(ctx, filter)
}

func (m *mockRepository) Update(ctx context.Context, p *catalog.Product) error {
	return m.updateFunc(ctx, p)
}

func (m *mockRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

func TestService_CreateProduct(t *testing.T) {
	tests := []struct {
		name    string
		product catalog.Product
		repoErr error
		wantErr bool
	}{
		{
			name:    "success",
			product: catalog.Product{Name: "Pistachio", Price: decimal.RequireFromString("15.00")},
		},
		{
			name:    "empty_name",
			product: catalog.Product{Price: decimal.RequireFromString("5.00")},
			wantErr: true,
		},
		{
			name:    "negative_price",
			product: catalog.Product{Name: "Broken", Price: decimal.RequireFromString("-1.00")},
			wantErr: true,
		},
		{
			name:    "free_product_allowed",
			product: catalog.Product{Name: "Sample Cone", Price: decimal.Zero},
		},
		{
			name:    "repository_failure",
			product: catalog.Product{Name: "Mango", Price: decimal.RequireFromString("8.00")},
			repoErr: errors.New("insert failed"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var createdID uuid.UUID
			repo := &mockRepository{
				createFunc: func(ctx context.Context, p *catalog.Product) error {
					if tt.repoErr != nil {
						return tt.repoErr
					}
					createdID = p.ID
					return nil
				},
			}
			svc := catalog.NewService(repo)

			got, err := svc.CreateProduct(context.Background(), &tt.product)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, got.ID, "service assigns the product id")
			assert.Equal(t, createdID, got.ID)
		})
	}
}

func TestService_GetProductByID(t *testing.T) {
	productID := uuid.Must(uuid.NewV4())
	stored := &catalog.Product{
		ID:    productID,
		Name:  "Stracciatella",
		Price: decimal.RequireFromString("18.00"),
	}

	repo := &mockRepository{
		getByIDFunc: func(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
			if id == productID {
				return stored, nil
			}
			return nil, catalog.ErrProductNotFound
		},
	}
	svc := catalog.NewService(repo)

	got, err := svc.GetProductByID(context.Background(), productID)
	require.NoError(t, err)
	assert.Equal(t, stored, got)

	_, err = svc.GetProductByID(context.Background(), uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestService_ListProducts(t *testing.T) {
	filter := catalog.ListFilter{Search: "choc", SortBy: "price", Order: "desc"}

	repo := &mockRepository{
		listFunc: func(ctx context.Context, gotFilter catalog.ListFilter) ([]catalog.Product, error) {
			assert.Equal(t, filter, gotFilter)
			return []catalog.Product{{Name: "Chocolate"}}, nil
		},
	}
	svc := catalog.NewService(repo)

	products, err := svc.ListProducts(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Chocolate", products[0].Name)
}

func TestService_UpdateProduct(t *testing.T) {
	productID := uuid.Must(uuid.NewV4())

	t.Run("rejects_invalid_product", func(t *testing.T) {
		svc := catalog.NewService(&mockRepository{})
		_, err := svc.UpdateProduct(context.Background(), &catalog.Product{ID: productID, Name: ""})
		assert.Error(t, err)
	})

	t.Run("not_found", func(t *testing.T) {
		repo := &mockRepository{
			updateFunc: func(ctx context.Context, p *catalog.Product) error {
				return catalog.ErrProductNotFound
			},
		}
		svc := catalog.NewService(repo)
		_, err := svc.UpdateProduct(context.Background(), &catalog.Product{
			ID:    productID,
			Name:  "Vanilla",
			Price: decimal.RequireFromString("10.00"),
		})
		assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	})
}

func TestService_DeleteProduct(t *testing.T) {
	productID := uuid.Must(uuid.NewV4())

	repo := &mockRepository{
		deleteFunc: func(ctx context.Context, id uuid.UUID) error {
			if id != productID {
				return catalog.ErrProductNotFound
			}
			return nil
		},
	}
	svc := catalog.NewService(repo)

	assert.NoError(t, svc.DeleteProduct(context.Background(), productID))
	assert.ErrorIs(t, svc.DeleteProduct(context.Background(), uuid.Must(uuid.NewV4())), catalog.ErrProductNotFound)
}
