package cart

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Cart struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Items     []Item    `json:"items" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Item is one cart line joined with the current catalog view of its product.
// A cart holds at most one Item per product; re-adding increments Quantity.
type Item struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	CartID          uuid.UUID       `json:"cart_id" db:"cart_id"`
	ProductID       uuid.UUID       `json:"product_id" db:"product_id"`
	Quantity        int             `json:"quantity" db:"quantity"`
	ProductName     string          `json:"product_name" db:"product_name"`
	ProductPrice    decimal.Decimal `json:"product_price" db:"product_price"`
	ProductImageURL string          `json:"product_image_url" db:"product_image_url"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}
