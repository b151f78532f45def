package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrItemNotFound    = errors.New("cart item not found")
	ErrProductNotFound = errors.New("product not found")
)

type Repository interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*Cart, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*Item, error)
	UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*Item, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	c, err := r.getByUserID(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrCartNotFound) {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to generate cart id: %w", err)
	}
	now := time.Now().UTC()

	// Another request may create the cart concurrently; the unique constraint
	// on user_id makes this a harmless no-op.
	query := `
		INSERT INTO carts (id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, id, userID, now, now); err != nil {
		return nil, fmt.Errorf("repository: failed to create cart for user %s: %w", userID, err)
	}

	return r.getByUserID(ctx, userID)
}

func (r *postgresRepository) getByUserID(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	var c Cart
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1`, userID,
	).Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("repository: failed to select cart for user %s: %w", userID, err)
	}

	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity,
		       p.name, p.price, p.image_url,
		       ci.created_at, ci.updated_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at
	`
	rows, err := r.db.Query(ctx, query, c.ID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query cart items for cart %s: %w", c.ID, err)
	}
	defer rows.Close()

	c.Items = make([]Item, 0)
	for rows.Next() {
		var item Item
		err := rows.Scan(
			&item.ID, &item.CartID, &item.ProductID, &item.Quantity,
			&item.ProductName, &item.ProductPrice, &item.ProductImageURL,
			&item.CreatedAt, &item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan cart item: %w", err)
		}
		c.Items = append(c.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating cart items: %w", err)
	}

	return &c, nil
}

func (r *postgresRepository) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*Item, error) {
	c, err := r.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	// The product reference is checked here rather than by a foreign key, so
	// that catalog deletions never mutate carts behind the user's back. A
	// product deleted after this check leaves a line that checkout rejects.
	var exists bool
	err = r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to check product %s: %w", productID, err)
	}
	if !exists {
		return nil, ErrProductNotFound
	}

	itemID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to generate cart item id: %w", err)
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
		RETURNING id
	`
	var insertedID uuid.UUID
	err = r.db.QueryRow(ctx, query, itemID, c.ID, productID, quantity, now, now).Scan(&insertedID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to upsert cart item: %w", err)
	}

	return r.getItem(ctx, c.ID, insertedID)
}

func (r *postgresRepository) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*Item, error) {
	c, err := r.getByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE cart_items
		SET quantity = $1, updated_at = $2
		WHERE id = $3 AND cart_id = $4
	`
	cmdTag, err := r.db.Exec(ctx, query, quantity, time.Now().UTC(), itemID, c.ID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to update cart item %s: %w", itemID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return nil, ErrItemNotFound
	}

	return r.getItem(ctx, c.ID, itemID)
}

func (r *postgresRepository) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	c, err := r.getByUserID(ctx, userID)
	if err != nil {
		return err
	}

	cmdTag, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, c.ID)
	if err != nil {
		return fmt.Errorf("repository: failed to delete cart item %s: %w", itemID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *postgresRepository) Clear(ctx context.Context, userID uuid.UUID) error {
	c, err := r.getByUserID(ctx, userID)
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, c.ID); err != nil {
		return fmt.Errorf("repository: failed to clear cart %s: %w", c.ID, err)
	}
	return nil
}

func (r *postgresRepository) getItem(ctx context.Context, cartID, itemID uuid.UUID) (*Item, error) {
	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity,
		       p.name, p.price, p.image_url,
		       ci.created_at, ci.updated_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.id = $1 AND ci.cart_id = $2
	`
	var item Item
	err := r.db.QueryRow(ctx, query, itemID, cartID).Scan(
		&item.ID, &item.CartID, &item.ProductID, &item.Quantity,
		&item.ProductName, &item.ProductPrice, &item.ProductImageURL,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("repository: failed to select cart item %s: %w", itemID, err)
	}
	return &item, nil
}
