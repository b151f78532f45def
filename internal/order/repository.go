package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Repository interface {
	CheckoutCart(ctx context.Context, userID uuid.UUID, addr Address) (*Order, error)
	GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error)
	List(ctx context.Context, status *Status) ([]Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to Status) (time.Time, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// CheckoutCart converts the user's cart into an order inside a single
// transaction. The cart lines are locked for the duration, so a concurrent
// checkout for the same user serializes behind this one and then finds the
// cart empty. On any error the transaction rolls back and the cart is left
// exactly as it was.
func (r *postgresRepository) CheckoutCart(ctx context.Context, userID uuid.UUID, addr Address) (o *Order, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to begin checkout transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("user_id", userID).Msg("Failed to rollback checkout after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Stringer("user_id", userID).Msg("Failed to rollback checkout transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				err = fmt.Errorf("repository: failed to commit checkout transaction: %w", commitErr)
				o = nil
			}
		}
	}()

	// Lock the cart lines. Products are read without locking: a price change
	// racing the checkout is benign, the order takes whichever price is
	// visible under this transaction.
	cartQuery := `
		SELECT c.id, ci.id, ci.quantity, ci.product_id, p.id, p.name, p.price
		FROM carts c
		JOIN cart_items ci ON ci.cart_id = c.id
		LEFT JOIN products p ON p.id = ci.product_id
		WHERE c.user_id = $1
		ORDER BY ci.created_at
		FOR UPDATE OF ci
	`
	rows, err := tx.Query(ctx, cartQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to load cart for user %s: %w", userID, err)
	}

	var (
		cartID uuid.UUID
		items  []Item
	)
	for rows.Next() {
		var (
			lineID    uuid.UUID
			quantity  int
			productID uuid.UUID
			prodID    uuid.NullUUID
			prodName  *string
			prodPrice decimal.NullDecimal
		)
		if scanErr := rows.Scan(&cartID, &lineID, &quantity, &productID, &prodID, &prodName, &prodPrice); scanErr != nil {
			rows.Close()
			err = fmt.Errorf("repository: failed to scan cart line: %w", scanErr)
			return nil, err
		}

		if !prodID.Valid || prodName == nil || !prodPrice.Valid {
			rows.Close()
			err = &InvalidLineItemError{CartItemID: lineID, ProductID: productID}
			return nil, err
		}

		items = append(items, Item{
			ProductID: productID,
			Name:      *prodName,
			Quantity:  quantity,
			UnitPrice: prodPrice.Decimal,
		})
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		err = fmt.Errorf("repository: error iterating cart lines: %w", rowsErr)
		return nil, err
	}

	if len(items) == 0 {
		err = ErrEmptyCart
		return nil, err
	}

	orderID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to generate order id: %w", err)
	}

	addrJSON, err := json.Marshal(addr)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to serialize delivery address: %w", err)
	}

	now := time.Now().UTC()
	total := ComputeTotal(items)

	insertOrder := `
		INSERT INTO orders (id, user_id, status, total, delivery_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.Exec(ctx, insertOrder, orderID, userID, string(StatusPending), total, string(addrJSON), now, now)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to insert order: %w", err)
	}

	insertItem := `
		INSERT INTO order_items (id, order_id, product_id, name, quantity, unit_price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i := range items {
		item := &items[i]

		itemID, genErr := uuid.NewV4()
		if genErr != nil {
			err = fmt.Errorf("repository: failed to generate order item id: %w", genErr)
			return nil, err
		}
		item.ID = itemID
		item.OrderID = orderID
		item.CreatedAt = now

		_, err = tx.Exec(ctx, insertItem, item.ID, orderID, item.ProductID, item.Name, item.Quantity, item.UnitPrice, now)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to insert order item for order %s: %w", orderID, err)
		}
	}

	_, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to clear cart %s: %w", cartID, err)
	}

	return &Order{
		ID:        orderID,
		UserID:    userID,
		Status:    StatusPending,
		Total:     total,
		Address:   addr,
		Items:     items,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	query := `
		SELECT id, user_id, status, total, delivery_address, created_at, updated_at
		FROM orders
		WHERE id = $1
	`
	var (
		o        Order
		rawAddr  string
		rawState string
	)
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&o.ID, &o.UserID, &rawState, &o.Total, &rawAddr, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order %s: %w", orderID, err)
	}
	o.Status = Status(rawState)

	if err := json.Unmarshal([]byte(rawAddr), &o.Address); err != nil {
		return nil, fmt.Errorf("repository: failed to decode delivery address for order %s: %w", orderID, err)
	}

	items, err := r.itemsByOrderIDs(ctx, []uuid.UUID{orderID})
	if err != nil {
		return nil, err
	}
	o.Items = items[orderID]
	if o.Items == nil {
		o.Items = make([]Item, 0)
	}

	return &o, nil
}

func (r *postgresRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	query := `
		SELECT id, user_id, status, total, delivery_address, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	return r.listOrders(ctx, query, userID)
}

func (r *postgresRepository) List(ctx context.Context, status *Status) ([]Order, error) {
	if status != nil {
		query := `
			SELECT id, user_id, status, total, delivery_address, created_at, updated_at
			FROM orders
			WHERE status = $1
			ORDER BY created_at DESC
		`
		return r.listOrders(ctx, query, string(*status))
	}

	query := `
		SELECT id, user_id, status, total, delivery_address, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
	`
	return r.listOrders(ctx, query)
}

func (r *postgresRepository) listOrders(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	ordersMap := make(map[uuid.UUID]*Order)
	var orderIDs []uuid.UUID

	for rows.Next() {
		var (
			o        Order
			rawAddr  string
			rawState string
		)
		err := rows.Scan(&o.ID, &o.UserID, &rawState, &o.Total, &rawAddr, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		o.Status = Status(rawState)
		if err := json.Unmarshal([]byte(rawAddr), &o.Address); err != nil {
			return nil, fmt.Errorf("repository: failed to decode delivery address for order %s: %w", o.ID, err)
		}
		o.Items = make([]Item, 0)
		ordersMap[o.ID] = &o
		orderIDs = append(orderIDs, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	if len(orderIDs) == 0 {
		return []Order{}, nil
	}

	itemsByOrder, err := r.itemsByOrderIDs(ctx, orderIDs)
	if err != nil {
		return nil, err
	}
	for orderID, items := range itemsByOrder {
		if o, ok := ordersMap[orderID]; ok {
			o.Items = items
		}
	}

	result := make([]Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		result = append(result, *ordersMap[id])
	}
	return result, nil
}

func (r *postgresRepository) itemsByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]Item, error) {
	query := `
		SELECT id, order_id, product_id, name, quantity, unit_price, created_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer rows.Close()

	result := make(map[uuid.UUID][]Item)
	for rows.Next() {
		var item Item
		err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Name, &item.Quantity, &item.UnitPrice, &item.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		result[item.OrderID] = append(result[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items: %w", err)
	}
	return result, nil
}

// UpdateStatus is a compare-and-set: the write only lands if the order still
// has the status the caller validated against. ErrStatusConflict means the
// order is missing or another update got there first; the caller must re-read
// before deciding anything.
func (r *postgresRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to Status) (time.Time, error) {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING updated_at
	`
	now := time.Now().UTC()

	var updatedAt time.Time
	err := r.db.QueryRow(ctx, query, string(to), now, orderID, string(from)).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrStatusConflict
		}
		return time.Time{}, fmt.Errorf("repository: failed to update status of order %s: %w", orderID, err)
	}
	return updatedAt, nil
}
