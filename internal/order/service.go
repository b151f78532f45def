package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pavel-morozov/gelato-shop/internal/notify"
	"github.com/pavel-morozov/gelato-shop/internal/user"
)

type Service interface {
	Checkout(ctx context.Context, userID uuid.UUID, addr Address) (*Order, error)
	GetOrderByID(ctx context.Context, orderID, requesterID uuid.UUID, requesterRole string) (*Order, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID) ([]Order, error)
	ListOrders(ctx context.Context, status *Status) ([]Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) (*Order, error)
}

// statusUpdateAttempts bounds the compare-and-set retry loop in UpdateStatus.
const statusUpdateAttempts = 3

type service struct {
	repo      Repository
	publisher notify.Publisher
}

func NewService(repo Repository, publisher notify.Publisher) Service {
	return &service{repo: repo, publisher: publisher}
}

// Checkout converts the user's cart into a pending order. All state changes
// happen inside one transaction in the repository; the created order is only
// returned after a successful commit.
func (s *service) Checkout(ctx context.Context, userID uuid.UUID, addr Address) (*Order, error) {
	o, err := s.repo.CheckoutCart(ctx, userID, addr)
	if err != nil {
		if errors.Is(err, ErrEmptyCart) || errors.Is(err, ErrInvalidLineItem) {
			log.Warn().Err(err).Stringer("user_id", userID).Msg("service: checkout rejected")
			return nil, err
		}
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: checkout failed")
		return nil, fmt.Errorf("service: checkout failed: %w", err)
	}

	log.Info().
		Stringer("order_id", o.ID).
		Stringer("user_id", o.UserID).
		Str("total", o.Total.StringFixed(2)).
		Msg("service: order created")

	s.publishEvent(ctx, notify.EventOrderCreated, o)

	return o, nil
}

func (s *service) GetOrderByID(ctx context.Context, orderID, requesterID uuid.UUID, requesterRole string) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch order: %w", err)
	}

	if o.UserID != requesterID && requesterRole != user.RoleStaff && requesterRole != user.RoleAdmin {
		log.Warn().
			Stringer("order_id", orderID).
			Stringer("requester_id", requesterID).
			Msg("service: denied access to another user's order")
		return nil, ErrForbidden
	}

	return o, nil
}

func (s *service) ListUserOrders(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	orders, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}
	return orders, nil
}

func (s *service) ListOrders(ctx context.Context, status *Status) ([]Order, error) {
	orders, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("service: failed to fetch orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus moves the order along its lifecycle. The target must be a
// recognized status and the transition must follow the legal edges; delivered
// and cancelled orders never change again. The write is a compare-and-set
// against the status the transition was validated on, so a concurrent update
// forces a re-read and re-validation instead of silently overwriting.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) (*Order, error) {
	for attempt := 0; attempt < statusUpdateAttempts; attempt++ {
		current, err := s.repo.GetByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, ErrOrderNotFound) {
				return nil, ErrOrderNotFound
			}
			return nil, fmt.Errorf("service: failed to fetch order for status update: %w", err)
		}

		if current.Status == newStatus {
			log.Info().Stringer("order_id", orderID).Stringer("status", newStatus).Msg("service: status already set, nothing to do")
			return current, nil
		}

		if !current.Status.CanTransitionTo(newStatus) {
			log.Warn().
				Stringer("order_id", orderID).
				Stringer("current_status", current.Status).
				Stringer("new_status", newStatus).
				Msg("service: rejected status transition")
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, newStatus)
		}

		updatedAt, err := s.repo.UpdateStatus(ctx, orderID, current.Status, newStatus)
		if errors.Is(err, ErrStatusConflict) {
			log.Warn().
				Stringer("order_id", orderID).
				Stringer("expected_status", current.Status).
				Msg("service: concurrent status update, re-reading")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("service: failed to update order status: %w", err)
		}

		current.Status = newStatus
		current.UpdatedAt = updatedAt

		log.Info().
			Stringer("order_id", orderID).
			Stringer("new_status", newStatus).
			Msg("service: order status updated")

		s.publishEvent(ctx, notify.EventOrderStatusChanged, current)

		return current, nil
	}

	return nil, fmt.Errorf("service: gave up updating status of order %s: %w", orderID, ErrStatusConflict)
}

// publishEvent pushes an order event to the relay. Best-effort and at most
// once: a failed publish is logged and never affects the caller's result.
func (s *service) publishEvent(ctx context.Context, eventType string, o *Order) {
	event := notify.OrderEvent{
		Type:       eventType,
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     o.Status.String(),
		OccurredAt: time.Now().UTC(),
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := s.publisher.Publish(pubCtx, notify.TopicOrderEvents, event); err != nil {
		log.Warn().Err(err).Stringer("order_id", o.ID).Str("event", eventType).Msg("service: failed to publish order event")
	}
}
