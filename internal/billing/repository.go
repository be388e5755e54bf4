// AngelaMos | 2026
// repository.go

package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/trailnetzero/community-api/internal/core"
)

type Repository interface {
	UpsertCustomerLink(ctx context.Context, userID, customerID string) error
	GetCustomerLink(ctx context.Context, userID string) (*CustomerLink, error)
	GetUserIDByCustomer(ctx context.Context, customerID string) (string, error)
	UpsertSubscription(ctx context.Context, sub *Subscription) error
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	GetSubscriptionForUser(
		ctx context.Context,
		userID string,
	) (*Subscription, error)
	HasActiveSubscription(ctx context.Context, userID string) (bool, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) UpsertCustomerLink(
	ctx context.Context,
	userID, customerID string,
) error {
	query := `
		INSERT INTO stripe_customer_links (user_id, customer_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET customer_id = EXCLUDED.customer_id, updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, userID, customerID); err != nil {
		return fmt.Errorf("upsert customer link: %w", err)
	}

	return nil
}

func (r *repository) GetCustomerLink(
	ctx context.Context,
	userID string,
) (*CustomerLink, error) {
	query := `
		SELECT user_id, customer_id, created_at, updated_at
		FROM stripe_customer_links
		WHERE user_id = $1`

	var link CustomerLink
	err := r.db.GetContext(ctx, &link, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get customer link: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get customer link: %w", err)
	}

	return &link, nil
}

func (r *repository) GetUserIDByCustomer(
	ctx context.Context,
	customerID string,
) (string, error) {
	query := `
		SELECT user_id
		FROM stripe_customer_links
		WHERE customer_id = $1`

	var userID string
	err := r.db.GetContext(ctx, &userID, query, customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("get user by customer: %w", core.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get user by customer: %w", err)
	}

	return userID, nil
}

// UpsertSubscription writes the provider's view of a subscription.
// Out-of-order and duplicate webhook deliveries are absorbed here: an
// update only lands when its billing period is at least as new as the
// stored one, and a known owner is never overwritten with null.
func (r *repository) UpsertSubscription(
	ctx context.Context,
	sub *Subscription,
) error {
	query := `
		INSERT INTO subscriptions (
			id, user_id, customer_id, status, price_id,
			current_period_end, cancel_at_period_end, canceled_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		ON CONFLICT (id) DO UPDATE SET
			user_id = COALESCE(EXCLUDED.user_id, subscriptions.user_id),
			customer_id = EXCLUDED.customer_id,
			status = EXCLUDED.status,
			price_id = EXCLUDED.price_id,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			canceled_at = EXCLUDED.canceled_at,
			updated_at = NOW()
		WHERE EXCLUDED.current_period_end >= subscriptions.current_period_end`

	if _, err := r.db.ExecContext(ctx, query,
		sub.ID,
		sub.UserID,
		sub.CustomerID,
		sub.Status,
		sub.PriceID,
		sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd,
		sub.CanceledAt,
	); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}

	return nil
}

func (r *repository) GetSubscription(
	ctx context.Context,
	id string,
) (*Subscription, error) {
	query := `
		SELECT id, user_id, customer_id, status, price_id,
		       current_period_end, cancel_at_period_end, canceled_at,
		       created_at, updated_at
		FROM subscriptions
		WHERE id = $1`

	var sub Subscription
	err := r.db.GetContext(ctx, &sub, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get subscription: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}

	return &sub, nil
}

func (r *repository) GetSubscriptionForUser(
	ctx context.Context,
	userID string,
) (*Subscription, error) {
	query := `
		SELECT id, user_id, customer_id, status, price_id,
		       current_period_end, cancel_at_period_end, canceled_at,
		       created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY current_period_end DESC
		LIMIT 1`

	var sub Subscription
	err := r.db.GetContext(ctx, &sub, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get subscription for user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription for user: %w", err)
	}

	return &sub, nil
}

func (r *repository) HasActiveSubscription(
	ctx context.Context,
	userID string,
) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1
			FROM subscriptions
			WHERE user_id = $1 AND status IN ('active', 'trialing')
		)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID); err != nil {
		return false, fmt.Errorf("check active subscription: %w", err)
	}

	return exists, nil
}
