// AngelaMos | 2026
// service.go

package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v76"

	"github.com/trailnetzero/community-api/internal/access"
	"github.com/trailnetzero/community-api/internal/core"
)

var ErrNoCustomer = errors.New("no billing customer for user")

type Service struct {
	repo   Repository
	stripe StripeClient
	logger *slog.Logger
}

func NewService(
	repo Repository,
	stripeClient StripeClient,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:   repo,
		stripe: stripeClient,
		logger: logger,
	}
}

// StartCheckout creates a Checkout session for the member and returns the
// hosted payment page URL. An existing customer link is reused so Stripe
// does not mint a second customer for the same member.
func (s *Service) StartCheckout(
	ctx context.Context,
	userID string,
) (string, error) {
	customerID := ""
	link, err := s.repo.GetCustomerLink(ctx, userID)
	if err == nil {
		customerID = link.CustomerID
	} else if !errors.Is(err, core.ErrNotFound) {
		return "", fmt.Errorf("start checkout: %w", err)
	}

	url, err := s.stripe.CreateCheckoutSession(ctx, userID, customerID)
	if err != nil {
		return "", fmt.Errorf("start checkout: %w", err)
	}

	return url, nil
}

// OpenPortal creates a billing portal session. Members who never checked
// out have no customer and get ErrNoCustomer.
func (s *Service) OpenPortal(
	ctx context.Context,
	userID string,
) (string, error) {
	link, err := s.repo.GetCustomerLink(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return "", ErrNoCustomer
	}
	if err != nil {
		return "", fmt.Errorf("open portal: %w", err)
	}

	url, err := s.stripe.CreatePortalSession(ctx, link.CustomerID)
	if err != nil {
		return "", fmt.Errorf("open portal: %w", err)
	}

	return url, nil
}

func (s *Service) GetSubscriptionForUser(
	ctx context.Context,
	userID string,
) (*Subscription, error) {
	return s.repo.GetSubscriptionForUser(ctx, userID)
}

// HandleEvent applies a verified webhook event to local state. A payload
// that parses as an event but carries a malformed inner object is logged
// and dropped, not retried: returning an error would make Stripe redeliver
// a payload that can never succeed. Persistence failures do return errors
// so the delivery is retried.
func (s *Service) HandleEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted":
		return s.handleSubscriptionEvent(ctx, event)
	default:
		s.logger.Debug("ignoring stripe event", "type", event.Type)
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(
	ctx context.Context,
	event stripe.Event,
) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		s.logger.Warn("malformed checkout session payload",
			"event_id", event.ID, "error", err)
		return nil
	}

	// Metadata is what checkout creation stamps; client_reference_id is
	// the fallback for sessions minted elsewhere.
	userID := ""
	if session.Metadata != nil {
		userID = session.Metadata["user_id"]
	}
	if userID == "" {
		userID = session.ClientReferenceID
	}
	if userID == "" {
		s.logger.Warn("checkout session without user reference",
			"event_id", event.ID)
		return nil
	}

	if session.Customer == nil {
		s.logger.Warn("checkout session without customer",
			"event_id", event.ID, "user_id", userID)
		return nil
	}

	if err := s.repo.UpsertCustomerLink(
		ctx, userID, session.Customer.ID,
	); err != nil {
		return fmt.Errorf("handle checkout completed: %w", err)
	}

	// Checkout payloads carry only a subscription reference. Pull the
	// full object so period end and status land in the same write.
	if session.Subscription != nil {
		sub, err := s.stripe.GetSubscription(ctx, session.Subscription.ID)
		if err != nil {
			return fmt.Errorf("handle checkout completed: %w", err)
		}
		return s.persistSubscription(ctx, sub, userID)
	}

	return nil
}

func (s *Service) handleSubscriptionEvent(
	ctx context.Context,
	event stripe.Event,
) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		s.logger.Warn("malformed subscription payload",
			"event_id", event.ID, "error", err)
		return nil
	}

	userID := ""
	if sub.Metadata != nil {
		userID = sub.Metadata["user_id"]
	}

	if userID == "" && sub.Customer != nil {
		resolved, err := s.repo.GetUserIDByCustomer(ctx, sub.Customer.ID)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("handle subscription event: %w", err)
		}
		userID = resolved
	}

	return s.persistSubscription(ctx, &sub, userID)
}

func (s *Service) persistSubscription(
	ctx context.Context,
	sub *stripe.Subscription,
	userID string,
) error {
	if sub.ID == "" || sub.Customer == nil {
		s.logger.Warn("subscription payload missing id or customer")
		return nil
	}

	record := &Subscription{
		ID:                sub.ID,
		CustomerID:        sub.Customer.ID,
		Status:            string(sub.Status),
		CurrentPeriodEnd:  time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}

	if userID != "" {
		record.UserID = &userID
	}

	if sub.CanceledAt > 0 {
		canceledAt := time.Unix(sub.CanceledAt, 0).UTC()
		record.CanceledAt = &canceledAt
	}

	if sub.Items != nil && len(sub.Items.Data) > 0 &&
		sub.Items.Data[0].Price != nil {
		record.PriceID = sub.Items.Data[0].Price.ID
	}

	if err := s.repo.UpsertSubscription(ctx, record); err != nil {
		return fmt.Errorf("persist subscription: %w", err)
	}

	s.logger.Info("subscription state updated",
		"subscription_id", record.ID,
		"status", record.Status,
		"user_id", userID)

	return nil
}

// HasActiveSubscription reports whether the member holds a subscription
// in a status that grants access.
func (s *Service) HasActiveSubscription(
	ctx context.Context,
	userID string,
) (bool, error) {
	return s.repo.HasActiveSubscription(ctx, userID)
}

var _ access.SubscriptionSource = (*Service)(nil)
