// AngelaMos | 2026
// service_test.go

package billing

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76"

	"github.com/trailnetzero/community-api/internal/core"
)

type mockRepository struct {
	links map[string]string // userID -> customerID
	subs  map[string]*Subscription

	upsertSubErr  error
	upsertLinkErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		links: make(map[string]string),
		subs:  make(map[string]*Subscription),
	}
}

func (m *mockRepository) UpsertCustomerLink(
	_ context.Context,
	userID, customerID string,
) error {
	if m.upsertLinkErr != nil {
		return m.upsertLinkErr
	}
	m.links[userID] = customerID
	return nil
}

func (m *mockRepository) GetCustomerLink(
	_ context.Context,
	userID string,
) (*CustomerLink, error) {
	customerID, ok := m.links[userID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &CustomerLink{UserID: userID, CustomerID: customerID}, nil
}

func (m *mockRepository) GetUserIDByCustomer(
	_ context.Context,
	customerID string,
) (string, error) {
	for userID, cid := range m.links {
		if cid == customerID {
			return userID, nil
		}
	}
	return "", core.ErrNotFound
}

// UpsertSubscription mirrors the conditional upsert in SQL: a delivery
// carrying an older current_period_end is a no-op, and a nil user never
// erases one recorded earlier.
func (m *mockRepository) UpsertSubscription(
	_ context.Context,
	sub *Subscription,
) error {
	if m.upsertSubErr != nil {
		return m.upsertSubErr
	}

	if existing, ok := m.subs[sub.ID]; ok {
		if sub.CurrentPeriodEnd.Before(existing.CurrentPeriodEnd) {
			return nil
		}
		if sub.UserID == nil {
			sub.UserID = existing.UserID
		}
	}

	copied := *sub
	m.subs[sub.ID] = &copied
	return nil
}

func (m *mockRepository) GetSubscription(
	_ context.Context,
	id string,
) (*Subscription, error) {
	sub, ok := m.subs[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return sub, nil
}

func (m *mockRepository) GetSubscriptionForUser(
	_ context.Context,
	userID string,
) (*Subscription, error) {
	for _, sub := range m.subs {
		if sub.UserID != nil && *sub.UserID == userID {
			return sub, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *mockRepository) HasActiveSubscription(
	_ context.Context,
	userID string,
) (bool, error) {
	for _, sub := range m.subs {
		if sub.UserID != nil && *sub.UserID == userID && sub.GrantsAccess() {
			return true, nil
		}
	}
	return false, nil
}

type mockStripeClient struct {
	checkoutURL        string
	checkoutCustomerID string
	portalURL          string
	subscription       *stripe.Subscription
	subErr             error
}

func (m *mockStripeClient) CreateCheckoutSession(
	_ context.Context,
	_ string,
	customerID string,
) (string, error) {
	m.checkoutCustomerID = customerID
	return m.checkoutURL, nil
}

func (m *mockStripeClient) CreatePortalSession(
	_ context.Context,
	_ string,
) (string, error) {
	return m.portalURL, nil
}

func (m *mockStripeClient) GetSubscription(
	_ context.Context,
	_ string,
) (*stripe.Subscription, error) {
	return m.subscription, m.subErr
}

func newTestService(
	repo Repository,
	client StripeClient,
) *Service {
	return NewService(repo, client, slog.Default())
}

func stripeEvent(t *testing.T, eventType string, inner any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(inner)
	if err != nil {
		t.Fatal(err)
	}
	return stripe.Event{
		ID:   "evt_test",
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestStartCheckoutReusesCustomerLink(t *testing.T) {
	repo := newMockRepository()
	repo.links["u1"] = "cus_existing"
	client := &mockStripeClient{checkoutURL: "https://checkout.stripe.com/x"}
	svc := newTestService(repo, client)

	url, err := svc.StartCheckout(context.Background(), "u1")
	if err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}
	if url != "https://checkout.stripe.com/x" {
		t.Errorf("url = %q", url)
	}
	if client.checkoutCustomerID != "cus_existing" {
		t.Errorf("customer = %q, want existing link reused", client.checkoutCustomerID)
	}
}

func TestStartCheckoutFirstTime(t *testing.T) {
	client := &mockStripeClient{checkoutURL: "https://checkout.stripe.com/y"}
	svc := newTestService(newMockRepository(), client)

	if _, err := svc.StartCheckout(context.Background(), "u1"); err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}
	if client.checkoutCustomerID != "" {
		t.Errorf("customer = %q, want empty for a new member", client.checkoutCustomerID)
	}
}

func TestOpenPortalWithoutCustomer(t *testing.T) {
	svc := newTestService(newMockRepository(), &mockStripeClient{})

	_, err := svc.OpenPortal(context.Background(), "u1")
	if !errors.Is(err, ErrNoCustomer) {
		t.Errorf("err = %v, want ErrNoCustomer", err)
	}
}

func TestHandleCheckoutCompleted(t *testing.T) {
	periodEnd := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	repo := newMockRepository()
	client := &mockStripeClient{
		subscription: &stripe.Subscription{
			ID:               "sub_1",
			Customer:         &stripe.Customer{ID: "cus_1"},
			Status:           stripe.SubscriptionStatusActive,
			CurrentPeriodEnd: periodEnd.Unix(),
		},
	}
	svc := newTestService(repo, client)

	event := stripeEvent(t, "checkout.session.completed", map[string]any{
		"id":                  "cs_1",
		"client_reference_id": "u1",
		"customer":            map[string]any{"id": "cus_1"},
		"subscription":        map[string]any{"id": "sub_1"},
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if repo.links["u1"] != "cus_1" {
		t.Errorf("customer link = %q, want cus_1", repo.links["u1"])
	}

	sub, ok := repo.subs["sub_1"]
	if !ok {
		t.Fatal("subscription not persisted")
	}
	if sub.UserID == nil || *sub.UserID != "u1" {
		t.Errorf("subscription user = %v, want u1", sub.UserID)
	}
	if sub.Status != StatusActive {
		t.Errorf("status = %q, want active", sub.Status)
	}
	if !sub.CurrentPeriodEnd.Equal(periodEnd) {
		t.Errorf("period end = %v, want %v", sub.CurrentPeriodEnd, periodEnd)
	}
}

func TestHandleCheckoutCompletedMetadataUser(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockStripeClient{})

	event := stripeEvent(t, "checkout.session.completed", map[string]any{
		"id":       "cs_1",
		"customer": map[string]any{"id": "cus_2"},
		"metadata": map[string]string{"user_id": "u2"},
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if repo.links["u2"] != "cus_2" {
		t.Errorf("customer link = %q, want cus_2", repo.links["u2"])
	}
}

func TestHandleCheckoutCompletedMetadataWinsOverReferenceID(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockStripeClient{})

	// The metadata stamped at checkout creation is authoritative;
	// client_reference_id is only the fallback for sessions minted
	// elsewhere.
	event := stripeEvent(t, "checkout.session.completed", map[string]any{
		"id":                  "cs_1",
		"client_reference_id": "u-stale",
		"customer":            map[string]any{"id": "cus_3"},
		"metadata":            map[string]string{"user_id": "u3"},
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if repo.links["u3"] != "cus_3" {
		t.Errorf("customer link = %q, want cus_3 under u3", repo.links["u3"])
	}
	if _, ok := repo.links["u-stale"]; ok {
		t.Error("client_reference_id was linked despite metadata user")
	}
}

func TestHandleCheckoutCompletedIdempotent(t *testing.T) {
	periodEnd := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	repo := newMockRepository()
	client := &mockStripeClient{
		subscription: &stripe.Subscription{
			ID:               "sub_1",
			Customer:         &stripe.Customer{ID: "cus_1"},
			Status:           stripe.SubscriptionStatusActive,
			CurrentPeriodEnd: periodEnd.Unix(),
		},
	}
	svc := newTestService(repo, client)

	event := stripeEvent(t, "checkout.session.completed", map[string]any{
		"id":                  "cs_1",
		"client_reference_id": "u1",
		"customer":            map[string]any{"id": "cus_1"},
		"subscription":        map[string]any{"id": "sub_1"},
	})

	// Stripe redelivers; applying the same event twice must land in the
	// same state.
	for i := 0; i < 2; i++ {
		if err := svc.HandleEvent(context.Background(), event); err != nil {
			t.Fatalf("HandleEvent #%d: %v", i+1, err)
		}
	}

	if len(repo.links) != 1 || repo.links["u1"] != "cus_1" {
		t.Errorf("links = %v, want exactly one for u1", repo.links)
	}
	if len(repo.subs) != 1 {
		t.Fatalf("subs = %d, want exactly one", len(repo.subs))
	}
	sub := repo.subs["sub_1"]
	if sub.UserID == nil || *sub.UserID != "u1" {
		t.Errorf("subscription user = %v, want u1", sub.UserID)
	}
	if !sub.CurrentPeriodEnd.Equal(periodEnd) {
		t.Errorf("period end = %v, want %v", sub.CurrentPeriodEnd, periodEnd)
	}
}

func TestHandleSubscriptionUpdatesOutOfOrder(t *testing.T) {
	earlier := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	later := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	staleEvent := func(t *testing.T) stripe.Event {
		return stripeEvent(t, "customer.subscription.updated", map[string]any{
			"id":                 "sub_1",
			"customer":           map[string]any{"id": "cus_1"},
			"status":             "past_due",
			"current_period_end": earlier.Unix(),
		})
	}
	freshEvent := func(t *testing.T) stripe.Event {
		return stripeEvent(t, "customer.subscription.updated", map[string]any{
			"id":                 "sub_1",
			"customer":           map[string]any{"id": "cus_1"},
			"status":             "active",
			"current_period_end": later.Unix(),
		})
	}

	// Whatever order the deliveries arrive in, the row ends at the later
	// billing period.
	orders := []struct {
		name   string
		events []stripe.Event
	}{
		{"in order", []stripe.Event{staleEvent(t), freshEvent(t)}},
		{"reversed", []stripe.Event{freshEvent(t), staleEvent(t)}},
	}

	for _, tt := range orders {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository()
			repo.links["u1"] = "cus_1"
			svc := newTestService(repo, &mockStripeClient{})

			for _, ev := range tt.events {
				if err := svc.HandleEvent(context.Background(), ev); err != nil {
					t.Fatalf("HandleEvent: %v", err)
				}
			}

			sub := repo.subs["sub_1"]
			if sub == nil {
				t.Fatal("subscription not persisted")
			}
			if !sub.CurrentPeriodEnd.Equal(later) {
				t.Errorf("period end = %v, want %v", sub.CurrentPeriodEnd, later)
			}
			if sub.Status != StatusActive {
				t.Errorf("status = %q, want the later delivery's active", sub.Status)
			}
		})
	}
}

func TestHandleSubscriptionEventResolvesUserFromLink(t *testing.T) {
	repo := newMockRepository()
	repo.links["u1"] = "cus_1"
	svc := newTestService(repo, &mockStripeClient{})

	event := stripeEvent(t, "customer.subscription.updated", map[string]any{
		"id":                   "sub_1",
		"customer":             map[string]any{"id": "cus_1"},
		"status":               "trialing",
		"current_period_end":   time.Now().Add(720 * time.Hour).Unix(),
		"cancel_at_period_end": true,
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	sub := repo.subs["sub_1"]
	if sub == nil {
		t.Fatal("subscription not persisted")
	}
	if sub.UserID == nil || *sub.UserID != "u1" {
		t.Errorf("user = %v, want resolved from customer link", sub.UserID)
	}
	if sub.Status != StatusTrialing {
		t.Errorf("status = %q, want trialing", sub.Status)
	}
	if !sub.CancelAtPeriodEnd {
		t.Error("cancel_at_period_end not carried over")
	}
}

func TestHandleSubscriptionEventUnknownCustomer(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockStripeClient{})

	// No customer link yet: the subscription is still persisted so a later
	// checkout event can claim it.
	event := stripeEvent(t, "customer.subscription.created", map[string]any{
		"id":       "sub_orphan",
		"customer": map[string]any{"id": "cus_unknown"},
		"status":   "active",
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	sub := repo.subs["sub_orphan"]
	if sub == nil {
		t.Fatal("orphan subscription not persisted")
	}
	if sub.UserID != nil {
		t.Errorf("user = %v, want nil", sub.UserID)
	}
}

func TestHandleEventMalformedPayloadIsDropped(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockStripeClient{})

	event := stripe.Event{
		ID:   "evt_bad",
		Type: "customer.subscription.updated",
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id": 12345}`)},
	}

	// Malformed inner payload: drop, never ask Stripe to redeliver.
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Errorf("err = %v, want nil", err)
	}
	if len(repo.subs) != 0 {
		t.Error("malformed payload was persisted")
	}
}

func TestHandleEventPersistenceFailureIsReturned(t *testing.T) {
	repo := newMockRepository()
	repo.upsertSubErr = errors.New("db down")
	svc := newTestService(repo, &mockStripeClient{})

	event := stripeEvent(t, "customer.subscription.deleted", map[string]any{
		"id":       "sub_1",
		"customer": map[string]any{"id": "cus_1"},
		"status":   "canceled",
	})

	// Persistence failure: return the error so the delivery is retried.
	if err := svc.HandleEvent(context.Background(), event); err == nil {
		t.Error("expected error for failed persistence")
	}
}

func TestHandleEventIgnoresUnknownTypes(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockStripeClient{})

	event := stripeEvent(t, "invoice.paid", map[string]any{"id": "in_1"})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Errorf("err = %v, want nil for ignored type", err)
	}
}

func TestSubscriptionGrantsAccess(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{StatusActive, true},
		{StatusTrialing, true},
		{"past_due", false},
		{"canceled", false},
		{"unpaid", false},
		{"incomplete", false},
	}

	for _, tt := range tests {
		sub := Subscription{Status: tt.status}
		if got := sub.GrantsAccess(); got != tt.want {
			t.Errorf("GrantsAccess(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
