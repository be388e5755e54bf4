// AngelaMos | 2026
// entity.go

package billing

import (
	"time"
)

// CustomerLink ties a member to their Stripe customer. One customer per
// member; re-linking overwrites the previous customer id.
type CustomerLink struct {
	UserID     string    `db:"user_id"`
	CustomerID string    `db:"customer_id"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Subscription mirrors the provider's view of a subscription. The row id
// is Stripe's subscription id, not a locally generated one, so repeated
// webhook deliveries converge on a single row. UserID is nullable because
// a subscription event can arrive before the checkout completion that
// names its owner.
type Subscription struct {
	ID                string     `db:"id"`
	UserID            *string    `db:"user_id"`
	CustomerID        string     `db:"customer_id"`
	Status            string     `db:"status"`
	PriceID           string     `db:"price_id"`
	CurrentPeriodEnd  time.Time  `db:"current_period_end"`
	CancelAtPeriodEnd bool       `db:"cancel_at_period_end"`
	CanceledAt        *time.Time `db:"canceled_at"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// Statuses that grant membership access. Everything else (past_due,
// canceled, unpaid, incomplete, paused) does not.
const (
	StatusActive   = "active"
	StatusTrialing = "trialing"
)

func (s *Subscription) GrantsAccess() bool {
	return s.Status == StatusActive || s.Status == StatusTrialing
}
