// AngelaMos | 2026
// checker.go

package access

import (
	"context"
	"log/slog"
	"time"
)

type ProfileSource interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}

type SubscriptionSource interface {
	HasActiveSubscription(ctx context.Context, userID string) (bool, error)
}

// Checker resolves a live entitlement decision for a user. Lookup failures
// fail closed: an unreachable store denies access, it never grants.
type Checker struct {
	profiles ProfileSource
	subs     SubscriptionSource
	now      func() time.Time
}

func NewChecker(profiles ProfileSource, subs SubscriptionSource) *Checker {
	return &Checker{
		profiles: profiles,
		subs:     subs,
		now:      time.Now,
	}
}

func (c *Checker) Check(ctx context.Context, userID string) Decision {
	if userID == "" {
		return Denied
	}

	profile, err := c.profiles.GetProfile(ctx, userID)
	if err != nil {
		slog.Warn("access check failed closed: profile lookup",
			"user_id", userID,
			"error", err,
		)
		return Denied
	}

	// Admins never need the subscription lookup.
	if profile.IsAdmin {
		return Decision{HasAccess: true, Reason: ReasonAdmin}
	}

	hasSub, err := c.subs.HasActiveSubscription(ctx, userID)
	if err != nil {
		slog.Warn("access check failed closed: subscription lookup",
			"user_id", userID,
			"error", err,
		)
		return Denied
	}

	return Derive(*profile, hasSub, c.now())
}
