// AngelaMos | 2026
// access.go

package access

import (
	"time"
)

// Profile carries the stored facts entitlement is derived from.
type Profile struct {
	UserID      string
	IsAdmin     bool
	TrialEndsAt *time.Time
}

type Reason string

const (
	ReasonAdmin              Reason = "admin"
	ReasonSubscriptionActive Reason = "subscriptionActive"
	ReasonTrialActive        Reason = "trialActive"
	ReasonTrialExpired       Reason = "trialExpired"
	ReasonNoAccess           Reason = "noAccess"
)

// Decision is ephemeral: recomputed on every check, never persisted.
type Decision struct {
	HasAccess bool   `json:"has_access"`
	Reason    Reason `json:"reason"`
}

var Denied = Decision{HasAccess: false, Reason: ReasonNoAccess}

// Derive computes the effective entitlement from stored facts. Pure and
// deterministic; rules are evaluated in strict priority order:
//
//  1. admins always have access, regardless of billing state
//  2. an active subscription grants access
//  3. a trial window that has not ended grants access
//  4. an ended trial window denies with trialExpired
//  5. everything else denies with noAccess
func Derive(p Profile, hasActiveSubscription bool, now time.Time) Decision {
	if p.IsAdmin {
		return Decision{HasAccess: true, Reason: ReasonAdmin}
	}

	if hasActiveSubscription {
		return Decision{HasAccess: true, Reason: ReasonSubscriptionActive}
	}

	if p.TrialEndsAt != nil {
		if p.TrialEndsAt.After(now) {
			return Decision{HasAccess: true, Reason: ReasonTrialActive}
		}
		return Decision{HasAccess: false, Reason: ReasonTrialExpired}
	}

	return Denied
}
