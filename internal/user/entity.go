// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

// User is the application profile attached to an identity-provider
// principal. Billing facts (customer link, subscriptions) live in the
// billing package; entitlement is always derived, never stored here.
type User struct {
	ID            string     `db:"id"`
	Email         string     `db:"email"`
	PasswordHash  string     `db:"password_hash"`
	Name          string     `db:"name"`
	IsAdmin       bool       `db:"is_admin"`
	TrialEndsAt   *time.Time `db:"trial_ends_at"`
	WelcomeSeenAt *time.Time `db:"welcome_seen_at"`
	TokenVersion  int        `db:"token_version"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	DeletedAt     *time.Time `db:"deleted_at"`
}

func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

func (u *User) TrialActive(now time.Time) bool {
	return u.TrialEndsAt != nil && u.TrialEndsAt.After(now)
}

func (u *User) HasSeenWelcome() bool {
	return u.WelcomeSeenAt != nil
}
