// AngelaMos | 2026
// gate.go

package access

import (
	"net/http"
	"net/url"

	"github.com/trailnetzero/community-api/internal/core"
	"github.com/trailnetzero/community-api/internal/middleware"
)

type GateConfig struct {
	SignInPath string
	JoinPath   string
}

// RequireMember gates a route on a live entitlement decision. Missing
// sessions get a sign-in redirect target carrying the original path;
// authenticated users without access get the join/upgrade target. The
// decision is recomputed per request, never cached on the session.
func RequireMember(
	checker *Checker,
	cfg GateConfig,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := middleware.GetUserID(r.Context())
			if userID == "" {
				core.JSONError(w, core.NewAppError(
					core.ErrUnauthorized,
					"sign in to access the forum",
					http.StatusUnauthorized,
					"SIGN_IN_REQUIRED",
				).WithRedirect(signInTarget(cfg.SignInPath, r.URL.Path)))
				return
			}

			decision := checker.Check(r.Context(), userID)
			if !decision.HasAccess {
				core.JSONError(w, core.NewAppError(
					core.ErrForbidden,
					membershipMessage(decision.Reason),
					http.StatusForbidden,
					"MEMBERSHIP_REQUIRED",
				).WithRedirect(cfg.JoinPath))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func signInTarget(signInPath, originalPath string) string {
	return signInPath + "?redirect=" + url.QueryEscape(originalPath)
}

func membershipMessage(reason Reason) string {
	if reason == ReasonTrialExpired {
		return "your trial has ended; upgrade to keep access"
	}
	return "an active membership is required"
}
