// AngelaMos | 2026
// gate_test.go

package access

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/trailnetzero/community-api/internal/middleware"
)

func gateTestHandler(t *testing.T) (http.Handler, *bool) {
	t.Helper()
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})
	return next, &reached
}

func TestRequireMemberNoSession(t *testing.T) {
	checker := NewChecker(
		&stubProfileSource{profile: &Profile{UserID: "u1", IsAdmin: true}},
		&stubSubscriptionSource{},
	)
	gate := RequireMember(checker, GateConfig{
		SignInPath: "/sign-in",
		JoinPath:   "/join",
	})

	next, reached := gateTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/forum/threads", nil)
	rec := httptest.NewRecorder()

	gate(next).ServeHTTP(rec, req)

	if *reached {
		t.Error("handler reached without a session")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	var body struct {
		Error struct {
			Code     string `json:"code"`
			Redirect string `json:"redirect"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != "SIGN_IN_REQUIRED" {
		t.Errorf("code = %q, want SIGN_IN_REQUIRED", body.Error.Code)
	}
	if body.Error.Redirect != "/sign-in?redirect=%2Fforum%2Fthreads" {
		t.Errorf("redirect = %q, want sign-in target with original path", body.Error.Redirect)
	}
}

func TestRequireMemberDenied(t *testing.T) {
	checker := NewChecker(
		&stubProfileSource{profile: &Profile{UserID: "u1"}},
		&stubSubscriptionSource{active: false},
	)
	gate := RequireMember(checker, GateConfig{
		SignInPath: "/sign-in",
		JoinPath:   "/join",
	})

	next, reached := gateTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/forum/threads", nil)
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, "u1")
	rec := httptest.NewRecorder()

	gate(next).ServeHTTP(rec, req.WithContext(ctx))

	if *reached {
		t.Error("handler reached without membership")
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	var body struct {
		Error struct {
			Code     string `json:"code"`
			Redirect string `json:"redirect"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != "MEMBERSHIP_REQUIRED" {
		t.Errorf("code = %q, want MEMBERSHIP_REQUIRED", body.Error.Code)
	}
	if body.Error.Redirect != "/join" {
		t.Errorf("redirect = %q, want /join", body.Error.Redirect)
	}
}

func TestRequireMemberGranted(t *testing.T) {
	checker := NewChecker(
		&stubProfileSource{profile: &Profile{UserID: "u1"}},
		&stubSubscriptionSource{active: true},
	)
	gate := RequireMember(checker, GateConfig{
		SignInPath: "/sign-in",
		JoinPath:   "/join",
	})

	next, reached := gateTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/forum/threads", nil)
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, "u1")
	rec := httptest.NewRecorder()

	gate(next).ServeHTTP(rec, req.WithContext(ctx))

	if !*reached {
		t.Error("handler not reached with an active subscription")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
