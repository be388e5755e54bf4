// AngelaMos | 2026
// handler_test.go

package forum

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/trailnetzero/community-api/internal/middleware"
	"github.com/trailnetzero/community-api/internal/realtime"
)

// rejectingVerifier stands in for the JWT manager; it never accepts a
// token, so any route behind the authenticator comes back 401.
type rejectingVerifier struct{}

func (rejectingVerifier) VerifyAccessToken(
	_ context.Context,
	_ string,
) (*middleware.AccessTokenClaims, error) {
	return nil, errors.New("no valid token")
}

func newTestRouter(repo Repository) chi.Router {
	h := NewHandler(newTestService(repo, &mockPublisher{}), realtime.NewHub(4))

	r := chi.NewRouter()
	h.RegisterRoutes(
		r,
		middleware.OptionalAuth(rejectingVerifier{}),
		middleware.Authenticator(rejectingVerifier{}),
		func(next http.Handler) http.Handler { return next },
	)

	asAdmin := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserIDKey, "admin-1")
			ctx = context.WithValue(ctx, middleware.UserAdminKey, true)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
	pass := func(next http.Handler) http.Handler { return next }
	h.RegisterAdminRoutes(r, asAdmin, pass)

	return r
}

func TestCategoriesOpenToVisitors(t *testing.T) {
	repo := newMockRepository()
	repo.categories = []Category{{ID: "c1", Slug: "general", Name: "General"}}
	router := newTestRouter(repo)

	// No Authorization header at all: the preview route still answers.
	req := httptest.NewRequest(http.MethodGet, "/forum/categories", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("categories without token: status = %d, want %d",
			rec.Code, http.StatusOK)
	}

	// Every other forum route stays behind the authenticator.
	req = httptest.NewRequest(http.MethodGet, "/forum/threads", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("threads without token: status = %d, want %d",
			rec.Code, http.StatusUnauthorized)
	}
}

func TestPermanentDeleteRequiresConfirmation(t *testing.T) {
	repo := newMockRepository()
	repo.threads["t1"] = &Thread{ID: "t1"}
	router := newTestRouter(repo)

	req := httptest.NewRequest(
		http.MethodDelete, "/admin/forum/threads/t1", nil,
	)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("bare delete: status = %d, want %d",
			rec.Code, http.StatusBadRequest)
	}
	if _, ok := repo.threads["t1"]; !ok {
		t.Fatal("bare delete removed the thread")
	}

	// Confirming with the wrong id is refused too.
	req = httptest.NewRequest(
		http.MethodDelete, "/admin/forum/threads/t1?confirm=t2", nil,
	)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("mismatched confirm: status = %d, want %d",
			rec.Code, http.StatusBadRequest)
	}

	req = httptest.NewRequest(
		http.MethodDelete, "/admin/forum/threads/t1?confirm=t1", nil,
	)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("confirmed delete: status = %d, want %d",
			rec.Code, http.StatusNoContent)
	}
	if _, ok := repo.threads["t1"]; ok {
		t.Error("confirmed delete left the thread in place")
	}
}
