// AngelaMos | 2026
// handler.go

package assistant

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/trailnetzero/community-api/internal/core"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts the assistant under the admin tree. Members never
// reach these endpoints.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/assistant", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Post("/chat", h.Chat)
		r.Post("/draft", h.Draft)
	})
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	reply, err := h.service.Chat(r.Context(), req.Messages)
	if err != nil {
		if errors.Is(err, ErrEmptyCompletion) {
			core.Conflict(w, "assistant returned no reply, try again")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ChatResponse{Reply: reply})
}

func (h *Handler) Draft(w http.ResponseWriter, r *http.Request) {
	var req DraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	draft, err := h.service.Draft(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrEmptyCompletion) {
			core.Conflict(w, "assistant returned no draft, try again")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, DraftResponse{Draft: draft})
}
