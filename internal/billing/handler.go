// AngelaMos | 2026
// handler.go

package billing

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/trailnetzero/community-api/internal/config"
	"github.com/trailnetzero/community-api/internal/core"
	"github.com/trailnetzero/community-api/internal/middleware"
)

const maxWebhookBody = 65536

type Handler struct {
	service  *Service
	cfg      config.StripeConfig
	joinPath string
	logger   *slog.Logger
}

func NewHandler(
	service *Service,
	cfg config.StripeConfig,
	joinPath string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		service:  service,
		cfg:      cfg,
		joinPath: joinPath,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/billing", func(r chi.Router) {
		// Signature verification is the webhook's authentication.
		r.Post("/webhook", h.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Post("/checkout", h.StartCheckout)
			r.Post("/portal", h.OpenPortal)
			r.Get("/subscription", h.GetSubscription)
		})
	})
}

// Webhook receives Stripe event deliveries. The raw body is verified
// against the signing secret before anything is parsed; an unverifiable
// delivery gets 400 and is never processed.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Warn("webhook body read failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := webhook.ConstructEvent(
		payload,
		r.Header.Get("Stripe-Signature"),
		h.cfg.WebhookSecret,
	)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.service.HandleEvent(r.Context(), event); err != nil {
		h.logger.Error("webhook processing failed",
			"event_id", event.ID, "type", event.Type, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	url, err := h.service.StartCheckout(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, CheckoutResponse{URL: url})
}

// OpenPortal returns a billing portal URL. Members without a billing
// customer are pointed at the join page instead of getting an error.
func (h *Handler) OpenPortal(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	url, err := h.service.OpenPortal(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNoCustomer) {
			core.OK(w, PortalResponse{URL: h.joinPath})
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, PortalResponse{URL: url})
}

func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	sub, err := h.service.GetSubscriptionForUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "subscription")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToSubscriptionResponse(sub))
}
