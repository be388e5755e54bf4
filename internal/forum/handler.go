// AngelaMos | 2026
// handler.go

package forum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/trailnetzero/community-api/internal/core"
	"github.com/trailnetzero/community-api/internal/middleware"
	"github.com/trailnetzero/community-api/internal/realtime"
)

type Handler struct {
	service   *Service
	hub       *realtime.Hub
	validator *validator.Validate
}

func NewHandler(service *Service, hub *realtime.Hub) *Handler {
	return &Handler{
		service:   service,
		hub:       hub,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	optionalAuth, authenticator, memberGate func(http.Handler) http.Handler,
) {
	r.Route("/forum", func(r chi.Router) {
		// The category listing is the public preview of the forum: no
		// membership gate, visitors see what the community talks about
		// before joining.
		r.With(optionalAuth).Get("/categories", h.ListCategories)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Use(memberGate)

			r.Get("/threads", h.ListThreads)
			r.Post("/threads", h.CreateThread)
			r.Get("/threads/{threadID}", h.GetThread)
			r.Get("/threads/{threadID}/posts", h.ListPosts)
			r.Post("/threads/{threadID}/posts", h.CreatePost)
			r.Get("/threads/{threadID}/stream", h.StreamPosts)

			r.Post("/posts/{postID}/flags", h.FlagPost)
		})
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/forum", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Post("/categories", h.CreateCategory)
		r.Put("/categories/{categoryID}", h.UpdateCategory)
		r.Delete("/categories/{categoryID}", h.DeleteCategory)

		r.Put("/threads/{threadID}/pinned", h.SetPinned)
		r.Put("/threads/{threadID}/locked", h.SetLocked)
		r.Put("/threads/{threadID}/archived", h.SetArchived)
		r.Put("/threads/{threadID}/deleted", h.SetDeleted)
		r.Delete("/threads/{threadID}", h.PermanentlyDeleteThread)

		r.Put("/posts/{postID}/deleted", h.SetPostDeleted)

		r.Get("/flags", h.ListFlags)
		r.Post("/flags/{flagID}/resolve", h.ResolveFlag)
	})
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToCategoryResponseList(categories))
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	category, err := h.service.CreateCategory(r.Context(), req)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			core.JSONError(w, core.DuplicateError("slug"))
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.Created(w, ToCategoryResponse(category))
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryID")

	var req UpdateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	category, err := h.service.UpdateCategory(r.Context(), categoryID, req)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "category")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToCategoryResponse(category))
}

// DeleteCategory removes an empty category. Categories that still hold
// threads are refused with a conflict.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryID")

	if err := h.service.DeleteCategory(r.Context(), categoryID); err != nil {
		if errors.Is(err, core.ErrConflict) {
			core.Conflict(w, "category has threads")
			return
		}
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "category")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) ListThreads(w http.ResponseWriter, r *http.Request) {
	params := ListThreadsParams{
		CategoryID:      r.URL.Query().Get("category_id"),
		Page:            parseIntQuery(r, "page", 1),
		PageSize:        parseIntQuery(r, "page_size", 25),
		IncludeArchived: r.URL.Query().Get("include_archived") == "true",
		IncludeDeleted:  r.URL.Query().Get("include_deleted") == "true",
	}

	isAdmin := middleware.IsAdmin(r.Context())

	threads, total, err := h.service.ListThreads(r.Context(), params, isAdmin)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(
		w,
		ToThreadResponseList(threads),
		params.Page,
		params.PageSize,
		total,
	)
}

func (h *Handler) CreateThread(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	var req CreateThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	thread, post, err := h.service.CreateThread(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "category")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.Created(w, ThreadWithFirstPostResponse{
		Thread: ToThreadResponse(thread),
		Post:   ToPostResponse(post),
	})
}

func (h *Handler) GetThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	isAdmin := middleware.IsAdmin(r.Context())

	thread, err := h.service.GetThread(r.Context(), threadID, isAdmin)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "thread")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToThreadResponse(thread))
}

func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	params := ListPostsParams{
		ThreadID:       chi.URLParam(r, "threadID"),
		Page:           parseIntQuery(r, "page", 1),
		PageSize:       parseIntQuery(r, "page_size", 100),
		IncludeDeleted: r.URL.Query().Get("include_deleted") == "true",
	}

	isAdmin := middleware.IsAdmin(r.Context())

	posts, total, err := h.service.ListPosts(r.Context(), params, isAdmin)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "thread")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(
		w,
		ToPostResponseList(posts),
		params.Page,
		params.PageSize,
		total,
	)
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	threadID := chi.URLParam(r, "threadID")
	isAdmin := middleware.IsAdmin(r.Context())

	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	post, err := h.service.CreatePost(r.Context(), userID, threadID, req, isAdmin)
	if err != nil {
		switch {
		case errors.Is(err, ErrThreadLocked):
			core.Forbidden(w, "thread is locked")
		case errors.Is(err, ErrThreadArchived):
			core.Forbidden(w, "thread is archived")
		case errors.Is(err, ErrThreadDeleted):
			core.Conflict(w, "thread is deleted")
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "thread")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.Created(w, ToPostResponse(post))
}

// StreamPosts is the live post feed for one thread, served as
// server-sent events. Clients that reconnect send Last-Event-ID and get
// every post they missed replayed before live events resume. The
// subscription is taken before replay runs, so a post landing during
// replay can show up twice; consumers dedupe on post id.
func (h *Handler) StreamPosts(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		core.InternalServerError(w, errors.New("streaming unsupported"))
		return
	}

	threadID := chi.URLParam(r, "threadID")
	isAdmin := middleware.IsAdmin(r.Context())

	if _, err := h.service.GetThread(r.Context(), threadID, isAdmin); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "thread")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	// A long-lived stream must outlast the server's write timeout.
	rc := http.NewResponseController(w)
	//nolint:errcheck // unsupported writers just keep the default deadline
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, cancel := h.hub.Subscribe(threadID)
	defer cancel()

	if lastID := parseLastEventID(r); lastID > 0 {
		posts, err := h.service.ListPostsAfter(
			r.Context(), threadID, lastID, isAdmin,
		)
		if err != nil {
			// The stream is already open; drop the replay and let live
			// events flow.
			posts = nil
		}
		for i := range posts {
			writeSSEPost(w, &posts[i])
		}
		flusher.Flush()
	}

	heartbeat := newHeartbeat()
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "id: %d\ndata: %s\n\n", ev.PostID, ev.Payload)
			flusher.Flush()
		}
	}
}

func (h *Handler) FlagPost(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	postID, err := strconv.ParseInt(chi.URLParam(r, "postID"), 10, 64)
	if err != nil {
		core.BadRequest(w, "invalid post ID")
		return
	}

	var req CreateFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	flag, err := h.service.FlagPost(r.Context(), userID, postID, req)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			core.Conflict(w, "post already flagged")
			return
		}
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "post")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.Created(w, ToFlagResponse(flag))
}

func (h *Handler) ListFlags(w http.ResponseWriter, r *http.Request) {
	includeResolved := r.URL.Query().Get("include_resolved") == "true"
	page := parseIntQuery(r, "page", 1)
	pageSize := parseIntQuery(r, "page_size", 20)

	flags, total, err := h.service.ListFlags(
		r.Context(), includeResolved, page, pageSize,
	)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, ToFlagQueueResponseList(flags), page, pageSize, total)
}

func (h *Handler) ResolveFlag(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetUserID(r.Context())
	flagID := chi.URLParam(r, "flagID")

	if err := h.service.ResolveFlag(r.Context(), flagID, adminID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "flag")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) SetPinned(w http.ResponseWriter, r *http.Request) {
	h.setThreadFlag(w, r, h.service.SetPinned)
}

func (h *Handler) SetLocked(w http.ResponseWriter, r *http.Request) {
	h.setThreadFlag(w, r, h.service.SetLocked)
}

func (h *Handler) SetArchived(w http.ResponseWriter, r *http.Request) {
	h.setThreadFlag(w, r, h.service.SetArchived)
}

func (h *Handler) SetDeleted(w http.ResponseWriter, r *http.Request) {
	h.setThreadFlag(w, r, h.service.SetDeleted)
}

func (h *Handler) setThreadFlag(
	w http.ResponseWriter,
	r *http.Request,
	set func(ctx context.Context, id string, value bool) error,
) {
	threadID := chi.URLParam(r, "threadID")

	var req SetFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	if err := set(r.Context(), threadID, *req.Value); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "thread")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

// SetPostDeleted toggles the one mutable post flag, stamping the acting
// admin on the first hide.
func (h *Handler) SetPostDeleted(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetUserID(r.Context())

	postID, err := strconv.ParseInt(chi.URLParam(r, "postID"), 10, 64)
	if err != nil {
		core.BadRequest(w, "invalid post ID")
		return
	}

	var req SetFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	if err := h.service.SetPostDeleted(
		r.Context(), postID, adminID, *req.Value,
	); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "post")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

// PermanentlyDeleteThread cascades the thread and everything under it.
// The caller must confirm the target by repeating its id in the confirm
// query parameter; a bare DELETE is refused.
func (h *Handler) PermanentlyDeleteThread(
	w http.ResponseWriter,
	r *http.Request,
) {
	threadID := chi.URLParam(r, "threadID")

	if r.URL.Query().Get("confirm") != threadID {
		core.BadRequest(w, "permanent deletion requires confirm=<thread id>")
		return
	}

	if err := h.service.PermanentlyDeleteThread(r.Context(), threadID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "thread")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func parseLastEventID(r *http.Request) int64 {
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		raw = r.URL.Query().Get("last_event_id")
	}
	if raw == "" {
		return 0
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}

	return id
}

func writeSSEPost(w http.ResponseWriter, post *Post) {
	payload, err := json.Marshal(ToPostResponse(post))
	if err != nil {
		return
	}
	fmt.Fprintf(w, "id: %d\ndata: %s\n\n", post.ID, payload)
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}

func newHeartbeat() *time.Ticker {
	return time.NewTicker(15 * time.Second)
}
