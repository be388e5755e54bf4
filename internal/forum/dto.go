// AngelaMos | 2026
// dto.go

package forum

import (
	"time"
)

type CreateCategoryRequest struct {
	Slug        string `json:"slug"        validate:"required,min=2,max=64"`
	Name        string `json:"name"        validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=500"`
	Position    int    `json:"position"    validate:"min=0"`
}

type UpdateCategoryRequest struct {
	Name        *string `json:"name"        validate:"omitempty,min=2,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Position    *int    `json:"position"    validate:"omitempty,min=0"`
}

type CreateThreadRequest struct {
	CategoryID string `json:"category_id" validate:"required,uuid"`
	Title      string `json:"title"       validate:"required,min=6,max=120"`
	Body       string `json:"body"        validate:"required,min=10,max=20000"`
}

type CreatePostRequest struct {
	Body string `json:"body" validate:"required,min=10,max=20000"`
}

type SetFlagRequest struct {
	Value *bool `json:"value" validate:"required"`
}

// CreateFlagRequest carries an optional free-text reason; an empty report
// is still a report.
type CreateFlagRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

type ListThreadsParams struct {
	CategoryID      string
	Page            int
	PageSize        int
	IncludeArchived bool
	IncludeDeleted  bool
}

func (p *ListThreadsParams) Normalize(defaultPageSize int) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 100 {
		p.PageSize = defaultPageSize
	}
}

func (p *ListThreadsParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type ListPostsParams struct {
	ThreadID       string
	Page           int
	PageSize       int
	IncludeDeleted bool
}

func (p *ListPostsParams) Normalize(defaultPageSize int) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 200 {
		p.PageSize = defaultPageSize
	}
}

func (p *ListPostsParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type CategoryResponse struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Position    int    `json:"position"`
}

type ThreadResponse struct {
	ID         string    `json:"id"`
	CategoryID string    `json:"category_id"`
	AuthorID   string    `json:"author_id"`
	Title      string    `json:"title"`
	Pinned     bool      `json:"pinned"`
	Locked     bool      `json:"locked"`
	Archived   bool      `json:"archived"`
	Deleted    bool      `json:"deleted,omitempty"`
	ReplyCount int       `json:"reply_count"`
	LastPostAt time.Time `json:"last_post_at"`
	CreatedAt  time.Time `json:"created_at"`
}

type PostResponse struct {
	ID        int64     `json:"id"`
	ThreadID  string    `json:"thread_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	Deleted   bool      `json:"deleted,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ThreadWithFirstPostResponse struct {
	Thread ThreadResponse `json:"thread"`
	Post   PostResponse   `json:"post"`
}

type FlagResponse struct {
	ID         string     `json:"id"`
	PostID     int64      `json:"post_id"`
	ReporterID string     `json:"reporter_id"`
	Reason     string     `json:"reason"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy *string    `json:"resolved_by,omitempty"`
}

func ToCategoryResponse(c *Category) CategoryResponse {
	return CategoryResponse{
		ID:          c.ID,
		Slug:        c.Slug,
		Name:        c.Name,
		Description: c.Description,
		Position:    c.Position,
	}
}

func ToCategoryResponseList(categories []Category) []CategoryResponse {
	out := make([]CategoryResponse, 0, len(categories))
	for i := range categories {
		out = append(out, ToCategoryResponse(&categories[i]))
	}
	return out
}

func ToThreadResponse(t *Thread) ThreadResponse {
	return ThreadResponse{
		ID:         t.ID,
		CategoryID: t.CategoryID,
		AuthorID:   t.AuthorID,
		Title:      t.Title,
		Pinned:     t.Pinned,
		Locked:     t.Locked,
		Archived:   t.Archived,
		Deleted:    t.Deleted,
		ReplyCount: t.ReplyCount(),
		LastPostAt: t.LastPostAt,
		CreatedAt:  t.CreatedAt,
	}
}

func ToThreadResponseList(threads []Thread) []ThreadResponse {
	out := make([]ThreadResponse, 0, len(threads))
	for i := range threads {
		out = append(out, ToThreadResponse(&threads[i]))
	}
	return out
}

func ToPostResponse(p *Post) PostResponse {
	return PostResponse{
		ID:        p.ID,
		ThreadID:  p.ThreadID,
		AuthorID:  p.AuthorID,
		Body:      p.Body,
		Deleted:   p.Deleted,
		CreatedAt: p.CreatedAt,
	}
}

func ToPostResponseList(posts []Post) []PostResponse {
	out := make([]PostResponse, 0, len(posts))
	for i := range posts {
		out = append(out, ToPostResponse(&posts[i]))
	}
	return out
}

func ToFlagResponse(f *Flag) FlagResponse {
	return FlagResponse{
		ID:         f.ID,
		PostID:     f.PostID,
		ReporterID: f.ReporterID,
		Reason:     f.Reason,
		CreatedAt:  f.CreatedAt,
		ResolvedAt: f.ResolvedAt,
		ResolvedBy: f.ResolvedBy,
	}
}

// FlagQueueItemResponse is one row of the moderator queue: the report plus
// where it points.
type FlagQueueItemResponse struct {
	FlagResponse
	PostBody    string `json:"post_body"`
	ThreadID    string `json:"thread_id"`
	ThreadTitle string `json:"thread_title"`
}

func ToFlagQueueResponse(f *FlagWithContext) FlagQueueItemResponse {
	return FlagQueueItemResponse{
		FlagResponse: ToFlagResponse(&f.Flag),
		PostBody:     f.PostBody,
		ThreadID:     f.ThreadID,
		ThreadTitle:  f.ThreadTitle,
	}
}

func ToFlagQueueResponseList(flags []FlagWithContext) []FlagQueueItemResponse {
	out := make([]FlagQueueItemResponse, 0, len(flags))
	for i := range flags {
		out = append(out, ToFlagQueueResponse(&flags[i]))
	}
	return out
}
