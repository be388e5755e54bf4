// AngelaMos | 2026
// dto.go

package resource

import (
	"time"
)

type CreateResourceRequest struct {
	Kind    string `json:"kind"    validate:"required,oneof=article link update newsletter guide"`
	Slug    string `json:"slug"    validate:"required,min=2,max=120"`
	Title   string `json:"title"   validate:"required,min=3,max=200"`
	Summary string `json:"summary" validate:"max=500"`
	Body    string `json:"body"    validate:"max=100000"`
	URL     string `json:"url"     validate:"omitempty,url,max=2000"`
}

type UpdateResourceRequest struct {
	Title   *string `json:"title"   validate:"omitempty,min=3,max=200"`
	Summary *string `json:"summary" validate:"omitempty,max=500"`
	Body    *string `json:"body"    validate:"omitempty,max=100000"`
	URL     *string `json:"url"     validate:"omitempty,url,max=2000"`
}

type SetPublishedRequest struct {
	Published *bool `json:"published" validate:"required"`
}

type ListResourcesParams struct {
	Kind          string
	PublishedOnly bool
	Page          int
	PageSize      int
}

func (p *ListResourcesParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 100 {
		p.PageSize = 20
	}
}

func (p *ListResourcesParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type ResourceResponse struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	Body        string     `json:"body,omitempty"`
	URL         string     `json:"url,omitempty"`
	Published   bool       `json:"published"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func ToResourceResponse(r *Resource) ResourceResponse {
	return ResourceResponse{
		ID:          r.ID,
		Kind:        r.Kind,
		Slug:        r.Slug,
		Title:       r.Title,
		Summary:     r.Summary,
		Body:        r.Body,
		URL:         r.URL,
		Published:   r.Published,
		PublishedAt: r.PublishedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func ToResourceResponseList(resources []Resource) []ResourceResponse {
	out := make([]ResourceResponse, 0, len(resources))
	for i := range resources {
		out = append(out, ToResourceResponse(&resources[i]))
	}
	return out
}
