// AngelaMos | 2026
// service.go

package resource

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/trailnetzero/community-api/internal/core"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(
	ctx context.Context,
	authorID string,
	req CreateResourceRequest,
) (*Resource, error) {
	if req.Kind == KindLink && req.URL == "" {
		return nil, fmt.Errorf(
			"link resources need a url: %w",
			core.ErrInvalidInput,
		)
	}
	if req.Kind != KindLink && req.Body == "" {
		return nil, fmt.Errorf(
			"%s resources need a body: %w",
			req.Kind,
			core.ErrInvalidInput,
		)
	}

	resource := &Resource{
		ID:       uuid.New().String(),
		Kind:     req.Kind,
		Slug:     strings.ToLower(strings.TrimSpace(req.Slug)),
		Title:    strings.TrimSpace(req.Title),
		Summary:  strings.TrimSpace(req.Summary),
		Body:     req.Body,
		URL:      strings.TrimSpace(req.URL),
		AuthorID: authorID,
	}

	if err := s.repo.Create(ctx, resource); err != nil {
		return nil, err
	}

	return resource, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*Resource, error) {
	return s.repo.GetByID(ctx, id)
}

// GetPublishedBySlug is the member-facing lookup. Drafts come back as not
// found, same as a slug that never existed.
func (s *Service) GetPublishedBySlug(
	ctx context.Context,
	slug string,
) (*Resource, error) {
	resource, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if !resource.Published {
		return nil, fmt.Errorf("get resource: %w", core.ErrNotFound)
	}

	return resource, nil
}

func (s *Service) Update(
	ctx context.Context,
	id string,
	req UpdateResourceRequest,
) (*Resource, error) {
	resource, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		resource.Title = strings.TrimSpace(*req.Title)
	}
	if req.Summary != nil {
		resource.Summary = strings.TrimSpace(*req.Summary)
	}
	if req.Body != nil {
		resource.Body = *req.Body
	}
	if req.URL != nil {
		resource.URL = strings.TrimSpace(*req.URL)
	}

	if err := s.repo.Update(ctx, resource); err != nil {
		return nil, err
	}

	return resource, nil
}

func (s *Service) SetPublished(
	ctx context.Context,
	id string,
	published bool,
) (*Resource, error) {
	if err := s.repo.SetPublished(ctx, id, published); err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(
	ctx context.Context,
	params ListResourcesParams,
) ([]Resource, int, error) {
	return s.repo.List(ctx, params)
}
