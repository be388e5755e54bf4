// AngelaMos | 2026
// service.go

package forum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/trailnetzero/community-api/internal/config"
	"github.com/trailnetzero/community-api/internal/core"
	"github.com/trailnetzero/community-api/internal/realtime"
)

var (
	ErrThreadLocked   = errors.New("thread is locked")
	ErrThreadArchived = errors.New("thread is archived")
	ErrThreadDeleted  = errors.New("thread is deleted")
)

// Publisher fans a new post out to live stream consumers. The forum never
// waits on delivery; stream clients that miss an event catch up via
// replay.
type Publisher interface {
	Publish(ctx context.Context, ev realtime.Event)
}

type Service struct {
	repo      Repository
	publisher Publisher
	cfg       config.ForumConfig
	logger    *slog.Logger
}

func NewService(
	repo Repository,
	publisher Publisher,
	cfg config.ForumConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *Service) CreateCategory(
	ctx context.Context,
	req CreateCategoryRequest,
) (*Category, error) {
	category := &Category{
		ID:          uuid.New().String(),
		Slug:        strings.ToLower(strings.TrimSpace(req.Slug)),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Position:    req.Position,
	}

	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, err
	}

	return category, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) UpdateCategory(
	ctx context.Context,
	id string,
	req UpdateCategoryRequest,
) (*Category, error) {
	category, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		category.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		category.Description = strings.TrimSpace(*req.Description)
	}
	if req.Position != nil {
		category.Position = *req.Position
	}

	if err := s.repo.UpdateCategory(ctx, category); err != nil {
		return nil, err
	}

	return category, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	return s.repo.DeleteCategory(ctx, id)
}

// CreateThread opens a thread together with its first post. The two go in
// one transaction; there is no such thing as a bodyless thread.
func (s *Service) CreateThread(
	ctx context.Context,
	authorID string,
	req CreateThreadRequest,
) (*Thread, *Post, error) {
	thread := &Thread{
		ID:         uuid.New().String(),
		CategoryID: req.CategoryID,
		AuthorID:   authorID,
		Title:      strings.TrimSpace(req.Title),
	}

	post := &Post{
		AuthorID: authorID,
		Body:     req.Body,
	}

	if err := s.repo.CreateThreadWithFirstPost(ctx, thread, post); err != nil {
		return nil, nil, err
	}

	s.publishPost(ctx, post)

	return thread, post, nil
}

func (s *Service) GetThread(
	ctx context.Context,
	id string,
	isAdmin bool,
) (*Thread, error) {
	thread, err := s.repo.GetThread(ctx, id)
	if err != nil {
		return nil, err
	}

	// Deleted threads do not exist for members.
	if thread.Deleted && !isAdmin {
		return nil, fmt.Errorf("get thread: %w", core.ErrNotFound)
	}

	return thread, nil
}

func (s *Service) ListThreads(
	ctx context.Context,
	params ListThreadsParams,
	isAdmin bool,
) ([]Thread, int, error) {
	params.Normalize(s.cfg.ThreadPageSize)

	if !isAdmin {
		params.IncludeDeleted = false
	}

	return s.repo.ListThreads(ctx, params)
}

func (s *Service) SetPinned(ctx context.Context, id string, value bool) error {
	return s.repo.SetPinned(ctx, id, value)
}

func (s *Service) SetLocked(ctx context.Context, id string, value bool) error {
	return s.repo.SetLocked(ctx, id, value)
}

func (s *Service) SetArchived(
	ctx context.Context,
	id string,
	value bool,
) error {
	return s.repo.SetArchived(ctx, id, value)
}

func (s *Service) SetDeleted(
	ctx context.Context,
	id string,
	value bool,
) error {
	return s.repo.SetDeleted(ctx, id, value)
}

func (s *Service) PermanentlyDeleteThread(
	ctx context.Context,
	id string,
) error {
	return s.repo.PermanentlyDeleteThread(ctx, id)
}

// CreatePost appends a reply. Locked and archived threads reject member
// posts but accept admin ones; deleted threads accept nothing.
func (s *Service) CreatePost(
	ctx context.Context,
	authorID, threadID string,
	req CreatePostRequest,
	isAdmin bool,
) (*Post, error) {
	thread, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	if thread.Deleted {
		if !isAdmin {
			return nil, fmt.Errorf("create post: %w", core.ErrNotFound)
		}
		return nil, ErrThreadDeleted
	}

	if !isAdmin {
		if thread.Locked {
			return nil, ErrThreadLocked
		}
		if thread.Archived {
			return nil, ErrThreadArchived
		}
	}

	post := &Post{
		ThreadID: threadID,
		AuthorID: authorID,
		Body:     req.Body,
	}

	if err := s.repo.CreatePost(ctx, post); err != nil {
		return nil, err
	}

	s.publishPost(ctx, post)

	return post, nil
}

// SetPostDeleted hides or restores one post, recording which admin did
// it. Soft-deleted posts disappear from member views; the thread's raw
// post count is untouched.
func (s *Service) SetPostDeleted(
	ctx context.Context,
	id int64,
	adminID string,
	value bool,
) error {
	return s.repo.SetPostDeleted(ctx, id, adminID, value)
}

func (s *Service) ListPosts(
	ctx context.Context,
	params ListPostsParams,
	isAdmin bool,
) ([]Post, int, error) {
	if _, err := s.GetThread(ctx, params.ThreadID, isAdmin); err != nil {
		return nil, 0, err
	}

	if !isAdmin {
		params.IncludeDeleted = false
	}

	params.Normalize(s.cfg.PostPageSize)

	return s.repo.ListPosts(ctx, params)
}

func (s *Service) ListPostsAfter(
	ctx context.Context,
	threadID string,
	afterID int64,
	isAdmin bool,
) ([]Post, error) {
	return s.repo.ListPostsAfter(
		ctx, threadID, afterID, s.cfg.PostPageSize, isAdmin,
	)
}

// FlagPost records a member report against a post. One report per member
// per post; the report text is immutable once written.
func (s *Service) FlagPost(
	ctx context.Context,
	reporterID string,
	postID int64,
	req CreateFlagRequest,
) (*Flag, error) {
	if _, err := s.repo.GetPost(ctx, postID); err != nil {
		return nil, err
	}

	flag := &Flag{
		ID:         uuid.New().String(),
		PostID:     postID,
		ReporterID: reporterID,
		Reason:     strings.TrimSpace(req.Reason),
	}

	if err := s.repo.CreateFlag(ctx, flag); err != nil {
		return nil, err
	}

	return flag, nil
}

func (s *Service) ListFlags(
	ctx context.Context,
	includeResolved bool,
	page, pageSize int,
) ([]FlagWithContext, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	return s.repo.ListFlags(ctx, includeResolved, page, pageSize)
}

func (s *Service) ResolveFlag(ctx context.Context, id, adminID string) error {
	return s.repo.ResolveFlag(ctx, id, adminID)
}

func (s *Service) CountOpenFlags(ctx context.Context) (int, error) {
	return s.repo.CountOpenFlags(ctx)
}

func (s *Service) publishPost(ctx context.Context, post *Post) {
	payload, err := json.Marshal(ToPostResponse(post))
	if err != nil {
		s.logger.Error("marshal post for stream",
			"post_id", post.ID, "error", err)
		return
	}

	s.publisher.Publish(ctx, realtime.Event{
		ThreadID: post.ThreadID,
		PostID:   post.ID,
		Payload:  payload,
	})
}
