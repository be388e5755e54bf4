// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trailnetzero/community-api/internal/access"
	"github.com/trailnetzero/community-api/internal/auth"
	"github.com/trailnetzero/community-api/internal/core"
)

type Service struct {
	repo        Repository
	trialLength time.Duration
	now         func() time.Time
}

func NewService(repo Repository, trialLength time.Duration) *Service {
	return &Service{
		repo:        repo,
		trialLength: trialLength,
		now:         time.Now,
	}
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

// Create registers a new member. The trial window starts at registration,
// never on first sign-in or first payment attempt.
func (s *Service) Create(
	ctx context.Context,
	email, passwordHash, name string,
) (*auth.UserInfo, error) {
	trialEndsAt := s.now().Add(s.trialLength)

	user := &User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(email),
		PasswordHash: passwordHash,
		Name:         name,
		TrialEndsAt:  &trialEndsAt,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) IncrementTokenVersion(
	ctx context.Context,
	userID string,
) error {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	userID, passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateUser(
	ctx context.Context,
	id string,
	req UpdateUserRequest,
) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name == nil {
		return user, nil
	}

	return s.repo.UpdateName(ctx, id, *req.Name)
}

func (s *Service) SetUserAdmin(
	ctx context.Context,
	id string,
	admin bool,
) (*User, error) {
	if err := s.repo.SetAdmin(ctx, id, admin); err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, id)
}

// MarkWelcomeSeen stamps the one-time welcome flag. Repeated calls keep
// the original timestamp.
func (s *Service) MarkWelcomeSeen(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("mark welcome seen: %w", core.ErrUnauthorized)
	}

	return s.repo.MarkWelcomeSeen(ctx, userID)
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) GetMe(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) UpdateMe(
	ctx context.Context,
	userID string,
	req UpdateUserRequest,
) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("update me: %w", core.ErrUnauthorized)
	}

	return s.UpdateUser(ctx, userID, req)
}

func (s *Service) EmailExists(
	ctx context.Context,
	email string,
) (bool, error) {
	exists, err := s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Service) CanDeleteUser(
	ctx context.Context,
	requesterID, targetID string,
) error {
	if requesterID == targetID {
		return nil
	}

	requester, err := s.repo.GetByID(ctx, requesterID)
	if err != nil {
		return err
	}

	if !requester.IsAdmin {
		return fmt.Errorf("delete user: %w", core.ErrForbidden)
	}

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	if target.IsAdmin {
		return fmt.Errorf("cannot delete admin users: %w", core.ErrForbidden)
	}

	return nil
}

func (s *Service) GetProfile(
	ctx context.Context,
	userID string,
) (*access.Profile, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &access.Profile{
		UserID:      user.ID,
		IsAdmin:     user.IsAdmin,
		TrialEndsAt: user.TrialEndsAt,
	}, nil
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		IsAdmin:      u.IsAdmin,
		TrialEndsAt:  u.TrialEndsAt,
		TokenVersion: u.TokenVersion,
	}
}

var (
	_ auth.UserProvider    = (*Service)(nil)
	_ access.ProfileSource = (*Service)(nil)
)
