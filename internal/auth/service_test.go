// AngelaMos | 2026
// service_test.go

package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/trailnetzero/community-api/internal/config"
	"github.com/trailnetzero/community-api/internal/core"
)

type mockTokenRepo struct {
	tokens map[string]*RefreshToken // by id

	revokedFamilies []string
}

func newMockTokenRepo() *mockTokenRepo {
	return &mockTokenRepo{tokens: make(map[string]*RefreshToken)}
}

func (m *mockTokenRepo) Create(_ context.Context, token *RefreshToken) error {
	token.CreatedAt = time.Now()
	m.tokens[token.ID] = token
	return nil
}

func (m *mockTokenRepo) FindByHash(
	_ context.Context,
	tokenHash string,
) (*RefreshToken, error) {
	for _, t := range m.tokens {
		if t.TokenHash == tokenHash {
			return t, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *mockTokenRepo) FindByID(
	_ context.Context,
	id string,
) (*RefreshToken, error) {
	t, ok := m.tokens[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return t, nil
}

func (m *mockTokenRepo) MarkAsUsed(
	_ context.Context,
	id, replacedByID string,
) error {
	t, ok := m.tokens[id]
	if !ok {
		return core.ErrNotFound
	}
	now := time.Now()
	t.IsUsed = true
	t.UsedAt = &now
	t.ReplacedByID = &replacedByID
	return nil
}

func (m *mockTokenRepo) RevokeByID(_ context.Context, id string) error {
	t, ok := m.tokens[id]
	if !ok {
		return core.ErrNotFound
	}
	now := time.Now()
	t.RevokedAt = &now
	return nil
}

func (m *mockTokenRepo) RevokeByFamilyID(
	_ context.Context,
	familyID string,
) error {
	m.revokedFamilies = append(m.revokedFamilies, familyID)
	now := time.Now()
	for _, t := range m.tokens {
		if t.FamilyID == familyID && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
	return nil
}

func (m *mockTokenRepo) RevokeAllForUser(
	_ context.Context,
	userID string,
) error {
	now := time.Now()
	for _, t := range m.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
	return nil
}

func (m *mockTokenRepo) GetActiveSessionsForUser(
	_ context.Context,
	userID string,
) ([]RefreshToken, error) {
	var out []RefreshToken
	for _, t := range m.tokens {
		if t.UserID == userID && t.IsValid() {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *mockTokenRepo) DeleteExpired(_ context.Context) (int64, error) {
	var n int64
	for id, t := range m.tokens {
		if t.IsExpired() {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

type mockUserProvider struct {
	users map[string]*UserInfo // by id

	versionBumps int
}

func newMockUserProvider() *mockUserProvider {
	return &mockUserProvider{users: make(map[string]*UserInfo)}
}

func (m *mockUserProvider) GetByEmail(
	_ context.Context,
	email string,
) (*UserInfo, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *mockUserProvider) GetByID(
	_ context.Context,
	id string,
) (*UserInfo, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return u, nil
}

func (m *mockUserProvider) Create(
	_ context.Context,
	email, passwordHash, name string,
) (*UserInfo, error) {
	for _, u := range m.users {
		if u.Email == email {
			return nil, core.ErrDuplicateKey
		}
	}
	u := &UserInfo{
		ID:           "user-" + email,
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserProvider) IncrementTokenVersion(
	_ context.Context,
	userID string,
) error {
	u, ok := m.users[userID]
	if !ok {
		return core.ErrNotFound
	}
	u.TokenVersion++
	m.versionBumps++
	return nil
}

func (m *mockUserProvider) UpdatePassword(
	_ context.Context,
	userID, passwordHash string,
) error {
	u, ok := m.users[userID]
	if !ok {
		return core.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func newTestJWTManager(t *testing.T) *JWTManager {
	t.Helper()
	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")

	if err := GenerateKeyPair(privPath, pubPath); err != nil {
		t.Fatalf("generate key pair: %v", err)
	}

	manager, err := NewJWTManager(config.JWTConfig{
		PrivateKeyPath:     privPath,
		PublicKeyPath:      pubPath,
		AccessTokenExpire:  15 * time.Minute,
		RefreshTokenExpire: 720 * time.Hour,
		Issuer:             "community-api-test",
		Audience:           "community-test",
	})
	if err != nil {
		t.Fatalf("new jwt manager: %v", err)
	}
	return manager
}

func newTestAuthService(
	t *testing.T,
	repo Repository,
	users UserProvider,
) *Service {
	t.Helper()
	return NewService(repo, newTestJWTManager(t), users, nil)
}

func TestRegisterAndLogin(t *testing.T) {
	repo := newMockTokenRepo()
	users := newMockUserProvider()
	svc := newTestAuthService(t, repo, users)

	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{
		Email:    "hiker@example.com",
		Password: "correct-horse-battery",
		Name:     "Hiker",
	}, "test-agent", "127.0.0.1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		t.Fatal("register returned empty tokens")
	}
	if len(repo.tokens) != 1 {
		t.Fatalf("stored %d refresh tokens, want 1", len(repo.tokens))
	}

	login, err := svc.Login(ctx, LoginRequest{
		Email:    "hiker@example.com",
		Password: "correct-horse-battery",
	}, "test-agent", "127.0.0.1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login.User.Email != "hiker@example.com" {
		t.Errorf("user email = %q", login.User.Email)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newMockTokenRepo()
	users := newMockUserProvider()
	svc := newTestAuthService(t, repo, users)

	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterRequest{
		Email:    "hiker@example.com",
		Password: "correct-horse-battery",
		Name:     "Hiker",
	}, "", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := svc.Login(ctx, LoginRequest{
		Email:    "hiker@example.com",
		Password: "wrong-password",
	}, "", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := newTestAuthService(t, newMockTokenRepo(), newMockUserProvider())

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "nobody@example.com",
		Password: "anything",
	}, "", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newMockTokenRepo()
	users := newMockUserProvider()
	svc := newTestAuthService(t, repo, users)

	ctx := context.Background()
	req := RegisterRequest{
		Email:    "hiker@example.com",
		Password: "correct-horse-battery",
		Name:     "Hiker",
	}

	if _, err := svc.Register(ctx, req, "", ""); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, req, "", ""); !errors.Is(err, ErrEmailExists) {
		t.Errorf("err = %v, want ErrEmailExists", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	repo := newMockTokenRepo()
	users := newMockUserProvider()
	svc := newTestAuthService(t, repo, users)

	ctx := context.Background()

	first, err := svc.Register(ctx, RegisterRequest{
		Email:    "hiker@example.com",
		Password: "correct-horse-battery",
		Name:     "Hiker",
	}, "", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	second, err := svc.Refresh(ctx, first.Tokens.RefreshToken, "", "")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if second.Tokens.RefreshToken == first.Tokens.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	// The original token is now used and chained to its replacement.
	old, err := repo.FindByHash(ctx, core.HashToken(first.Tokens.RefreshToken))
	if err != nil {
		t.Fatalf("find old token: %v", err)
	}
	if !old.IsUsed || old.ReplacedByID == nil {
		t.Errorf("old token = %+v, want used with replacement", old)
	}
}

func TestRefreshReuseRevokesFamily(t *testing.T) {
	repo := newMockTokenRepo()
	users := newMockUserProvider()
	svc := newTestAuthService(t, repo, users)

	ctx := context.Background()

	first, err := svc.Register(ctx, RegisterRequest{
		Email:    "hiker@example.com",
		Password: "correct-horse-battery",
		Name:     "Hiker",
	}, "", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Refresh(ctx, first.Tokens.RefreshToken, "", ""); err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	// Replaying the consumed token is a reuse: the whole family goes.
	_, err = svc.Refresh(ctx, first.Tokens.RefreshToken, "", "")
	if !errors.Is(err, ErrTokenReuse) {
		t.Fatalf("err = %v, want ErrTokenReuse", err)
	}
	if len(repo.revokedFamilies) != 1 {
		t.Errorf("revoked %d families, want 1", len(repo.revokedFamilies))
	}
}

func TestRefreshUnknownToken(t *testing.T) {
	svc := newTestAuthService(t, newMockTokenRepo(), newMockUserProvider())

	_, err := svc.Refresh(context.Background(), "never-issued", "", "")
	if !errors.Is(err, core.ErrTokenInvalid) {
		t.Errorf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestLogoutOtherUsersToken(t *testing.T) {
	repo := newMockTokenRepo()
	users := newMockUserProvider()
	svc := newTestAuthService(t, repo, users)

	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{
		Email:    "hiker@example.com",
		Password: "correct-horse-battery",
		Name:     "Hiker",
	}, "", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	err = svc.Logout(ctx, resp.Tokens.RefreshToken, "someone-else")
	if !errors.Is(err, core.ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestLogoutAllBumpsTokenVersion(t *testing.T) {
	repo := newMockTokenRepo()
	users := newMockUserProvider()
	svc := newTestAuthService(t, repo, users)

	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{
		Email:    "hiker@example.com",
		Password: "correct-horse-battery",
		Name:     "Hiker",
	}, "", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := svc.LogoutAll(ctx, resp.User.ID); err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	if users.versionBumps != 1 {
		t.Errorf("token version bumps = %d, want 1", users.versionBumps)
	}

	// Old refresh tokens are revoked and no longer usable.
	if _, err := svc.Refresh(ctx, resp.Tokens.RefreshToken, "", ""); !errors.Is(err, core.ErrTokenRevoked) {
		t.Errorf("err = %v, want ErrTokenRevoked", err)
	}
}

func TestValidateTokenVersion(t *testing.T) {
	users := newMockUserProvider()
	users.users["u1"] = &UserInfo{ID: "u1", TokenVersion: 2}
	svc := newTestAuthService(t, newMockTokenRepo(), users)

	ctx := context.Background()

	if err := svc.ValidateTokenVersion(ctx, "u1", 2); err != nil {
		t.Errorf("current version: %v", err)
	}
	if err := svc.ValidateTokenVersion(ctx, "u1", 1); !errors.Is(err, core.ErrTokenRevoked) {
		t.Errorf("stale version: err = %v, want ErrTokenRevoked", err)
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	manager := newTestJWTManager(t)

	signed, err := manager.CreateAccessToken(AccessTokenClaims{
		UserID:       "u1",
		Admin:        true,
		TokenVersion: 3,
	})
	if err != nil {
		t.Fatalf("CreateAccessToken: %v", err)
	}

	claims, err := manager.VerifyAccessToken(context.Background(), signed)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims.UserID != "u1" || !claims.Admin || claims.TokenVersion != 3 {
		t.Errorf("claims = %+v", claims)
	}
}

func TestVerifyAccessTokenRejectsGarbage(t *testing.T) {
	manager := newTestJWTManager(t)

	_, err := manager.VerifyAccessToken(context.Background(), "not-a-token")
	if !errors.Is(err, core.ErrTokenInvalid) {
		t.Errorf("err = %v, want ErrTokenInvalid", err)
	}
}
