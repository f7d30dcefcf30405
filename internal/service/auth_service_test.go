package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/railmadad/complaint-api/internal/models"
	"github.com/railmadad/complaint-api/internal/repository"
	appErrors "github.com/railmadad/complaint-api/pkg/errors"
)

type mockAuthRepo struct {
	users            map[string]*models.User
	findErr          error
	createErr        error
	auditLogs        []*models.AuditLog
	lastLoginUpdated bool
}

func newMockAuthRepo(users ...*models.User) *mockAuthRepo {
	m := &mockAuthRepo{users: map[string]*models.User{}}
	for _, u := range users {
		m.users[u.Email] = u
	}
	return m
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	u, ok := m.users[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.users[user.Email]; ok {
		return repository.ErrDuplicate
	}
	user.ID = "user-" + user.Email
	m.users[user.Email] = user
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newAuthServiceForTest(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "railmadad",
	})
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuthServiceRegister(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthServiceForTest(repo)

	res, err := svc.Register(context.Background(), models.RegisterRequest{Email: " Rider@Example.com ", Password: "secret1", FullName: "Asha Rider"})
	require.NoError(t, err)
	assert.Equal(t, "rider@example.com", res.User.Email)
	assert.Equal(t, models.RoleRider, res.User.Role)
	assert.True(t, res.User.Active)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionRegister, repo.auditLogs[0].Action)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, models.RoleRider, claims.Role)

	_, err = svc.Register(context.Background(), models.RegisterRequest{Email: "rider@example.com", Password: "secret1", FullName: "Again"})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = svc.Register(context.Background(), models.RegisterRequest{Email: "not-an-email", Password: "123", FullName: "X"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "123", Email: "user@example.com", PasswordHash: hashed(t, "password"), Active: true, Role: models.RoleAdmin})
	svc := newAuthServiceForTest(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "USER@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, models.RoleAdmin, res.User.Role)
	assert.True(t, repo.lastLoginUpdated)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	repo := newMockAuthRepo(
		&models.User{ID: "1", Email: "active@example.com", PasswordHash: hashed(t, "password"), Active: true, Role: models.RoleRider},
		&models.User{ID: "2", Email: "disabled@example.com", PasswordHash: hashed(t, "password"), Active: false, Role: models.RoleRider},
	)
	svc := newAuthServiceForTest(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "active@example.com", Password: "wrong"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "password"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "disabled@example.com", Password: "password"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInactiveAccount))

	repo.findErr = errors.New("db down")
	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "active@example.com", Password: "password"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestAuthServiceMe(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "42", Email: "me@example.com", FullName: "Me", Active: true, Role: models.RoleDepartment})
	svc := newAuthServiceForTest(repo)

	info, err := svc.Me(context.Background(), &models.JWTClaims{UserID: "42"})
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", info.Email)
	assert.Equal(t, models.RoleDepartment, info.Role)

	_, err = svc.Me(context.Background(), &models.JWTClaims{UserID: "missing"})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	_, err = svc.Me(context.Background(), nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceEnsureAdmin(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthServiceForTest(repo)

	require.NoError(t, svc.EnsureAdmin(context.Background(), "Admin@RailMadad.in", "changeme", ""))
	admin, ok := repo.users["admin@railmadad.in"]
	require.True(t, ok)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.Equal(t, "Administrator", admin.FullName)

	require.NoError(t, svc.EnsureAdmin(context.Background(), "admin@railmadad.in", "changeme", ""))
	assert.Len(t, repo.auditLogs, 1)

	require.NoError(t, svc.EnsureAdmin(context.Background(), "", "", ""))
}

func TestAuthServiceEnsureGuest(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthServiceForTest(repo)

	guest, err := svc.EnsureGuest(context.Background(), " Guest@Railway.local ")
	require.NoError(t, err)
	require.NotNil(t, guest)
	assert.Equal(t, "user-guest@railway.local", guest.UserID)
	assert.Equal(t, models.RoleRider, guest.Role)
	stored := repo.users["guest@railway.local"]
	require.NotNil(t, stored)
	assert.False(t, stored.Active)

	again, err := svc.EnsureGuest(context.Background(), "guest@railway.local")
	require.NoError(t, err)
	assert.Equal(t, guest.UserID, again.UserID)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionGuest, repo.auditLogs[0].Action)

	disabled, err := svc.EnsureGuest(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, disabled)
}

func TestAuthServiceEnsureGuestLookupFailure(t *testing.T) {
	repo := newMockAuthRepo()
	repo.findErr = errors.New("db down")
	_, err := newAuthServiceForTest(repo).EnsureGuest(context.Background(), "guest@railway.local")
	assert.Error(t, err)
}

func TestValidateToken(t *testing.T) {
	svc := newAuthServiceForTest(newMockAuthRepo())

	_, err := svc.ValidateToken("not-a-token")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	other := NewAuthService(newMockAuthRepo(), nil, nil, AuthConfig{AccessTokenSecret: "different"})
	res, err := other.Register(context.Background(), models.RegisterRequest{Email: "x@example.com", Password: "secret1", FullName: "X"})
	require.NoError(t, err)
	_, err = svc.ValidateToken(res.AccessToken)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
