package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/agencyhq/invoicing/internal/infrastructure/auth"
	"github.com/agencyhq/invoicing/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MockTokenBlacklist is a mock implementation of auth.TokenBlacklist
type MockTokenBlacklist struct {
	mock.Mock
}

func (m *MockTokenBlacklist) AddToBlacklist(ctx context.Context, jti string, ttl time.Duration) error {
	args := m.Called(ctx, jti, ttl)
	return args.Error(0)
}

func (m *MockTokenBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	args := m.Called(ctx, jti)
	return args.Bool(0), args.Error(1)
}

// MockTokenIssuer is a mock implementation of TokenIssuer
type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) GenerateAccessToken(username string) (*auth.AccessToken, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.AccessToken), args.Error(1)
}

func testCredentials(t *testing.T) *auth.AdminCredentials {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return auth.NewAdminCredentials(config.AdminConfig{Username: "admin", PasswordHash: string(hash)})
}

func testJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-that-is-long-enough",
		AccessTokenExpiration: 15 * time.Minute,
		Issuer:                "invoicing-test",
	})
}

func TestAuthService_Login(t *testing.T) {
	jwtSvc := testJWTService()
	svc := NewAuthService(testCredentials(t), jwtSvc, nil, zap.NewNop())

	result, err := svc.Login(context.Background(), LoginInput{Username: "admin", Password: "s3cret", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "admin", result.Username)
	assert.Equal(t, "Bearer", result.TokenType)
	assert.True(t, result.ExpiresAt.After(time.Now()))

	claims, err := jwtSvc.ValidateAccessToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
}

func TestAuthService_Login_InvalidCredentials(t *testing.T) {
	svc := NewAuthService(testCredentials(t), testJWTService(), nil, zap.NewNop())

	for _, in := range []LoginInput{
		{Username: "admin", Password: "wrong"},
		{Username: "root", Password: "s3cret"},
		{Username: "", Password: ""},
	} {
		_, err := svc.Login(context.Background(), in)
		require.Error(t, err)
		assert.True(t, IsInvalidCredentials(err), "user %q", in.Username)
	}
}

func TestAuthService_Login_TokenFailure(t *testing.T) {
	issuer := new(MockTokenIssuer)
	issuer.On("GenerateAccessToken", "admin").Return(nil, auth.ErrMissingSecret)
	svc := NewAuthService(testCredentials(t), issuer, nil, zap.NewNop())

	_, err := svc.Login(context.Background(), LoginInput{Username: "admin", Password: "s3cret"})
	require.Error(t, err)
	assert.Equal(t, CodeTokenError, shared.ErrorCode(err))
	assert.ErrorIs(t, err, auth.ErrMissingSecret)
}

func TestAuthService_Logout(t *testing.T) {
	blacklist := auth.NewInMemoryTokenBlacklist()
	svc := NewAuthService(testCredentials(t), testJWTService(), blacklist, zap.NewNop())
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.Logout(context.Background(), LogoutInput{
		Username:  "admin",
		TokenJTI:  "jti-1",
		ExpiresAt: now.Add(10 * time.Minute),
	}))
	revoked, err := blacklist.IsBlacklisted(context.Background(), "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// already expired tokens need no revocation
	require.NoError(t, svc.Logout(context.Background(), LogoutInput{TokenJTI: "jti-2", ExpiresAt: now.Add(-time.Minute)}))
	revoked, err = blacklist.IsBlacklisted(context.Background(), "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestAuthService_Logout_BlacklistError(t *testing.T) {
	blacklist := new(MockTokenBlacklist)
	blacklist.On("AddToBlacklist", mock.Anything, "jti-1", 5*time.Minute).Return(errors.New("redis down"))
	svc := NewAuthService(testCredentials(t), testJWTService(), blacklist, zap.NewNop())
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	err := svc.Logout(context.Background(), LogoutInput{TokenJTI: "jti-1", ExpiresAt: now.Add(5 * time.Minute)})
	assert.True(t, shared.IsPersistence(err))
	blacklist.AssertExpectations(t)
}

func TestAuthService_Logout_WithoutBlacklist(t *testing.T) {
	svc := NewAuthService(testCredentials(t), testJWTService(), nil, nil)
	assert.NoError(t, svc.Logout(context.Background(), LogoutInput{TokenJTI: "x", ExpiresAt: time.Now().Add(time.Hour)}))
}
