package identity

import (
	"context"
	"errors"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/agencyhq/invoicing/internal/infrastructure/auth"
	"go.uber.org/zap"
)

// Error codes returned by AuthService
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeTokenError         = "TOKEN_ERROR"
)

// CredentialVerifier checks a username and password
type CredentialVerifier interface {
	Verify(username, password string) error
}

// TokenIssuer signs access tokens
type TokenIssuer interface {
	GenerateAccessToken(username string) (*auth.AccessToken, error)
}

// AuthService handles back-office authentication. There is a single
// configured admin account; tokens are revoked through the blacklist.
type AuthService struct {
	credentials CredentialVerifier
	tokens      TokenIssuer
	blacklist   auth.TokenBlacklist
	now         func() time.Time
	logger      *zap.Logger
}

// NewAuthService creates a new authentication service. blacklist may be nil,
// in which case logout only succeeds client-side.
func NewAuthService(
	credentials CredentialVerifier,
	tokens TokenIssuer,
	blacklist auth.TokenBlacklist,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		credentials: credentials,
		tokens:      tokens,
		blacklist:   blacklist,
		now:         time.Now,
		logger:      logger,
	}
}

// Login authenticates the admin and returns an access token
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	s.logger.Info("Login attempt",
		zap.String("username", input.Username),
		zap.String("ip", input.IP))

	if err := s.credentials.Verify(input.Username, input.Password); err != nil {
		s.logger.Warn("Login rejected",
			zap.String("username", input.Username),
			zap.String("ip", input.IP))
		return nil, shared.NewDomainError(CodeInvalidCredentials, "Invalid username or password")
	}

	token, err := s.tokens.GenerateAccessToken(input.Username)
	if err != nil {
		s.logger.Error("Failed to generate access token", zap.Error(err))
		return nil, shared.NewDomainError(CodeTokenError, "Failed to generate access token").WithCause(err)
	}

	s.logger.Info("Login successful", zap.String("username", input.Username))
	return &LoginResult{
		AccessToken: token.Token,
		ExpiresAt:   token.ExpiresAt,
		TokenType:   token.TokenType,
		Username:    input.Username,
	}, nil
}

// Logout revokes the presented token for the rest of its lifetime
func (s *AuthService) Logout(ctx context.Context, input LogoutInput) error {
	s.logger.Info("Logout", zap.String("username", input.Username))

	if s.blacklist == nil || input.TokenJTI == "" {
		return nil
	}
	ttl := input.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.blacklist.AddToBlacklist(ctx, input.TokenJTI, ttl); err != nil {
		s.logger.Error("Failed to revoke token", zap.String("jti", input.TokenJTI), zap.Error(err))
		return shared.NewPersistenceError("failed to revoke token", err)
	}
	return nil
}

// IsInvalidCredentials reports whether err is a rejected login
func IsInvalidCredentials(err error) bool {
	var de *shared.DomainError
	return errors.As(err, &de) && de.Code == CodeInvalidCredentials
}
