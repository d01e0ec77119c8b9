package handler

import (
	"net/http"
	"testing"

	"github.com/agencyhq/invoicing/internal/interfaces/http/dto"
	"github.com/agencyhq/invoicing/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandler_Login_Success(t *testing.T) {
	api := newTestAPI(t)

	w, resp := api.do(http.MethodPost, "/api/v1/auth/login",
		map[string]any{"username": testAdmin, "password": testPassword}, withoutAuth())

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	login := decodeData[LoginResponse](t, resp)
	assert.Equal(t, testAdmin, login.Username)
	assert.Equal(t, "Bearer", login.Token.TokenType)
	assert.False(t, login.Token.ExpiresAt.IsZero())

	claims, err := api.jwt.ValidateAccessToken(login.Token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, testAdmin, claims.Username)
}

func TestAuthHandler_Login_Rejected(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name     string
		body     any
		status   int
		wantCode string
	}{
		{"wrong password", map[string]any{"username": testAdmin, "password": "nope"}, http.StatusUnauthorized, dto.ErrCodeInvalidCredentials},
		{"wrong user", map[string]any{"username": "root", "password": testPassword}, http.StatusUnauthorized, dto.ErrCodeInvalidCredentials},
		{"missing password", map[string]any{"username": testAdmin}, http.StatusBadRequest, dto.ErrCodeValidation},
		{"malformed body", `{"username":`, http.StatusBadRequest, dto.ErrCodeInvalidJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := api.do(http.MethodPost, "/api/v1/auth/login", tt.body, withoutAuth())
			assert.Equal(t, tt.status, w.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestAuthHandler_Logout_RevokesToken(t *testing.T) {
	api := newTestAPI(t)

	w, resp := api.do(http.MethodPost, "/api/v1/auth/logout", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Logged out successfully", decodeData[MessageData](t, resp).Message)

	w, resp = api.do(http.MethodGet, "/api/v1/invoices", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrCodeTokenRevoked, resp.Error.Code)
}

func TestAuthHandler_Logout_Unauthenticated(t *testing.T) {
	api := newTestAPI(t)

	w, _ := api.do(http.MethodPost, "/api/v1/auth/logout", nil, withoutAuth())
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = api.do(http.MethodPost, "/api/v1/auth/logout", nil,
		withHeader(middleware.AuthHeaderKey, "Bearer not.a.token"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_Logout_WithoutClaims(t *testing.T) {
	h := NewAuthHandler(nil)
	w, c := newTestContext(http.MethodPost, "/api/v1/auth/logout")

	h.Logout(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
