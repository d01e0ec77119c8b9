package handler

import "time"

// LoginRequest represents the request body for admin login
type LoginRequest struct {
	Username string `json:"username" binding:"required,max=100" example:"admin"`
	Password string `json:"password" binding:"required,max=128" example:"secret"`
}

// TokenResponse represents an issued access token
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type" example:"Bearer"`
}

// LoginResponse represents the response body for a successful login
type LoginResponse struct {
	Token    TokenResponse `json:"token"`
	Username string        `json:"username" example:"admin"`
}
