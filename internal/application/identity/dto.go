package identity

import "time"

// LoginInput contains the input for back-office login
type LoginInput struct {
	Username string `json:"username" binding:"required,max=100" example:"admin"`
	Password string `json:"password" binding:"required,max=200" example:"secret"`
	IP       string `json:"-"` // Client IP for login tracking
}

// LoginResult contains the result of a successful login
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type" example:"Bearer"`
	Username    string    `json:"username"`
}

// LogoutInput identifies the token to revoke
type LogoutInput struct {
	Username  string
	TokenJTI  string
	ExpiresAt time.Time
}
