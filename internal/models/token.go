package models

const TokenTypeBearer = "bearer"

// Token pair issued on login or refresh
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`

	// Access token lifetime in seconds
	ExpiresIn int64  `json:"expires_in"`
	TokenType string `json:"token_type"`
}
