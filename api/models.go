package api

// TokenTypeBearer is the token_type value for every token this server mints.
const TokenTypeBearer = "bearer"

// TokenResponse is the body returned by the login and token endpoints.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// AuthorizeResponse carries the authorization code back to the client, which
// exchanges it at the token endpoint within its TTL.
type AuthorizeResponse struct {
	AuthCode string `json:"auth_code"`
}

// UserInfoResponse is returned by the protected userinfo endpoint.
type UserInfoResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
