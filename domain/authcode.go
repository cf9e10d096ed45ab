package domain

import "time"

// AuthCode represents an OAuth 2.0 authorization code. A code binds the user
// who approved the request to the client context and the PKCE challenge the
// token exchange must satisfy. It is valid for a few minutes and may be
// exchanged at most once.
type AuthCode struct {
	Code                string    `bson:"_id" json:"code"`
	UserID              string    `bson:"user_id" json:"user_id"`
	ClientID            string    `bson:"client_id" json:"client_id"`
	RedirectURI         string    `bson:"redirect_uri" json:"redirect_uri"`
	CodeChallenge       string    `bson:"code_challenge" json:"code_challenge"`
	CodeChallengeMethod string    `bson:"code_challenge_method" json:"code_challenge_method"`
	ExpiresAt           time.Time `bson:"expires_at" json:"expires_at"`
	Used                bool      `bson:"used" json:"used"`
	CreatedAt           time.Time `bson:"created_at" json:"created_at"`
}

// ExpiredAt reports whether the code is past its expiry at the given instant.
// All expiry decisions go through this predicate so a single clock drives them.
func (c *AuthCode) ExpiredAt(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
