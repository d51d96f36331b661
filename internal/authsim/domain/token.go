package domain

// TokenPair is what a successful login or refresh returns: a short-lived
// access JWT and a long-lived refresh JWT, both bound to one session.
// Immutable once issued; a new pair is a new value.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"` // "Bearer"
	ExpiresIn    int64  `json:"expires_in"`           // seconds until the access token expires
}
