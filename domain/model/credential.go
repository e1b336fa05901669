package model

// CachedCredential is one entry of the credential cache, keyed by platform.
type CachedCredential struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expires_at"` // unix seconds; 0 = no expiry known
	Source    string `json:"source"`     // "cloud" or "static"
	CachedAt  int64  `json:"cached_at"`  // unix seconds
}

// Credential sources recorded in the cache.
const (
	CredentialSourceCloud  = "cloud"
	CredentialSourceStatic = "static"
)

// TokenPair is the persisted state for platforms using an access/refresh
// token pair instead of a cookie. DeviceID is generated once per install
// and never rotated.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	DeviceID     string `json:"deviceId"`
	UpdatedAt    int64  `json:"updatedAt"` // unix millis
}
