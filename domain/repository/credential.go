package repository

import "context"

// ICredentialStore serves a currently valid credential string for a named
// platform, hiding how it was obtained (cache, cloud source or static
// configuration).
type ICredentialStore interface {
	GetCredential(ctx context.Context, platform string) (string, error)
	// RefreshCredential behaves like GetCredential; with force it drops the
	// cached entry first. Used after a detected auth failure.
	RefreshCredential(ctx context.Context, platform string, force bool) (string, error)
	// Invalidate drops the cached entry only.
	Invalidate(ctx context.Context, platform string) error
}

// IKeyValue is the narrow storage interface behind the credential cache.
// A nil value with a nil error means the key is absent.
type IKeyValue interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
