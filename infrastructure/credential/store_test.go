package credential

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"my-history/domain/model"
	"my-history/infrastructure/configuration"
	"my-history/infrastructure/cookiecloud"
)

type memKV struct {
	data map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (m *memKV) Set(ctx context.Context, key string, value []byte) error {
	m.data[key] = value
	return nil
}

func (m *memKV) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

type fakeCloud struct {
	cookies []cookiecloud.Cookie
	err     error
	calls   int
}

func (f *fakeCloud) FetchDomainCookies(ctx context.Context, domain string) ([]cookiecloud.Cookie, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.cookies, nil
}

// unsignedJWT builds a token whose exp claim can be read without
// verification.
func unsignedJWT(t *testing.T, exp int64) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload, err := json.Marshal(map[string]interface{}{"exp": exp})
	require.NoError(t, err)
	return fmt.Sprintf("%s.%s.sig", header, base64.RawURLEncoding.EncodeToString(payload))
}

func platformCfg(domain, tokenCookie, static string) map[string]configuration.PlatformCredential {
	return map[string]configuration.PlatformCredential{
		model.PlatformBilibili: {Domain: domain, TokenCookie: tokenCookie, Cookie: static, TTLSeconds: 3600},
	}
}

func TestStore_StaticFallbackWhenNoCloud(t *testing.T) {
	store := NewStore(newMemKV(), nil, platformCfg("", "", "SESSDATA=static-value"))

	got, err := store.GetCredential(context.Background(), model.PlatformBilibili)
	require.NoError(t, err)
	require.Equal(t, "SESSDATA=static-value", got)
}

func TestStore_CloudFetchCachedUntilExpiry(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Unix()
	cloud := &fakeCloud{cookies: []cookiecloud.Cookie{
		{Name: "SESSDATA", Value: "cloud-value"},
		{Name: "AUTH_TOKEN", Value: unsignedJWT(t, exp)},
	}}
	kv := newMemKV()
	store := NewStore(kv, cloud, platformCfg(".bilibili.com", "AUTH_TOKEN", "fallback"))

	first, err := store.GetCredential(context.Background(), model.PlatformBilibili)
	require.NoError(t, err)
	require.Contains(t, first, "SESSDATA=cloud-value")
	require.Equal(t, 1, cloud.calls)

	// Second call is served from cache.
	second, err := store.GetCredential(context.Background(), model.PlatformBilibili)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, cloud.calls)

	var cached model.CachedCredential
	require.NoError(t, json.Unmarshal(kv.data[model.PlatformBilibili], &cached))
	require.Equal(t, model.CredentialSourceCloud, cached.Source)
	require.Equal(t, exp, cached.ExpiresAt)
}

func TestStore_ExpiredCacheRefetches(t *testing.T) {
	// exp within the refresh buffer counts as stale.
	exp := time.Now().Add(60 * time.Second).Unix()
	cloud := &fakeCloud{cookies: []cookiecloud.Cookie{
		{Name: "SESSDATA", Value: "v"},
		{Name: "AUTH_TOKEN", Value: unsignedJWT(t, exp)},
	}}
	store := NewStore(newMemKV(), cloud, platformCfg(".bilibili.com", "AUTH_TOKEN", ""))

	_, err := store.GetCredential(context.Background(), model.PlatformBilibili)
	require.NoError(t, err)
	_, err = store.GetCredential(context.Background(), model.PlatformBilibili)
	require.NoError(t, err)
	require.Equal(t, 2, cloud.calls, "stale cache entry must trigger a refetch")
}

func TestStore_ForceRefreshDropsCache(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Unix()
	cloud := &fakeCloud{cookies: []cookiecloud.Cookie{
		{Name: "SESSDATA", Value: "v"},
		{Name: "AUTH_TOKEN", Value: unsignedJWT(t, exp)},
	}}
	store := NewStore(newMemKV(), cloud, platformCfg(".bilibili.com", "AUTH_TOKEN", ""))

	_, err := store.GetCredential(context.Background(), model.PlatformBilibili)
	require.NoError(t, err)
	require.Equal(t, 1, cloud.calls)

	_, err = store.RefreshCredential(context.Background(), model.PlatformBilibili, true)
	require.NoError(t, err)
	require.Equal(t, 2, cloud.calls)

	_, err = store.RefreshCredential(context.Background(), model.PlatformBilibili, false)
	require.NoError(t, err)
	require.Equal(t, 2, cloud.calls, "non-forced refresh keeps the fresh cache")
}

func TestStore_CloudFailureFallsBackToStatic(t *testing.T) {
	cloud := &fakeCloud{err: errors.New("boom")}
	store := NewStore(newMemKV(), cloud, platformCfg(".bilibili.com", "", "static-cookie"))

	got, err := store.GetCredential(context.Background(), model.PlatformBilibili)
	require.NoError(t, err)
	require.Equal(t, "static-cookie", got)
}

func TestStore_NoSourceAtAll(t *testing.T) {
	cloud := &fakeCloud{err: errors.New("boom")}
	store := NewStore(newMemKV(), cloud, platformCfg(".bilibili.com", "", ""))

	_, err := store.GetCredential(context.Background(), model.PlatformBilibili)
	var credErr *model.CredentialError
	require.True(t, errors.As(err, &credErr))
}

func TestStore_UnknownPlatform(t *testing.T) {
	store := NewStore(newMemKV(), nil, platformCfg("", "", "x"))
	_, err := store.GetCredential(context.Background(), "nope")
	var credErr *model.CredentialError
	require.True(t, errors.As(err, &credErr))
}

func TestExtractJWTExp(t *testing.T) {
	require.EqualValues(t, 1234567890, extractJWTExp(unsignedJWT(t, 1234567890)))
	require.EqualValues(t, 0, extractJWTExp("not-a-jwt"))
}
