package credential

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt"

	"my-history/domain/model"
	"my-history/domain/repository"
	"my-history/infrastructure/configuration"
	"my-history/infrastructure/cookiecloud"
	"my-history/infrastructure/logger"
)

// refreshBufferSeconds is subtracted from the expiry when judging cache
// freshness, so a credential is refreshed before it actually lapses.
const refreshBufferSeconds = 300

const defaultTTLSeconds = 24 * 3600

// ICookieSource is the cloud side of the store; satisfied by
// *cookiecloud.Client.
type ICookieSource interface {
	FetchDomainCookies(ctx context.Context, domain string) ([]cookiecloud.Cookie, error)
}

// Store resolves per-platform cookie credentials: cache first, then the
// cloud source, then static configuration.
type Store struct {
	cache     repository.IKeyValue
	cloud     ICookieSource
	platforms map[string]configuration.PlatformCredential
	now       func() time.Time
}

func NewStore(cache repository.IKeyValue, cloud ICookieSource, platforms map[string]configuration.PlatformCredential) repository.ICredentialStore {
	return &Store{
		cache:     cache,
		cloud:     cloud,
		platforms: platforms,
		now:       time.Now,
	}
}

func (s *Store) GetCredential(ctx context.Context, platform string) (string, error) {
	cfg, ok := s.platforms[platform]
	if !ok {
		return "", &model.CredentialError{Platform: platform, Reason: "platform not configured"}
	}

	if entry := s.loadCached(ctx, platform); entry != nil && s.fresh(entry) {
		logger.GetLogger().WithField("platform", platform).Debug("Using cached credential")
		return entry.Value, nil
	}

	if s.cloud != nil && cfg.Domain != "" {
		value, expiresAt, err := s.fetchFromCloud(ctx, cfg)
		if err == nil {
			s.saveCached(ctx, platform, &model.CachedCredential{
				Value:     value,
				ExpiresAt: expiresAt,
				Source:    model.CredentialSourceCloud,
				CachedAt:  s.now().Unix(),
			})
			return value, nil
		}
		logger.GetLogger().WithField("platform", platform).WithField("error", err).Warn("Cloud credential fetch failed, falling back to static config")
	}

	if cfg.Cookie != "" {
		s.saveCached(ctx, platform, &model.CachedCredential{
			Value:     cfg.Cookie,
			ExpiresAt: s.now().Unix() + s.ttl(cfg),
			Source:    model.CredentialSourceStatic,
			CachedAt:  s.now().Unix(),
		})
		return cfg.Cookie, nil
	}

	return "", &model.CredentialError{Platform: platform, Reason: "no cloud source and no static cookie configured"}
}

func (s *Store) RefreshCredential(ctx context.Context, platform string, force bool) (string, error) {
	if force {
		logger.GetLogger().WithField("platform", platform).Info("Forcing credential refresh, dropping cache")
		if err := s.Invalidate(ctx, platform); err != nil {
			logger.GetLogger().WithField("error", err).Warn("Failed to invalidate credential cache")
		}
	}
	return s.GetCredential(ctx, platform)
}

func (s *Store) Invalidate(ctx context.Context, platform string) error {
	return s.cache.Delete(ctx, platform)
}

func (s *Store) fetchFromCloud(ctx context.Context, cfg configuration.PlatformCredential) (string, int64, error) {
	cookies, err := s.cloud.FetchDomainCookies(ctx, cfg.Domain)
	if err != nil {
		return "", 0, err
	}
	value := cookiecloud.CookieString(cookies)
	if value == "" {
		return "", 0, &model.CredentialError{Platform: cfg.Domain, Reason: "cloud source returned no usable cookies"}
	}

	expiresAt := s.now().Unix() + s.ttl(cfg)
	if cfg.TokenCookie != "" {
		if token := cookiecloud.CookieValue(cookies, cfg.TokenCookie); token != "" {
			if exp := extractJWTExp(token); exp > 0 {
				expiresAt = exp
			} else {
				logger.GetLogger().WithField("cookie", cfg.TokenCookie).Warn("Could not extract exp from auth token cookie, using TTL")
			}
		}
	}
	return value, expiresAt, nil
}

func (s *Store) fresh(entry *model.CachedCredential) bool {
	if entry.ExpiresAt == 0 {
		return false
	}
	return s.now().Unix() < entry.ExpiresAt-refreshBufferSeconds
}

func (s *Store) ttl(cfg configuration.PlatformCredential) int64 {
	if cfg.TTLSeconds > 0 {
		return cfg.TTLSeconds
	}
	return defaultTTLSeconds
}

func (s *Store) loadCached(ctx context.Context, platform string) *model.CachedCredential {
	raw, err := s.cache.Get(ctx, platform)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Credential cache read failed")
		return nil
	}
	if raw == nil {
		return nil
	}
	var entry model.CachedCredential
	if err := json.Unmarshal(raw, &entry); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Credential cache entry malformed, ignoring")
		return nil
	}
	return &entry
}

func (s *Store) saveCached(ctx context.Context, platform string, entry *model.CachedCredential) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, platform, raw); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Credential cache write failed")
	}
}

// extractJWTExp reads the exp claim of a JWT without verifying the
// signature; the token is only used to schedule refreshes.
func extractJWTExp(token string) int64 {
	claims := jwt.MapClaims{}
	parser := &jwt.Parser{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return 0
	}
	if exp, ok := claims["exp"].(float64); ok {
		return int64(exp)
	}
	return 0
}
