package credential

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"my-history/domain/dto"
	"my-history/domain/model"
	"my-history/infrastructure/logger"
)

// TokenStore manages the access/refresh token pair used by the podcast
// platform. The device id is generated once per install and persisted with
// the tokens.
type TokenStore struct {
	path       string
	refreshURL string
	httpClient *http.Client

	mu    sync.Mutex
	state model.TokenPair
}

func NewTokenStore(path, refreshURL, staticAccess, staticRefresh string) *TokenStore {
	s := &TokenStore{
		path:       path,
		refreshURL: refreshURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	s.load(staticAccess, staticRefresh)
	return s
}

// Init proactively refreshes when only a refresh token is available, so the
// first sync does not start with a guaranteed 401.
func (s *TokenStore) Init(ctx context.Context) {
	s.mu.Lock()
	needRefresh := s.state.AccessToken == "" && s.state.RefreshToken != ""
	s.mu.Unlock()
	if needRefresh {
		if !s.RefreshTokens(ctx) {
			logger.GetLogger().Warn("Proactive token refresh failed; sync will retry on demand")
		}
	}
}

func (s *TokenStore) load(staticAccess, staticRefresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data, err := os.ReadFile(s.path); err == nil {
		if err := json.Unmarshal(data, &s.state); err != nil {
			logger.GetLogger().WithField("error", err).Warn("Token state file malformed, reseeding from config")
			s.state = model.TokenPair{}
		}
	}
	if s.state.AccessToken == "" && staticAccess != "" {
		s.state.AccessToken = staticAccess
	}
	if s.state.RefreshToken == "" && staticRefresh != "" {
		s.state.RefreshToken = staticRefresh
	}
	if s.state.DeviceID == "" {
		s.state.DeviceID = uuid.New().String()
		logger.GetLogger().WithField("deviceId", s.state.DeviceID).Info("Generated new device id")
	}
	s.persistLocked()
}

// AccessToken returns the current access token; may be empty when neither
// the state file nor static config provided one.
func (s *TokenStore) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AccessToken
}

func (s *TokenStore) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.RefreshToken
}

func (s *TokenStore) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.DeviceID
}

// HasCredentials reports whether any token material is available at all.
func (s *TokenStore) HasCredentials() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AccessToken != "" || s.state.RefreshToken != ""
}

// RefreshTokens exchanges the refresh token for a new pair. Returns false
// instead of an error so callers decide the fallback.
func (s *TokenStore) RefreshTokens(ctx context.Context) bool {
	s.mu.Lock()
	refreshToken := s.state.RefreshToken
	deviceID := s.state.DeviceID
	s.mu.Unlock()

	if refreshToken == "" {
		logger.GetLogger().Warn("No refresh token available")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.refreshURL, bytes.NewReader([]byte("{}")))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-jike-refresh-token", refreshToken)
	req.Header.Set("x-jike-device-id", deviceID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Token refresh request failed")
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logger.GetLogger().WithField("status", resp.StatusCode).Warn("Token refresh rejected")
		return false
	}

	var out dto.PodcastRefreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Token refresh response malformed")
		return false
	}
	if out.AccessToken == "" {
		logger.GetLogger().Warn("Token refresh response carried no access token")
		return false
	}

	s.mu.Lock()
	s.state.AccessToken = out.AccessToken
	if out.RefreshToken != "" {
		s.state.RefreshToken = out.RefreshToken
	}
	s.persistLocked()
	s.mu.Unlock()

	logger.GetLogger().Info("Token pair refreshed")
	return true
}

func (s *TokenStore) persistLocked() {
	s.state.UpdatedAt = time.Now().UnixMilli()
	data, err := json.MarshalIndent(&s.state, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Failed creating token state dir")
		return
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Failed persisting token state")
	}
}
