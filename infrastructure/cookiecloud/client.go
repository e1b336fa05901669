package cookiecloud

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"my-history/domain/model"
	"my-history/infrastructure/logger"
)

// saltedMagic is the OpenSSL format marker at the start of every encrypted
// payload.
const saltedMagic = "Salted__"

// Cookie is one browser cookie entry from the decrypted payload.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Client fetches and decrypts cookie data from a CookieCloud server.
type Client struct {
	baseURL    string
	uuid       string
	password   string
	httpClient *http.Client
}

func NewClient(baseURL, uuid, password string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		uuid:       uuid,
		password:   password,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchDomainCookies downloads the encrypted blob, decrypts it and returns
// the cookies stored for the given domain.
func (c *Client) FetchDomainCookies(ctx context.Context, domain string) ([]Cookie, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/get/%s", c.baseURL, c.uuid), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cookiecloud request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cookiecloud returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cookiecloud read body: %w", err)
	}

	var envelope struct {
		Encrypted string `json:"encrypted"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("cookiecloud malformed response: %w", err)
	}
	if envelope.Encrypted == "" {
		return nil, &model.CredentialDecryptError{Reason: "empty encrypted payload"}
	}

	data, err := c.Decrypt(envelope.Encrypted)
	if err != nil {
		return nil, err
	}

	cookies := findDomainCookies(data, domain)
	if cookies == nil {
		available := make([]string, 0, len(data))
		for k := range data {
			available = append(available, k)
		}
		sort.Strings(available)
		return nil, &model.DomainNotFoundError{Domain: domain, Available: available}
	}
	logger.GetLogger().WithField("count", len(cookies)).WithField("domain", domain).Debug("CookieCloud domain cookies resolved")
	return cookies, nil
}

// Decrypt decodes the base64 blob and decrypts it with the
// OpenSSL-compatible scheme: "Salted__" marker, 8-byte salt, key/iv derived
// via a single-MD5-round EVP_BytesToKey from the first 16 hex chars of
// MD5(uuid-password), then AES-256-CBC.
func (c *Client) Decrypt(encrypted string) (map[string][]Cookie, error) {
	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, &model.CredentialDecryptError{Reason: fmt.Sprintf("invalid base64: %v", err)}
	}
	if len(raw) < 16 || string(raw[:8]) != saltedMagic {
		return nil, &model.CredentialDecryptError{Reason: "missing Salted__ marker"}
	}
	salt := raw[8:16]
	ciphertext := raw[16:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, &model.CredentialDecryptError{Reason: "ciphertext not block aligned"}
	}

	pass := DeriveKeyPassword(c.uuid, c.password)
	key, iv := BytesToKey([]byte(pass), salt, 32, aes.BlockSize)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &model.CredentialDecryptError{Reason: err.Error()}
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	plain, err = stripPKCS7(plain)
	if err != nil {
		return nil, &model.CredentialDecryptError{Reason: err.Error()}
	}

	var payload struct {
		CookieData map[string][]Cookie `json:"cookie_data"`
	}
	if err := json.Unmarshal(plain, &payload); err != nil {
		return nil, &model.CredentialDecryptError{Reason: fmt.Sprintf("decrypted payload is not valid JSON: %v", err)}
	}
	if payload.CookieData == nil {
		return nil, &model.CredentialDecryptError{Reason: "decrypted payload has no cookie_data"}
	}
	return payload.CookieData, nil
}

// DeriveKeyPassword builds the EVP passphrase: the first 16 hex characters
// of MD5("<uuid>-<password>").
func DeriveKeyPassword(uuid, password string) string {
	sum := md5.Sum([]byte(uuid + "-" + password))
	return hex.EncodeToString(sum[:])[:16]
}

// BytesToKey is the single-MD5-round OpenSSL EVP_BytesToKey expansion.
func BytesToKey(pass, salt []byte, keyLen, ivLen int) (key, iv []byte) {
	var derived []byte
	var prev []byte
	for len(derived) < keyLen+ivLen {
		h := md5.New()
		h.Write(prev)
		h.Write(pass)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:keyLen], derived[keyLen : keyLen+ivLen]
}

func stripPKCS7(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	pad := int(b[len(b)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(b) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, v := range b[len(b)-pad:] {
		if int(v) != pad {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return b[:len(b)-pad], nil
}

// findDomainCookies resolves a domain key: exact match first, then the
// leading-dot variant, then suffix/substring match across available keys.
func findDomainCookies(data map[string][]Cookie, domain string) []Cookie {
	if cookies, ok := data[domain]; ok {
		return cookies
	}
	var variant string
	if strings.HasPrefix(domain, ".") {
		variant = domain[1:]
	} else {
		variant = "." + domain
	}
	if cookies, ok := data[variant]; ok {
		return cookies
	}
	trimmed := strings.TrimPrefix(domain, ".")
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.HasSuffix(strings.TrimPrefix(k, "."), trimmed) || strings.Contains(k, trimmed) {
			return data[k]
		}
	}
	return nil
}

// CookieString joins cookies into a "name=value; name=value" header value.
// Entries with an empty name or value are skipped.
func CookieString(cookies []Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		if ck.Name == "" || ck.Value == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", ck.Name, ck.Value))
	}
	return strings.Join(parts, "; ")
}

// CookieValue returns the value of the named cookie, or "".
func CookieValue(cookies []Cookie, name string) string {
	for _, ck := range cookies {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}
