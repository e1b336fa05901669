package model

import (
	"fmt"
	"strings"
)

// ConfigError indicates missing or unusable static configuration. Callers
// treat the affected provider as disabled instead of failing the process.
type ConfigError struct {
	Platform string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for %s: %s", e.Platform, e.Reason)
}

// AuthError indicates a credential that is invalid or expired and could not
// be recovered via refresh. The sync run for that provider aborts.
type AuthError struct {
	Platform string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth failed for %s: %v", e.Platform, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransportError wraps a network-level failure after bounded retries.
type TransportError struct {
	Platform string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error for %s: %v", e.Platform, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError indicates an unexpected or malformed remote payload.
// Not retried.
type ProtocolError struct {
	Platform string
	Reason   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error for %s: %s", e.Platform, e.Reason)
}

// CredentialError indicates no credential source yielded a usable value.
type CredentialError struct {
	Platform string
	Reason   string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("no usable credential for %s: %s", e.Platform, e.Reason)
}

// CredentialDecryptError indicates a malformed encrypted blob or wrong key.
type CredentialDecryptError struct {
	Reason string
}

func (e *CredentialDecryptError) Error() string {
	return fmt.Sprintf("credential decrypt failed: %s", e.Reason)
}

// DomainNotFoundError is returned when the decrypted cloud payload has no
// cookies for the requested domain. Available lists the domains present.
type DomainNotFoundError struct {
	Domain    string
	Available []string
}

func (e *DomainNotFoundError) Error() string {
	return fmt.Sprintf("domain %q not found in cookie data, available: [%s]", e.Domain, strings.Join(e.Available, ", "))
}

// ProviderNotFoundError is returned when no registered provider reports the
// requested platform value.
type ProviderNotFoundError struct {
	Platform string
}

func (e *ProviderNotFoundError) Error() string {
	return fmt.Sprintf("no provider registered for platform %q", e.Platform)
}
