package services

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/keyring"
)

// Credential types accepted for the monitoring endpoint
const (
	CredentialTypeNone  = "none"
	CredentialTypeToken = "token"
	CredentialTypeBasic = "basic"
)

// ErrCredentialsNotFound is returned when no credentials are stored for an endpoint
var ErrCredentialsNotFound = errors.New("credentials not found")

// EndpointCredentials authenticates requests to the monitoring endpoint
type EndpointCredentials struct {
	Type     string `json:"type" validate:"required,oneof=none token basic"`
	Token    string `json:"token,omitempty" validate:"required_if=Type token"`
	Username string `json:"username,omitempty" validate:"required_if=Type basic"`
	Password string `json:"password,omitempty"`
}

// AuthorizationHeader renders the credentials as an Authorization header value
func (c *EndpointCredentials) AuthorizationHeader() string {
	switch c.Type {
	case CredentialTypeToken:
		return "Bearer " + c.Token
	case CredentialTypeBasic:
		raw := c.Username + ":" + c.Password
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
	default:
		return ""
	}
}

// CredentialService stores monitoring endpoint credentials in the OS keychain
type CredentialService struct {
	ring keyring.Keyring
}

// NewCredentialService opens the keyring, falling back to an encrypted file
func NewCredentialService() (*CredentialService, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: "clusterview",
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,      // macOS Keychain
			keyring.SecretServiceBackend, // Linux Secret Service (gnome-keyring, kwallet)
			keyring.WinCredBackend,       // Windows Credential Manager
			keyring.FileBackend,          // Encrypted file fallback
		},
		FileDir: "~/.clusterview",
		FilePasswordFunc: func(prompt string) (string, error) {
			return "clusterview-secret-key", nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}

	return &CredentialService{ring: ring}, nil
}

// NewCredentialServiceWithKeyring wraps an already opened keyring
func NewCredentialServiceWithKeyring(ring keyring.Keyring) *CredentialService {
	return &CredentialService{ring: ring}
}

// StoreCredentials stores credentials for an endpoint
func (s *CredentialService) StoreCredentials(endpoint string, creds *EndpointCredentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	item := keyring.Item{
		Key:   credentialKey(endpoint),
		Data:  data,
		Label: "clusterview monitoring endpoint " + endpoint,
	}
	if err := s.ring.Set(item); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	return nil
}

// GetCredentials retrieves the credentials stored for an endpoint
func (s *CredentialService) GetCredentials(endpoint string) (*EndpointCredentials, error) {
	item, err := s.ring.Get(credentialKey(endpoint))
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) || isMissingFile(err) {
			return nil, fmt.Errorf("%w for endpoint: %s", ErrCredentialsNotFound, endpoint)
		}
		return nil, fmt.Errorf("failed to retrieve credentials: %w", err)
	}

	var creds EndpointCredentials
	if err := json.Unmarshal(item.Data, &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	return &creds, nil
}

// DeleteCredentials removes the credentials stored for an endpoint
func (s *CredentialService) DeleteCredentials(endpoint string) error {
	if err := s.ring.Remove(credentialKey(endpoint)); err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) || isMissingFile(err) {
			return nil
		}
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}

// AuthorizationFor returns the Authorization header for an endpoint, or ""
// when nothing is stored
func (s *CredentialService) AuthorizationFor(endpoint string) (string, error) {
	creds, err := s.GetCredentials(endpoint)
	if err != nil {
		if errors.Is(err, ErrCredentialsNotFound) {
			return "", nil
		}
		return "", err
	}
	return creds.AuthorizationHeader(), nil
}

// credentialKey is safe to use as a file name for the file backend
func credentialKey(endpoint string) string {
	normalized := strings.TrimRight(endpoint, "/")
	return "endpoint-" + base64.RawURLEncoding.EncodeToString([]byte(normalized))
}

// File backend may return "no such file" instead of ErrKeyNotFound
func isMissingFile(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no such file") || strings.Contains(msg, "not found")
}
