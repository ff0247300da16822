package credential

import (
	"errors"
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

const serviceName = "portal-inbox"

// TokenKey is the keyring key under which the portal session token lives.
const TokenKey = "portal-session-token"

// TokenEnvVar overrides the keyring when set.
const TokenEnvVar = "PORTAL_INBOX_TOKEN"

// openKeyring returns a configured keyring instance.
var openKeyring = func() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/portal-inbox/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("portal-inbox-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "Portal inbox session",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
// Deleting a key that does not exist is not an error.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// Token returns the session token from the environment or the keyring.
// A missing token is the normal state of a signed-out user and yields an
// empty string with a nil error; only keyring failures are reported.
func Token() (string, error) {
	if tok := os.Getenv(TokenEnvVar); tok != "" {
		return tok, nil
	}

	tok, err := Get(TokenKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", nil
		}
		return "", err
	}
	return tok, nil
}

// SetToken stores the session token.
func SetToken(token string) error {
	return Set(TokenKey, token)
}

// DeleteToken removes the session token.
func DeleteToken() error {
	return Delete(TokenKey)
}
