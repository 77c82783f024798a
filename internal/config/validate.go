package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const minSecretKeyLength = 32

var (
	ErrInvalidSecretKey     = errors.New("invalid secret key")
	ErrInvalidPort          = errors.New("invalid port")
	ErrMissingAdminPassword = errors.New("admin password is not configured")
	ErrInvalidPasswordHash  = errors.New("admin password hash is not a bcrypt hash")
	ErrInvalidTimezone      = errors.New("invalid timezone")
)

var insecureSecretPlaceholders = map[string]struct{}{
	"change_me_in_production":                    {},
	"replace_with_at_least_32_random_characters": {},
	"change-me":                                  {},
	"secret":                                     {},
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate ensures the configuration is usable and resolves the time zone.
func (c *Config) Validate() error {
	if err := c.ValidateStorage(); err != nil {
		return err
	}
	if err := validateSecretKey(c.SecretKey); err != nil {
		return err
	}
	if err := validatePort(c.Port); err != nil {
		return err
	}
	return c.validateAdminCredentials()
}

// ValidateStorage checks field formats and resolves the time zone without
// requiring server secrets.
func (c *Config) ValidateStorage() error {
	if err := structValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	location, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimezone, c.Timezone)
	}
	c.location = location
	return nil
}

func validateSecretKey(secret string) error {
	if secret == "" {
		return fmt.Errorf("%w: %sSECRET_KEY is required", ErrInvalidSecretKey, EnvPrefix)
	}
	if _, insecure := insecureSecretPlaceholders[strings.ToLower(secret)]; insecure {
		return fmt.Errorf("%w: %sSECRET_KEY uses a placeholder value", ErrInvalidSecretKey, EnvPrefix)
	}
	if len(secret) < minSecretKeyLength {
		return fmt.Errorf("%w: %sSECRET_KEY must be at least %d characters", ErrInvalidSecretKey, EnvPrefix, minSecretKeyLength)
	}
	return nil
}

func validatePort(raw string) error {
	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("%w: %q", ErrInvalidPort, raw)
	}
	return nil
}

func (c *Config) validateAdminCredentials() error {
	if c.AdminPasswordHash != "" {
		if !strings.HasPrefix(c.AdminPasswordHash, "$2") {
			return ErrInvalidPasswordHash
		}
		return nil
	}
	if c.AdminPassword == "" {
		return fmt.Errorf("%w: set %sADMIN_PASSWORD or %sADMIN_PASSWORD_HASH", ErrMissingAdminPassword, EnvPrefix, EnvPrefix)
	}
	return nil
}
