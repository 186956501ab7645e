package auth

import (
	"os"
	"time"

	"cpcscraper/pkg/config"
)

// EnvironmentProfile is the name given to the profile read from the
// environment.
const EnvironmentProfile = "env"

// EnvironmentStore reads a single read-only profile from
// CPCSCRAPER_COOKIE and CPCSCRAPER_USER_AGENT.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based profile store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(p *Profile) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment profile for "" or "env".
func (e *EnvironmentStore) Retrieve(name string) (*Profile, error) {
	if name != "" && name != EnvironmentProfile {
		return nil, ErrProfileNotFound
	}
	cookie := os.Getenv(config.EnvPrefix + "COOKIE")
	if cookie == "" {
		return nil, ErrProfileNotFound
	}
	return &Profile{
		Name:         EnvironmentProfile,
		Cookie:       cookie,
		UserAgent:    os.Getenv(config.EnvPrefix + "USER_AGENT"),
		LastModified: time.Now(),
	}, nil
}

// List returns the environment profile when one is set.
func (e *EnvironmentStore) List() ([]*Profile, error) {
	p, err := e.Retrieve("")
	if err != nil {
		return []*Profile{}, nil
	}
	return []*Profile{p}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists reports whether the environment carries a cookie.
func (e *EnvironmentStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}
