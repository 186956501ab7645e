package auth

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"cpcscraper/pkg/config"

	"github.com/adrg/xdg"
)

// Profile is a stored browser session: the cookie string and user agent a
// browser used after passing the site's challenge page, plus any extra
// request headers.
type Profile struct {
	Name         string            `json:"name"`
	Cookie       string            `json:"cookie"`
	UserAgent    string            `json:"user_agent,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// RequestHeaders returns the headers the fetcher should send for p.
func (p *Profile) RequestHeaders() map[string]string {
	h := make(map[string]string, len(p.Headers)+2)
	for k, v := range p.Headers {
		h[http.CanonicalHeaderKey(k)] = v
	}
	if p.Cookie != "" {
		h["Cookie"] = p.Cookie
	}
	if p.UserAgent != "" {
		h["User-Agent"] = p.UserAgent
	}
	return h
}

// Validate checks that p can be stored.
func (p *Profile) Validate() error {
	var errs []error
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, errors.New("profile name is required"))
	}
	if strings.ContainsAny(p.Name, "/\\") {
		errs = append(errs, errors.New("profile name must not contain path separators"))
	}
	if strings.TrimSpace(p.Cookie) == "" && len(p.Headers) == 0 {
		errs = append(errs, errors.New("a cookie or at least one header is required"))
	}
	for k := range p.Headers {
		if strings.TrimSpace(k) == "" || strings.ContainsAny(k, ": \r\n") {
			errs = append(errs, fmt.Errorf("invalid header name %q", k))
		}
	}
	return errors.Join(errs...)
}

// Store persists session profiles.
type Store interface {
	Store(p *Profile) error
	Retrieve(name string) (*Profile, error)
	List() ([]*Profile, error)
	Delete(name string) error
	Exists(name string) bool
}

// Manager reads from the first store that has a profile and writes to the
// first store that accepts it.
type Manager struct {
	stores []Store
}

// NewManager builds the default chain: OS keychain when available, then
// an encrypted file under the XDG config directory, then the environment.
func NewManager() (*Manager, error) {
	var stores []Store

	if ks, err := NewKeyringStore(); err == nil {
		stores = append(stores, ks)
	}

	path, err := xdg.ConfigFile(config.AppName + "/sessions.enc")
	if err != nil {
		return nil, fmt.Errorf("failed to get session store path: %w", err)
	}
	fs, err := NewEncryptedFileStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, fs, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWith chains the given stores in order.
func NewManagerWith(stores ...Store) *Manager {
	return &Manager{stores: stores}
}

// Store validates p and saves it to the first store that accepts it.
func (m *Manager) Store(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.LastModified = time.Now()

	var lastErr error
	for _, s := range m.stores {
		err := s.Store(p)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return fmt.Errorf("failed to store profile: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve returns the named profile from the first store that has it.
func (m *Manager) Retrieve(name string) (*Profile, error) {
	for _, s := range m.stores {
		if p, err := s.Retrieve(name); err == nil && p != nil {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// Resolve returns the named profile, or the environment profile when name
// is empty. A nil profile with a nil error means no session applies.
func (m *Manager) Resolve(name string) (*Profile, error) {
	if name != "" {
		return m.Retrieve(name)
	}
	for _, s := range m.stores {
		if env, ok := s.(*EnvironmentStore); ok {
			if p, err := env.Retrieve(""); err == nil {
				return p, nil
			}
		}
	}
	return nil, nil
}

// List returns the newest version of every profile, sorted by name.
func (m *Manager) List() ([]*Profile, error) {
	byName := make(map[string]*Profile)
	for _, s := range m.stores {
		profiles, err := s.List()
		if err != nil {
			continue
		}
		for _, p := range profiles {
			if existing, ok := byName[p.Name]; !ok || p.LastModified.After(existing.LastModified) {
				byName[p.Name] = p
			}
		}
	}

	out := make([]*Profile, 0, len(byName))
	for _, p := range byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes the profile from every store that holds it.
func (m *Manager) Delete(name string) error {
	var deleted bool
	var lastErr error
	for _, s := range m.stores {
		if err := s.Delete(name); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrProfileNotFound) && !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete profile: %w", lastErr)
	}
	return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// Masked returns a copy of p safe to print.
func Masked(p *Profile) *Profile {
	if p == nil {
		return nil
	}
	out := *p
	out.Cookie = maskString(p.Cookie)
	if len(p.Headers) > 0 {
		out.Headers = make(map[string]string, len(p.Headers))
		for k, v := range p.Headers {
			out.Headers[k] = maskString(v)
		}
	}
	return &out
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

var (
	ErrProfileNotFound  = errors.New("session profile not found")
	ErrInvalidProfile   = errors.New("invalid session profile")
	ErrStoreUnavailable = errors.New("session store unavailable")
)
