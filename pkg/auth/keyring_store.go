package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"cpcscraper/pkg/config"

	"github.com/zalando/go-keyring"
)

const (
	keyringPrefix = "profile_"
	// keyringIndex holds the JSON list of stored names, since the keychain
	// APIs cannot enumerate entries.
	keyringIndex = "profiles_index"
)

// KeyringStore keeps profiles in the system keychain.
type KeyringStore struct {
	service string
	mu      sync.Mutex
}

// NewKeyringStore returns a store after checking the keychain accepts writes.
func NewKeyringStore() (*KeyringStore, error) {
	const probe = "test_availability"
	if err := keyring.Set(config.AppName, probe, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(config.AppName, probe)

	return &KeyringStore{service: config.AppName}, nil
}

// Store saves p to the keychain.
func (k *KeyringStore) Store(p *Profile) error {
	if p == nil || p.Name == "" {
		return ErrInvalidProfile
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if err := keyring.Set(k.service, keyringPrefix+p.Name, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return k.updateIndex(func(names map[string]bool) { names[p.Name] = true })
}

// Retrieve reads the named profile.
func (k *KeyringStore) Retrieve(name string) (*Profile, error) {
	if name == "" {
		return nil, ErrInvalidProfile
	}
	data, err := keyring.Get(k.service, keyringPrefix+name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var p Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return &p, nil
}

// List returns every profile named in the index.
func (k *KeyringStore) List() ([]*Profile, error) {
	k.mu.Lock()
	names, err := k.readIndex()
	k.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]*Profile, 0, len(names))
	for _, name := range names {
		p, err := k.Retrieve(name)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Delete removes the named profile.
func (k *KeyringStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidProfile
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if err := keyring.Delete(k.service, keyringPrefix+name); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return k.updateIndex(func(names map[string]bool) { delete(names, name) })
}

// Exists checks if the profile is in the keychain
func (k *KeyringStore) Exists(name string) bool {
	if name == "" {
		return false
	}
	_, err := keyring.Get(k.service, keyringPrefix+name)
	return err == nil
}

func (k *KeyringStore) readIndex() ([]string, error) {
	data, err := keyring.Get(k.service, keyringIndex)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring index: %w", err)
	}
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("failed to decode keyring index: %w", err)
	}
	return names, nil
}

// updateIndex applies fn to the stored name set. Callers hold k.mu.
func (k *KeyringStore) updateIndex(fn func(map[string]bool)) error {
	names, err := k.readIndex()
	if err != nil {
		return err
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	fn(set)

	list := make([]string, 0, len(set))
	for n := range set {
		list = append(list, n)
	}
	sort.Strings(list)

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode keyring index: %w", err)
	}
	if err := keyring.Set(k.service, keyringIndex, string(data)); err != nil {
		return fmt.Errorf("failed to write keyring index: %w", err)
	}
	return nil
}
