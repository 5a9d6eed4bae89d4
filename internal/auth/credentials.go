package auth

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// CredentialStore maps role -> username -> plaintext password. It is never
// mutated after construction.
type CredentialStore struct {
	users map[Role]map[string]string
}

func NewCredentialStore(users map[Role]map[string]string) *CredentialStore {
	copied := make(map[Role]map[string]string, len(users))
	for role, byName := range users {
		inner := make(map[string]string, len(byName))
		for username, password := range byName {
			inner[username] = password
		}
		copied[role] = inner
	}
	return &CredentialStore{users: copied}
}

func LoadCredentials(path string) (*CredentialStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open users file: %w", err)
	}
	defer f.Close()

	store, err := ParseCredentials(f)
	if err != nil {
		return nil, fmt.Errorf("users file %s: %w", path, err)
	}
	return store, nil
}

func ParseCredentials(r io.Reader) (*CredentialStore, error) {
	var raw map[string]map[string]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	users := make(map[Role]map[string]string, len(raw))
	for roleName, byName := range raw {
		role, err := ParseRole(strings.TrimSpace(roleName))
		if err != nil {
			return nil, err
		}
		users[role] = byName
	}
	return NewCredentialStore(users), nil
}

// Verify reports whether password is the stored password of username under role.
func (s *CredentialStore) Verify(role Role, username, password string) bool {
	if username == "" || password == "" {
		return false
	}
	byName, ok := s.users[role]
	if !ok {
		return false
	}
	stored, ok := byName[username]
	return ok && stored == password
}

func (s *CredentialStore) Count() int {
	n := 0
	for _, byName := range s.users {
		n += len(byName)
	}
	return n
}
