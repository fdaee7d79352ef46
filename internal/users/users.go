// Package users is the users partition (component F): account
// records, permission grants, and API-key lookup, seeded with the two
// indelible system users Wizard and Everyone (spec §3.3-7).
package users

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"

	"github.com/untoldecay/moobase/internal/kv"
	"github.com/untoldecay/moobase/internal/opserr"
	"github.com/untoldecay/moobase/internal/types"
)

// Store is the users partition.
type Store struct {
	db *kv.DB
}

// New wraps db's users partition, seeding the system users the first
// time they are absent.
func New(db *kv.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.seedSystemUser(types.Wizard, types.AllPermissions); err != nil {
		return nil, err
	}
	if err := s.seedSystemUser(types.Everyone, nil); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) seedSystemUser(id string, perms []types.Permission) error {
	if _, ok, err := s.Get(id); err != nil || ok {
		return err
	}
	permSet := make(map[types.Permission]struct{}, len(perms))
	for _, p := range perms {
		permSet[p] = struct{}{}
	}
	u := &types.User{
		ID:          id,
		Permissions: permSet,
		APIKeys:     map[string]struct{}{},
		System:      true,
	}
	return s.put(u)
}

func (s *Store) put(u *types.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return opserr.Wrap(opserr.StorageError, err, "encode user %s", u.ID)
	}
	if err := s.db.Put(kv.PartitionUsers, []byte(u.ID), raw); err != nil {
		return opserr.Wrap(opserr.StorageError, err, "write user %s", u.ID)
	}
	return nil
}

// Get looks up a user by id.
func (s *Store) Get(id string) (*types.User, bool, error) {
	raw, ok, err := s.db.Get(kv.PartitionUsers, []byte(id))
	if err != nil {
		return nil, false, opserr.Wrap(opserr.StorageError, err, "read user %s", id)
	}
	if !ok {
		return nil, false, nil
	}
	var u types.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, false, opserr.Wrap(opserr.StorageError, err, "decode user %s", id)
	}
	return &u, true, nil
}

// GetByAPIKey scans for the user holding key. Everyone is returned
// when key is empty, matching spec §3.1's "no key presented" case.
func (s *Store) GetByAPIKey(key string) (*types.User, error) {
	if key == "" {
		u, ok, err := s.Get(types.Everyone)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, opserr.New(opserr.StorageError, "system user Everyone missing")
		}
		return u, nil
	}

	var found *types.User
	err := s.db.ForEach(kv.PartitionUsers, func(k, v []byte) error {
		if found != nil {
			return nil
		}
		var u types.User
		if err := json.Unmarshal(v, &u); err != nil {
			return opserr.Wrap(opserr.StorageError, err, "decode user %s", k)
		}
		if _, ok := u.APIKeys[key]; ok {
			found = &u
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, opserr.New(opserr.PermissionDenied, "unrecognised API key")
	}
	return found, nil
}

// List returns every user.
func (s *Store) List() ([]*types.User, error) {
	var out []*types.User
	err := s.db.ForEach(kv.PartitionUsers, func(k, v []byte) error {
		var u types.User
		if err := json.Unmarshal(v, &u); err != nil {
			return opserr.Wrap(opserr.StorageError, err, "decode user %s", k)
		}
		out = append(out, &u)
		return nil
	})
	return out, err
}

// Create adds a new user with no permissions or API keys.
func (s *Store) Create(id, email string) (*types.User, error) {
	if _, ok, err := s.Get(id); err != nil {
		return nil, err
	} else if ok {
		return nil, opserr.New(opserr.Conflict, "user %s already exists", id)
	}
	u := &types.User{
		ID:          id,
		Email:       email,
		APIKeys:     map[string]struct{}{},
		Permissions: map[types.Permission]struct{}{},
	}
	if err := s.put(u); err != nil {
		return nil, err
	}
	return u, nil
}

// Delete removes a user. System users are indelible (§3.3-7).
func (s *Store) Delete(id string) error {
	u, ok, err := s.Get(id)
	if err != nil {
		return err
	}
	if !ok {
		return opserr.New(opserr.NotFound, "no user %s", id)
	}
	if u.System {
		return opserr.New(opserr.PermissionDenied, "system user %s cannot be deleted", id)
	}
	if err := s.db.Delete(kv.PartitionUsers, []byte(id)); err != nil {
		return opserr.Wrap(opserr.StorageError, err, "delete user %s", id)
	}
	return nil
}

// SetDisabled toggles a user's disabled flag. System users cannot be
// disabled (§3.3-7).
func (s *Store) SetDisabled(id string, disabled bool) (*types.User, error) {
	u, ok, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, opserr.New(opserr.NotFound, "no user %s", id)
	}
	if u.System {
		return nil, opserr.New(opserr.PermissionDenied, "system user %s cannot be disabled", id)
	}
	u.Disabled = disabled
	if err := s.put(u); err != nil {
		return nil, err
	}
	return u, nil
}

// AddPermission grants p to id.
func (s *Store) AddPermission(id string, p types.Permission) (*types.User, error) {
	u, ok, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, opserr.New(opserr.NotFound, "no user %s", id)
	}
	if u.Permissions == nil {
		u.Permissions = map[types.Permission]struct{}{}
	}
	u.Permissions[p] = struct{}{}
	if err := s.put(u); err != nil {
		return nil, err
	}
	return u, nil
}

// RemovePermission revokes p from id.
func (s *Store) RemovePermission(id string, p types.Permission) (*types.User, error) {
	u, ok, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, opserr.New(opserr.NotFound, "no user %s", id)
	}
	delete(u.Permissions, p)
	if err := s.put(u); err != nil {
		return nil, err
	}
	return u, nil
}

// GenerateAPIKey mints and attaches a new random key, returning it
// (the only time its plaintext is available).
func (s *Store) GenerateAPIKey(id string) (key string, err error) {
	u, ok, err := s.Get(id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", opserr.New(opserr.NotFound, "no user %s", id)
	}
	var b [24]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", opserr.Wrap(opserr.StorageError, err, "generate api key")
	}
	key = hex.EncodeToString(b[:])
	if u.APIKeys == nil {
		u.APIKeys = map[string]struct{}{}
	}
	u.APIKeys[key] = struct{}{}
	if err := s.put(u); err != nil {
		return "", err
	}
	return key, nil
}

// DeleteAPIKey removes key from id's key set.
func (s *Store) DeleteAPIKey(id, key string) error {
	u, ok, err := s.Get(id)
	if err != nil {
		return err
	}
	if !ok {
		return opserr.New(opserr.NotFound, "no user %s", id)
	}
	delete(u.APIKeys, key)
	return s.put(u)
}
