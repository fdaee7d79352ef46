// Package refs is the refs partition (component C): for each
// (type, name), the highest-ever version and the version->digest map.
// update_ref is the only write and is crash-atomic per (type,name)
// because it touches a single KV key (spec §4.2).
package refs

import (
	"encoding/json"
	"fmt"

	"github.com/untoldecay/moobase/internal/kv"
	"github.com/untoldecay/moobase/internal/opserr"
	"github.com/untoldecay/moobase/internal/types"
	bolt "go.etcd.io/bbolt"
)

// entry is the envelope stored under key "<type>:<name>".
type entry struct {
	Current  uint64            `json:"current"`
	Versions map[uint64]string `json:"versions"`
}

// Store is the refs partition.
type Store struct {
	db *kv.DB
}

// New wraps db's refs partition.
func New(db *kv.DB) *Store {
	return &Store{db: db}
}

func refKey(t types.ObjectType, name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", t, name))
}

func (s *Store) load(t types.ObjectType, name string) (*entry, bool, error) {
	raw, ok, err := s.db.Get(kv.PartitionRefs, refKey(t, name))
	if err != nil {
		return nil, false, opserr.Wrap(opserr.StorageError, err, "read ref %s:%s", t, name)
	}
	if !ok {
		return nil, false, nil
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, opserr.Wrap(opserr.StorageError, err, "decode ref %s:%s", t, name)
	}
	return &e, true, nil
}

func (s *Store) save(t types.ObjectType, name string, e *entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return opserr.Wrap(opserr.StorageError, err, "encode ref %s:%s", t, name)
	}
	if err := s.db.Put(kv.PartitionRefs, refKey(t, name), raw); err != nil {
		return opserr.Wrap(opserr.StorageError, err, "write ref %s:%s", t, name)
	}
	return nil
}

// GetRef resolves a digest. version == nil means current; an explicit
// version means that exact historical version (spec §9 Open Question
// 2). An unknown ref or unknown version returns ok=false with a nil
// error; callers decide which error kind to raise.
func (s *Store) GetRef(t types.ObjectType, name string, version *uint64) (digest string, ok bool, err error) {
	e, found, err := s.load(t, name)
	if err != nil || !found {
		return "", false, err
	}
	v := e.Current
	if version != nil {
		v = *version
	}
	d, ok := e.Versions[v]
	return d, ok, nil
}

// GetCurrentVersion returns the highest-ever version for (t,name), or
// ok=false if the ref does not exist.
func (s *Store) GetCurrentVersion(t types.ObjectType, name string) (version uint64, ok bool, err error) {
	e, found, err := s.load(t, name)
	if err != nil || !found {
		return 0, false, err
	}
	return e.Current, true, nil
}

// GetNextVersion returns current+1, or 1 if the ref is new.
func (s *Store) GetNextVersion(t types.ObjectType, name string) (uint64, error) {
	e, found, err := s.load(t, name)
	if err != nil {
		return 0, err
	}
	if !found {
		return 1, nil
	}
	return e.Current + 1, nil
}

// UpdateRef sets (version -> digest) and, if version >= the stored
// current, advances current to version. A version equal to the
// current version overwrites the stored digest at that slot — the
// mechanism realizing invariant §3.3-3 within a Local change.
func (s *Store) UpdateRef(t types.ObjectType, name string, version uint64, digest string) error {
	e, found, err := s.load(t, name)
	if err != nil {
		return err
	}
	if !found {
		e = &entry{Versions: make(map[uint64]string)}
	}
	e.Versions[version] = digest
	if version >= e.Current {
		e.Current = version
	}
	return s.save(t, name, e)
}

// DeleteVersion removes one historical version slot, used by abandon's
// reachability sweep. If the removed version was current, current is
// recomputed as the highest remaining version (0 if none remain).
func (s *Store) DeleteVersion(t types.ObjectType, name string, version uint64) error {
	e, found, err := s.load(t, name)
	if err != nil || !found {
		return err
	}
	delete(e.Versions, version)
	if e.Current == version {
		var max uint64
		for v := range e.Versions {
			if v > max {
				max = v
			}
		}
		e.Current = max
	}
	if len(e.Versions) == 0 {
		return s.db.Delete(kv.PartitionRefs, refKey(t, name))
	}
	return s.save(t, name, e)
}

// GetAllRefs returns every (type,name,version=current) -> digest pair,
// for clone export and baseline inspection.
func (s *Store) GetAllRefs() (map[types.ObjectInfo]string, error) {
	out := make(map[types.ObjectInfo]string)
	err := s.db.ForEach(kv.PartitionRefs, func(k, v []byte) error {
		var e entry
		if err := json.Unmarshal(v, &e); err != nil {
			return opserr.Wrap(opserr.StorageError, err, "decode ref %s", k)
		}
		typ, name, err := splitKey(string(k))
		if err != nil {
			return err
		}
		digest, ok := e.Versions[e.Current]
		if !ok {
			return nil
		}
		out[types.ObjectInfo{Type: typ, Name: name, Version: e.Current}] = digest
		return nil
	})
	return out, err
}

func splitKey(key string) (types.ObjectType, string, error) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return types.ObjectType(key[:i]), key[i+1:], nil
		}
	}
	return "", "", opserr.New(opserr.StorageError, "malformed ref key %q", key)
}

// Clear empties the refs partition ahead of a clone import.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return s.db.ClearPartition(tx, kv.PartitionRefs)
	})
}

// Count returns the number of distinct (type,name) ref entries.
func (s *Store) Count() (int, error) {
	n := 0
	err := s.db.ForEach(kv.PartitionRefs, func(k, v []byte) error {
		n++
		return nil
	})
	return n, err
}

// Exists reports whether (t,name) has any ref entry at all.
func (s *Store) Exists(t types.ObjectType, name string) (bool, error) {
	_, found, err := s.load(t, name)
	return found, err
}
