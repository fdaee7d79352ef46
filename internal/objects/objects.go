// Package objects is the content-addressed blob store (component B):
// immutable UTF-8 object dumps keyed by lowercase-hex SHA-256, plus the
// YAML codec for the MetaObject subtype (spec §4.1, §4.5.5, §3.1).
package objects

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/untoldecay/moobase/internal/kv"
	"github.com/untoldecay/moobase/internal/opserr"
	"github.com/untoldecay/moobase/internal/types"
	bolt "go.etcd.io/bbolt"
	"gopkg.in/yaml.v3"
)

// Store is the objects partition.
type Store struct {
	db *kv.DB
}

// New wraps db's objects partition.
func New(db *kv.DB) *Store {
	return &Store{db: db}
}

// GenerateSHA256 hashes content to its lowercase-hex digest.
func GenerateSHA256(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Store persists content under its digest. Re-storing an identical
// digest is a no-op, per spec §4.1.
func (s *Store) Store(content string) (digest string, err error) {
	digest = GenerateSHA256(content)
	existing, ok, err := s.db.Get(kv.PartitionObjects, []byte(digest))
	if err != nil {
		return "", opserr.Wrap(opserr.StorageError, err, "read blob %s", digest)
	}
	if ok && string(existing) == content {
		return digest, nil
	}
	if err := s.db.Put(kv.PartitionObjects, []byte(digest), []byte(content)); err != nil {
		return "", opserr.Wrap(opserr.StorageError, err, "store blob %s", digest)
	}
	return digest, nil
}

// Get returns the content for digest, or ok=false if absent.
func (s *Store) Get(digest string) (content string, ok bool, err error) {
	v, ok, err := s.db.Get(kv.PartitionObjects, []byte(digest))
	if err != nil {
		return "", false, opserr.Wrap(opserr.StorageError, err, "read blob %s", digest)
	}
	if !ok {
		return "", false, nil
	}
	return string(v), true, nil
}

// Delete removes a blob. No operation calls it: neither merged history
// nor abandon's ref sweep deletes blobs.
func (s *Store) Delete(digest string) error {
	if err := s.db.Delete(kv.PartitionObjects, []byte(digest)); err != nil {
		return opserr.Wrap(opserr.StorageError, err, "delete blob %s", digest)
	}
	return nil
}

// Restore writes content under an already-known digest verbatim,
// bypassing the idempotent-store check — used by clone import, which
// trusts the source document's digests.
func (s *Store) Restore(digest, content string) error {
	if err := s.db.Put(kv.PartitionObjects, []byte(digest), []byte(content)); err != nil {
		return opserr.Wrap(opserr.StorageError, err, "restore blob %s", digest)
	}
	return nil
}

// Clear empties the objects partition ahead of a clone import.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return s.db.ClearPartition(tx, kv.PartitionObjects)
	})
}

// Count returns the number of distinct blobs stored.
func (s *Store) Count() (int, error) {
	n := 0
	err := s.ForEach(func(digest, content string) error {
		n++
		return nil
	})
	return n, err
}

// ForEach visits every (digest, content) pair, for clone export (§6.1).
func (s *Store) ForEach(fn func(digest, content string) error) error {
	return s.db.ForEach(kv.PartitionObjects, func(k, v []byte) error {
		return fn(string(k), string(v))
	})
}

// metaYAML is the on-disk shape of a MetaObject.
type metaYAML struct {
	IgnoredVerbs      []string `yaml:"ignored_verbs"`
	IgnoredProperties []string `yaml:"ignored_properties"`
}

// GenerateMetaDump serializes a MetaObject to YAML, sorted for a
// deterministic digest.
func GenerateMetaDump(m *types.MetaObject) (string, error) {
	y := metaYAML{
		IgnoredVerbs:      sortedKeys(m.IgnoredVerbs),
		IgnoredProperties: sortedKeys(m.IgnoredProperties),
	}
	out, err := yaml.Marshal(y)
	if err != nil {
		return "", opserr.Wrap(opserr.ParseError, err, "marshal meta object")
	}
	return string(out), nil
}

// ParseMetaDump decodes a YAML meta dump into a MetaObject.
func ParseMetaDump(text string) (*types.MetaObject, error) {
	var y metaYAML
	if err := yaml.Unmarshal([]byte(text), &y); err != nil {
		return nil, opserr.Wrap(opserr.ParseError, err, "parse meta object")
	}
	m := &types.MetaObject{
		IgnoredVerbs:      toSet(y.IgnoredVerbs),
		IgnoredProperties: toSet(y.IgnoredProperties),
	}
	return m, nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func toSet(xs []string) map[string]struct{} {
	set := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		set[x] = struct{}{}
	}
	return set
}
