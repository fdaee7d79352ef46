// Package workspace is the workspace partition (component E): Changes
// that have left Local but have not yet merged — parked either awaiting
// approval (Review) or set aside by their author (Idle) — spec §4.4.
package workspace

import (
	"encoding/json"

	"github.com/untoldecay/moobase/internal/kv"
	"github.com/untoldecay/moobase/internal/opserr"
	"github.com/untoldecay/moobase/internal/types"
)

// Store is the workspace partition.
type Store struct {
	db *kv.DB
}

// New wraps db's workspace partition.
func New(db *kv.DB) *Store {
	return &Store{db: db}
}

// StoreChange persists c under its id (create or overwrite).
func (s *Store) StoreChange(c *types.Change) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return opserr.Wrap(opserr.StorageError, err, "encode workspace change %s", c.ID)
	}
	if err := s.db.Put(kv.PartitionWorkspace, []byte(c.ID), raw); err != nil {
		return opserr.Wrap(opserr.StorageError, err, "write workspace change %s", c.ID)
	}
	return nil
}

// GetChange reads a single workspace change by id.
func (s *Store) GetChange(id string) (*types.Change, bool, error) {
	raw, ok, err := s.db.Get(kv.PartitionWorkspace, []byte(id))
	if err != nil {
		return nil, false, opserr.Wrap(opserr.StorageError, err, "read workspace change %s", id)
	}
	if !ok {
		return nil, false, nil
	}
	var c types.Change
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, false, opserr.Wrap(opserr.StorageError, err, "decode workspace change %s", id)
	}
	return &c, true, nil
}

// DeleteChange removes a workspace change (promotion to Local/Merged,
// which relocates it out of this partition).
func (s *Store) DeleteChange(id string) error {
	if err := s.db.Delete(kv.PartitionWorkspace, []byte(id)); err != nil {
		return opserr.Wrap(opserr.StorageError, err, "delete workspace change %s", id)
	}
	return nil
}

// ListAll returns every workspace change, in no particular order.
func (s *Store) ListAll() ([]*types.Change, error) {
	var out []*types.Change
	err := s.db.ForEach(kv.PartitionWorkspace, func(k, v []byte) error {
		var c types.Change
		if err := json.Unmarshal(v, &c); err != nil {
			return opserr.Wrap(opserr.StorageError, err, "decode workspace change %s", k)
		}
		out = append(out, &c)
		return nil
	})
	return out, err
}

// ListByStatus filters ListAll to a single status.
func (s *Store) ListByStatus(status types.ChangeStatus) ([]*types.Change, error) {
	all, err := s.ListAll()
	if err != nil {
		return nil, err
	}
	out := make([]*types.Change, 0, len(all))
	for _, c := range all {
		if c.Status == status {
			out = append(out, c)
		}
	}
	return out, nil
}

// WaitingApproval returns changes parked in Review.
func (s *Store) WaitingApproval() ([]*types.Change, error) {
	return s.ListByStatus(types.StatusReview)
}

// Idle returns changes parked in Idle.
func (s *Store) Idle() ([]*types.Change, error) {
	return s.ListByStatus(types.StatusIdle)
}
