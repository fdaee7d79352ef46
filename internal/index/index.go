// Package index is the index partition (component D): the ordered
// merged_order sequence, the single top_change slot for the in-flight
// local change, a source_url slot, and per-change records — plus the
// baseline-replay logic that derives the merged-history tip and
// resolves an object's current state against it (spec §4.3).
package index

import (
	"encoding/json"
	"time"

	"github.com/untoldecay/moobase/internal/changeid"
	"github.com/untoldecay/moobase/internal/kv"
	"github.com/untoldecay/moobase/internal/opserr"
	"github.com/untoldecay/moobase/internal/types"
	bolt "go.etcd.io/bbolt"
)

const (
	keyOrder  = "__order__"
	keyTop    = "__top__"
	keySource = "__source__"
)

// Store is the index partition and working-index provider.
type Store struct {
	db *kv.DB
}

// New wraps db's index partition.
func New(db *kv.DB) *Store {
	return &Store{db: db}
}

// GetChange reads a single known change by id.
func (s *Store) GetChange(id string) (*types.Change, bool, error) {
	if id == "" {
		return nil, false, nil
	}
	raw, ok, err := s.db.Get(kv.PartitionIndex, []byte(id))
	if err != nil {
		return nil, false, opserr.Wrap(opserr.StorageError, err, "read change %s", id)
	}
	if !ok {
		return nil, false, nil
	}
	var c types.Change
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, false, opserr.Wrap(opserr.StorageError, err, "decode change %s", id)
	}
	return &c, true, nil
}

// StoreChange persists c under its own id (create or overwrite).
func (s *Store) StoreChange(c *types.Change) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return opserr.Wrap(opserr.StorageError, err, "encode change %s", c.ID)
	}
	if err := s.db.Put(kv.PartitionIndex, []byte(c.ID), raw); err != nil {
		return opserr.Wrap(opserr.StorageError, err, "write change %s", c.ID)
	}
	return nil
}

// UpdateChange is an alias of StoreChange kept distinct for callers
// that are conceptually mutating rather than creating (spec §4.3).
func (s *Store) UpdateChange(c *types.Change) error {
	return s.StoreChange(c)
}

// RemoveChange deletes a change record outright (used by abandon).
func (s *Store) RemoveChange(id string) error {
	if err := s.db.Delete(kv.PartitionIndex, []byte(id)); err != nil {
		return opserr.Wrap(opserr.StorageError, err, "delete change %s", id)
	}
	return nil
}

// GetTopChange returns the id at the top_change slot, or "" if empty.
func (s *Store) GetTopChange() (string, error) {
	raw, ok, err := s.db.Get(kv.PartitionIndex, []byte(keyTop))
	if err != nil {
		return "", opserr.Wrap(opserr.StorageError, err, "read top_change")
	}
	if !ok {
		return "", nil
	}
	return string(raw), nil
}

// PushChange promotes id to the top_change slot.
func (s *Store) PushChange(id string) error {
	if err := s.db.Put(kv.PartitionIndex, []byte(keyTop), []byte(id)); err != nil {
		return opserr.Wrap(opserr.StorageError, err, "set top_change")
	}
	return nil
}

// RemoveFromIndex clears the top_change slot if it currently holds id.
func (s *Store) RemoveFromIndex(id string) error {
	top, err := s.GetTopChange()
	if err != nil {
		return err
	}
	if top != id {
		return nil
	}
	if err := s.db.Delete(kv.PartitionIndex, []byte(keyTop)); err != nil {
		return opserr.Wrap(opserr.StorageError, err, "clear top_change")
	}
	return nil
}

// GetChangeOrder returns merged_order, oldest first.
func (s *Store) GetChangeOrder() ([]string, error) {
	raw, ok, err := s.db.Get(kv.PartitionIndex, []byte(keyOrder))
	if err != nil {
		return nil, opserr.Wrap(opserr.StorageError, err, "read merged_order")
	}
	if !ok {
		return nil, nil
	}
	var order []string
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, opserr.Wrap(opserr.StorageError, err, "decode merged_order")
	}
	return order, nil
}

// SetChangeOrder overwrites merged_order wholesale (used by clone import).
func (s *Store) SetChangeOrder(order []string) error {
	raw, err := json.Marshal(order)
	if err != nil {
		return opserr.Wrap(opserr.StorageError, err, "encode merged_order")
	}
	if err := s.db.Put(kv.PartitionIndex, []byte(keyOrder), raw); err != nil {
		return opserr.Wrap(opserr.StorageError, err, "write merged_order")
	}
	return nil
}

// AppendToOrder appends id to the end of merged_order.
func (s *Store) AppendToOrder(id string) error {
	order, err := s.GetChangeOrder()
	if err != nil {
		return err
	}
	return s.SetChangeOrder(append(order, id))
}

// GetSource returns the source_url slot, or "" if unset.
func (s *Store) GetSource() (string, error) {
	raw, ok, err := s.db.Get(kv.PartitionIndex, []byte(keySource))
	if err != nil {
		return "", opserr.Wrap(opserr.StorageError, err, "read source_url")
	}
	if !ok {
		return "", nil
	}
	return string(raw), nil
}

// SetSource sets the source_url slot.
func (s *Store) SetSource(url string) error {
	if err := s.db.Put(kv.PartitionIndex, []byte(keySource), []byte(url)); err != nil {
		return opserr.Wrap(opserr.StorageError, err, "write source_url")
	}
	return nil
}

// GetOrCreateLocalChange returns the change at the top_change slot,
// allocating one pinned to the last merged change if the slot is empty.
func (s *Store) GetOrCreateLocalChange(author string) (*types.Change, error) {
	top, err := s.GetTopChange()
	if err != nil {
		return nil, err
	}
	if top != "" {
		c, ok, err := s.GetChange(top)
		if err != nil {
			return nil, err
		}
		if ok {
			return c, nil
		}
	}

	order, err := s.GetChangeOrder()
	if err != nil {
		return nil, err
	}
	var baseline string
	if len(order) > 0 {
		baseline = order[len(order)-1]
	}

	now := time.Now().Unix()
	c := &types.Change{
		ID:            changeid.Compute("", "", author, now),
		Author:        author,
		Timestamp:     now,
		Status:        types.StatusLocal,
		IndexChangeID: baseline,
	}
	if err := s.StoreChange(c); err != nil {
		return nil, err
	}
	if err := s.PushChange(c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateLocalChange explicitly allocates a new Local change (change/
// create), failing with CONFLICT if one already exists (§7).
func (s *Store) CreateLocalChange(author, name, description string) (*types.Change, error) {
	if top, err := s.GetTopChange(); err != nil {
		return nil, err
	} else if top != "" {
		return nil, opserr.New(opserr.Conflict, "a Local change already exists")
	}

	order, err := s.GetChangeOrder()
	if err != nil {
		return nil, err
	}
	var baseline string
	if len(order) > 0 {
		baseline = order[len(order)-1]
	}

	now := time.Now().Unix()
	c := &types.Change{
		ID:            changeid.Compute(name, description, author, now),
		Name:          name,
		Description:   description,
		Author:        author,
		Timestamp:     now,
		Status:        types.StatusLocal,
		IndexChangeID: baseline,
	}
	if err := s.StoreChange(c); err != nil {
		return nil, err
	}
	if err := s.PushChange(c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

// objKey is the lookup key for a live ref in baseline replay,
// independent of version (renames re-key by name, not by version).
type objKey struct {
	Type types.ObjectType
	Name string
}

// ComputeCompleteObjectList replays merged_order (oldest first),
// applying add/modify/delete/rename, to yield the baseline set of live
// refs at the tip of merged history — excluding the local change.
func (s *Store) ComputeCompleteObjectList() ([]types.ObjectInfo, error) {
	live, err := s.replayBaseline()
	if err != nil {
		return nil, err
	}
	out := make([]types.ObjectInfo, 0, len(live))
	for _, info := range live {
		out = append(out, info)
	}
	return out, nil
}

func (s *Store) replayBaseline() (map[objKey]types.ObjectInfo, error) {
	order, err := s.GetChangeOrder()
	if err != nil {
		return nil, err
	}
	live := make(map[objKey]types.ObjectInfo)
	for _, id := range order {
		c, ok, err := s.GetChange(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		applyChangeToState(live, c)
	}
	return live, nil
}

func applyChangeToState(live map[objKey]types.ObjectInfo, c *types.Change) {
	for _, info := range c.AddedObjects {
		live[objKey{info.Type, info.Name}] = info
	}
	for _, info := range c.ModifiedObjects {
		live[objKey{info.Type, info.Name}] = info
	}
	for _, info := range c.DeletedObjects {
		delete(live, objKey{info.Type, info.Name})
	}
	for _, r := range c.RenamedObjects {
		delete(live, objKey{r.From.Type, r.From.Name})
		live[objKey{r.To.Type, r.To.Name}] = r.To
	}
}

// BaselineInfo returns the single live ObjectInfo for (t,name) at the
// merged-history tip, excluding the local change.
func (s *Store) BaselineInfo(t types.ObjectType, name string) (types.ObjectInfo, bool, error) {
	live, err := s.replayBaseline()
	if err != nil {
		return types.ObjectInfo{}, false, err
	}
	info, ok := live[objKey{t, name}]
	return info, ok, nil
}

// ResolveObjectCurrentState combines the merged baseline with the
// in-flight local change (if any) to return what a reader of name
// should see now. refsLookup resolves an ObjectInfo to its digest.
func (s *Store) ResolveObjectCurrentState(t types.ObjectType, name string, refsLookup func(types.ObjectInfo) (string, bool, error)) (digest string, found bool, err error) {
	info, ok, err := s.ResolveObjectCurrentInfo(t, name)
	if err != nil || !ok {
		return "", false, err
	}
	return refsLookup(info)
}

// ResolveObjectCurrentInfo is ResolveObjectCurrentState without the
// final ref lookup, for callers (object/rename) that need the version
// number as well as the fact that the name currently resolves.
func (s *Store) ResolveObjectCurrentInfo(t types.ObjectType, name string) (types.ObjectInfo, bool, error) {
	live, err := s.replayBaseline()
	if err != nil {
		return types.ObjectInfo{}, false, err
	}

	top, err := s.GetTopChange()
	if err != nil {
		return types.ObjectInfo{}, false, err
	}
	if top != "" {
		c, ok, err := s.GetChange(top)
		if err != nil {
			return types.ObjectInfo{}, false, err
		}
		if ok {
			applyChangeToState(live, c)
		}
	}

	info, ok := live[objKey{t, name}]
	return info, ok, nil
}

// Clear empties the index partition ahead of a clone import, wiping
// merged_order, top_change, source_url and every stored change record.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return s.db.ClearPartition(tx, kv.PartitionIndex)
	})
}

// Count returns the number of keys in the index partition, reserved
// slots (merged_order, top_change, source_url) included.
func (s *Store) Count() (int, error) {
	n := 0
	err := s.db.ForEach(kv.PartitionIndex, func(k, v []byte) error {
		n++
		return nil
	})
	return n, err
}

// Known reports whether id names any change record in the index
// (merged or currently local) — used for NOT_FOUND checks that must
// not look into the workspace partition.
func (s *Store) Known(id string) (bool, error) {
	_, ok, err := s.GetChange(id)
	return ok, err
}
