// Package change is the Change entity and its CRUD/workflow glue over
// the index (D) and workspace (E) partitions (component G). It owns
// the state machine transitions; the actual diff construction for
// each transition is the caller's job (component H via the ops layer)
// since it needs the object/refs partitions change does not hold.
package change

import (
	"github.com/untoldecay/moobase/internal/index"
	"github.com/untoldecay/moobase/internal/opserr"
	"github.com/untoldecay/moobase/internal/types"
	"github.com/untoldecay/moobase/internal/workspace"
)

// Store glues the index and workspace partitions behind the Change
// workflow's state machine.
type Store struct {
	idx *index.Store
	ws  *workspace.Store
}

// New wires a change.Store over its two backing partitions.
func New(idx *index.Store, ws *workspace.Store) *Store {
	return &Store{idx: idx, ws: ws}
}

// GetOrCreateLocal returns the current Local change, creating one
// authored by author if none exists (§4.6.2 step 1).
func (s *Store) GetOrCreateLocal(author string) (*types.Change, error) {
	return s.idx.GetOrCreateLocalChange(author)
}

// Create explicitly allocates a new Local change (change/create),
// failing with CONFLICT if one is already in progress.
func (s *Store) Create(author, name, description string) (*types.Change, error) {
	return s.idx.CreateLocalChange(author, name, description)
}

// GetTop returns the current Local change, or ok=false if none exists.
func (s *Store) GetTop() (*types.Change, bool, error) {
	id, err := s.idx.GetTopChange()
	if err != nil || id == "" {
		return nil, false, err
	}
	return s.idx.GetChange(id)
}

// Get looks up a change by id across both the index (Local/Merged) and
// workspace (Review/Idle) partitions.
func (s *Store) Get(id string) (*types.Change, bool, error) {
	c, ok, err := s.idx.GetChange(id)
	if err != nil || ok {
		return c, ok, err
	}
	return s.ws.GetChange(id)
}

// List returns every change known to the system: the full merged
// history, the current Local change (if any), and the workspace.
func (s *Store) List() ([]*types.Change, error) {
	var out []*types.Change
	order, err := s.idx.GetChangeOrder()
	if err != nil {
		return nil, err
	}
	for _, id := range order {
		c, ok, err := s.idx.GetChange(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	if top, _, err := s.GetTop(); err != nil {
		return nil, err
	} else if top != nil {
		out = append(out, top)
	}
	ws, err := s.ws.ListAll()
	if err != nil {
		return nil, err
	}
	return append(out, ws...), nil
}

// requireTop fetches the current Local change, erroring if none exists.
func (s *Store) requireTop() (*types.Change, error) {
	c, ok, err := s.GetTop()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, opserr.New(opserr.InvalidArgument, "no Local change in progress")
	}
	return c, nil
}

// Submit moves the current Local change to Review (§4.6.1).
func (s *Store) Submit() (*types.Change, error) {
	c, err := s.requireTop()
	if err != nil {
		return nil, err
	}
	c.Status = types.StatusReview
	if err := s.ws.StoreChange(c); err != nil {
		return nil, err
	}
	if err := s.idx.RemoveChange(c.ID); err != nil {
		return nil, err
	}
	if err := s.idx.RemoveFromIndex(c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

// Stash moves the current Local change to Idle (§4.6.1).
func (s *Store) Stash() (*types.Change, error) {
	c, err := s.requireTop()
	if err != nil {
		return nil, err
	}
	return s.stashChange(c)
}

func (s *Store) stashChange(c *types.Change) (*types.Change, error) {
	c.Status = types.StatusIdle
	if err := s.ws.StoreChange(c); err != nil {
		return nil, err
	}
	if err := s.idx.RemoveChange(c.ID); err != nil {
		return nil, err
	}
	if err := s.idx.RemoveFromIndex(c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

// Abandon deletes the current Local change outright (§4.6.1). The
// caller is responsible for sweeping the refs that were only
// reachable from it (Open Question 3).
func (s *Store) Abandon() (*types.Change, error) {
	c, err := s.requireTop()
	if err != nil {
		return nil, err
	}
	if err := s.idx.RemoveChange(c.ID); err != nil {
		return nil, err
	}
	if err := s.idx.RemoveFromIndex(c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

// Approve moves id — the current Local change, or a Review change in
// the workspace — to Merged, appending it to merged_order (§4.6.1).
func (s *Store) Approve(id string) (*types.Change, error) {
	if top, ok, err := s.GetTop(); err != nil {
		return nil, err
	} else if ok && top.ID == id {
		return s.mergeChange(top, true)
	}

	c, ok, err := s.ws.GetChange(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, opserr.New(opserr.NotFound, "no Review change %s", id)
	}
	if c.Status != types.StatusReview {
		return nil, opserr.New(opserr.InvalidArgument, "change %s is not awaiting review", id)
	}
	return s.mergeChange(c, false)
}

func (s *Store) mergeChange(c *types.Change, fromLocal bool) (*types.Change, error) {
	c.Status = types.StatusMerged
	if fromLocal {
		if err := s.idx.RemoveFromIndex(c.ID); err != nil {
			return nil, err
		}
	} else {
		if err := s.ws.DeleteChange(c.ID); err != nil {
			return nil, err
		}
	}
	if err := s.idx.StoreChange(c); err != nil {
		return nil, err
	}
	if err := s.idx.AppendToOrder(c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

// Switch stashes the current Local change (if any) to Idle and
// promotes the Idle change id to the new Local/top change (§4.6.1).
func (s *Store) Switch(id string) (newTop *types.Change, oldTop *types.Change, err error) {
	target, ok, err := s.ws.GetChange(id)
	if err != nil {
		return nil, nil, err
	}
	if !ok || target.Status != types.StatusIdle {
		return nil, nil, opserr.New(opserr.InvalidArgument, "no Idle change %s", id)
	}

	if top, ok, err := s.GetTop(); err != nil {
		return nil, nil, err
	} else if ok {
		if _, err := s.stashChange(top); err != nil {
			return nil, nil, err
		}
		oldTop = top
	}

	target.Status = types.StatusLocal
	if err := s.ws.DeleteChange(target.ID); err != nil {
		return nil, nil, err
	}
	if err := s.idx.StoreChange(target); err != nil {
		return nil, nil, err
	}
	if err := s.idx.PushChange(target.ID); err != nil {
		return nil, nil, err
	}
	return target, oldTop, nil
}
