package ops

import (
	"context"

	"github.com/untoldecay/moobase/internal/objdiff"
	"github.com/untoldecay/moobase/internal/opserr"
	"github.com/untoldecay/moobase/internal/types"
)

func changeOperations() []*Operation {
	return []*Operation{
		{Name: "change/create", Execute: changeCreate},
		{Name: "change/status", Execute: changeStatus},
		{Name: "change/approve", RequiredPermission: types.PermApproveChanges, Execute: changeApprove},
		{Name: "change/submit", RequiredPermission: types.PermSubmitChanges, Execute: changeSubmit},
		{Name: "change/stash", Execute: changeStash},
		{Name: "change/switch", Execute: changeSwitch},
		{Name: "change/abandon", Execute: changeAbandon},
	}
}

func changeCreate(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	var name, description string
	if len(args) > 0 {
		name = args[0]
	}
	if len(args) > 1 {
		description = args[1]
	}
	c, err := p.Change.Create(user.ID, name, description)
	if err != nil {
		return nil, err
	}
	return changeSummary(c), nil
}

func changeSummary(c *types.Change) map[string]any {
	return map[string]any{
		"id":          c.ID,
		"name":        c.Name,
		"description": c.Description,
		"author":      c.Author,
		"timestamp":   c.Timestamp,
		"status":      string(c.Status),
	}
}

// diffForChange builds the forward ObjectDiff for c against the
// merged baseline (§4.5.2).
func diffForChange(p *Providers, c *types.Change) (*objdiff.ObjectDiff, error) {
	return objdiff.DiffChange(c, baselineContentResolver(p), localContentResolver(p), metaResolver(p))
}

func changeStatus(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	c, ok, err := p.Change.GetTop()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, opserr.New(opserr.NotFound, "no Local change in progress")
	}
	diff, err := diffForChange(p, c)
	if err != nil {
		return nil, err
	}
	out := changeSummary(c)
	out["diff"] = diff
	return out, nil
}

func changeApprove(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	if err := requireArgs(args, 1, "change/approve <id>"); err != nil {
		return nil, err
	}
	c, ok, err := p.Change.Get(args[0])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, opserr.New(opserr.NotFound, "no change %s", args[0])
	}
	diff, err := diffForChange(p, c)
	if err != nil {
		return nil, err
	}
	if _, err := p.Change.Approve(args[0]); err != nil {
		return nil, err
	}
	return diff, nil
}

func changeSubmit(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	c, ok, err := p.Change.GetTop()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, opserr.New(opserr.NotFound, "no Local change in progress")
	}
	forward, err := diffForChange(p, c)
	if err != nil {
		return nil, err
	}

	if _, err := p.Change.Submit(); err != nil {
		return nil, err
	}

	if p.RemoteURL != "" {
		if err := p.Clone.Relay(ctx, p.RemoteURL, c); err != nil && p.Log != nil {
			p.Log.Warn("best-effort change relay failed", "change", c.ID, "err", err)
		}
	}

	return objdiff.Invert(forward), nil
}

func changeStash(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	c, ok, err := p.Change.GetTop()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, opserr.New(opserr.NotFound, "no Local change in progress")
	}
	forward, err := diffForChange(p, c)
	if err != nil {
		return nil, err
	}
	if _, err := p.Change.Stash(); err != nil {
		return nil, err
	}
	return objdiff.Invert(forward), nil
}

func changeAbandon(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	c, ok, err := p.Change.GetTop()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, opserr.New(opserr.NotFound, "no Local change in progress")
	}
	forward, err := diffForChange(p, c)
	if err != nil {
		return nil, err
	}

	sweepAbandoned(p, c)

	if _, err := p.Change.Abandon(); err != nil {
		return nil, err
	}
	return objdiff.Invert(forward), nil
}

// sweepAbandoned removes the ref versions that were only reachable
// through c (Open Question 3, swept at abandon time): the versions of
// its added and modified entries and of its rename targets. Every one
// of those slots was allocated by c itself (the first write of an
// object in a change takes GetNextVersion), so baseline versions are
// never touched. Blobs are not deleted: content stored for the removed
// versions stays in the objects partition.
func sweepAbandoned(p *Providers, c *types.Change) {
	renamedTo := map[types.ObjectInfo]struct{}{}
	for _, r := range c.RenamedObjects {
		renamedTo[r.To] = struct{}{}
		_ = p.Refs.DeleteVersion(r.To.Type, r.To.Name, r.To.Version)
	}
	for _, info := range c.AddedObjects {
		if _, ok := renamedTo[info]; ok {
			continue
		}
		_ = p.Refs.DeleteVersion(info.Type, info.Name, info.Version)
	}
	for _, info := range c.ModifiedObjects {
		if _, ok := renamedTo[info]; ok {
			continue
		}
		_ = p.Refs.DeleteVersion(info.Type, info.Name, info.Version)
	}
}

func changeSwitch(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	if err := requireArgs(args, 1, "change/switch <idle-change-id>"); err != nil {
		return nil, err
	}
	oldTop, _, err := p.Change.GetTop()
	if err != nil {
		return nil, err
	}
	var forwardOld *objdiff.ObjectDiff
	if oldTop != nil {
		forwardOld, err = diffForChange(p, oldTop)
		if err != nil {
			return nil, err
		}
	}
	target, ok, err := p.Change.Get(args[0])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, opserr.New(opserr.NotFound, "no change %s", args[0])
	}
	forwardNew, err := diffForChange(p, target)
	if err != nil {
		return nil, err
	}

	if _, _, err := p.Change.Switch(args[0]); err != nil {
		return nil, err
	}

	result := map[string]any{}
	if forwardOld != nil {
		result["undo"] = objdiff.Invert(forwardOld)
	}
	result["redo"] = forwardNew
	return result, nil
}
