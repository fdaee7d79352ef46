package ops

import (
	"context"

	"github.com/untoldecay/moobase/internal/types"
)

func indexCloneOperations() []*Operation {
	return []*Operation{
		{Name: "index/list", Execute: indexList},
		{Name: "index/calc_delta", Execute: indexCalcDelta},
		{Name: "index/update", RequiredPermission: types.PermClone, Execute: indexUpdate},
		// clone is dual-purpose per §6.1: a GET with no args serves the
		// export document, a POST carrying a source URL pulls and
		// replaces local state wholesale.
		{Name: "clone", RequiredPermission: types.PermClone, Execute: clone},
	}
}

func indexList(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	return p.Index.ComputeCompleteObjectList()
}

// indexCalcDelta reports which baseline entries the caller (a peer
// pulling updates) is missing relative to the local merged_order tip,
// by name so the peer can request just those objects.
func indexCalcDelta(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	known := map[string]bool{}
	for _, a := range args {
		known[a] = true
	}
	live, err := p.Index.ComputeCompleteObjectList()
	if err != nil {
		return nil, err
	}
	var missing []types.ObjectInfo
	for _, info := range live {
		if !known[info.Name] {
			missing = append(missing, info)
		}
	}
	return missing, nil
}

// indexUpdate records a foreign source_url for subsequent clone pulls.
func indexUpdate(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	if err := requireArgs(args, 1, "index/update <source-url>"); err != nil {
		return nil, err
	}
	if err := p.Index.SetSource(args[0]); err != nil {
		return nil, err
	}
	return "ok", nil
}

// clone implements §6.1's dual-purpose /api/clone: with no args it
// assembles and returns the export document (the HTTP boundary's GET
// handler); given a source URL it fetches, resets, and re-imports
// local state from that peer (the POST handler).
func clone(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	if len(args) == 0 {
		return p.Clone.Export()
	}

	doc, err := p.Clone.Fetch(ctx, args[0])
	if err != nil {
		return nil, err
	}
	if err := p.Clone.Reset(); err != nil {
		return nil, err
	}
	if err := p.Clone.Import(doc); err != nil {
		return nil, err
	}
	if err := p.Index.SetSource(args[0]); err != nil {
		return nil, err
	}
	if p.Log != nil {
		p.Log.Info("cloned from remote", "source", args[0], "objects", len(doc.Objects))
	}
	p.record(ctx, "clone.import", user.ID, "source", args[0], "")
	return map[string]any{"objects": len(doc.Objects), "refs": len(doc.Refs), "changes": len(doc.Changes)}, nil
}
