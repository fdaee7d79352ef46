package ops

import (
	"context"

	"github.com/untoldecay/moobase/internal/opserr"
	"github.com/untoldecay/moobase/internal/types"
)

func workspaceSystemOperations() []*Operation {
	return []*Operation{
		{Name: "workspace/submit", RequiredPermission: types.PermSubmitChanges, Execute: workspaceSubmit},
		{Name: "workspace/list", Execute: workspaceList},
		{Name: "system/status", Execute: systemStatus},
		{Name: "hello", Execute: hello},
		{Name: "stat", Execute: stat},
	}
}

// workspaceSubmit is change/submit's workspace-qualified alias: submit
// an explicit Idle change id rather than requiring it be the current
// Local/top change first (a convenience the worker channel exposes
// alongside change/submit).
func workspaceSubmit(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	if err := requireArgs(args, 1, "workspace/submit <idle-change-id>"); err != nil {
		return nil, err
	}
	c, ok, err := p.Workspace.GetChange(args[0])
	if err != nil {
		return nil, err
	}
	if !ok || c.Status != types.StatusIdle {
		return nil, opserr.New(opserr.InvalidArgument, "no Idle change %s", args[0])
	}
	c.Status = types.StatusReview
	if err := p.Workspace.StoreChange(c); err != nil {
		return nil, err
	}
	return changeSummary(c), nil
}

func workspaceList(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	all, err := p.Workspace.ListAll()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(all))
	for _, c := range all {
		out = append(out, changeSummary(c))
	}
	return out, nil
}

// systemStatus assembles the §6.3 status map.
func systemStatus(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	topID, err := p.Index.GetTopChange()
	if err != nil {
		return nil, err
	}

	idle, err := p.Workspace.Idle()
	if err != nil {
		return nil, err
	}
	review, err := p.Workspace.WaitingApproval()
	if err != nil {
		return nil, err
	}
	order, err := p.Index.GetChangeOrder()
	if err != nil {
		return nil, err
	}
	var latestMerged string
	if len(order) > 0 {
		latestMerged = order[len(order)-1]
	}

	objCount, err := p.Objects.Count()
	if err != nil {
		return nil, err
	}
	refCount, err := p.Refs.Count()
	if err != nil {
		return nil, err
	}
	idxCount, err := p.Index.Count()
	if err != nil {
		return nil, err
	}

	source, err := p.Index.GetSource()
	if err != nil {
		return nil, err
	}

	var pendingUpdates []types.ObjectInfo
	if source != "" {
		pendingUpdates, err = p.Clone.PendingUpdates(ctx, source)
		if err != nil {
			if p.Log != nil {
				p.Log.Warn("pending_updates check failed", "source", source, "err", err)
			}
			pendingUpdates = nil
		}
	}

	return map[string]any{
		"top_change_id":        topID,
		"idle_changes":         len(idle),
		"pending_review":       len(review),
		"changes_in_index":     idxCount,
		"latest_merged_change": latestMerged,
		"objects_count":        objCount,
		"refs_count":           refCount,
		"index_count":          idxCount,
		"remote_url":           source,
		"pending_updates":      pendingUpdates,
	}, nil
}

// hello is the unauthenticated liveness/handshake operation.
func hello(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	return "hello from moobase", nil
}

// stat is a lighter-weight variant of system/status exposing only the
// partition sizes, for cheap polling.
func stat(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	objCount, err := p.Objects.Count()
	if err != nil {
		return nil, err
	}
	refCount, err := p.Refs.Count()
	if err != nil {
		return nil, err
	}
	idxCount, err := p.Index.Count()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"objects": objCount,
		"refs":    refCount,
		"index":   idxCount,
	}, nil
}
