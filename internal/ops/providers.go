// Package ops is the operation layer (component I): the fixed command
// vocabulary of spec §6.2, dispatched by name over both the HTTP
// boundary and the worker channel, enforcing the workflow invariants
// of §3.3 and §4.6 on top of the storage providers.
package ops

import (
	"context"

	"github.com/untoldecay/moobase/internal/audit"
	"github.com/untoldecay/moobase/internal/change"
	"github.com/untoldecay/moobase/internal/clone"
	"github.com/untoldecay/moobase/internal/index"
	"github.com/untoldecay/moobase/internal/logx"
	"github.com/untoldecay/moobase/internal/objects"
	"github.com/untoldecay/moobase/internal/refs"
	"github.com/untoldecay/moobase/internal/users"
	"github.com/untoldecay/moobase/internal/workspace"
)

// Providers bundles the storage singletons every operation is handed
// by shared reference (spec §9 "global mutable state").
type Providers struct {
	Objects   *objects.Store
	Refs      *refs.Store
	Index     *index.Store
	Workspace *workspace.Store
	Change    *change.Store
	Users     *users.Store
	Clone     *clone.Store

	// RemoteURL, when set, is the peer change/submit relays to
	// best-effort after a local submit succeeds (§7 propagation policy).
	RemoteURL string

	Log *logx.Logger

	// Audit is optional: nil when no audit store was passed to New (the
	// CLI passes nil when its audit database fails to open), in which
	// case admin ops skip recording.
	Audit *audit.Log
}

// New wires a Providers bundle from its component stores.
func New(objs *objects.Store, rfs *refs.Store, idx *index.Store, ws *workspace.Store, chg *change.Store, usr *users.Store, cl *clone.Store, remoteURL string, log *logx.Logger, aud *audit.Log) *Providers {
	return &Providers{
		Objects:   objs,
		Refs:      rfs,
		Index:     idx,
		Workspace: ws,
		Change:    chg,
		Users:     usr,
		Clone:     cl,
		RemoteURL: remoteURL,
		Log:       log,
		Audit:     aud,
	}
}

// record is a best-effort audit write: a missing Audit store or a
// write failure never fails the operation itself.
func (p *Providers) record(ctx context.Context, kind, actor, targetType, targetName, detail string) {
	if p.Audit == nil {
		return
	}
	if err := p.Audit.Record(ctx, kind, actor, targetType, targetName, detail); err != nil && p.Log != nil {
		p.Log.Warn("audit record failed", "kind", kind, "err", err)
	}
}
