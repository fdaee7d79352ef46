package ops

import (
	"context"

	"github.com/untoldecay/moobase/internal/opserr"
	"github.com/untoldecay/moobase/internal/types"
)

// Execute is the pure function every operation implements: storage
// providers and caller identity in, a Value or error out (§4.6).
type Execute func(ctx context.Context, p *Providers, user *types.User, args []string) (any, error)

// Operation is one named verb in the fixed vocabulary (§4.6, §6.2).
type Operation struct {
	Name               string
	Routes             []string
	ResponseType       string // "application/json" or "text/x-moo"
	RequiredPermission types.Permission
	Execute            Execute
}

// Registry is the name -> Operation lookup the boundary dispatches through.
type Registry struct {
	ops map[string]*Operation
}

// NewRegistry builds the full fixed operation vocabulary (§6.2).
func NewRegistry() *Registry {
	r := &Registry{ops: map[string]*Operation{}}
	for _, op := range allOperations() {
		r.ops[op.Name] = op
	}
	return r
}

// Lookup returns the named operation, or ok=false if unknown.
func (r *Registry) Lookup(name string) (*Operation, bool) {
	op, ok := r.ops[name]
	return op, ok
}

// Names returns every registered operation name.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.ops))
	for name := range r.ops {
		out = append(out, name)
	}
	return out
}

// Dispatch authorises and runs the named operation (§4.6, §6.4).
func (r *Registry) Dispatch(ctx context.Context, p *Providers, name string, user *types.User, args []string) (any, error) {
	op, ok := r.Lookup(name)
	if !ok {
		return nil, opserr.New(opserr.InvalidArgument, "unknown operation %q", name)
	}
	if op.RequiredPermission != "" && !user.HasPermission(op.RequiredPermission) {
		return nil, opserr.New(opserr.PermissionDenied, "operation %q requires %s", name, op.RequiredPermission)
	}
	return op.Execute(ctx, p, user, args)
}

func requireArgs(args []string, n int, usage string) error {
	if len(args) < n {
		return opserr.New(opserr.InvalidArgument, "usage: %s", usage)
	}
	return nil
}
