package ops

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/untoldecay/moobase/internal/change"
	"github.com/untoldecay/moobase/internal/clone"
	"github.com/untoldecay/moobase/internal/index"
	"github.com/untoldecay/moobase/internal/kv"
	"github.com/untoldecay/moobase/internal/objects"
	"github.com/untoldecay/moobase/internal/refs"
	"github.com/untoldecay/moobase/internal/types"
	"github.com/untoldecay/moobase/internal/users"
	"github.com/untoldecay/moobase/internal/workspace"
)

const roomDump = `name: room1
parent: generic_room
owner: wizard
verb look l (rxd)
  player:tell("You see a room.");
endverb
`

func newTestEnv(t *testing.T) (*Registry, *Providers, *types.User) {
	t.Helper()
	db, err := kv.Open(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	objs := objects.New(db)
	rfs := refs.New(db)
	idx := index.New(db)
	ws := workspace.New(db)
	chg := change.New(idx, ws)
	usrStore, err := users.New(db)
	if err != nil {
		t.Fatalf("users.New: %v", err)
	}
	cl := clone.New(rfs, objs, idx)

	providers := New(objs, rfs, idx, ws, chg, usrStore, cl, "", nil, nil)
	registry := NewRegistry()

	wizard, ok, err := usrStore.Get(types.Wizard)
	if err != nil || !ok {
		t.Fatalf("Get(Wizard) = ok:%v, err:%v", ok, err)
	}
	return registry, providers, wizard
}

func TestDispatchCreateUpdateSubmitApproveFlow(t *testing.T) {
	registry, providers, wizard := newTestEnv(t)
	ctx := context.Background()

	if _, err := registry.Dispatch(ctx, providers, "change/create", wizard, []string{"add-room1", "introduce room1"}); err != nil {
		t.Fatalf("change/create: %v", err)
	}

	if _, err := registry.Dispatch(ctx, providers, "object/update", wizard, []string{"room1", roomDump}); err != nil {
		t.Fatalf("object/update: %v", err)
	}

	statusResult, err := registry.Dispatch(ctx, providers, "change/status", wizard, nil)
	if err != nil {
		t.Fatalf("change/status: %v", err)
	}
	status, ok := statusResult.(map[string]any)
	if !ok {
		t.Fatalf("change/status result type = %T", statusResult)
	}
	if status["status"] != string(types.StatusLocal) {
		t.Fatalf("change/status status = %v, want Local", status["status"])
	}

	if _, err := registry.Dispatch(ctx, providers, "change/submit", wizard, nil); err != nil {
		t.Fatalf("change/submit: %v", err)
	}

	top, ok, err := providers.Change.GetTop()
	if err != nil || ok {
		t.Fatalf("GetTop after submit = %+v, ok:%v, err:%v; want no Local change open", top, ok, err)
	}

	reviewing, err := providers.Workspace.WaitingApproval()
	if err != nil {
		t.Fatalf("WaitingApproval: %v", err)
	}
	if len(reviewing) != 1 {
		t.Fatalf("WaitingApproval returned %d changes, want 1", len(reviewing))
	}

	if _, err := registry.Dispatch(ctx, providers, "change/approve", wizard, []string{reviewing[0].ID}); err != nil {
		t.Fatalf("change/approve: %v", err)
	}

	getResult, err := registry.Dispatch(ctx, providers, "object/get", wizard, []string{"room1"})
	if err != nil {
		t.Fatalf("object/get: %v", err)
	}
	if getResult.(string) != roomDump {
		t.Fatalf("object/get = %q, want the merged room dump", getResult)
	}
}

func TestDispatchUnknownOperation(t *testing.T) {
	registry, providers, wizard := newTestEnv(t)
	if _, err := registry.Dispatch(context.Background(), providers, "no/such/op", wizard, nil); err == nil {
		t.Fatal("expected Dispatch to fail for an unregistered operation")
	}
}

func TestDispatchDeniesMissingPermission(t *testing.T) {
	registry, providers, _ := newTestEnv(t)
	everyone, ok, err := providers.Users.Get(types.Everyone)
	if err != nil || !ok {
		t.Fatalf("Get(Everyone) = ok:%v, err:%v", ok, err)
	}
	if _, err := registry.Dispatch(context.Background(), providers, "change/approve", everyone, []string{"whatever"}); err == nil {
		t.Fatal("expected change/approve to be denied for a user without PermApproveChanges")
	}
}
