package rpc

import (
	"path/filepath"
	"testing"

	"github.com/untoldecay/moobase/internal/change"
	"github.com/untoldecay/moobase/internal/clone"
	"github.com/untoldecay/moobase/internal/index"
	"github.com/untoldecay/moobase/internal/kv"
	"github.com/untoldecay/moobase/internal/objects"
	"github.com/untoldecay/moobase/internal/ops"
	"github.com/untoldecay/moobase/internal/refs"
	"github.com/untoldecay/moobase/internal/users"
	"github.com/untoldecay/moobase/internal/workspace"
)

func newTestServer(t *testing.T) (*Server, string) {
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
	providers := ops.New(objs, rfs, idx, ws, chg, usrStore, cl, "", nil, nil)
	registry := ops.NewRegistry()

	socketPath := filepath.Join(t.TempDir(), "moobase.sock")
	srv := NewServer(socketPath, registry, providers, usrStore, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })
	return srv, socketPath
}

func TestClientServerHelloRoundTrip(t *testing.T) {
	_, socketPath := newTestServer(t)

	client, err := Dial(socketPath, 0)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	resp, err := client.Hello()
	if err != nil {
		t.Fatalf("Hello: %v", err)
	}
	if !resp.Success || resp.Result != "hello from moobase" {
		t.Fatalf("Hello response = %+v", resp)
	}
}

func TestClientUnknownOperationReturnsErrorKind(t *testing.T) {
	_, socketPath := newTestServer(t)

	client, err := Dial(socketPath, 0)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	resp, err := client.Execute("no/such/op", nil)
	if err == nil {
		t.Fatal("expected Execute to report an error for an unknown operation")
	}
	if resp.Success {
		t.Fatalf("resp.Success = true, want false: %+v", resp)
	}
	if resp.ErrorKind == "" {
		t.Fatalf("expected a non-empty ErrorKind, got %+v", resp)
	}
}

func TestMultipleRequestsOverOneConnection(t *testing.T) {
	_, socketPath := newTestServer(t)

	client, err := Dial(socketPath, 0)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	for i := 0; i < 3; i++ {
		if _, err := client.Hello(); err != nil {
			t.Fatalf("Hello iteration %d: %v", i, err)
		}
	}
}
