package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/untoldecay/moobase/internal/change"
	"github.com/untoldecay/moobase/internal/clone"
	"github.com/untoldecay/moobase/internal/index"
	"github.com/untoldecay/moobase/internal/kv"
	"github.com/untoldecay/moobase/internal/objects"
	"github.com/untoldecay/moobase/internal/ops"
	"github.com/untoldecay/moobase/internal/refs"
	"github.com/untoldecay/moobase/internal/types"
	"github.com/untoldecay/moobase/internal/users"
	"github.com/untoldecay/moobase/internal/workspace"
)

func newTestServer(t *testing.T) (*Server, *users.Store) {
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

	return New(registry, providers, usrStore, nil), usrStore
}

func TestHelloOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/hello")
	if err != nil {
		t.Fatalf("GET /api/hello: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success || env.Result != "hello from moobase" {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestUnknownOperationReturns404(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/no/such/op")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestPermissionDeniedWithoutAPIKeyReturns403(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body, _ := json.Marshal(map[string]any{"args": []string{"somechange"}})
	resp, err := http.Post(ts.URL+"/api/change/approve", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestAuthenticatedRequestWithAPIKeyDispatches(t *testing.T) {
	srv, usrStore := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	key, err := usrStore.GenerateAPIKey(types.Wizard)
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}

	body, _ := json.Marshal(map[string]any{"args": []string{"add-room", "a new room"}})
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/change/create", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set(APIKeyHeader, key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestQueryArgsOnGetRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/object/get?arg=room1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	// room1 doesn't exist yet, so this should fail as NOT_FOUND (404),
	// but it must have parsed the query arg rather than erroring on args.
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 (object not found, not a parse failure)", resp.StatusCode)
	}
}
