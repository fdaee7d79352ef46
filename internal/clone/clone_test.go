package clone

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/untoldecay/moobase/internal/index"
	"github.com/untoldecay/moobase/internal/kv"
	"github.com/untoldecay/moobase/internal/objects"
	"github.com/untoldecay/moobase/internal/refs"
	"github.com/untoldecay/moobase/internal/types"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	db, err := kv.Open(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(refs.New(db), objects.New(db), index.New(db))
}

func seedOneObject(t *testing.T, s *Store, name, content string) types.ObjectInfo {
	t.Helper()
	digest, err := s.objs.Store(content)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := s.refs.UpdateRef(types.MooObject, name, 1, digest); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}
	return types.ObjectInfo{Type: types.MooObject, Name: name, Version: 1}
}

func TestExportImportRoundTrip(t *testing.T) {
	s := openStore(t)
	seedOneObject(t, s, "room1", "name: room1\n")
	if err := s.idx.StoreChange(&types.Change{ID: "c1", Status: types.StatusMerged}); err != nil {
		t.Fatalf("StoreChange: %v", err)
	}
	if err := s.idx.SetChangeOrder([]string{"c1"}); err != nil {
		t.Fatalf("SetChangeOrder: %v", err)
	}
	if err := s.idx.SetSource("https://origin.example/moobase"); err != nil {
		t.Fatalf("SetSource: %v", err)
	}

	doc, err := s.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(doc.Refs) != 1 || len(doc.Objects) != 1 || len(doc.Changes) != 1 {
		t.Fatalf("Export = %+v", doc)
	}
	if doc.Source != "https://origin.example/moobase" {
		t.Fatalf("Export.Source = %q", doc.Source)
	}

	dest := openStore(t)
	if err := dest.Import(doc); err != nil {
		t.Fatalf("Import: %v", err)
	}
	digest, ok, err := dest.refs.GetRef(types.MooObject, "room1", nil)
	if err != nil || !ok {
		t.Fatalf("GetRef after import = ok:%v, err:%v", ok, err)
	}
	content, ok, err := dest.objs.Get(digest)
	if err != nil || !ok || content != "name: room1\n" {
		t.Fatalf("Get(%s) after import = %q, ok:%v, err:%v", digest, content, ok, err)
	}
	if url, err := dest.idx.GetSource(); err != nil || url != doc.Source {
		t.Fatalf("GetSource after import = %q, %v", url, err)
	}
}

func TestResetClearsAllThreePartitions(t *testing.T) {
	s := openStore(t)
	seedOneObject(t, s, "room1", "name: room1\n")
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if n, err := s.refs.Count(); err != nil || n != 0 {
		t.Fatalf("refs.Count after Reset = %d, %v", n, err)
	}
	if n, err := s.objs.Count(); err != nil || n != 0 {
		t.Fatalf("objs.Count after Reset = %d, %v", n, err)
	}
}

func TestFetchDecodesRemoteDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Document{
			Refs: []refEntry{{Info: types.ObjectInfo{Type: types.MooObject, Name: "room1", Version: 1}, Digest: "deadbeef"}},
		})
	}))
	defer srv.Close()

	s := openStore(t)
	doc, err := s.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(doc.Refs) != 1 || doc.Refs[0].Digest != "deadbeef" {
		t.Fatalf("Fetch decoded %+v", doc)
	}
}

func TestFetchNonOKStatusIsRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := openStore(t)
	if _, err := s.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected Fetch to fail on a non-200 response")
	}
}

func TestPendingUpdatesReportsDivergentRefs(t *testing.T) {
	s := openStore(t)
	info := seedOneObject(t, s, "room1", "name: room1\n")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Document{
			Refs: []refEntry{
				{Info: info, Digest: "different-digest"},
				{Info: types.ObjectInfo{Type: types.MooObject, Name: "room2", Version: 1}, Digest: "abc123"},
			},
		})
	}))
	defer srv.Close()

	pending, err := s.PendingUpdates(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("PendingUpdates: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("PendingUpdates = %+v, want 2 entries", pending)
	}
}

func TestPendingUpdatesEmptyWhenInSync(t *testing.T) {
	s := openStore(t)
	info := seedOneObject(t, s, "room1", "name: room1\n")
	digest, _, err := s.refs.GetRef(types.MooObject, "room1", nil)
	if err != nil {
		t.Fatalf("GetRef: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Document{Refs: []refEntry{{Info: info, Digest: digest}}})
	}))
	defer srv.Close()

	pending, err := s.PendingUpdates(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("PendingUpdates: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("PendingUpdates = %+v, want none", pending)
	}
}

func TestRelayPostsChangeAndFailsOnErrorStatus(t *testing.T) {
	var received types.Change
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := openStore(t)
	c := &types.Change{ID: "c1", Status: types.StatusReview}
	if err := s.Relay(context.Background(), srv.URL, c); err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if received.ID != "c1" {
		t.Fatalf("server received %+v, want id=c1", received)
	}

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()
	if err := s.Relay(context.Background(), bad.URL, c); err == nil {
		t.Fatal("expected Relay to fail on a >=300 response")
	}
}
