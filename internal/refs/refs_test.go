package refs

import (
	"path/filepath"
	"testing"

	"github.com/untoldecay/moobase/internal/kv"
	"github.com/untoldecay/moobase/internal/types"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	db, err := kv.Open(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func TestNewRefGetNextVersionIsOne(t *testing.T) {
	s := openStore(t)
	v, err := s.GetNextVersion(types.MooObject, "player")
	if err != nil || v != 1 {
		t.Fatalf("GetNextVersion on new ref = %d, %v; want 1, nil", v, err)
	}
}

func TestUpdateRefAdvancesCurrent(t *testing.T) {
	s := openStore(t)
	if err := s.UpdateRef(types.MooObject, "player", 1, "digest-1"); err != nil {
		t.Fatalf("UpdateRef v1: %v", err)
	}
	if err := s.UpdateRef(types.MooObject, "player", 2, "digest-2"); err != nil {
		t.Fatalf("UpdateRef v2: %v", err)
	}

	cur, ok, err := s.GetCurrentVersion(types.MooObject, "player")
	if err != nil || !ok || cur != 2 {
		t.Fatalf("GetCurrentVersion = %d, %v, %v; want 2, true, nil", cur, ok, err)
	}

	digest, ok, err := s.GetRef(types.MooObject, "player", nil)
	if err != nil || !ok || digest != "digest-2" {
		t.Fatalf("GetRef(nil) = %q, %v, %v; want digest-2, true, nil", digest, ok, err)
	}

	v1 := uint64(1)
	digest, ok, err = s.GetRef(types.MooObject, "player", &v1)
	if err != nil || !ok || digest != "digest-1" {
		t.Fatalf("GetRef(1) = %q, %v, %v; want digest-1, true, nil", digest, ok, err)
	}
}

func TestUpdateRefOverwritesCurrentVersionSlot(t *testing.T) {
	s := openStore(t)
	if err := s.UpdateRef(types.MooObject, "player", 1, "digest-1"); err != nil {
		t.Fatal(err)
	}
	// Overwriting the same version slot within a Local change replaces
	// the digest in place without advancing current (spec §3.3-3).
	if err := s.UpdateRef(types.MooObject, "player", 1, "digest-1b"); err != nil {
		t.Fatal(err)
	}
	digest, _, err := s.GetRef(types.MooObject, "player", nil)
	if err != nil || digest != "digest-1b" {
		t.Fatalf("GetRef after overwrite = %q, %v; want digest-1b", digest, err)
	}
	cur, _, _ := s.GetCurrentVersion(types.MooObject, "player")
	if cur != 1 {
		t.Fatalf("current version = %d, want 1 (unchanged)", cur)
	}
}

func TestGetRefUnknownVersionIsNotFound(t *testing.T) {
	s := openStore(t)
	if err := s.UpdateRef(types.MooObject, "player", 1, "digest-1"); err != nil {
		t.Fatal(err)
	}
	v99 := uint64(99)
	_, ok, err := s.GetRef(types.MooObject, "player", &v99)
	if err != nil || ok {
		t.Fatalf("GetRef(99) = ok:%v err:%v; want false, nil", ok, err)
	}
}

func TestDeleteVersionRecomputesCurrent(t *testing.T) {
	s := openStore(t)
	if err := s.UpdateRef(types.MooObject, "player", 1, "d1"); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateRef(types.MooObject, "player", 2, "d2"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteVersion(types.MooObject, "player", 2); err != nil {
		t.Fatalf("DeleteVersion: %v", err)
	}
	cur, ok, err := s.GetCurrentVersion(types.MooObject, "player")
	if err != nil || !ok || cur != 1 {
		t.Fatalf("current after deleting top version = %d, %v, %v; want 1, true, nil", cur, ok, err)
	}
}

func TestDeleteVersionRemovesRefWhenEmpty(t *testing.T) {
	s := openStore(t)
	if err := s.UpdateRef(types.MooObject, "player", 1, "d1"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteVersion(types.MooObject, "player", 1); err != nil {
		t.Fatal(err)
	}
	exists, err := s.Exists(types.MooObject, "player")
	if err != nil || exists {
		t.Fatalf("Exists after deleting last version = %v, %v; want false, nil", exists, err)
	}
}

func TestGetAllRefsAndCount(t *testing.T) {
	s := openStore(t)
	if err := s.UpdateRef(types.MooObject, "player", 1, "d1"); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateRef(types.MooMetaObject, "player", 1, "m1"); err != nil {
		t.Fatal(err)
	}

	all, err := s.GetAllRefs()
	if err != nil {
		t.Fatalf("GetAllRefs: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("GetAllRefs returned %d entries, want 2", len(all))
	}

	n, err := s.Count()
	if err != nil || n != 2 {
		t.Fatalf("Count = %d, %v; want 2, nil", n, err)
	}
}

func TestClear(t *testing.T) {
	s := openStore(t)
	if err := s.UpdateRef(types.MooObject, "player", 1, "d1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	n, err := s.Count()
	if err != nil || n != 0 {
		t.Fatalf("Count after Clear = %d, %v; want 0, nil", n, err)
	}
}
