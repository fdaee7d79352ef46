package users

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
	s, err := New(db)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewSeedsWizardAndEveryone(t *testing.T) {
	s := openStore(t)

	wizard, ok, err := s.Get(types.Wizard)
	if err != nil || !ok {
		t.Fatalf("Get(Wizard) = ok:%v, err:%v", ok, err)
	}
	if !wizard.System {
		t.Error("Wizard should be a system user")
	}
	for _, p := range types.AllPermissions {
		if _, has := wizard.Permissions[p]; !has {
			t.Errorf("Wizard missing permission %s", p)
		}
	}

	everyone, ok, err := s.Get(types.Everyone)
	if err != nil || !ok {
		t.Fatalf("Get(Everyone) = ok:%v, err:%v", ok, err)
	}
	if len(everyone.Permissions) != 0 {
		t.Errorf("Everyone should hold no permissions, got %+v", everyone.Permissions)
	}

	// Reopening must not fail or duplicate the seed.
	s2, err := New(s.db)
	if err != nil {
		t.Fatalf("second New: %v", err)
	}
	users, err := s2.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("List after reseed = %d users, want 2", len(users))
	}
}

func TestCreateRejectsDuplicate(t *testing.T) {
	s := openStore(t)
	if _, err := s.Create("alice", "alice@example.com"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create("alice", "other@example.com"); err == nil {
		t.Fatal("expected CONFLICT creating a duplicate user")
	}
}

func TestSystemUsersAreIndelible(t *testing.T) {
	s := openStore(t)
	if err := s.Delete(types.Wizard); err == nil {
		t.Fatal("expected Delete(Wizard) to be rejected")
	}
	if _, err := s.SetDisabled(types.Wizard, true); err == nil {
		t.Fatal("expected SetDisabled(Wizard) to be rejected")
	}
}

func TestDeleteRemovesOrdinaryUser(t *testing.T) {
	s := openStore(t)
	if _, err := s.Create("alice", ""); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, err := s.Get("alice"); err != nil || ok {
		t.Fatalf("Get after Delete = ok:%v, err:%v; want gone", ok, err)
	}
}

func TestPermissionGrantAndRevoke(t *testing.T) {
	s := openStore(t)
	if _, err := s.Create("alice", ""); err != nil {
		t.Fatal(err)
	}
	u, err := s.AddPermission("alice", types.PermSubmitChanges)
	if err != nil {
		t.Fatalf("AddPermission: %v", err)
	}
	if _, ok := u.Permissions[types.PermSubmitChanges]; !ok {
		t.Fatalf("expected PermSubmitChanges granted, got %+v", u.Permissions)
	}
	u, err = s.RemovePermission("alice", types.PermSubmitChanges)
	if err != nil {
		t.Fatalf("RemovePermission: %v", err)
	}
	if _, ok := u.Permissions[types.PermSubmitChanges]; ok {
		t.Fatalf("expected PermSubmitChanges revoked, got %+v", u.Permissions)
	}
}

func TestGenerateAPIKeyAndLookup(t *testing.T) {
	s := openStore(t)
	if _, err := s.Create("alice", ""); err != nil {
		t.Fatal(err)
	}
	key, err := s.GenerateAPIKey("alice")
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if key == "" {
		t.Fatal("GenerateAPIKey returned an empty key")
	}
	found, err := s.GetByAPIKey(key)
	if err != nil {
		t.Fatalf("GetByAPIKey: %v", err)
	}
	if found.ID != "alice" {
		t.Fatalf("GetByAPIKey resolved %q, want alice", found.ID)
	}

	if err := s.DeleteAPIKey("alice", key); err != nil {
		t.Fatalf("DeleteAPIKey: %v", err)
	}
	if _, err := s.GetByAPIKey(key); err == nil {
		t.Fatal("expected GetByAPIKey to fail after the key was deleted")
	}
}

func TestGetByAPIKeyEmptyReturnsEveryone(t *testing.T) {
	s := openStore(t)
	u, err := s.GetByAPIKey("")
	if err != nil {
		t.Fatalf("GetByAPIKey(\"\"): %v", err)
	}
	if u.ID != types.Everyone {
		t.Fatalf("GetByAPIKey(\"\") = %q, want Everyone", u.ID)
	}
}

func TestGetByAPIKeyUnknownIsPermissionDenied(t *testing.T) {
	s := openStore(t)
	if _, err := s.GetByAPIKey("not-a-real-key"); err == nil {
		t.Fatal("expected an error for an unrecognised API key")
	}
}
