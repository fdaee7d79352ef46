package objects

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

func TestStoreIsContentAddressedAndIdempotent(t *testing.T) {
	s := openStore(t)

	d1, err := s.Store("hello")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if d1 != GenerateSHA256("hello") {
		t.Fatalf("digest %s does not match GenerateSHA256", d1)
	}

	d2, err := s.Store("hello")
	if err != nil {
		t.Fatalf("Store (repeat): %v", err)
	}
	if d1 != d2 {
		t.Fatalf("re-storing identical content changed the digest: %s != %s", d1, d2)
	}

	content, ok, err := s.Get(d1)
	if err != nil || !ok || content != "hello" {
		t.Fatalf("Get = %q, %v, %v; want hello, true, nil", content, ok, err)
	}
}

func TestGetMissingDigest(t *testing.T) {
	s := openStore(t)
	_, ok, err := s.Get(GenerateSHA256("never stored"))
	if err != nil || ok {
		t.Fatalf("Get on missing digest = ok:%v err:%v; want false, nil", ok, err)
	}
}

func TestCount(t *testing.T) {
	s := openStore(t)
	if _, err := s.Store("a"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Store("b"); err != nil {
		t.Fatal(err)
	}
	// Re-storing "a" must not inflate the count.
	if _, err := s.Store("a"); err != nil {
		t.Fatal(err)
	}
	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Fatalf("Count = %d, want 2", n)
	}
}

func TestClear(t *testing.T) {
	s := openStore(t)
	if _, err := s.Store("a"); err != nil {
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

func TestMetaDumpRoundTrip(t *testing.T) {
	m := &types.MetaObject{
		IgnoredVerbs:      map[string]struct{}{"tell": {}, "announce": {}},
		IgnoredProperties: map[string]struct{}{"last_seen": {}},
	}
	dump, err := GenerateMetaDump(m)
	if err != nil {
		t.Fatalf("GenerateMetaDump: %v", err)
	}
	parsed, err := ParseMetaDump(dump)
	if err != nil {
		t.Fatalf("ParseMetaDump: %v", err)
	}
	for verb := range m.IgnoredVerbs {
		if _, ok := parsed.IgnoredVerbs[verb]; !ok {
			t.Errorf("round-tripped meta lost ignored verb %q", verb)
		}
	}
	for prop := range m.IgnoredProperties {
		if _, ok := parsed.IgnoredProperties[prop]; !ok {
			t.Errorf("round-tripped meta lost ignored property %q", prop)
		}
	}
}

func TestGenerateMetaDumpIsDeterministic(t *testing.T) {
	m := &types.MetaObject{
		IgnoredVerbs: map[string]struct{}{"z": {}, "a": {}, "m": {}},
	}
	d1, err := GenerateMetaDump(m)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := GenerateMetaDump(m)
	if err != nil {
		t.Fatal(err)
	}
	if d1 != d2 {
		t.Fatalf("GenerateMetaDump is not deterministic across calls:\n%s\n---\n%s", d1, d2)
	}
}
