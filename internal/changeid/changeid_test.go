package changeid

import "testing"

func TestComputeIsDeterministic(t *testing.T) {
	a := Compute("rename-room", "tidy up the foyer", "alice", 1700000000)
	b := Compute("rename-room", "tidy up the foyer", "alice", 1700000000)
	if a != b {
		t.Fatalf("Compute is not deterministic: %s != %s", a, b)
	}
}

func TestComputeDistinguishesInputs(t *testing.T) {
	base := Compute("rename-room", "tidy up the foyer", "alice", 1700000000)
	variants := []string{
		Compute("rename-door", "tidy up the foyer", "alice", 1700000000),
		Compute("rename-room", "tidy up the kitchen", "alice", 1700000000),
		Compute("rename-room", "tidy up the foyer", "bob", 1700000000),
		Compute("rename-room", "tidy up the foyer", "alice", 1700000001),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d produced the same id as the base input", i)
		}
	}
}

func TestComputeLooksLikeHex32(t *testing.T) {
	id := Compute("x", "", "alice", 1)
	if len(id) != 64 {
		t.Fatalf("Compute returned %d hex chars, want 64 (32-byte blake3 digest)", len(id))
	}
	for _, r := range id {
		if !(r >= '0' && r <= '9') && !(r >= 'a' && r <= 'f') {
			t.Fatalf("Compute returned non-hex character %q", r)
		}
	}
}
