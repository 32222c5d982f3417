package sqlite

import (
	"strings"
	"testing"
)

func TestGenerateID(t *testing.T) {
	for _, prefix := range []string{"acct", "batch"} {
		id := generateID(prefix)
		if !strings.HasPrefix(id, prefix+"_") {
			t.Errorf("generateID(%q) = %q, want %q prefix", prefix, id, prefix+"_")
		}
		if len(id) != len(prefix)+1+8 {
			t.Errorf("generateID(%q) = %q, want 8 random chars", prefix, id)
		}
	}
	if generateID("acct") == generateID("acct") {
		t.Error("consecutive ids should differ")
	}
}
