package demo

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/ValentinKolb/litemap/lib/registry"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	reg := registry.New()

	var out bytes.Buffer
	if err := Run(context.Background(), reg, dir, &out); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"All user keys in",
		"[user1 user2]",
		"User Alice has role: admin",
		"User Bob has role: editor",
		"Deleted user3 in",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q:\n%s", want, got)
		}
	}
	if n := strings.Count(got, "Deleted user3"); n != 3 {
		t.Errorf("expected 3 stores, got %d", n)
	}
	if !strings.Contains(got, ": false") {
		t.Errorf("expected deleting user3 to report false:\n%s", got)
	}
	if ids := reg.Identifiers(); len(ids) != 0 {
		t.Errorf("expected all stores to be closed, got %v", ids)
	}
}
