package ingestion

import (
	"os"
	"path/filepath"
	"testing"
)

func writeRegistry(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "groups.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	return path
}

func TestRegistryResolveRegistered(t *testing.T) {
	path := writeRegistry(t, `
groups:
  - key: cmu-housing
    name: CMU Housing & Sublets
    university: CMU
    category: housing
    aliases:
      - CMU housing and sublets 24/25
`)
	reg, err := LoadGroupRegistry(path)
	if err != nil {
		t.Fatalf("LoadGroupRegistry: %v", err)
	}

	g := reg.Resolve("CMU Housing & Sublets")
	if g.Key != "cmu-housing" || g.Category != "housing" {
		t.Fatalf("resolved = %+v", g)
	}

	// Aliases and whitespace variants hit the same entry.
	if got := reg.Resolve("  cmu   housing and sublets 24/25 "); got.Key != "cmu-housing" {
		t.Errorf("alias resolved = %+v", got)
	}
}

func TestRegistryResolveFallback(t *testing.T) {
	reg, err := LoadGroupRegistry("")
	if err != nil {
		t.Fatalf("LoadGroupRegistry: %v", err)
	}
	g := reg.Resolve("NEU Marketplace 2024!")
	if g.Key != "export::neu-marketplace-2024" {
		t.Fatalf("fallback key = %q", g.Key)
	}
	if g.Name != "NEU Marketplace 2024!" || g.Category != "general" {
		t.Fatalf("fallback spec = %+v", g)
	}
}

func TestRegistryMissingKeyRejected(t *testing.T) {
	path := writeRegistry(t, "groups:\n  - name: No Key Here\n")
	if _, err := LoadGroupRegistry(path); err == nil {
		t.Fatal("expected error for entry without key")
	}
}
