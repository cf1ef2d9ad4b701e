package griptree

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegistryRoundTrip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	reg, err := LoadRegistry(root)
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if len(reg.Entries()) != 0 {
		t.Fatalf("new registry has entries: %v", reg.Entries())
	}

	reg.Put(Entry{Branch: "zeta", Path: filepath.Join(root, "z")})
	reg.Put(Entry{Branch: "alpha", Path: filepath.Join(root, "a"), Locked: true, LockedReason: "demo"})
	if err := reg.Save(); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadRegistry(root)
	if err != nil {
		t.Fatal(err)
	}
	entries := loaded.Entries()
	if len(entries) != 2 || entries[0].Branch != "alpha" || entries[1].Branch != "zeta" {
		t.Errorf("Entries() = %+v, want sorted alpha, zeta", entries)
	}
	if e, ok := loaded.FindByPath(filepath.Join(root, "z") + "/"); !ok || e.Branch != "zeta" {
		t.Errorf("FindByPath() = %+v, %v", e, ok)
	}
	if !loaded.Delete("zeta") || loaded.Delete("zeta") {
		t.Error("Delete() result mismatch")
	}
}

func TestEntryStatus(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name  string
		entry Entry
		want  Status
	}{
		{"active", Entry{Path: dir}, StatusActive},
		{"locked", Entry{Path: dir, Locked: true}, StatusLocked},
		{"missing", Entry{Path: filepath.Join(dir, "gone")}, StatusMissing},
	}
	for _, tt := range tests {
		if got := tt.entry.Status(); got != tt.want {
			t.Errorf("%s: Status() = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestLoadRegistryCorrupt(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".gitgrip"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(RegistryPath(root), []byte("["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRegistry(root); err == nil {
		t.Error("LoadRegistry() accepted corrupt file")
	}
}
