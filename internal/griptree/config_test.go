package griptree

import (
	"path/filepath"
	"testing"
	"time"
)

func TestValidateUpstream(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ref   string
		valid bool
	}{
		{"origin/dev", true},
		{"origin/release/1.2", true},
		{"upstream/main", true},
		{"main", false},
		{"origin/", false},
		{"/main", false},
		{"origin/a..b", false},
		{"origin/has space", false},
		{"origin//dev", false},
		{"origin/dev.lock", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			t.Parallel()
			err := ValidateUpstream(tt.ref)
			if (err == nil) != tt.valid {
				t.Errorf("ValidateUpstream(%q) = %v, want valid=%v", tt.ref, err, tt.valid)
			}
		})
	}
}

func TestUpstreamForRepo(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Branch:        "feat/x",
		RepoUpstreams: map[string]string{"api": "origin/dev", "bad": "dev"},
	}

	got, err := cfg.UpstreamForRepo("api", "origin/main")
	if err != nil || got != "origin/dev" {
		t.Errorf("UpstreamForRepo(api) = %q, %v", got, err)
	}
	got, err = cfg.UpstreamForRepo("web", "origin/main")
	if err != nil || got != "origin/main" {
		t.Errorf("UpstreamForRepo(web) = %q, %v; want default", got, err)
	}
	if _, err := cfg.UpstreamForRepo("bad", "origin/main"); err == nil {
		t.Error("UpstreamForRepo(bad) = nil error")
	}
	if !cfg.IsBaseMapped("api") || cfg.IsBaseMapped("web") {
		t.Error("IsBaseMapped() mismatch")
	}
}

func TestConfigRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := &Config{
		Branch:        "feat/x",
		Path:          dir,
		CreatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		RepoUpstreams: map[string]string{"api": "origin/dev"},
	}
	if err := cfg.Save(); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if loaded.Branch != "feat/x" || !loaded.CreatedAt.Equal(cfg.CreatedAt) || loaded.RepoUpstreams["api"] != "origin/dev" {
		t.Errorf("LoadConfig() = %+v", loaded)
	}
}

func TestLoadConfigRejectsForeignPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := &Config{Branch: "x", Path: dir}
	if err := cfg.Save(); err != nil {
		t.Fatal(err)
	}
	other := filepath.Join(t.TempDir(), "copy")
	if err := copyFile(ConfigPath(dir), ConfigPath(other)); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(other); err == nil {
		t.Error("LoadConfig() accepted a config describing another directory")
	}
}
