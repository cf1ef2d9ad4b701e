package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := Default()
	if !cfg.Parallel {
		t.Error("parallel should default to true")
	}
	if cfg.Jobs != DefaultJobs {
		t.Errorf("jobs = %d, want %d", cfg.Jobs, DefaultJobs)
	}
	if cfg.CacheTTL != 5*time.Second {
		t.Errorf("cache_ttl = %v, want 5s", cfg.CacheTTL)
	}
	if cfg.Merge.Method != "merge" {
		t.Errorf("merge.method = %q, want merge", cfg.Merge.Method)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	t.Parallel()
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Jobs != DefaultJobs {
		t.Errorf("expected defaults, got jobs=%d", cfg.Jobs)
	}
}

func TestLoadFile_Values(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
parallel = false
jobs = 3
cache_ttl = "250ms"

[merge]
method = "squash"

[pull]
mode = "rebase"

[ui]
nerdfont = true

[hosts]
"git.corp.example" = "gitlab"
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Parallel {
		t.Error("parallel = true, want false")
	}
	if cfg.Jobs != 3 {
		t.Errorf("jobs = %d, want 3", cfg.Jobs)
	}
	if cfg.CacheTTL != 250*time.Millisecond {
		t.Errorf("cache_ttl = %v, want 250ms", cfg.CacheTTL)
	}
	if cfg.Merge.Method != "squash" {
		t.Errorf("merge.method = %q, want squash", cfg.Merge.Method)
	}
	if cfg.Pull.Mode != "rebase" {
		t.Errorf("pull.mode = %q, want rebase", cfg.Pull.Mode)
	}
	if !cfg.UI.Nerdfont {
		t.Error("ui.nerdfont = false, want true")
	}
	if cfg.Hosts["git.corp.example"] != "gitlab" {
		t.Errorf("hosts = %v", cfg.Hosts)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad toml", "jobs = [", "failed to parse"},
		{"negative jobs", "jobs = -1", "invalid jobs"},
		{"bad ttl", `cache_ttl = "soon"`, "invalid cache_ttl"},
		{"bad method", "[merge]\nmethod = \"octopus\"", `must be "merge", "squash", or "rebase"`},
		{"bad pull mode", "[pull]\nmode = \"squash\"", `must be "merge" or "rebase"`},
		{"bad host", "[hosts]\n\"x.example\" = \"gitea\"", "platform type for host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadFile(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestPath_EnvOverride(t *testing.T) {
	want := filepath.Join(t.TempDir(), "custom.toml")
	t.Setenv(EnvConfigPath, want)
	got, err := Path()
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gitgrip", "config.toml")
	t.Setenv(EnvConfigPath, path)

	got, err := Init(false)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if got != path {
		t.Errorf("Init() path = %q, want %q", got, path)
	}
	if _, err := Init(false); err == nil {
		t.Error("second Init without force should fail")
	}
	if _, err := Init(true); err != nil {
		t.Errorf("Init(force) error = %v", err)
	}

	// The template must itself be a valid config.
	if _, err := LoadFile(path); err != nil {
		t.Errorf("default template does not load: %v", err)
	}
}

func TestFromContext(t *testing.T) {
	t.Parallel()
	if got := FromContext(context.Background()); got.Jobs != DefaultJobs {
		t.Errorf("default FromContext jobs = %d", got.Jobs)
	}
	cfg := Default()
	cfg.Jobs = 2
	if got := FromContext(WithConfig(context.Background(), &cfg)); got.Jobs != 2 {
		t.Errorf("FromContext jobs = %d, want 2", got.Jobs)
	}
}

func TestFormatOptions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   []string
		want string
	}{
		{[]string{"a"}, `"a"`},
		{[]string{"a", "b"}, `"a" or "b"`},
		{[]string{"a", "b", "c"}, `"a", "b", or "c"`},
	}
	for _, tt := range tests {
		if got := formatOptions(tt.in); got != tt.want {
			t.Errorf("formatOptions(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadFile_ReportsEveryProblem(t *testing.T) {
	t.Parallel()
	content := "jobs = -2\n[merge]\nmethod = \"ff\"\n[hosts]\n\"b.example\" = \"gitea\"\n\"a.example\" = \"svn\"\n"
	_, err := LoadFile(writeConfig(t, content))
	if err == nil {
		t.Fatal("expected error")
	}
	want := `invalid jobs -2: must be positive; ` +
		`invalid merge.method "ff": must be "merge", "squash", or "rebase"; ` +
		`invalid platform type for host "a.example" "svn": must be "github", "gitlab", "azure", or "bitbucket"; ` +
		`invalid platform type for host "b.example" "gitea": must be "github", "gitlab", "azure", or "bitbucket"`
	if err.Error() != want {
		t.Errorf("error =\n%s\nwant\n%s", err, want)
	}
}
