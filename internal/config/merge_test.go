package config

import (
	"testing"
	"time"
)

func boolPtr(b bool) *bool { return &b }

func TestMergeLocal_Nil(t *testing.T) {
	t.Parallel()

	global := Default()
	if result := MergeLocal(&global, nil); result != &global {
		t.Error("expected same pointer when local is nil")
	}
}

func TestMergeLocal_NoMutation(t *testing.T) {
	t.Parallel()

	global := Default()
	global.Hosts = map[string]string{"a.example": "github"}

	MergeLocal(&global, &LocalConfig{
		Jobs:  1,
		Hosts: map[string]string{"b.example": "gitlab"},
	})

	if global.Jobs != DefaultJobs {
		t.Error("global jobs mutated")
	}
	if len(global.Hosts) != 1 {
		t.Errorf("global hosts mutated: %v", global.Hosts)
	}
}

func TestMergeLocal_SimpleFieldReplace(t *testing.T) {
	t.Parallel()

	global := Default()
	local := &LocalConfig{
		Parallel: boolPtr(false),
		Jobs:     4,
		CacheTTL: "1s",
		Merge:    MergeConfig{Method: "squash"},
		Pull:     PullConfig{Mode: "rebase"},
		Hosts:    map[string]string{"b.example": "bitbucket"},
	}

	result := MergeLocal(&global, local)

	if result.Parallel {
		t.Error("parallel = true, want false")
	}
	if result.Jobs != 4 {
		t.Errorf("jobs = %d, want 4", result.Jobs)
	}
	if result.CacheTTL != time.Second {
		t.Errorf("cache_ttl = %v, want 1s", result.CacheTTL)
	}
	if result.Merge.Method != "squash" {
		t.Errorf("merge.method = %q, want squash", result.Merge.Method)
	}
	if result.Pull.Mode != "rebase" {
		t.Errorf("pull.mode = %q, want rebase", result.Pull.Mode)
	}
	if result.Hosts["b.example"] != "bitbucket" {
		t.Errorf("hosts = %v", result.Hosts)
	}
}

func TestMergeLocal_UnsetFieldsInherit(t *testing.T) {
	t.Parallel()

	global := Default()
	global.Parallel = false
	global.Merge.Method = "rebase"

	result := MergeLocal(&global, &LocalConfig{})

	if result.Parallel {
		t.Error("parallel should be inherited as false")
	}
	if result.Merge.Method != "rebase" {
		t.Errorf("merge.method = %q, want rebase", result.Merge.Method)
	}
	if result.Jobs != DefaultJobs {
		t.Errorf("jobs = %d", result.Jobs)
	}
}
