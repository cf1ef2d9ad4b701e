package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raphi011/gitgrip/internal/platform"
)

func readyPR(repo string, number int) LinkedPR {
	return LinkedPR{
		RepoName:   repo,
		Owner:      "acme",
		Repo:       repo,
		Number:     number,
		State:      platform.StateOpen,
		Approved:   true,
		ChecksPass: true,
		Mergeable:  true,
	}
}

func TestLoadMissingIsEmpty(t *testing.T) {
	t.Parallel()

	s, err := Load(filepath.Join(t.TempDir(), ".gitgrip", "state.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(s.BranchToPR) != 0 || len(s.PRLinks) != 0 || s.CurrentManifestPR != nil {
		t.Errorf("Load() = %+v, want empty", s)
	}
}

func TestLoadCorruptFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() of corrupt file succeeded")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".gitgrip", "state.json")
	s := New(path)
	s.SetPRForBranch("feat/x", 7)
	s.SetCurrent(7)
	s.AddLinkedPR(7, readyPR("frontend", 42))
	if err := s.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{`"currentManifestPr": 7`, `"branchToPr"`, `"prLinks"`, `"repoName": "frontend"`, `"checksPass": true`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("state file missing %s:\n%s", field, data)
		}
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("state file is not JSON: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if n, ok := loaded.GetPRForBranch("feat/x"); !ok || n != 7 {
		t.Errorf("GetPRForBranch() = %d, %v", n, ok)
	}
	links, ok := loaded.GetLinkedPRs(7)
	if !ok || len(links) != 1 || links[0].Number != 42 {
		t.Errorf("GetLinkedPRs() = %+v, %v", links, ok)
	}
}

func TestBranchMapping(t *testing.T) {
	t.Parallel()

	s := New("unused")
	s.SetPRForBranch("feat/x", 3)
	s.SetLinkedPRs(3, []LinkedPR{readyPR("a", 1), readyPR("b", 2)})
	s.SetCurrent(3)

	if n, ok := s.GetPRForBranch("feat/x"); !ok || n != 3 {
		t.Fatalf("GetPRForBranch() = %d, %v", n, ok)
	}

	s.RemoveBranch("feat/x")
	if _, ok := s.GetPRForBranch("feat/x"); ok {
		t.Error("branch still mapped after RemoveBranch")
	}
	if _, ok := s.GetLinkedPRs(3); ok {
		t.Error("linked PRs survive RemoveBranch")
	}
	if s.CurrentManifestPR != nil {
		t.Error("CurrentManifestPR not cleared")
	}

	// Removing an unknown branch is a no-op.
	s.RemoveBranch("nope")
}

func TestRemoveBranchKeepsSharedLinks(t *testing.T) {
	t.Parallel()

	s := New("unused")
	s.SetPRForBranch("feat/x", 3)
	s.SetPRForBranch("feat/x-followup", 3)
	s.AddLinkedPR(3, readyPR("a", 1))

	s.RemoveBranch("feat/x")
	if _, ok := s.GetLinkedPRs(3); !ok {
		t.Error("links dropped while another branch still maps to the PR")
	}
}

func TestSetLinkedPRsEmpty(t *testing.T) {
	t.Parallel()

	s := New("unused")
	s.AddLinkedPR(5, readyPR("a", 1))
	s.SetLinkedPRs(5, nil)
	if _, ok := s.PRLinks["5"]; ok {
		t.Error("empty unmapped links kept")
	}

	s.SetPRForBranch("b", 6)
	s.SetLinkedPRs(6, nil)
	if _, ok := s.PRLinks["6"]; !ok {
		t.Error("empty links of a mapped PR dropped")
	}
}

func TestAddAndUpdateLinkedPR(t *testing.T) {
	t.Parallel()

	s := New("unused")
	s.AddLinkedPR(1, readyPR("a", 10))
	s.AddLinkedPR(1, readyPR("b", 11))
	s.AddLinkedPR(1, LinkedPR{RepoName: "a", Number: 12})

	links, _ := s.GetLinkedPRs(1)
	if len(links) != 2 || links[0].Number != 12 {
		t.Fatalf("links = %+v, want a replaced in place", links)
	}

	ok := s.UpdateLinkedPR(1, "b", func(l *LinkedPR) { l.State = platform.StateMerged })
	if !ok {
		t.Fatal("UpdateLinkedPR(b) = false")
	}
	links, _ = s.GetLinkedPRs(1)
	if links[1].State != platform.StateMerged {
		t.Errorf("State = %s, want merged", links[1].State)
	}
	if s.UpdateLinkedPR(1, "missing", func(*LinkedPR) {}) {
		t.Error("UpdateLinkedPR(missing) = true")
	}
	if !s.HasLinkedPR(1, "b") || s.HasLinkedPR(1, "missing") || s.HasLinkedPR(2, "a") {
		t.Error("HasLinkedPR disagrees with the stored records")
	}
}

func TestAllLinkedPRsReady(t *testing.T) {
	t.Parallel()

	notApproved := readyPR("b", 2)
	notApproved.Approved = false
	closed := readyPR("c", 3)
	closed.State = platform.StateClosed
	red := readyPR("d", 4)
	red.ChecksPass = false
	conflicted := readyPR("e", 5)
	conflicted.Mergeable = false

	tests := []struct {
		name  string
		links []LinkedPR
		want  bool
	}{
		{"all ready", []LinkedPR{readyPR("a", 1), readyPR("x", 9)}, true},
		{"not approved", []LinkedPR{readyPR("a", 1), notApproved}, false},
		{"closed", []LinkedPR{closed}, false},
		{"checks failing", []LinkedPR{red}, false},
		{"not mergeable", []LinkedPR{conflicted}, false},
		{"none", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := New("unused")
			s.SetPRForBranch("b", 1)
			s.SetLinkedPRs(1, tt.links)
			if got := s.AllLinkedPRsReady(1); got != tt.want {
				t.Errorf("AllLinkedPRsReady() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestManifestPRs(t *testing.T) {
	t.Parallel()

	s := New("unused")
	s.AddLinkedPR(12, readyPR("a", 1))
	s.AddLinkedPR(3, readyPR("a", 2))
	got := s.ManifestPRs()
	if len(got) != 2 || got[0] != 3 || got[1] != 12 {
		t.Errorf("ManifestPRs() = %v, want [3 12]", got)
	}
}
