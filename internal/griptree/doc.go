// Package griptree manages griptrees: sibling workspace directories that
// hold one git worktree per manifest repo, all on a common branch.
//
// # Files
//
// A griptree at <parent>/<workspace>-<branch> carries:
//
//	.gitgrip/griptree.json   Config: branch, lock state, per-repo upstreams
//	.griptree                Pointer back to the main workspace
//
// The main workspace lists every griptree in .gitgrip/griptrees.json.
//
// # Locking
//
// A locked griptree is never removed or recreated without force.
package griptree
