// Package cache keeps a short-lived, in-memory record of per-repo git
// status so status-heavy commands run "git status" at most once per repo.
//
// # Lifetime
//
// The shared cache lives for one gr invocation. It is created lazily on
// first use, never pre-populated, and every command that mutates a repo
// (add, commit, branch, checkout, rebase, cherry-pick) invalidates that
// repo's entry. It is a speed-up only; callers must not rely on it for
// consistency.
//
// # Concurrency
//
// One mutex guards the map. It is never held while git runs, so two
// workers missing on the same repo may both compute its status; the
// later write wins.
package cache
