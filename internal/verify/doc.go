// Package verify implements "gr verify": a read-only health check of a
// workspace, with an optional fix pass.
//
// # Checks
//
//   - manifest: the raw document against the JSON Schema, then semantic
//     validation (paths, URLs, group names)
//   - repo: every selected repo is cloned; with Clean, has no local
//     changes; with Branch, is on that branch
//   - link: every copyfile/linkfile mapping is in place
//   - griptree: every registered griptree still exists on disk
//
// # Fixes
//
// Link issues are fixed by reapplying the mappings and missing griptrees
// by dropping them from the registry. Repo issues need a human and are
// only reported.
package verify
