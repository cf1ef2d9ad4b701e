// Package repo resolves manifest entries into RepoInfo records and filters
// them by name, group and reference status.
//
// Every RepoInfo carries an absolute path below the workspace root; entries
// whose path escapes the root or whose URL cannot be parsed are dropped.
// Results are always sorted by name so per-repo output is reproducible.
package repo
