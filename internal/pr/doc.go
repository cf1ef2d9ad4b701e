// Package pr coordinates pull requests that span several repositories.
//
// A change set is the group of PRs opened from the same branch across the
// workspace. The Coordinator discovers them, evaluates whether each is
// ready to merge, merges them under the all-or-nothing or independent
// strategy and keeps a linked-PR block in every PR body naming its
// siblings. The set is recorded in the state file under the manifest PR
// number so later invocations can refresh it.
package pr
