// Package git wraps the git operations gr performs across repositories.
//
// Read-only queries (HEAD, branch existence, branch listing) go through a
// go-git repository handle opened with [Open]. Everything that writes the
// working copy or the .git directory shells out to the git binary so that
// user configuration (SSH keys, credential helpers, hooks) applies exactly
// as on the command line.
//
// # Lock Probe
//
// Every mutating operation first calls [WaitForIndexLock]. While
// .git/index.lock exists it retries with exponential backoff (200ms,
// doubling, capped at 5s, five attempts) and then fails with an [*Error] of
// kind [KindRepositoryLocked].
//
// # Errors
//
// Failures are returned as [*Error] carrying a [Kind]:
//
//   - [KindNotARepo], [KindNotFound], [KindBranchNotFound]
//   - [KindRepositoryLocked]
//   - [KindOperationFailed] with git's own message
//   - [KindReference], [KindObject], [KindIO], [KindGit]
//
// # Compound Operations
//
//   - [Clone]: clone with a fallback to the remote HEAD when the branch is missing
//   - [SafePullLatest]: pull that never touches dirty or diverged state
//   - [CherryPick]: four-way outcome of applying a commit
//   - [GC]: garbage collection with .git size before and after
package git
