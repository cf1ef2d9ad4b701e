// Package cmd provides helpers for executing shell commands with proper error handling.
//
// This package wraps [os/exec.Cmd] to capture stderr and include it in error
// messages, making command failures more informative for users. Every
// invocation is traced through the context logger in verbose mode.
//
// # Usage
//
//	if err := cmd.RunContext(ctx, repoPath, "git", "fetch", "origin"); err != nil {
//	    // err contains stderr output if available
//	}
//
//	out, err := cmd.OutputContext(ctx, repoPath, "git", "status", "--porcelain")
//
// # Design Notes
//
// gr shells out to the git binary for every operation that writes the
// working copy, so that user configuration (SSH keys, credential helpers,
// hooks) applies exactly as it would on the command line.
package cmd
