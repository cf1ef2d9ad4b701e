// Package platform provides a uniform contract over code hosting services.
//
// GitHub (via go-github), GitLab, Azure DevOps and Bitbucket (via their REST
// APIs) implement [Platform] so the PR coordinator can create, inspect and
// merge pull requests without caring where a repo is hosted.
//
// # Platform Detection
//
// [ParseRepoURL] extracts host, owner, repo and platform type from a git
// remote URL. Detection checks:
//
//  1. Custom host mappings from config (for self-hosted instances)
//  2. Host patterns (dev.azure.com, gitlab.*, bitbucket.*)
//  3. Falls back to GitHub
//
// file:// URLs and bare paths are classified as local. They resolve to the
// GitHub type but never trigger an API call.
//
// # Rate Limits
//
// Every adapter records vendor rate-limit headers after each response. When
// the remaining budget is exhausted the next request waits for the reset,
// bounded by maxRateLimitWait. Requests that still fail with 429 surface as
// an error for which [IsRateLimited] is true.
//
// # Linked PRs
//
// Sibling PRs of a cross-repo change are recorded in each PR body inside an
// HTML comment block, see [GenerateLinkedPRComment] and
// [ParseLinkedPRComment].
package platform
