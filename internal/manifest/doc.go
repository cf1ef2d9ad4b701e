// Package manifest parses, validates and edits the gitgrip workspace
// manifest.
//
// The manifest is a YAML document (JSON with comments is accepted too) that
// maps repo names to their remote URL and workspace-relative path, together
// with workspace-level settings, env, scripts, CI pipelines and release
// configuration:
//
//	version: 1
//	manifest:
//	  url: git@github.com:acme/workspace.git
//	repos:
//	  frontend:
//	    url: git@github.com:acme/frontend.git
//	    path: frontend
//	    groups: [web]
//	  docs:
//	    url: https://github.com/acme/docs.git
//	    path: ref/docs
//	    reference: true
//	settings:
//	  merge_strategy: all-or-nothing
//
// # Path Safety
//
// Every repo path, copyfile/linkfile src and dest must stay inside the
// workspace root after cleaning. Violations wrap ErrPathEscape.
//
// # Layout
//
// The primary manifest lives at .gitgrip/spaces/main/gripspace.yml, an
// optional overlay at .gitgrip/spaces/local/gripspace.yml is merged on top.
// The legacy .gitgrip/manifests/manifest.yaml is still read when present.
package manifest
