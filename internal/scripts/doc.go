// Package scripts runs the workspace scripts declared under
// workspace.scripts in the manifest, and provides the command builder
// shared by "gr forall" and "gr ci".
//
// # Commands
//
// A command line without shell syntax is split with shlex and executed
// directly. Anything containing pipes, redirects, variable expansion,
// globs or command separators runs through "sh -c".
//
// # Placeholders
//
// Before execution, placeholders are replaced with shell-quoted values:
//
//	{root}          workspace root
//	{script}        name of the running script
//	{key}           value of env key (shell-quoted)
//	{key:raw}       value of env key (unquoted)
//	{key:-default}  value of env key, or default when unset
//
// # Environment
//
// Every command sees the process environment, the workspace env from the
// manifest, any -e KEY=VALUE overrides and GITGRIP_WORKSPACE set to the
// workspace root.
package scripts
