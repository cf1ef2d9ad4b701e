package scripts

import (
	"regexp"
	"strings"
)

// shellQuote wraps s in single quotes, escaping embedded single quotes.
// e.g., "it's" becomes 'it'\''s'
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}

// Context holds the values for placeholder substitution.
type Context struct {
	Root   string            // workspace root
	Script string            // script name
	Env    map[string]string // merged environment
}

// envPlaceholderRegex matches {key}, {key:raw}, or {key:-default}.
var envPlaceholderRegex = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)(?:(:raw)|:-([^}]*))?\}`)

// Substitute replaces placeholders in command with values from c.
// Static placeholders win over env keys of the same name.
func Substitute(command string, c Context) string {
	result := strings.NewReplacer(
		"{root}", shellQuote(c.Root),
		"{script}", shellQuote(c.Script),
	).Replace(command)

	return envPlaceholderRegex.ReplaceAllStringFunc(result, func(match string) string {
		sub := envPlaceholderRegex.FindStringSubmatch(match)
		key, raw, def := sub[1], sub[2] == ":raw", sub[3]

		val, ok := c.Env[key]
		if !ok {
			val = def
		}
		if raw {
			return val
		}
		return shellQuote(val)
	})
}
