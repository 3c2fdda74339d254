package meta

import (
	"os"
	"strings"
	"unicode"
)

const envPrefix = "${env."

// expandEnvExpr replaces ${env.KEY} with the value of KEY and
// ${env.KEY:-fallback} with fallback when KEY is unset or empty.  Malformed
// expressions are copied verbatim; expressions nested inside them still expand.
func expandEnvExpr(value string) string {
	var b strings.Builder
	for {
		start := strings.Index(value, envPrefix)
		if start < 0 {
			b.WriteString(value)
			return b.String()
		}
		b.WriteString(value[:start])
		rest := value[start+len(envPrefix):]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			b.WriteString(value[start:])
			return b.String()
		}
		key, fallback, hasFallback := strings.Cut(rest[:end], ":-")
		if !validKey(key) {
			b.WriteString(envPrefix)
			value = rest
			continue
		}
		expanded := os.Getenv(key)
		if expanded == "" && hasFallback {
			expanded = fallback
		}
		b.WriteString(expanded)
		value = rest[end+1:]
	}
}

// validKey allows letters, digits and '_'; the empty key expands to ""
func validKey(key string) bool {
	for _, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
