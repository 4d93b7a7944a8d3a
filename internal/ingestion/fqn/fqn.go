// Package fqn builds fully-qualified entity names.
package fqn

import (
	"strings"
)

const separator = "."

// Quote wraps a name in double quotes when it contains the separator
func Quote(name string) string {
	if strings.Contains(name, separator) && !(strings.HasPrefix(name, `"`) && strings.HasSuffix(name, `"`)) {
		return `"` + name + `"`
	}
	return name
}

// Build joins parts into a fully-qualified name
func Build(parts ...string) string {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = Quote(p)
	}
	return strings.Join(quoted, separator)
}

// Split breaks a fully-qualified name into its parts, honouring quotes
func Split(name string) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false

	for _, r := range name {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case string(r) == separator && !inQuotes:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	parts = append(parts, current.String())
	return parts
}
