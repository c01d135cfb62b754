package oracle

import (
	"strings"
)

// QuoteIdentifier prepares an identifier for embedding in statement
// text. Plain identifiers are folded to upper case, the form Oracle
// stores them in; anything else is wrapped in double quotes with
// embedded quotes doubled. Dotted names are quoted per segment, so
// schema-qualified identifiers stay qualified.
func QuoteIdentifier(name string) string {
	segments := strings.Split(name, ".")
	for i, segment := range segments {
		segments[i] = quoteIdentifierSegment(segment)
	}
	return strings.Join(segments, ".")
}

func quoteIdentifierSegment(segment string) string {
	if plainIdentifier(segment) {
		return strings.ToUpper(segment)
	}
	return `"` + strings.ReplaceAll(segment, `"`, `""`) + `"`
}

// plainIdentifier reports whether name needs no quoting: a letter
// followed by letters, digits, _, $ or #.
func plainIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '_' || r == '$' || r == '#'):
		default:
			return false
		}
	}
	return true
}
