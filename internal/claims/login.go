package claims

import (
	"regexp"
	"unicode/utf8"
)

var nameSeparators = regexp.MustCompile(`[\s,-]+`)

// NormalizedLogin builds the "s.name" handle relying parties use as a
// username: the first letter of the surname, a dot, then the first part of
// the given name. Given-name parts shorter than four letters absorb the next
// part ("Li-Anne" gives "lianne").
func NormalizedLogin(surname, givenName string) string {
	part := givenName
	if tokens := splitName(givenName); len(tokens) > 0 {
		part = tokens[0]
		if utf8.RuneCountInString(StripAccents(part)) < 4 && len(tokens) > 1 {
			part += tokens[1]
		}
	}

	initial := ""
	if s := StripAccents(surname); s != "" {
		initial = s[:1]
	}
	return initial + "." + StripAccents(part)
}

func splitName(name string) []string {
	raw := nameSeparators.Split(name, -1)
	tokens := raw[:0]
	for _, tok := range raw {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}
