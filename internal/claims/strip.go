package claims

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Letters that Unicode decomposition leaves untouched but have a
// conventional ASCII spelling.
var transliterations = map[rune]string{
	'ß': "ss", 'ẞ': "SS",
	'ø': "o", 'Ø': "O",
	'æ': "ae", 'Æ': "AE",
	'œ': "oe", 'Œ': "OE",
	'đ': "d", 'Đ': "D",
	'ð': "d", 'Ð': "D",
	'ł': "l", 'Ł': "L",
	'þ': "th", 'Þ': "TH",
	'ı': "i",
	'ŋ': "n", 'Ŋ': "N",
	'ħ': "h", 'Ħ': "H",
	'ŧ': "t", 'Ŧ': "T",
	'ſ': "s",
	'ĸ': "q",
	'ŀ': "l", 'Ŀ': "L",
	'ƒ': "f",
	'‘': "'", '’': "'", '‚': "'",
	'“': `"`, '”': `"`, '„': `"`,
	'‐': "-", '‑': "-", '–': "-", '—': "-",
	'\u00a0': " ",
	'«': "<<", '»': ">>",
}

// StripAccents transliterates extended Latin text to ASCII, drops anything
// outside [a-zA-Z0-9.] and the printable range space..underscore, and lower
// cases the result. The mapping is fixed and does not depend on the locale.
func StripAccents(s string) string {
	var mapped strings.Builder
	mapped.Grow(len(s))
	for _, r := range s {
		if repl, ok := transliterations[r]; ok {
			mapped.WriteString(repl)
			continue
		}
		mapped.WriteRune(r)
	}

	decomposed, _, err := transform.String(
		transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		mapped.String(),
	)
	if err != nil {
		decomposed = mapped.String()
	}

	var out strings.Builder
	out.Grow(len(decomposed))
	for i := 0; i < len(decomposed); i++ {
		c := decomposed[i]
		switch {
		case c >= 'A' && c <= 'Z':
			out.WriteByte(c + ('a' - 'A'))
		case c >= 'a' && c <= 'z', c >= ' ' && c <= '_':
			out.WriteByte(c)
		}
	}
	return out.String()
}
