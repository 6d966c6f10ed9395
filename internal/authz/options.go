package authz

import (
	"errors"
	"fmt"
	"strings"
)

// Option is a token requested by a client, either declared in the client
// registry or sent as an OAuth scope.
type Option string

// Recognized options.
const (
	OptionTeamOnly Option = "teamonly"
	OptionUpToDate Option = "uptodate"
)

// maxOptionLength bounds a single token.
const maxOptionLength = 64

// ErrInvalidOption is returned for tokens that cannot be a scope.
var ErrInvalidOption = errors.New("authz: invalid option")

// Builtin reports whether o is one of the recognized options.
func (o Option) Builtin() bool {
	return o == OptionTeamOnly || o == OptionUpToDate
}

// Options is an ordered set of options without duplicates.
type Options []Option

// Has reports whether o is in the set.
func (opts Options) Has(o Option) bool {
	for _, v := range opts {
		if v == o {
			return true
		}
	}
	return false
}

// Strings returns the tokens as plain strings.
func (opts Options) Strings() []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = string(o)
	}
	return out
}

func (opts Options) add(o Option) Options {
	if opts.Has(o) {
		return opts
	}
	return append(opts, o)
}

// ParseOption validates a single token. Tokens follow the RFC 6749 scope-token
// grammar: printable ASCII except space, double quote and backslash.
func ParseOption(token string) (Option, error) {
	if token == "" || len(token) > maxOptionLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidOption, token)
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if c < 0x21 || c > 0x7e || c == '"' || c == '\\' {
			return "", fmt.Errorf("%w: %q", ErrInvalidOption, token)
		}
	}
	return Option(token), nil
}

// ParseOptions splits a declared option string. Both ';' and whitespace
// separate tokens.
func ParseOptions(declared string) (Options, error) {
	fields := strings.Fields(strings.ReplaceAll(declared, ";", " "))
	var opts Options
	for _, f := range fields {
		o, err := ParseOption(f)
		if err != nil {
			return nil, err
		}
		opts = opts.add(o)
	}
	return opts, nil
}

// MergeOptions combines the client's declared options with the scopes of the
// current request. Declared options come first.
func MergeOptions(declared string, scopes []string) (Options, error) {
	opts, err := ParseOptions(declared)
	if err != nil {
		return nil, err
	}
	for _, s := range scopes {
		for _, f := range strings.Fields(s) {
			o, err := ParseOption(f)
			if err != nil {
				return nil, err
			}
			opts = opts.add(o)
		}
	}
	return opts, nil
}
