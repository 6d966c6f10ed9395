// Package i18n holds the user-facing strings of the login screens and the
// authorization denial reasons, in every supported language.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// Key identifies a translatable message.
type Key string

// Message keys.
const (
	LoginTitle              Key = "login.title"
	LoginInvalidCredentials Key = "login.invalid_credentials"
	LoginSuperadmin         Key = "login.superadmin"
	LoginLocked             Key = "login.locked"
	LoginMissingRequest     Key = "login.missing_request"
	LoginFieldLogin         Key = "login.field_login"
	LoginFieldPassword      Key = "login.field_password"
	LoginSubmit             Key = "login.submit"
	AuthzInactiveMember     Key = "authz.inactive_member"
	AuthzNotTeamMember      Key = "authz.not_team_member"
	AuthzNotUpToDate        Key = "authz.not_up_to_date"
	AuthzDenied             Key = "authz.denied"
)

// BaseLanguage is used when nothing in Accept-Language matches.
var BaseLanguage = language.English

//go:embed locales/*.yaml
var embeddedLocales embed.FS

var defaultCatalog = mustLoad()

type localeFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Catalog resolves message keys for a negotiated language.
type Catalog struct {
	builder *catalog.Builder
	tags    []language.Tag
	matcher language.Matcher
}

// Default returns the catalog built from the embedded locale files.
func Default() *Catalog {
	return defaultCatalog
}

func mustLoad() *Catalog {
	c, err := Load(embeddedLocales)
	if err != nil {
		panic(fmt.Sprintf("i18n: load embedded locales: %v", err))
	}
	return c
}

// Load reads every locales/*.yaml file from fsys.
func Load(fsys fs.FS) (*Catalog, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locales: %w", err)
	}
	sort.Strings(paths)

	builder := catalog.NewBuilder(catalog.Fallback(BaseLanguage))
	tags := []language.Tag{BaseLanguage}
	hasBase := false

	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var file localeFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		tag, err := language.Parse(strings.TrimSpace(file.Locale))
		if err != nil {
			return nil, fmt.Errorf("%s: locale %q: %w", path, file.Locale, err)
		}
		for key, msg := range file.Messages {
			if err := builder.SetString(tag, key, msg); err != nil {
				return nil, fmt.Errorf("%s: key %q: %w", path, key, err)
			}
		}
		if tag == BaseLanguage {
			hasBase = true
			continue
		}
		tags = append(tags, tag)
	}
	if !hasBase {
		return nil, fmt.Errorf("base locale %s is missing", BaseLanguage)
	}

	return &Catalog{
		builder: builder,
		tags:    tags,
		matcher: language.NewMatcher(tags),
	}, nil
}

// Match picks the best supported language for an Accept-Language header.
func (c *Catalog) Match(acceptLanguage string) language.Tag {
	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return BaseLanguage
	}
	_, idx, conf := c.matcher.Match(prefs...)
	if conf == language.No {
		return BaseLanguage
	}
	return c.tags[idx]
}

// Languages lists the supported languages, base language first.
func (c *Catalog) Languages() []language.Tag {
	return append([]language.Tag(nil), c.tags...)
}

// Text renders key in the given language.
func (c *Catalog) Text(tag language.Tag, key Key, args ...any) string {
	p := message.NewPrinter(tag, message.Catalog(c.builder))
	return p.Sprintf(string(key), args...)
}
