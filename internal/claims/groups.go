package claims

import (
	"regexp"
	"strings"

	"github.com/galette-community/plugin-oauth2/internal/members"
)

// Admins write group directives into the member's free-text notes, e.g.
// "joined 2019 #GROUPS:Compta;Accueil (week-end)#".
var groupDirective = regexp.MustCompile(`(?i)#GROUPS:([^#]*)#`)

var underscoreRuns = regexp.MustCompile(`_{2,}`)

// ParseGroupDirective returns the raw entries of the first #GROUPS:...#
// directive found in notes, in order. Blank entries are skipped.
func ParseGroupDirective(notes string) []string {
	m := groupDirective.FindStringSubmatch(notes)
	if m == nil {
		return nil
	}
	var entries []string
	for _, e := range strings.Split(m[1], ";") {
		if strings.TrimSpace(e) != "" {
			entries = append(entries, e)
		}
	}
	return entries
}

// NormalizeGroup turns a group label into a token: spaces become
// underscores, slashes and parentheses are dropped, underscore runs are
// collapsed, then accents are stripped and the result lower cased.
func NormalizeGroup(entry string) string {
	g := strings.TrimSpace(entry)
	g = strings.NewReplacer(" ", "_", "/", "", "(", "", ")", "").Replace(g)
	g = underscoreRuns.ReplaceAllString(g, "_")
	return StripAccents(g)
}

// Groups lists the member's groups: status first, then capability flags in
// a fixed order, then the directive entries.
func Groups(rec *members.Record) []string {
	raw := []string{rec.Status}
	if rec.Admin {
		raw = append(raw, "admin")
	}
	if rec.Staff {
		raw = append(raw, "staff")
	}
	if rec.GroupManager {
		raw = append(raw, "groupmanager")
	}
	if rec.UpToDate {
		raw = append(raw, "uptodate")
	}
	raw = append(raw, ParseGroupDirective(rec.AdminNotes)...)

	groups := make([]string, 0, len(raw))
	for _, g := range raw {
		groups = append(groups, NormalizeGroup(g))
	}
	return groups
}
