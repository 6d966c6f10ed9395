// Package clients is the read-only registry of OAuth clients.
//
// The registry is a YAML document keyed by client id. The reserved "global"
// entry holds the secret shared by every client:
//
//	global:
//	  password: change-me
//	galette_nextcloud:
//	  title: Nextcloud
//	  redirect_uri: https://cloud.example.org/apps/sociallogin/custom_oauth2/galette
//	  redirect_logout: https://cloud.example.org/
//	  options: teamonly;uptodate
//
// Clients without a redirect_uri learn it on first use (see package binding).
package clients

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	globalKey = "global"

	// DefaultTitle is shown on the login page when a client has no title.
	DefaultTitle = "noname"
	// DefaultLogoutURI is where users land after logout when the client
	// declares nothing.
	DefaultLogoutURI = "/"
)

// ErrNoSecret is returned when the registry declares no global secret.
var ErrNoSecret = errors.New("clients: global secret is not configured")

// Registration describes one client.
type Registration struct {
	ID          string
	Options     string
	RedirectURI string
	Title       string
	LogoutURI   string
}

// Secret is the global client secret, either in clear or as a bcrypt hash.
type Secret struct {
	Plain string
	Hash  string
}

// Empty reports whether no secret was configured.
func (s Secret) Empty() bool {
	return s.Plain == "" && s.Hash == ""
}

type entry struct {
	Title          string      `yaml:"title"`
	RedirectURI    string      `yaml:"redirect_uri"`
	RedirectLogout string      `yaml:"redirect_logout"`
	Options        optionsList `yaml:"options"`
	Password       string      `yaml:"password"`
	PasswordHash   string      `yaml:"password_hash"`
}

// optionsList accepts "a;b c" as well as a YAML sequence.
type optionsList string

func (o *optionsList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*o = optionsList(node.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*o = optionsList(strings.Join(items, ";"))
		return nil
	default:
		return fmt.Errorf("line %d: options must be a string or a list", node.Line)
	}
}

// ConfigStore holds the parsed registry. It is immutable after Load.
type ConfigStore struct {
	clients map[string]Registration
	secret  Secret
}

// Load reads the registry from path.
func Load(path string) (*ConfigStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("clients: read %s: %w", path, err)
	}
	store, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("clients: %s: %w", path, err)
	}
	return store, nil
}

// Parse builds a store from a YAML document.
func Parse(data []byte) (*ConfigStore, error) {
	var raw map[string]entry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}

	store := &ConfigStore{clients: make(map[string]Registration, len(raw))}
	for id, e := range raw {
		if id == globalKey {
			store.secret = Secret{
				Plain: strings.TrimSpace(e.Password),
				Hash:  strings.TrimSpace(e.PasswordHash),
			}
			continue
		}
		store.clients[id] = Registration{
			ID:          id,
			Options:     strings.TrimSpace(string(e.Options)),
			RedirectURI: strings.TrimSpace(e.RedirectURI),
			Title:       strings.TrimSpace(e.Title),
			LogoutURI:   strings.TrimSpace(e.RedirectLogout),
		}
	}
	if store.secret.Empty() {
		return nil, ErrNoSecret
	}
	return store, nil
}

// Get returns the registration of id.
func (s *ConfigStore) Get(id string) (Registration, bool) {
	reg, ok := s.clients[id]
	return reg, ok
}

// IDs lists the declared client ids, sorted.
func (s *ConfigStore) IDs() []string {
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Title is the display name of the client, DefaultTitle when unset.
func (s *ConfigStore) Title(id string) string {
	if reg, ok := s.clients[id]; ok && reg.Title != "" {
		return reg.Title
	}
	return DefaultTitle
}

// LogoutURI is where to send users after logout, DefaultLogoutURI when unset.
func (s *ConfigStore) LogoutURI(id string) string {
	if reg, ok := s.clients[id]; ok && reg.LogoutURI != "" {
		return reg.LogoutURI
	}
	return DefaultLogoutURI
}

// Options returns the declared option string of the client, "" when unset.
func (s *ConfigStore) Options(id string) string {
	return s.clients[id].Options
}

// RedirectURI returns the registered redirect URI, "" when the client relies
// on first-use binding.
func (s *ConfigStore) RedirectURI(id string) string {
	return s.clients[id].RedirectURI
}

// Secret returns the global client secret.
func (s *ConfigStore) Secret() Secret {
	return s.secret
}
