// Package members defines the read-only view of Galette member records and
// the credential verification used by the login flow.
package members

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/galette-community/plugin-oauth2/internal/security"
)

var (
	// ErrNotFound is returned when a member or login does not exist.
	ErrNotFound = errors.New("members: member not found")
	// ErrInvalidCredentials covers empty, unknown or non-matching logins.
	ErrInvalidCredentials = errors.New("members: invalid credentials")
	// ErrAdminAccount is returned when the superadmin tries to log in through OAuth.
	ErrAdminAccount = errors.New("members: superadmin account cannot log in through OAuth")
)

// Record is a member as seen by the bridge.
type Record struct {
	ID           int64
	Surname      string
	GivenName    string
	DisplayName  string
	Nickname     string
	Email        string
	Phone        string
	Mobile       string
	Address      string
	Zip          string
	Town         string
	Country      string
	Language     string
	Status       string
	AdminNotes   string
	Active       bool
	UpToDate     bool
	Admin        bool
	Staff        bool
	GroupManager bool
}

// Loader loads member records by id.
type Loader interface {
	Load(ctx context.Context, id int64) (*Record, error)
}

// CredentialVerifier checks a login/password pair and returns the member id.
type CredentialVerifier interface {
	Verify(ctx context.Context, login, password string) (int64, error)
}

// Credentials is the stored password hash for a login.
type Credentials struct {
	MemberID     int64
	PasswordHash string
}

// CredentialSource looks up stored credentials by login or email.
// It returns ErrNotFound when nothing matches.
type CredentialSource interface {
	LookupCredentials(ctx context.Context, login string) (Credentials, error)
}

// Authenticator verifies member credentials and refuses the superadmin.
type Authenticator struct {
	source     CredentialSource
	adminLogin string
	adminHash  string
}

// NewAuthenticator creates an Authenticator. adminHash may be empty, in which
// case the admin login is rejected without checking a password.
func NewAuthenticator(source CredentialSource, adminLogin, adminHash string) *Authenticator {
	return &Authenticator{source: source, adminLogin: adminLogin, adminHash: adminHash}
}

// Verify implements CredentialVerifier.
func (a *Authenticator) Verify(ctx context.Context, login, password string) (int64, error) {
	login = strings.TrimSpace(login)
	if login == "" || strings.TrimSpace(password) == "" {
		return 0, ErrInvalidCredentials
	}

	if a.adminLogin != "" && login == a.adminLogin {
		if a.adminHash == "" {
			return 0, ErrAdminAccount
		}
		ok, err := security.CheckPassword(password, a.adminHash)
		if err != nil {
			return 0, fmt.Errorf("members: check admin password: %w", err)
		}
		if ok {
			return 0, ErrAdminAccount
		}
		return 0, ErrInvalidCredentials
	}

	creds, err := a.source.LookupCredentials(ctx, login)
	if errors.Is(err, ErrNotFound) {
		return 0, ErrInvalidCredentials
	}
	if err != nil {
		return 0, fmt.Errorf("members: lookup credentials: %w", err)
	}

	ok, err := security.CheckPassword(password, creds.PasswordHash)
	if errors.Is(err, security.ErrUnknownHashFormat) {
		return 0, ErrInvalidCredentials
	}
	if err != nil {
		return 0, fmt.Errorf("members: check password: %w", err)
	}
	if !ok {
		return 0, ErrInvalidCredentials
	}
	return creds.MemberID, nil
}
