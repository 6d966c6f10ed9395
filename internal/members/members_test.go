package members

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type failingSource struct{ err error }

func (f failingSource) LookupCredentials(context.Context, string) (Credentials, error) {
	return Credentials{}, f.err
}

func newStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	require.NoError(t, store.Add(Record{
		ID:        42,
		Surname:   "Durand",
		GivenName: "Rémi",
		Email:     "remi@example.org",
		Active:    true,
	}, "rdurand", "correct horse"))
	return store
}

func TestAuthenticatorVerify(t *testing.T) {
	adminHash, err := bcrypt.GenerateFromPassword([]byte("admin-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	auth := NewAuthenticator(newStore(t), "admin", string(adminHash))
	ctx := context.Background()

	tests := []struct {
		name     string
		login    string
		password string
		wantID   int64
		wantErr  error
	}{
		{name: "login match", login: "rdurand", password: "correct horse", wantID: 42},
		{name: "email match case insensitive", login: "Remi@Example.org", password: "correct horse", wantID: 42},
		{name: "login with surrounding spaces", login: "  rdurand ", password: "correct horse", wantID: 42},
		{name: "wrong password", login: "rdurand", password: "battery staple", wantErr: ErrInvalidCredentials},
		{name: "unknown login", login: "nobody", password: "correct horse", wantErr: ErrInvalidCredentials},
		{name: "empty login", login: "", password: "x", wantErr: ErrInvalidCredentials},
		{name: "empty password", login: "rdurand", password: "", wantErr: ErrInvalidCredentials},
		{name: "whitespace password", login: "rdurand", password: " \t ", wantErr: ErrInvalidCredentials},
		{name: "superadmin with right password", login: "admin", password: "admin-pass", wantErr: ErrAdminAccount},
		{name: "superadmin with wrong password", login: "admin", password: "guess", wantErr: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := auth.Verify(ctx, tt.login, tt.password)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, id)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestAuthenticatorVerify_AdminWithoutHashAlwaysRejected(t *testing.T) {
	auth := NewAuthenticator(newStore(t), "admin", "")
	_, err := auth.Verify(context.Background(), "admin", "anything")
	require.ErrorIs(t, err, ErrAdminAccount)
}

func TestAuthenticatorVerify_SourceFailureIsNotMaskedAsBadPassword(t *testing.T) {
	boom := errors.New("connection reset")
	auth := NewAuthenticator(failingSource{err: boom}, "admin", "")

	_, err := auth.Verify(context.Background(), "rdurand", "pw")
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.NotContains(t, err.Error(), "pw")
}

func TestMemoryStoreLoad(t *testing.T) {
	store := newStore(t)

	rec, err := store.Load(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "Durand", rec.Surname)

	_, err = store.Load(context.Background(), 7)
	require.ErrorIs(t, err, ErrNotFound)
}
