package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/galette-community/plugin-oauth2/internal/members"
	"github.com/galette-community/plugin-oauth2/migrations"
	"github.com/galette-community/plugin-oauth2/internal/security"
)

func setupStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres integration test skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("galette"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connString)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetBaseFS(migrations.FS)
	require.NoError(t, goose.SetDialect("postgres"))
	require.NoError(t, goose.Up(db, migrations.Dir))

	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err)

	store, err := NewStoreFromPool(pool, "galette_")
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return store, db
}

func TestStoreLoadAndLookup(t *testing.T) {
	store, db := setupStore(t)
	store.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	hash, err := security.HashPassword("secret")
	require.NoError(t, err)

	var id int64
	err = db.QueryRow(`
		INSERT INTO galette_adherents (
			id_statut, nom_adh, prenom_adh, email_adh, tel_adh, gsm_adh, ville_adh,
			info_adh, activite_adh, date_echeance, login_adh, mdp_adh
		) VALUES (4, 'Durand', 'Rémi', 'remi@example.org', '0102030405', NULL, 'Lyon',
			'notes #GROUPS:compta;accueil#', TRUE, '2024-12-31', 'rdurand', $1)
		RETURNING id_adh
	`, hash).Scan(&id)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO galette_groups_managers (id_group, id_adh) VALUES (1, $1)`, id)
	require.NoError(t, err)

	rec, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Durand", rec.Surname)
	assert.Equal(t, "Rémi", rec.GivenName)
	assert.Equal(t, "DURAND Rémi", rec.DisplayName)
	assert.Equal(t, "Member", rec.Status)
	assert.Equal(t, "Lyon", rec.Town)
	assert.Empty(t, rec.Mobile)
	assert.True(t, rec.Active)
	assert.True(t, rec.UpToDate)
	assert.True(t, rec.GroupManager)
	assert.False(t, rec.Staff)
	assert.False(t, rec.Admin)
	assert.Contains(t, rec.AdminNotes, "#GROUPS:")

	creds, err := store.LookupCredentials(ctx, "RDURAND")
	require.NoError(t, err)
	assert.Equal(t, id, creds.MemberID)
	assert.Equal(t, hash, creds.PasswordHash)

	creds, err = store.LookupCredentials(ctx, "remi@example.org")
	require.NoError(t, err)
	assert.Equal(t, id, creds.MemberID)

	_, err = store.LookupCredentials(ctx, "nobody")
	require.ErrorIs(t, err, members.ErrNotFound)

	_, err = store.Load(ctx, id+1000)
	require.ErrorIs(t, err, members.ErrNotFound)
}

func TestNewStoreFromPoolRejectsUnsafePrefix(t *testing.T) {
	_, err := NewStoreFromPool(nil, "galette_; DROP TABLE x")
	require.ErrorIs(t, err, ErrInvalidPrefix)
}

func TestUpToDate(t *testing.T) {
	now := time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC)
	day := func(y int, m time.Month, d int) pgtype.Date {
		return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
	}

	tests := []struct {
		name    string
		dueFree bool
		due     pgtype.Date
		want    bool
	}{
		{name: "exempt", dueFree: true, want: true},
		{name: "no due date", want: false},
		{name: "due today", due: day(2024, 6, 1), want: true},
		{name: "due in future", due: day(2025, 1, 1), want: true},
		{name: "expired", due: day(2024, 5, 31), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, upToDate(tt.dueFree, tt.due, now))
		})
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "DURAND Rémi", displayName("Durand", "Rémi"))
	assert.Equal(t, "DURAND", displayName("Durand", ""))
}
