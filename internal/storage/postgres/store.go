package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/galette-community/plugin-oauth2/internal/members"
)

var tablePrefixPattern = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

// Store reads Galette member data from Postgres.
type Store struct {
	pool     *pgxpool.Pool
	ownsPool bool
	prefix   string
	now      func() time.Time
}

// NewStore creates a store using the provided connection string and takes ownership of the pool.
func NewStore(ctx context.Context, connString, tablePrefix string) (*Store, error) {
	if !tablePrefixPattern.MatchString(tablePrefix) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPrefix, tablePrefix)
	}
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &Store{pool: pool, ownsPool: true, prefix: tablePrefix, now: time.Now}, nil
}

// NewStoreFromPool wraps an existing pgx pool.
func NewStoreFromPool(pool *pgxpool.Pool, tablePrefix string) (*Store, error) {
	if !tablePrefixPattern.MatchString(tablePrefix) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPrefix, tablePrefix)
	}
	return &Store{pool: pool, prefix: tablePrefix, now: time.Now}, nil
}

// Close closes the underlying pool if the store owns it.
func (s *Store) Close() {
	if s.ownsPool && s.pool != nil {
		s.pool.Close()
	}
}

// Pool exposes the underlying pgx pool for readiness checks.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) table(name string) string {
	return pgx.Identifier{s.prefix + name}.Sanitize()
}

// Load implements members.Loader.
func (s *Store) Load(ctx context.Context, id int64) (*members.Record, error) {
	query := fmt.Sprintf(`
		SELECT
			a.id_adh,
			a.nom_adh,
			a.prenom_adh,
			a.pseudo_adh,
			a.email_adh,
			a.tel_adh,
			a.gsm_adh,
			a.adresse_adh,
			a.cp_adh,
			a.ville_adh,
			a.pays_adh,
			a.pref_lang,
			a.info_adh,
			a.activite_adh,
			a.bool_admin_adh,
			a.bool_exempt_adh,
			a.date_echeance,
			s.libelle_statut,
			s.priorite_statut,
			EXISTS (SELECT 1 FROM %s gm WHERE gm.id_adh = a.id_adh)
		FROM %s a
		JOIN %s s ON s.id_statut = a.id_statut
		WHERE a.id_adh = $1
	`, s.table("groups_managers"), s.table("adherents"), s.table("statuts"))

	var row memberRow
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&row.ID,
		&row.Name,
		&row.FirstName,
		&row.Nickname,
		&row.Email,
		&row.Phone,
		&row.Mobile,
		&row.Address,
		&row.Zip,
		&row.Town,
		&row.Country,
		&row.Language,
		&row.Info,
		&row.Active,
		&row.Admin,
		&row.DueFree,
		&row.DueDate,
		&row.StatusLabel,
		&row.StatusPriority,
		&row.GroupManager,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, members.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load member %d: %w", id, err)
	}
	return row.toRecord(s.now()), nil
}

// LookupCredentials implements members.CredentialSource. Login names take
// precedence over email addresses when both match different members.
func (s *Store) LookupCredentials(ctx context.Context, login string) (members.Credentials, error) {
	query := fmt.Sprintf(`
		SELECT id_adh, mdp_adh
		FROM %s
		WHERE lower(login_adh) = lower($1) OR lower(email_adh) = lower($1)
		ORDER BY COALESCE(lower(login_adh) = lower($1), false) DESC, id_adh
		LIMIT 1
	`, s.table("adherents"))

	var (
		creds members.Credentials
		hash  pgtype.Text
	)
	err := s.pool.QueryRow(ctx, query, login).Scan(&creds.MemberID, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return members.Credentials{}, members.ErrNotFound
	}
	if err != nil {
		return members.Credentials{}, fmt.Errorf("lookup credentials: %w", err)
	}
	creds.PasswordHash = textValue(hash)
	return creds, nil
}
