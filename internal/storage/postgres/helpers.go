package postgres

import "github.com/jackc/pgx/v5/pgtype"

// Galette leaves most member fields NULL.
func textValue(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}
