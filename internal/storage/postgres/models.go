package postgres

import (
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/galette-community/plugin-oauth2/internal/members"
)

// Statuses with a priority below this value are staff (board, treasurer, ...).
const nonStaffPriority = 30

type memberRow struct {
	ID             int64
	Name           pgtype.Text
	FirstName      pgtype.Text
	Nickname       pgtype.Text
	Email          pgtype.Text
	Phone          pgtype.Text
	Mobile         pgtype.Text
	Address        pgtype.Text
	Zip            pgtype.Text
	Town           pgtype.Text
	Country        pgtype.Text
	Language       pgtype.Text
	Info           pgtype.Text
	Active         bool
	Admin          bool
	DueFree        bool
	DueDate        pgtype.Date
	StatusLabel    pgtype.Text
	StatusPriority int32
	GroupManager   bool
}

func (r memberRow) toRecord(now time.Time) *members.Record {
	surname := textValue(r.Name)
	given := textValue(r.FirstName)

	return &members.Record{
		ID:           r.ID,
		Surname:      surname,
		GivenName:    given,
		DisplayName:  displayName(surname, given),
		Nickname:     textValue(r.Nickname),
		Email:        textValue(r.Email),
		Phone:        textValue(r.Phone),
		Mobile:       textValue(r.Mobile),
		Address:      textValue(r.Address),
		Zip:          textValue(r.Zip),
		Town:         textValue(r.Town),
		Country:      textValue(r.Country),
		Language:     textValue(r.Language),
		Status:       textValue(r.StatusLabel),
		AdminNotes:   textValue(r.Info),
		Active:       r.Active,
		UpToDate:     upToDate(r.DueFree, r.DueDate, now),
		Admin:        r.Admin,
		Staff:        r.StatusPriority < nonStaffPriority,
		GroupManager: r.GroupManager,
	}
}

// displayName mirrors Galette's "NAME Firstname" rendering.
func displayName(surname, given string) string {
	return strings.TrimSpace(strings.ToUpper(surname) + " " + given)
}

func upToDate(dueFree bool, due pgtype.Date, now time.Time) bool {
	if dueFree {
		return true
	}
	if !due.Valid {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return !due.Time.Before(today)
}
