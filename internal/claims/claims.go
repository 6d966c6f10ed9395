// Package claims maps Galette member records to the identity payload served
// to relying parties on the user endpoint.
//
// The field set is stable: several relying parties read the login from
// "username", others from "userName" or "name", and email from either
// "email" or "mail", so every alias is always emitted.
package claims

import (
	"errors"
	"strconv"
	"strings"

	"github.com/galette-community/plugin-oauth2/internal/members"
)

// ErrInactiveMember is returned when claims are requested for an inactive member.
var ErrInactiveMember = errors.New("claims: member is not active")

// Claims is the normalized identity payload.
type Claims struct {
	ID          int64  `json:"id"`
	Identifier  int64  `json:"identifier"`
	DisplayName string `json:"displayName"`
	Username    string `json:"username"`
	UserName    string `json:"userName"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Mail        string `json:"mail"`
	Language    string `json:"language"`
	Country     string `json:"country"`
	Zip         string `json:"zip"`
	City        string `json:"city"`
	Phone       string `json:"phone"`
	Status      string `json:"status"`
	State       string `json:"state"`
	Groups      string `json:"groups"`
}

// Map builds the claims for rec. Inactive members get ErrInactiveMember and
// no claims.
func Map(rec *members.Record) (*Claims, error) {
	if rec == nil || !rec.Active {
		return nil, ErrInactiveMember
	}

	login := NormalizedLogin(rec.Surname, rec.GivenName)
	return &Claims{
		ID:          rec.ID,
		Identifier:  rec.ID,
		DisplayName: rec.DisplayName,
		Username:    login,
		UserName:    login,
		Name:        login,
		Email:       rec.Email,
		Mail:        rec.Email,
		Language:    rec.Language,
		Country:     rec.Country,
		Zip:         rec.Zip,
		City:        rec.Town,
		Phone:       joinPhones(rec.Phone, rec.Mobile),
		Status:      rec.Status,
		State:       strconv.FormatBool(MembershipCurrent(rec)),
		Groups:      strings.Join(Groups(rec), ","),
	}, nil
}

// MembershipCurrent reports whether the member is active and up to date,
// admins always counting as current.
func MembershipCurrent(rec *members.Record) bool {
	return (rec.Active && rec.UpToDate) || rec.Admin
}

func joinPhones(phone, mobile string) string {
	phone = strings.TrimSpace(phone)
	mobile = strings.TrimSpace(mobile)
	switch {
	case phone != "" && mobile != "":
		return phone + "/" + mobile
	case phone != "":
		return phone
	default:
		return mobile
	}
}
