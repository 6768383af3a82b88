package csv

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"famtree/internal/genealogy/models"
	"famtree/pkg/domain"
	"famtree/pkg/platform/sentinel"
)

// Person rows use this fixed column order. The layout is an external
// contract shared with other tools reading the same files.
const (
	colSSN = iota
	colGivenName
	colFamilyName
	colBirthDate
	colNationality
	colDocumentRef
	colEmail
	colPhone
	colAddress
	colPrivateCode
	colGender
	colLogin
	colCredential
	colRole
	colRegistered
	colAdminValidated
	colLoginEnabled
	colVisibility
	personColumns
)

// Link rows: source identity, target identity, kind.
const linkColumns = 3

const dateLayout = "2006-01-02"

func encodePerson(p *models.Person) []string {
	row := make([]string, personColumns)
	row[colSSN] = p.SSN
	row[colGivenName] = p.GivenName
	row[colFamilyName] = p.FamilyName
	if p.HasBirthDate() {
		row[colBirthDate] = p.BirthDate.Format(dateLayout)
	}
	row[colNationality] = p.Nationality
	row[colDocumentRef] = p.DocumentRef
	row[colPrivateCode] = p.PrivateCode
	row[colGender] = string(p.Gender)
	row[colRegistered] = strconv.FormatBool(p.Registered)
	row[colAdminValidated] = strconv.FormatBool(p.AdminValidated)
	row[colVisibility] = string(p.Visibility)
	if a := p.Account; a != nil {
		row[colEmail] = a.Email
		row[colPhone] = a.Phone
		row[colAddress] = a.Address
		row[colLogin] = a.Login
		row[colCredential] = a.Credential
		row[colRole] = string(a.Role)
		row[colLoginEnabled] = strconv.FormatBool(a.LoginEnabled)
	}
	return row
}

func decodePerson(row []string) (*models.Person, error) {
	if len(row) != personColumns {
		return nil, fmt.Errorf("%w: expected %d columns, got %d", sentinel.ErrMalformed, personColumns, len(row))
	}
	field := func(i int) string { return strings.TrimSpace(row[i]) }

	attrs := models.PersonAttributes{
		SSN:         field(colSSN),
		GivenName:   field(colGivenName),
		FamilyName:  field(colFamilyName),
		Nationality: field(colNationality),
		DocumentRef: field(colDocumentRef),
		PrivateCode: field(colPrivateCode),
	}
	if s := field(colBirthDate); s != "" {
		born, err := time.Parse(dateLayout, s)
		if err != nil {
			return nil, fmt.Errorf("%w: birth date %q", sentinel.ErrMalformed, s)
		}
		attrs.BirthDate = born
	}
	g, err := domain.ParseGender(field(colGender))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrMalformed, err)
	}
	attrs.Gender = g
	if s := field(colVisibility); s != "" {
		v, err := domain.ParseVisibility(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", sentinel.ErrMalformed, err)
		}
		attrs.Visibility = v
	}
	if attrs.Registered, err = parseBool(field(colRegistered)); err != nil {
		return nil, err
	}
	adminValidated, err := parseBool(field(colAdminValidated))
	if err != nil {
		return nil, err
	}

	if attrs.Registered || field(colLogin) != "" || field(colEmail) != "" {
		loginEnabled, err := parseBool(field(colLoginEnabled))
		if err != nil {
			return nil, err
		}
		role := models.Role(strings.ToUpper(field(colRole)))
		if role == "" {
			role = models.RoleUser
		}
		attrs.Account = &models.Account{
			Login:        field(colLogin),
			Credential:   row[colCredential],
			Email:        field(colEmail),
			Phone:        field(colPhone),
			Address:      field(colAddress),
			Role:         role,
			LoginEnabled: loginEnabled,
		}
	}

	p, err := models.NewPerson(attrs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrMalformed, err)
	}
	p.AdminValidated = adminValidated
	return p, nil
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: flag %q", sentinel.ErrMalformed, s)
	}
	return b, nil
}

func encodeLink(l models.LinkRecord) []string {
	return []string{l.Source, l.Target, string(l.Kind)}
}

func decodeLink(row []string) (models.LinkRecord, error) {
	if len(row) != linkColumns {
		return models.LinkRecord{}, fmt.Errorf("%w: expected %d columns, got %d", sentinel.ErrMalformed, linkColumns, len(row))
	}
	kind, err := domain.ParseRelationKind(strings.TrimSpace(row[2]))
	if err != nil {
		return models.LinkRecord{}, fmt.Errorf("%w: %v", sentinel.ErrMalformed, err)
	}
	src, dst := strings.TrimSpace(row[0]), strings.TrimSpace(row[1])
	if src == "" || dst == "" {
		return models.LinkRecord{}, fmt.Errorf("%w: empty link endpoint", sentinel.ErrMalformed)
	}
	return models.LinkRecord{Source: src, Target: dst, Kind: kind}, nil
}
