package testutil

import (
	"testing"
	"time"

	"famtree/internal/genealogy/models"
	"famtree/pkg/domain"
)

// Registered builds a registered person with a user account and an email
// derived from the given name.
func Registered(t *testing.T, ssn, given, family string, g domain.Gender) *models.Person {
	t.Helper()
	return mustPerson(t, models.PersonAttributes{
		SSN:        ssn,
		GivenName:  given,
		FamilyName: family,
		Gender:     g,
		Registered: true,
		Account: &models.Account{
			Login: ssn,
			Email: given + "@" + family + ".test",
			Role:  models.RoleUser,
		},
	})
}

// Admin builds a registered person holding the administrator role.
func Admin(t *testing.T, ssn string) *models.Person {
	t.Helper()
	p := Registered(t, ssn, "admin", "famtree", domain.GenderFemale)
	p.Account.Role = models.RoleAdmin
	return p
}

// Placeholder builds an unregistered person. A zero born leaves the birth
// date unknown.
func Placeholder(t *testing.T, given, family string, g domain.Gender, born time.Time) *models.Person {
	t.Helper()
	return mustPerson(t, models.PersonAttributes{
		GivenName:  given,
		FamilyName: family,
		Gender:     g,
		BirthDate:  born,
	})
}

// Born is a shorthand for a UTC date.
func Born(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func mustPerson(t *testing.T, attrs models.PersonAttributes) *models.Person {
	t.Helper()
	p, err := models.NewPerson(attrs)
	if err != nil {
		t.Fatalf("building person %s %s: %v", attrs.GivenName, attrs.FamilyName, err)
	}
	return p
}
