package models

import (
	"strings"

	dErrors "famtree/pkg/domain-errors"
)

// Role is the capability level of an account.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Account holds the credentials and contact details linked to a registered
// person. Credential is opaque to the core.
type Account struct {
	Login        string `validate:"omitempty,max=64"`
	Credential   string
	Email        string `validate:"omitempty,email"`
	Phone        string `validate:"omitempty,max=32"`
	Address      string `validate:"omitempty,max=256"`
	Role         Role   `validate:"omitempty,oneof=USER ADMIN"`
	LoginEnabled bool
}

// IsAdmin reports whether the account carries the administrator role.
// A nil account is never an administrator.
func (a *Account) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// ContactChanges lists optional contact-field updates.
type ContactChanges struct {
	Email   *string
	Phone   *string
	Address *string
}

// IsEmpty reports whether no contact field is set.
func (c ContactChanges) IsEmpty() bool {
	return c.Email == nil && c.Phone == nil && c.Address == nil
}

// ApplyContact writes the set fields onto the account.
func (a *Account) ApplyContact(c ContactChanges) {
	if c.Email != nil {
		a.Email = strings.ToLower(strings.TrimSpace(*c.Email))
	}
	if c.Phone != nil {
		a.Phone = strings.TrimSpace(*c.Phone)
	}
	if c.Address != nil {
		a.Address = strings.TrimSpace(*c.Address)
	}
}

// Validate checks the account fields against their declared constraints.
func (a *Account) Validate() error {
	if err := validate.Struct(a); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid account")
	}
	return nil
}
