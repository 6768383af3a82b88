package domain

import (
	"strings"

	dErrors "famtree/pkg/domain-errors"
)

// Gender is a plain attribute of a person. It only influences which inverse
// relation kind is stored on the other side of a link.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// ParseGender accepts the canonical values plus the single-letter forms found
// in legacy rows ("M", "F", "H" for homme).
func ParseGender(s string) (Gender, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MALE", "M", "H", "HOMME":
		return GenderMale, nil
	case "FEMALE", "F", "FEMME":
		return GenderFemale, nil
	case "":
		return "", dErrors.New(dErrors.CodeInvalidInput, "gender cannot be empty")
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid gender")
	}
}

func (g Gender) IsMale() bool {
	return g == GenderMale
}

func (g Gender) IsValid() bool {
	return g == GenderMale || g == GenderFemale
}
