package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "Jean.Dupont@example.org", Normalize("  Jean.Dupont@EXAMPLE.org "))
	assert.Equal(t, "no-at-sign", Normalize("no-at-sign"))
}

func TestMask(t *testing.T) {
	tests := map[string]string{
		"jean.dupont@example.org": "j***@example.org",
		"É@Example.ORG":           "É***@example.org",
		"not-an-address":          "***",
		"":                        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Mask(in), in)
	}
}
