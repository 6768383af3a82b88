package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "famtree/pkg/domain-errors"
)

// TestInverse_DirectKinds pins the inverse table: parent kinds collapse into
// the child kind of the actor's gender and vice versa.
func TestInverse_DirectKinds(t *testing.T) {
	tests := []struct {
		kind   RelationKind
		gender Gender
		want   RelationKind
	}{
		{KindFather, GenderMale, KindSon},
		{KindFather, GenderFemale, KindDaughter},
		{KindMother, GenderMale, KindSon},
		{KindMother, GenderFemale, KindDaughter},
		{KindSon, GenderMale, KindFather},
		{KindSon, GenderFemale, KindMother},
		{KindDaughter, GenderMale, KindFather},
		{KindDaughter, GenderFemale, KindMother},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+string(tt.gender), func(t *testing.T) {
			got, err := Inverse(tt.kind, tt.gender)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestInverse_Involution checks that applying the inverse twice lands back in
// the same relationship category.
func TestInverse_Involution(t *testing.T) {
	for _, kind := range []RelationKind{KindFather, KindMother, KindSon, KindDaughter} {
		for _, a := range []Gender{GenderMale, GenderFemale} {
			for _, b := range []Gender{GenderMale, GenderFemale} {
				once, err := Inverse(kind, a)
				require.NoError(t, err)
				twice, err := Inverse(once, b)
				require.NoError(t, err)
				assert.Equal(t, kind.IsParent(), twice.IsParent(), "%s via %s/%s", kind, a, b)
				assert.Equal(t, kind.IsChild(), twice.IsChild(), "%s via %s/%s", kind, a, b)
			}
		}
	}
}

func TestInverse_ExtendedKindsFail(t *testing.T) {
	for _, kind := range []RelationKind{KindGrandfather, KindUncle, KindStepdaughter, RelationKind("COUSIN"), ""} {
		got, err := Inverse(kind, GenderMale)
		require.Error(t, err, kind)
		assert.Empty(t, got)
		assert.True(t, errors.Is(err, ErrNoInverse))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRelation))
	}
}

func TestParseRelationKind(t *testing.T) {
	t.Run("accepts canonical and legacy labels", func(t *testing.T) {
		cases := map[string]RelationKind{
			"FATHER":      KindFather,
			" daughter ":  KindDaughter,
			"PERE":        KindFather,
			"fille":       KindDaughter,
			"grand-pere":  KindGrandfather,
			"Belle Fille": KindStepdaughter,
			"STEPMOTHER":  KindStepmother,
		}
		for in, want := range cases {
			got, err := ParseRelationKind(in)
			require.NoError(t, err, in)
			assert.Equal(t, want, got, in)
		}
	})

	t.Run("rejects empty and unknown", func(t *testing.T) {
		for _, in := range []string{"", "  ", "COUSIN"} {
			_, err := ParseRelationKind(in)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRelation))
		}
	})
}

func TestRelationKind_Classification(t *testing.T) {
	assert.True(t, KindFather.IsAuthorized())
	assert.True(t, KindDaughter.IsAuthorized())
	assert.False(t, KindGrandmother.IsAuthorized())
	assert.False(t, KindUncle.IsAuthorized())

	assert.True(t, KindGrandmother.IsAscendant())
	assert.True(t, KindStepson.IsDescendant())
	assert.False(t, KindNephew.IsAscendant())
	assert.False(t, KindNephew.IsDescendant())
}

func TestParseGenderAndVisibility(t *testing.T) {
	g, err := ParseGender("h")
	require.NoError(t, err)
	assert.Equal(t, GenderMale, g)

	_, err = ParseGender("x")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	v, err := ParseVisibility("protected")
	require.NoError(t, err)
	assert.Equal(t, VisibilityProtected, v)

	_, err = ParseVisibility("friends")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	assert.False(t, Visibility("").IsValid())
}

func TestParseTreeID(t *testing.T) {
	id := NewTreeID()
	parsed, err := ParseTreeID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	for _, in := range []string{"", "not-a-uuid", "00000000-0000-0000-0000-000000000000"} {
		_, err := ParseTreeID(in)
		require.Error(t, err, in)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	}
}

func TestTreeIDFor_IsStable(t *testing.T) {
	a := TreeIDFor("1850575")
	assert.Equal(t, a, TreeIDFor("1850575"))
	assert.NotEqual(t, a, TreeIDFor("1850576"))
	assert.False(t, a.IsNil())
}

func TestRelationKind_WithGender(t *testing.T) {
	tests := []struct {
		kind   RelationKind
		gender Gender
		want   RelationKind
	}{
		{KindFather, GenderFemale, KindMother},
		{KindMother, GenderMale, KindFather},
		{KindMother, GenderFemale, KindMother},
		{KindSon, GenderFemale, KindDaughter},
		{KindDaughter, GenderMale, KindSon},
		{KindUncle, GenderFemale, KindUncle},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+string(tt.gender), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.WithGender(tt.gender))
		})
	}
}
