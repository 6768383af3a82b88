package domain

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	dErrors "famtree/pkg/domain-errors"
)

// TreeID identifies a genealogical tree. It is a distinct type so a tree ID
// can never be passed where another identifier is expected.
type TreeID uuid.UUID

// NewTreeID returns a fresh random TreeID.
func NewTreeID() TreeID {
	return TreeID(uuid.New())
}

// treeNamespace scopes name-based tree IDs.
var treeNamespace = uuid.MustParse("5b0f6c9e-2f43-4c1b-9a57-3f0d1f1e8a21")

// TreeIDFor derives the stable TreeID of the tree owned by the person whose
// identity string is owner. The same owner always yields the same ID, so
// consultation records survive restarts.
func TreeIDFor(owner string) TreeID {
	return TreeID(uuid.NewSHA1(treeNamespace, []byte(owner)))
}

func (id TreeID) String() string {
	return uuid.UUID(id).String()
}

func (id TreeID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

// ParseTreeID constructs a TreeID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, malformed or the
// nil UUID.
func ParseTreeID(s string) (TreeID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TreeID{}, dErrors.New(dErrors.CodeInvalidInput, "tree ID cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return TreeID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid tree ID")
	}
	if u == uuid.Nil {
		return TreeID{}, dErrors.New(dErrors.CodeInvalidInput, "tree ID cannot be nil")
	}
	return TreeID(u), nil
}

// RequestID is the sequential identifier of an administrative request.
// Zero is never assigned.
type RequestID uint64

func (id RequestID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseRequestID parses a decimal request identifier.
func ParseRequestID(s string) (RequestID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || n == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid request ID")
	}
	return RequestID(n), nil
}
