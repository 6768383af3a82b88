// Package visibility decides which persons a viewer may see.
package visibility

import (
	"famtree/internal/genealogy/models"
	"famtree/pkg/domain"
)

// IsAdmin is the capability check shared with the workflow.
func IsAdmin(account *models.Account) bool {
	return account.IsAdmin()
}

// IsVisibleTo reports whether viewer may see subject. It is pure and fails
// closed: a nil party or an unknown visibility level hides the subject, even
// from itself.
//
// Rules, in order:
//  1. administrators see everyone
//  2. PUBLIC subjects are visible to all
//  3. PRIVATE subjects are visible only to themselves
//  4. PROTECTED subjects are visible to viewers owning a tree that holds them
func IsVisibleTo(subject, viewer *models.Person) bool {
	if subject == nil || viewer == nil {
		return false
	}
	if IsAdmin(viewer.Account) {
		return true
	}
	switch subject.Visibility {
	case domain.VisibilityPublic:
		return true
	case domain.VisibilityPrivate:
		return subject.Equal(viewer)
	case domain.VisibilityProtected:
		return viewer.Tree != nil && viewer.Tree.Contains(subject)
	default:
		return false
	}
}

// Filter returns the nodes viewer may see, preserving order. It is what the
// presentation layer receives for rendering.
func Filter(nodes []*models.Person, viewer *models.Person) []*models.Person {
	visible := make([]*models.Person, 0, len(nodes))
	for _, n := range nodes {
		if IsVisibleTo(n, viewer) {
			visible = append(visible, n)
		}
	}
	return visible
}
