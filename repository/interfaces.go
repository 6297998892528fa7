package repository

import (
	"github.com/calder-wren/pagepermsbackend/models"
)

// RoleAssignmentSet is one role's complete user list within a replacement
// submission. Order across sets matters: when a user appears under several
// roles, the earliest set wins.
type RoleAssignmentSet struct {
	Role    string
	UserIDs []uint
}

// AssignmentRepository defines the methods for page role assignment storage
type AssignmentRepository interface {
	// ListAssignments returns the user ids assigned the role on the page.
	// Absence is a valid state: no rows means an empty result, never an error.
	ListAssignments(pageID uint, role string) ([]uint, error)
	// ListByPage returns every assignment row for the page.
	ListByPage(pageID uint) ([]models.PageRoleAssignment, error)
	// ReplaceAssignments atomically deletes all rows for the page and inserts
	// the new complete set, journaling the change under the acting user. A
	// concurrent reader sees either the full old set or the full new set.
	ReplaceAssignments(pageID, actorID uint, sets []RoleAssignmentSet) error
	// DeleteAllForPage removes every assignment for the page; idempotent.
	DeleteAllForPage(pageID uint) error
}

// UserRepository defines the methods for user directory lookups
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	// GetByUsernames resolves usernames to users; unknown names are simply
	// absent from the result, not an error.
	GetByUsernames(usernames []string) ([]models.User, error)
	GetByIDs(ids []uint) ([]models.User, error)
	ListUsernames() ([]string, error)
}

// PageRepository defines the methods for page identity lookups
type PageRepository interface {
	Create(page *models.Page) error
	GetByID(id uint) (*models.Page, error)
	Delete(id uint) error
}

// ChangeLogRepository defines read access to the permission change journal
type ChangeLogRepository interface {
	ListByPage(pageID uint) ([]models.PermissionChangeLog, error)
}
