package permissions

import (
	"github.com/calder-wren/pagepermsbackend/models"
)

// Rigor is how thoroughly the baseline engine is asked to check. Quick checks
// may serve slightly stale data; secure is used before writes.
type Rigor string

const (
	RigorQuick  Rigor = "quick"
	RigorFull   Rigor = "full"
	RigorSecure Rigor = "secure"
)

// Denial is one structured, user-presentable reason an action was refused.
// Denials are values, not errors: a denied action is a normal outcome.
type Denial struct {
	Code   string   `json:"code"`
	Params []string `json:"params,omitempty"`
}

// Denial codes produced by this package. Baseline oracles may emit others.
const (
	// DenialGroupRights: none of the user's groups carries the permission.
	DenialGroupRights = "group-rights-missing"
	// DenialRoleRights: the user's page role does not grant the action.
	DenialRoleRights = "role-rights-missing"
	// DenialReadOnly: the store is in read-only maintenance mode.
	DenialReadOnly = "read-only"
)

// Oracle is the host platform's baseline permission engine, consulted when no
// page-level role assignment decides the outcome. It is supplied to the
// Resolver explicitly so tests and multi-configuration setups can substitute
// their own.
type Oracle interface {
	Can(action string, user *models.User, page *models.Page, rigor Rigor) (bool, error)
	Errors(action string, user *models.User, page *models.Page, rigor Rigor) ([]Denial, error)
}

// GroupOracle is the default baseline: an action is allowed iff one of the
// user's groups carries it as a permission. Page identity and rigor do not
// influence the group decision.
type GroupOracle struct{}

func NewGroupOracle() *GroupOracle {
	return &GroupOracle{}
}

func (o *GroupOracle) Can(action string, user *models.User, page *models.Page, rigor Rigor) (bool, error) {
	return user.HasGroupPermission(action), nil
}

func (o *GroupOracle) Errors(action string, user *models.User, page *models.Page, rigor Rigor) ([]Denial, error) {
	if user.HasGroupPermission(action) {
		return nil, nil
	}
	return []Denial{{Code: DenialGroupRights, Params: []string{action}}}, nil
}
