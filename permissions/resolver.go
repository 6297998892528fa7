package permissions

import (
	"fmt"

	"github.com/calder-wren/pagepermsbackend/models"
	"github.com/rs/zerolog"
)

// AssignmentReader is the read path the resolver needs from the assignment
// store: the single role (if any) a user holds on a page. Absence is a valid
// state, reported via found=false, never as an error.
type AssignmentReader interface {
	RoleForUser(pageID, userID uint) (role string, found bool, err error)
}

// Resolver makes the authorization decision for (action, user, page). A
// page-level role assignment overrides or composes with the injected baseline
// oracle depending on the policy mode; with no assignment the decision is
// entirely the baseline's.
type Resolver struct {
	policy   *RolePolicySet
	store    AssignmentReader
	baseline Oracle
	logger   zerolog.Logger
}

func NewResolver(policy *RolePolicySet, store AssignmentReader, baseline Oracle, logger zerolog.Logger) *Resolver {
	return &Resolver{
		policy:   policy,
		store:    store,
		baseline: baseline,
		logger:   logger,
	}
}

// CanPerform reports whether the user may perform the action on the page.
// Storage failures surface as errors; a denial is a normal false return.
func (r *Resolver) CanPerform(action string, user *models.User, page *models.Page, rigor Rigor) (bool, error) {
	allowed, overridden, err := r.decide(action, user, page, rigor)
	if err != nil {
		return false, err
	}
	r.logger.Debug().
		Str("action", action).
		Uint("user_id", user.ID).
		Uint("page_id", page.ID).
		Str("rigor", string(rigor)).
		Bool("allowed", allowed).
		Bool("page_role_override", overridden).
		Msg("permission decision")
	return allowed, nil
}

// decide returns the decision and whether a page-role override produced it.
// A stored role missing from the configuration is treated as no override.
func (r *Resolver) decide(action string, user *models.User, page *models.Page, rigor Rigor) (allowed, overridden bool, err error) {
	role, found, err := r.store.RoleForUser(page.ID, user.ID)
	if err != nil {
		return false, false, fmt.Errorf("failed to look up page role for user %d on page %d: %w", user.ID, page.ID, err)
	}

	if found && r.policy.IsValidRole(role) {
		listed := r.policy.HasAction(role, action)
		switch r.policy.Mode() {
		case PolicyModeGrant:
			// the grant is authoritative and exclusive: no baseline fallback
			return listed, true, nil
		case PolicyModeRestrict:
			if listed {
				return false, true, nil
			}
		}
	}

	allowed, err = r.baseline.Can(action, user, page, rigor)
	if err != nil {
		return false, false, fmt.Errorf("baseline permission check failed: %w", err)
	}
	return allowed, false, nil
}

// PermissionErrors explains a denial. The baseline's own explanation path
// always runs first so messages stay consistent with the rest of the
// platform; when the denial came from a page-role override, the generic
// group-membership reason is substituted with the role-specific one so the
// message does not misleadingly point at group membership. An allowed action
// yields no errors regardless of what the baseline said.
func (r *Resolver) PermissionErrors(action string, user *models.User, page *models.Page, rigor Rigor) ([]Denial, error) {
	denials, err := r.baseline.Errors(action, user, page, rigor)
	if err != nil {
		return nil, fmt.Errorf("baseline permission errors failed: %w", err)
	}

	allowed, overridden, err := r.decide(action, user, page, rigor)
	if err != nil {
		return nil, err
	}
	if allowed {
		return nil, nil
	}

	if overridden {
		replaced := false
		for i := range denials {
			if denials[i].Code == DenialGroupRights {
				denials[i] = Denial{Code: DenialRoleRights, Params: []string{action}}
				replaced = true
			}
		}
		// baseline may have allowed the action and produced nothing; the
		// denial still needs an explanation
		if !replaced {
			denials = append(denials, Denial{Code: DenialRoleRights, Params: []string{action}})
		}
	}

	r.logger.Debug().
		Str("action", action).
		Uint("user_id", user.ID).
		Uint("page_id", page.ID).
		Interface("denials", denials).
		Msg("permission errors")
	return denials, nil
}
