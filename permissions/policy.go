package permissions

import (
	"encoding/json"
	"fmt"
	"os"
)

// PolicyMode selects how a role's action list is interpreted. The two modes
// are mutually exclusive per deployment.
type PolicyMode string

const (
	// PolicyModeGrant: a role's action list is the complete set of actions a
	// holder may perform on the page; baseline is never consulted for holders.
	PolicyModeGrant PolicyMode = "grant"
	// PolicyModeRestrict: a role's action list is forbidden for holders;
	// everything else falls through to the baseline engine.
	PolicyModeRestrict PolicyMode = "restrict"
)

// RolePolicySet holds the static role configuration loaded at startup. It is
// read-only after construction and safe for concurrent use.
type RolePolicySet struct {
	mode    PolicyMode
	actions map[string]map[string]struct{}
	order   []string
}

// policyFile is the on-disk shape. Roles are an ordered list so the editor
// has a stable role order to render and deduplicate against.
type policyFile struct {
	Mode  string `json:"mode"`
	Roles []struct {
		Name    string   `json:"name"`
		Actions []string `json:"actions"`
	} `json:"roles"`
}

// LoadRolePolicySet reads and parses the role configuration file at path.
func LoadRolePolicySet(path string) (*RolePolicySet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read role policy file %s: %w", path, err)
	}
	set, err := ParseRolePolicySet(data)
	if err != nil {
		return nil, fmt.Errorf("invalid role policy file %s: %w", path, err)
	}
	return set, nil
}

// ParseRolePolicySet parses a role configuration document and validates it:
// the mode must be a known policy mode and at least one uniquely named role
// must be present.
func ParseRolePolicySet(data []byte) (*RolePolicySet, error) {
	var file policyFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse role policy JSON: %w", err)
	}

	mode := PolicyMode(file.Mode)
	if mode != PolicyModeGrant && mode != PolicyModeRestrict {
		return nil, fmt.Errorf("unknown policy mode %q (expected %q or %q)", file.Mode, PolicyModeGrant, PolicyModeRestrict)
	}
	if len(file.Roles) == 0 {
		return nil, fmt.Errorf("role policy defines no roles")
	}

	set := &RolePolicySet{
		mode:    mode,
		actions: make(map[string]map[string]struct{}, len(file.Roles)),
		order:   make([]string, 0, len(file.Roles)),
	}
	for _, role := range file.Roles {
		if role.Name == "" {
			return nil, fmt.Errorf("role policy contains a role with an empty name")
		}
		if _, exists := set.actions[role.Name]; exists {
			return nil, fmt.Errorf("role %q is defined more than once", role.Name)
		}
		actionSet := make(map[string]struct{}, len(role.Actions))
		for _, action := range role.Actions {
			actionSet[action] = struct{}{}
		}
		set.actions[role.Name] = actionSet
		set.order = append(set.order, role.Name)
	}
	return set, nil
}

// Mode returns the configured policy mode.
func (s *RolePolicySet) Mode() PolicyMode {
	return s.mode
}

// RoleNames returns the configured roles in definition order. The order is
// significant: when one submission lists a user under several roles, the
// earliest role wins.
func (s *RolePolicySet) RoleNames() []string {
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// IsValidRole checks if a given role name is configured.
func (s *RolePolicySet) IsValidRole(name string) bool {
	_, ok := s.actions[name]
	return ok
}

// HasAction reports whether the role's configured action list contains the
// action. What that means for the decision depends on the policy mode.
func (s *RolePolicySet) HasAction(role, action string) bool {
	actions, ok := s.actions[role]
	if !ok {
		return false
	}
	_, ok = actions[action]
	return ok
}
