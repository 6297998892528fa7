package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/calder-wren/pagepermsbackend/database"
	"github.com/calder-wren/pagepermsbackend/models"
	"github.com/calder-wren/pagepermsbackend/permissions"
	"github.com/calder-wren/pagepermsbackend/repository"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// ActionManagePermissions gates who may view and edit a page's role
// assignments, resolved through the same resolver it configures.
const ActionManagePermissions = "pagepermissions"

// PagePermissionsHandler serves the assignment editor: read the current role
// assignments for a page, accept a full replacement submission. It owns no
// decision logic; gating goes through the resolver and storage through the
// repositories.
type PagePermissionsHandler struct {
	Policy          *permissions.RolePolicySet
	Resolver        *permissions.Resolver
	AssignmentRepo  repository.AssignmentRepository
	ChangeLogRepo   repository.ChangeLogRepository
	UserRepo        repository.UserRepository
	PageRepo        repository.PageRepository
	ReadOnly        *database.ReadOnlyMode
	NamespaceLevels map[int][]string
}

// PagePermissionsState is the editor's view of one page: the configured
// roles, the current username list per role, and whether the caller may edit.
// When Disabled is true the form renders read-only with PermissionErrors as
// the explanation.
type PagePermissionsState struct {
	PageID           uint                 `json:"page_id"`
	Mode             string               `json:"mode"`
	Roles            []string             `json:"roles"`
	Assignments      map[string][]string  `json:"assignments"`
	AllUsernames     []string             `json:"all_usernames"`
	Disabled         bool                 `json:"disabled"`
	PermissionErrors []permissions.Denial `json:"permission_errors,omitempty"`
}

// PagePermissionsUpdatePayload carries one text field per configured role,
// its value a newline- or comma-separated username list. An absent field
// means the role gets no assignments. Fields for unconfigured roles are
// ignored.
type PagePermissionsUpdatePayload struct {
	Assignments map[string]string `json:"assignments"`
}

// GetPagePermissions renders the current assignment state for the page.
func (h *PagePermissionsHandler) GetPagePermissions(w http.ResponseWriter, r *http.Request) {
	page, ok := h.lookupPage(w, r)
	if !ok {
		return
	}
	user, ok := userFromContext(r.Context())
	if !ok {
		WriteAPIError(w, http.StatusInternalServerError, "internal", "User not found in context")
		return
	}

	state, err := h.buildState(page, user, permissions.RigorFull)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "internal", "Failed to load page permissions")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(state)
}

// UpdatePagePermissions accepts a full replacement of the page's assignments.
// The prior set is dropped and the submitted set inserted atomically; there
// is no partial update path.
func (h *PagePermissionsHandler) UpdatePagePermissions(w http.ResponseWriter, r *http.Request) {
	page, ok := h.lookupPage(w, r)
	if !ok {
		return
	}
	user, ok := userFromContext(r.Context())
	if !ok {
		WriteAPIError(w, http.StatusInternalServerError, "internal", "User not found in context")
		return
	}

	denials, err := h.Resolver.PermissionErrors(ActionManagePermissions, user, page, permissions.RigorSecure)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "internal", "Failed to check page permissions")
		return
	}
	if len(denials) > 0 {
		h.writeDisabledState(w, http.StatusForbidden, page, denials)
		return
	}

	// maintenance mode is checked before any write is attempted and shown as
	// its own reason, distinct from role-based denial
	if h.ReadOnly.IsReadOnly() {
		readOnlyDenial := permissions.Denial{
			Code:   permissions.DenialReadOnly,
			Params: []string{h.ReadOnly.Reason()},
		}
		h.writeDisabledState(w, http.StatusServiceUnavailable, page, []permissions.Denial{readOnlyDenial})
		return
	}

	var payload PagePermissionsUpdatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "bad-request", "Invalid request payload")
		return
	}

	sets, err := h.resolveSubmission(payload)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "internal", "Failed to resolve submitted usernames")
		return
	}

	if err := h.AssignmentRepo.ReplaceAssignments(page.ID, user.ID, sets); err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "internal", "Failed to save page permissions")
		return
	}

	// reload from the store so the response reflects what was committed
	state, err := h.buildState(page, user, permissions.RigorFull)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "internal", "Failed to load page permissions")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(state)
}

// GetPagePermissionsLog lists the change journal for a page, newest first.
// Informational for managers; never consulted by the resolver.
func (h *PagePermissionsHandler) GetPagePermissionsLog(w http.ResponseWriter, r *http.Request) {
	page, ok := h.lookupPage(w, r)
	if !ok {
		return
	}
	user, ok := userFromContext(r.Context())
	if !ok {
		WriteAPIError(w, http.StatusInternalServerError, "internal", "User not found in context")
		return
	}

	denials, err := h.Resolver.PermissionErrors(ActionManagePermissions, user, page, permissions.RigorFull)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "internal", "Failed to check page permissions")
		return
	}
	if len(denials) > 0 {
		WriteDenials(w, http.StatusForbidden, denials)
		return
	}

	entries, err := h.ChangeLogRepo.ListByPage(page.ID)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "internal", "Failed to load permission change log")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}

// lookupPage parses the page id, loads the page and applies the namespace
// gate. A namespace with no restriction levels does not support the feature
// at all, which is a page-level error rather than a per-action denial.
func (h *PagePermissionsHandler) lookupPage(w http.ResponseWriter, r *http.Request) (*models.Page, bool) {
	pageID, err := strconv.ParseUint(chi.URLParam(r, "pageID"), 10, 32)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "bad-request", "Invalid page ID")
		return nil, false
	}

	page, err := h.PageRepo.GetByID(uint(pageID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not-found", "Page not found")
			return nil, false
		}
		WriteAPIError(w, http.StatusInternalServerError, "internal", "Failed to load page")
		return nil, false
	}

	if !h.namespaceSupportsOverrides(page.Namespace) {
		WriteAPIError(w, http.StatusBadRequest, "namespace-unprotectable", "Pages in this namespace cannot have permission overrides")
		return nil, false
	}
	return page, true
}

// namespaceSupportsOverrides mirrors the restriction-level convention: a
// namespace configured with an empty level list (or a lone empty string)
// opts out of the feature. Unconfigured namespaces support it.
func (h *PagePermissionsHandler) namespaceSupportsOverrides(namespace int) bool {
	levels, configured := h.NamespaceLevels[namespace]
	if !configured {
		return true
	}
	for _, level := range levels {
		if level != "" {
			return true
		}
	}
	return false
}

func (h *PagePermissionsHandler) buildState(page *models.Page, user *models.User, rigor permissions.Rigor) (*PagePermissionsState, error) {
	denials, err := h.Resolver.PermissionErrors(ActionManagePermissions, user, page, rigor)
	if err != nil {
		return nil, err
	}
	if h.ReadOnly.IsReadOnly() {
		denials = append(denials, permissions.Denial{
			Code:   permissions.DenialReadOnly,
			Params: []string{h.ReadOnly.Reason()},
		})
	}

	assignments, err := h.AssignmentRepo.ListByPage(page.ID)
	if err != nil {
		return nil, err
	}
	userIDs := make([]uint, 0, len(assignments))
	for _, assignment := range assignments {
		userIDs = append(userIDs, assignment.UserID)
	}
	users, err := h.UserRepo.GetByIDs(userIDs)
	if err != nil {
		return nil, err
	}
	usernameByID := make(map[uint]string, len(users))
	for _, u := range users {
		usernameByID[u.ID] = u.Username
	}

	roleUsernames := make(map[string][]string, len(h.Policy.RoleNames()))
	for _, role := range h.Policy.RoleNames() {
		roleUsernames[role] = []string{}
	}
	for _, assignment := range assignments {
		name, known := usernameByID[assignment.UserID]
		if !known {
			continue
		}
		roleUsernames[assignment.Role] = append(roleUsernames[assignment.Role], name)
	}

	allUsernames, err := h.UserRepo.ListUsernames()
	if err != nil {
		return nil, err
	}

	return &PagePermissionsState{
		PageID:           page.ID,
		Mode:             string(h.Policy.Mode()),
		Roles:            h.Policy.RoleNames(),
		Assignments:      roleUsernames,
		AllUsernames:     allUsernames,
		Disabled:         len(denials) > 0,
		PermissionErrors: denials,
	}, nil
}

func (h *PagePermissionsHandler) writeDisabledState(w http.ResponseWriter, httpStatus int, page *models.Page, denials []permissions.Denial) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(&PagePermissionsState{
		PageID:           page.ID,
		Mode:             string(h.Policy.Mode()),
		Roles:            h.Policy.RoleNames(),
		Assignments:      map[string][]string{},
		AllUsernames:     []string{},
		Disabled:         true,
		PermissionErrors: denials,
	})
}

// resolveSubmission turns the per-role username fields into ordered
// assignment sets. Unknown usernames are silently dropped; only configured
// roles are read, in configured order, so a user listed under two roles
// lands in the earlier one.
func (h *PagePermissionsHandler) resolveSubmission(payload PagePermissionsUpdatePayload) ([]repository.RoleAssignmentSet, error) {
	sets := make([]repository.RoleAssignmentSet, 0, len(h.Policy.RoleNames()))
	for _, role := range h.Policy.RoleNames() {
		names := splitUsernames(payload.Assignments[role])
		users, err := h.UserRepo.GetByUsernames(names)
		if err != nil {
			return nil, err
		}
		ids := make([]uint, 0, len(users))
		for _, u := range users {
			ids = append(ids, u.ID)
		}
		sets = append(sets, repository.RoleAssignmentSet{Role: role, UserIDs: ids})
	}
	return sets, nil
}

// splitUsernames accepts newline- or comma-separated lists, which are the two
// wire formats the form widget produces depending on deployment variant.
func splitUsernames(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ','
	})
	names := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		name := strings.TrimSpace(field)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
