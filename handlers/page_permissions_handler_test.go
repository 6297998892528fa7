package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/calder-wren/pagepermsbackend/database"
	"github.com/calder-wren/pagepermsbackend/models"
	"github.com/calder-wren/pagepermsbackend/permissions"
	"github.com/calder-wren/pagepermsbackend/repository"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testPolicyJSON = `{
	"mode": "grant",
	"roles": [
		{"name": "manager", "actions": ["read", "edit", "pagepermissions"]},
		{"name": "editor", "actions": ["read", "edit"]},
		{"name": "reader", "actions": ["read"]}
	]
}`

type testEnv struct {
	db             *gorm.DB
	router         *chi.Mux
	resolver       *permissions.Resolver
	assignmentRepo repository.AssignmentRepository
	lockPath       string
	users          map[string]*models.User
	pages          map[string]*models.Page
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	db, err := database.InitGormDB(filepath.Join(dir, "test.db") + "?_busy_timeout=5000")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db))

	sysops := &models.Group{Name: "sysops", Permissions: []string{"read", "edit", "delete", "createpage", "pagepermissions"}}
	editors := &models.Group{Name: "users", Permissions: []string{"read", "edit"}}
	require.NoError(t, db.Create(sysops).Error)
	require.NoError(t, db.Create(editors).Error)

	users := map[string]*models.User{}
	for name, group := range map[string]*models.Group{"admin": sysops, "alice": editors, "bob": editors} {
		user := &models.User{Username: name, PasswordHash: "x", Groups: []*models.Group{group}}
		require.NoError(t, db.Create(user).Error)
		users[name] = user
	}

	pages := map[string]*models.Page{
		"main":    {Namespace: 0, Title: "Main Page"},
		"special": {Namespace: 5, Title: "Locked Namespace Page"},
	}
	for _, page := range pages {
		require.NoError(t, db.Create(page).Error)
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)

	policy, err := permissions.ParseRolePolicySet([]byte(testPolicyJSON))
	require.NoError(t, err)

	resolver := permissions.NewResolver(policy, database.NewAssignmentReader(sqlDB), permissions.NewGroupOracle(), zerolog.Nop())

	userRepo := repository.NewGormUserRepository(db)
	pageRepo := repository.NewGormPageRepository(db)
	assignmentRepo := repository.NewGormAssignmentRepository(db)

	lockPath := filepath.Join(dir, "readonly.lock")
	permissionsHandler := &PagePermissionsHandler{
		Policy:          policy,
		Resolver:        resolver,
		AssignmentRepo:  assignmentRepo,
		ChangeLogRepo:   repository.NewGormChangeLogRepository(db),
		UserRepo:        userRepo,
		PageRepo:        pageRepo,
		ReadOnly:        database.NewReadOnlyMode(lockPath),
		NamespaceLevels: map[int][]string{5: {""}},
	}
	pageHandler := &PageHandler{
		PageRepo:       pageRepo,
		AssignmentRepo: assignmentRepo,
		Resolver:       resolver,
	}

	router := chi.NewRouter()
	router.Route("/api/pages", func(r chi.Router) {
		r.Post("/", pageHandler.CreatePage)
		r.Route("/{pageID}", func(r chi.Router) {
			r.Get("/", pageHandler.GetPage)
			r.Delete("/", pageHandler.DeletePage)
			r.Get("/permissions", permissionsHandler.GetPagePermissions)
			r.Put("/permissions", permissionsHandler.UpdatePagePermissions)
			r.Get("/permissions/log", permissionsHandler.GetPagePermissionsLog)
		})
	})

	return &testEnv{
		db:             db,
		router:         router,
		resolver:       resolver,
		assignmentRepo: assignmentRepo,
		lockPath:       lockPath,
		users:          users,
		pages:          pages,
	}
}

// request dispatches as the given user, standing in for the bearer-token
// middleware the real server mounts.
func (env *testEnv) request(t *testing.T, username, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	user := env.users[username]
	require.NotNil(t, user, "unknown test user %s", username)
	// reload with groups, as AuthMiddleware would
	loaded, err := repository.NewGormUserRepository(env.db).GetByID(user.ID)
	require.NoError(t, err)
	req = req.WithContext(context.WithValue(req.Context(), UserContextKey, loaded))

	recorder := httptest.NewRecorder()
	env.router.ServeHTTP(recorder, req)
	return recorder
}

func decodeState(t *testing.T, recorder *httptest.ResponseRecorder) PagePermissionsState {
	t.Helper()
	var state PagePermissionsState
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&state))
	return state
}

func permissionsPath(page *models.Page) string {
	return fmt.Sprintf("/api/pages/%d/permissions", page.ID)
}

func TestGetPagePermissionsInitialState(t *testing.T) {
	env := newTestEnv(t)
	page := env.pages["main"]

	recorder := env.request(t, "admin", http.MethodGet, permissionsPath(page), nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	state := decodeState(t, recorder)
	assert.Equal(t, page.ID, state.PageID)
	assert.Equal(t, "grant", state.Mode)
	assert.Equal(t, []string{"manager", "editor", "reader"}, state.Roles)
	assert.False(t, state.Disabled)
	assert.Empty(t, state.PermissionErrors)
	for _, role := range state.Roles {
		assert.Empty(t, state.Assignments[role])
	}
	assert.Contains(t, state.AllUsernames, "alice")
	assert.Contains(t, state.AllUsernames, "bob")
}

func TestUpdatePagePermissionsRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	page := env.pages["main"]

	recorder := env.request(t, "admin", http.MethodPut, permissionsPath(page), PagePermissionsUpdatePayload{
		Assignments: map[string]string{
			"editor": "alice\nbob",
			"reader": "admin",
		},
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	state := decodeState(t, recorder)
	assert.ElementsMatch(t, []string{"alice", "bob"}, state.Assignments["editor"])
	assert.Equal(t, []string{"admin"}, state.Assignments["reader"])
	assert.Empty(t, state.Assignments["manager"])

	// the grant is exclusive: admin's sysop group would allow delete, but the
	// page-level reader role now decides for admin on this page
	allowed, err := env.resolver.CanPerform("delete", env.users["admin"], page, permissions.RigorSecure)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = env.resolver.CanPerform("edit", loadedUser(t, env, "alice"), page, permissions.RigorSecure)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func loadedUser(t *testing.T, env *testEnv, name string) *models.User {
	t.Helper()
	user, err := repository.NewGormUserRepository(env.db).GetByID(env.users[name].ID)
	require.NoError(t, err)
	return user
}

func TestUpdatePagePermissionsDropsUnknownUsernames(t *testing.T) {
	env := newTestEnv(t)
	page := env.pages["main"]

	recorder := env.request(t, "admin", http.MethodPut, permissionsPath(page), PagePermissionsUpdatePayload{
		Assignments: map[string]string{"editor": "alice, zeta, bob"},
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	state := decodeState(t, recorder)
	assert.ElementsMatch(t, []string{"alice", "bob"}, state.Assignments["editor"])
}

func TestUpdatePagePermissionsFirstRoleWinsAcrossRoles(t *testing.T) {
	env := newTestEnv(t)
	page := env.pages["main"]

	recorder := env.request(t, "admin", http.MethodPut, permissionsPath(page), PagePermissionsUpdatePayload{
		Assignments: map[string]string{
			"manager": "alice",
			"editor":  "alice",
		},
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	state := decodeState(t, recorder)
	assert.Equal(t, []string{"alice"}, state.Assignments["manager"])
	assert.Empty(t, state.Assignments["editor"])
}

func TestUpdatePagePermissionsDeniedForNonManager(t *testing.T) {
	env := newTestEnv(t)
	page := env.pages["main"]

	recorder := env.request(t, "alice", http.MethodPut, permissionsPath(page), PagePermissionsUpdatePayload{
		Assignments: map[string]string{"editor": "bob"},
	})
	require.Equal(t, http.StatusForbidden, recorder.Code)

	state := decodeState(t, recorder)
	assert.True(t, state.Disabled)
	require.NotEmpty(t, state.PermissionErrors)
	assert.Equal(t, permissions.DenialGroupRights, state.PermissionErrors[0].Code)

	// nothing was written
	editors, err := env.assignmentRepo.ListAssignments(page.ID, "editor")
	require.NoError(t, err)
	assert.Empty(t, editors)
}

func TestGetPagePermissionsDisabledForNonManager(t *testing.T) {
	env := newTestEnv(t)
	page := env.pages["main"]

	recorder := env.request(t, "alice", http.MethodGet, permissionsPath(page), nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	state := decodeState(t, recorder)
	assert.True(t, state.Disabled, "non-managers still see the form, read-only")
	assert.NotEmpty(t, state.PermissionErrors)
}

func TestUpdatePagePermissionsBlockedInReadOnlyMode(t *testing.T) {
	env := newTestEnv(t)
	page := env.pages["main"]
	require.NoError(t, os.WriteFile(env.lockPath, []byte("upgrading storage"), 0o644))

	recorder := env.request(t, "admin", http.MethodPut, permissionsPath(page), PagePermissionsUpdatePayload{
		Assignments: map[string]string{"editor": "alice"},
	})
	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)

	state := decodeState(t, recorder)
	assert.True(t, state.Disabled)
	require.Len(t, state.PermissionErrors, 1)
	assert.Equal(t, permissions.DenialReadOnly, state.PermissionErrors[0].Code)
	assert.Equal(t, []string{"upgrading storage"}, state.PermissionErrors[0].Params)

	require.NoError(t, os.Remove(env.lockPath))
	recorder = env.request(t, "admin", http.MethodPut, permissionsPath(page), PagePermissionsUpdatePayload{
		Assignments: map[string]string{"editor": "alice"},
	})
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestPagePermissionsRejectedForUnprotectableNamespace(t *testing.T) {
	env := newTestEnv(t)
	page := env.pages["special"]

	recorder := env.request(t, "admin", http.MethodGet, permissionsPath(page), nil)
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	var resp APIErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "namespace-unprotectable", resp.Errors[0].Code)
}

func TestGetPagePermissionsUnknownPage(t *testing.T) {
	env := newTestEnv(t)

	recorder := env.request(t, "admin", http.MethodGet, "/api/pages/999999/permissions", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestDeletePagePurgesAssignments(t *testing.T) {
	env := newTestEnv(t)
	page := env.pages["main"]

	recorder := env.request(t, "admin", http.MethodPut, permissionsPath(page), PagePermissionsUpdatePayload{
		Assignments: map[string]string{"editor": "alice", "reader": "bob"},
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = env.request(t, "admin", http.MethodDelete, fmt.Sprintf("/api/pages/%d", page.ID), nil)
	require.Equal(t, http.StatusNoContent, recorder.Code)

	for _, role := range []string{"manager", "editor", "reader"} {
		ids, err := env.assignmentRepo.ListAssignments(page.ID, role)
		require.NoError(t, err)
		assert.Empty(t, ids, "role %s should be empty after page deletion", role)
	}
}

func TestGetPagePermissionsLog(t *testing.T) {
	env := newTestEnv(t)
	page := env.pages["main"]

	recorder := env.request(t, "admin", http.MethodPut, permissionsPath(page), PagePermissionsUpdatePayload{
		Assignments: map[string]string{"editor": "alice"},
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = env.request(t, "admin", http.MethodGet, permissionsPath(page)+"/log", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var entries []models.PermissionChangeLog
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.EqualValues(t, env.users["admin"].ID, entries[0].ActorID)

	// the journal is manager-only
	recorder = env.request(t, "alice", http.MethodGet, permissionsPath(page)+"/log", nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestDeletePageDeniedWithoutPermission(t *testing.T) {
	env := newTestEnv(t)
	page := env.pages["main"]

	recorder := env.request(t, "alice", http.MethodDelete, fmt.Sprintf("/api/pages/%d", page.ID), nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}
