package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/calder-wren/pagepermsbackend/models"
	"github.com/calder-wren/pagepermsbackend/permissions"
	"github.com/calder-wren/pagepermsbackend/repository"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// PageHandler owns page identity CRUD and the lifecycle hook that purges a
// deleted page's role assignments.
type PageHandler struct {
	PageRepo       repository.PageRepository
	AssignmentRepo repository.AssignmentRepository
	Resolver       *permissions.Resolver
}

type PageCreatePayload struct {
	Namespace int    `json:"namespace"`
	Title     string `json:"title"`
}

func (h *PageHandler) CreatePage(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		WriteAPIError(w, http.StatusInternalServerError, "internal", "User not found in context")
		return
	}

	var payload PageCreatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "bad-request", "Invalid request payload")
		return
	}
	if payload.Title == "" {
		WriteAPIError(w, http.StatusBadRequest, "bad-request", "Title is required")
		return
	}

	// a page that does not exist yet can carry no override rows, so this
	// resolves straight through to the baseline engine
	page := models.Page{Namespace: payload.Namespace, Title: payload.Title}
	allowed, err := h.Resolver.CanPerform("createpage", user, &page, permissions.RigorSecure)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "internal", "Failed to check page permissions")
		return
	}
	if !allowed {
		denials, err := h.Resolver.PermissionErrors("createpage", user, &page, permissions.RigorSecure)
		if err != nil {
			WriteAPIError(w, http.StatusInternalServerError, "internal", "Failed to check page permissions")
			return
		}
		WriteDenials(w, http.StatusForbidden, denials)
		return
	}

	if err := h.PageRepo.Create(&page); err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "internal", "Failed to create page")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(page)
}

func (h *PageHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	page, ok := h.pageFromURL(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(page)
}

// DeletePage removes the page and then purges its role assignments, the
// equivalent of the platform's article-delete-complete hook. The purge is
// idempotent, so a page without assignments deletes cleanly.
func (h *PageHandler) DeletePage(w http.ResponseWriter, r *http.Request) {
	page, ok := h.pageFromURL(w, r)
	if !ok {
		return
	}
	user, ok := userFromContext(r.Context())
	if !ok {
		WriteAPIError(w, http.StatusInternalServerError, "internal", "User not found in context")
		return
	}

	allowed, err := h.Resolver.CanPerform("delete", user, page, permissions.RigorSecure)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "internal", "Failed to check page permissions")
		return
	}
	if !allowed {
		denials, err := h.Resolver.PermissionErrors("delete", user, page, permissions.RigorSecure)
		if err != nil {
			WriteAPIError(w, http.StatusInternalServerError, "internal", "Failed to check page permissions")
			return
		}
		WriteDenials(w, http.StatusForbidden, denials)
		return
	}

	if err := h.PageRepo.Delete(page.ID); err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "internal", "Failed to delete page")
		return
	}
	if err := h.AssignmentRepo.DeleteAllForPage(page.ID); err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "internal", "Failed to delete page permissions")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PageHandler) pageFromURL(w http.ResponseWriter, r *http.Request) (*models.Page, bool) {
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
	return page, true
}
