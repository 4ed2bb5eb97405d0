package handler

import (
	"net/http"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/apperr"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
)

// UserHandler serves /admin/users.
type UserHandler struct {
	svc UserService
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(svc UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// List handles GET /admin/users?search=&sort_by=&sort_order=&page=&limit=
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.UserFilter{Search: q.Get("search"), SortBy: q.Get("sort_by"), Desc: true}
	switch q.Get("sort_order") {
	case "", "desc":
	case "asc":
		f.Desc = false
	default:
		writeError(w, r, apperr.Validation("sort_order must be asc or desc"))
		return
	}
	var err error
	if f.Page, err = queryInt(r, "page", 1); err != nil {
		writeError(w, r, err)
		return
	}
	if f.Limit, err = queryInt(r, "limit", 10); err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.svc.List(r.Context(), identity(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
