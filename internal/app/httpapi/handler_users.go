package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/swiftel/request-handler/internal/app/domain/user"
	apperrors "github.com/swiftel/request-handler/internal/errors"
	"github.com/swiftel/request-handler/internal/middleware"
)

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	if middleware.GetRole(r.Context()) != user.RoleAdmin {
		writeError(w, apperrors.Unauthorized("insufficient role"))
		return
	}

	list, err := h.app.Users.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type updateUserPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *handler) updateUser(w http.ResponseWriter, r *http.Request) {
	if middleware.GetRole(r.Context()) != user.RoleAdmin {
		writeError(w, apperrors.Unauthorized("insufficient role"))
		return
	}

	var payload updateUserPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.app.Users.UpdateByAdmin(r.Context(), mux.Vars(r)["id"], payload.Name, payload.Email, user.Role(payload.Role))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) listRoles(w http.ResponseWriter, r *http.Request) {
	if middleware.GetRole(r.Context()) != user.RoleAdmin {
		writeError(w, apperrors.Unauthorized("insufficient role"))
		return
	}
	writeJSON(w, http.StatusOK, h.app.Users.Roles())
}
