package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/swiftel/request-handler/internal/middleware"
)

func (h *handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	notes, err := h.app.Notifications.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	note, err := h.app.Notifications.MarkRead(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}
