// Package httpapi exposes the REST surface over the application services.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	app "github.com/swiftel/request-handler/internal/app"
	"github.com/swiftel/request-handler/internal/app/metrics"
	apperrors "github.com/swiftel/request-handler/internal/errors"
)

const maxBodyBytes = 1 << 20

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a router exposing the core REST API. Authentication and
// rate limiting wrap the router at the server level; handlers only enforce
// role policy.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}
	r := mux.NewRouter()

	r.HandleFunc("/auth/register", h.register).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)

	r.HandleFunc("/requests", h.createRequest).Methods(http.MethodPost)
	r.HandleFunc("/requests", h.listRequests).Methods(http.MethodGet)
	r.HandleFunc("/requests/mine", h.listMyRequests).Methods(http.MethodGet)
	r.HandleFunc("/requests/{id}", h.getRequest).Methods(http.MethodGet)
	r.HandleFunc("/requests/{id}", h.updateRequest).Methods(http.MethodPut)
	r.HandleFunc("/requests/{id}/decisions", h.submitDecision).Methods(http.MethodPost)
	r.HandleFunc("/dashboard/stats", h.dashboardStats).Methods(http.MethodGet)

	r.HandleFunc("/notifications", h.listNotifications).Methods(http.MethodGet)
	r.HandleFunc("/notifications/{id}/read", h.markNotificationRead).Methods(http.MethodPut)

	r.HandleFunc("/users", h.listUsers).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}", h.updateUser).Methods(http.MethodPut)
	r.HandleFunc("/roles", h.listRoles).Methods(http.MethodGet)

	r.Handle("/ws", application.Hub).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func decodeJSON(body io.Reader, out interface{}) error {
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return apperrors.BadRequest("invalid request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps service errors to responses without leaking internals.
func writeError(w http.ResponseWriter, err error) {
	serviceErr := apperrors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = apperrors.Internal("internal error", err)
	}
	writeJSON(w, serviceErr.HTTPStatus, map[string]interface{}{
		"code":    serviceErr.Code,
		"message": serviceErr.Message,
		"details": serviceErr.Details,
	})
}
