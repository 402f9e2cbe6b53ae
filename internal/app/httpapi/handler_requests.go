package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/swiftel/request-handler/internal/app/domain/decision"
	"github.com/swiftel/request-handler/internal/app/domain/request"
	"github.com/swiftel/request-handler/internal/app/domain/user"
	"github.com/swiftel/request-handler/internal/app/services/workflow"
	apperrors "github.com/swiftel/request-handler/internal/errors"
	"github.com/swiftel/request-handler/internal/middleware"
)

type requestPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Amount      *float64 `json:"amount"`
}

func (h *handler) createRequest(w http.ResponseWriter, r *http.Request) {
	var payload requestPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, err)
		return
	}

	created, err := h.app.Workflow.CreateRequest(r.Context(), workflow.CreateRequestInput{
		OwnerID:     middleware.GetUserID(r.Context()),
		Title:       payload.Title,
		Description: payload.Description,
		Kind:        request.Kind(payload.Type),
		Amount:      payload.Amount,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// requestWithDecisions is the review listing shape: the request plus the
// votes recorded so far.
type requestWithDecisions struct {
	request.Request
	Decisions []decision.Decision `json:"decisions"`
}

func (h *handler) listRequests(w http.ResponseWriter, r *http.Request) {
	role := middleware.GetRole(r.Context())
	if role != user.RoleAdmin && role != user.RoleBoardMember {
		writeError(w, apperrors.Unauthorized("insufficient role"))
		return
	}

	reqs, err := h.app.Workflow.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]requestWithDecisions, 0, len(reqs))
	for _, req := range reqs {
		decs, err := h.app.Workflow.ListDecisions(r.Context(), req.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, requestWithDecisions{Request: req, Decisions: decs})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) listMyRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.app.Workflow.ListByOwner(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (h *handler) getRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.app.Workflow.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	role := middleware.GetRole(r.Context())
	if req.OwnerID != middleware.GetUserID(r.Context()) && role != user.RoleAdmin && role != user.RoleBoardMember {
		writeError(w, apperrors.Unauthorized("insufficient role"))
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *handler) updateRequest(w http.ResponseWriter, r *http.Request) {
	var payload requestPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.app.Workflow.UpdateRequest(r.Context(), mux.Vars(r)["id"], middleware.GetUserID(r.Context()), workflow.UpdateRequestInput{
		Title:       payload.Title,
		Description: payload.Description,
		Kind:        request.Kind(payload.Type),
		Amount:      payload.Amount,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type decisionPayload struct {
	Vote          string `json:"vote"`
	BoardMemberID string `json:"board_member_id"`
}

// submitDecision records a vote. Board members vote for themselves; admins
// vote on behalf of a board member, or under their own id when no target is
// named, and either way bypass the finalized-request guard.
func (h *handler) submitDecision(w http.ResponseWriter, r *http.Request) {
	var payload decisionPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, err)
		return
	}

	var (
		voterID  string
		override bool
	)
	switch middleware.GetRole(r.Context()) {
	case user.RoleBoardMember:
		voterID = middleware.GetUserID(r.Context())
	case user.RoleAdmin:
		voterID = payload.BoardMemberID
		if voterID == "" {
			voterID = middleware.GetUserID(r.Context())
		}
		override = true
	default:
		writeError(w, apperrors.Unauthorized("insufficient role"))
		return
	}

	updated, err := h.app.Workflow.SubmitDecision(r.Context(), mux.Vars(r)["id"], voterID, decision.Vote(payload.Vote), override)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) dashboardStats(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	if role := middleware.GetRole(r.Context()); role == user.RoleAdmin || role == user.RoleBoardMember {
		ownerID = "" // global view
	}

	stats, err := h.app.Workflow.StatsFor(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
