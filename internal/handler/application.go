package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/sakif/volunteerhub/internal/service"
)

type ApplicationHandler struct {
	svc  *service.ApplicationService
	resp responder
}

func NewApplicationHandler(svc *service.ApplicationService, logger *zap.Logger, production bool) *ApplicationHandler {
	return &ApplicationHandler{svc: svc, resp: newResponder(logger, production)}
}

// HandleSubmit applies to a post.
//
// HTTP: POST /applications
// REQUEST BODY: {"postId": "...", "applicantEmail": "..."}
//
//	201 application | 400 missing field | 404 user or post | 409 already applied
func (h *ApplicationHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var in service.SubmitInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.resp.writeError(w, r, err)
		return
	}

	app, err := h.svc.Submit(r.Context(), actor(r), in)
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

// HandleListByApplicant returns one volunteer's applications, each with its post.
//
// HTTP: GET /applications/applicant/{email}
func (h *ApplicationHandler) HandleListByApplicant(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ListByApplicant(r.Context(), pathParam(r, "email"))
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleListByOrganizer returns the applications made to an organizer's posts.
//
// HTTP: GET /applications/{organizerEmail}
func (h *ApplicationHandler) HandleListByOrganizer(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ListByOrganizer(r.Context(), pathParam(r, "organizerEmail", "ref"))
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

type statusRequest struct {
	Status string `json:"status"`
}

// HandleUpdateStatus sets an application's status and returns the application.
//
// HTTP: PUT /applications/{id}
// REQUEST BODY: {"status": "accepted"}
func (h *ApplicationHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.writeError(w, r, err)
		return
	}

	app, err := h.svc.UpdateStatus(r.Context(), actor(r), pathParam(r, "id", "ref"), req.Status)
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}
