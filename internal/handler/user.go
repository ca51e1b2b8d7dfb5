package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/sakif/volunteerhub/internal/model"
	"github.com/sakif/volunteerhub/internal/service"
)

type UserHandler struct {
	svc  *service.UserService
	resp responder
}

func NewUserHandler(svc *service.UserService, logger *zap.Logger, production bool) *UserHandler {
	return &UserHandler{svc: svc, resp: newResponder(logger, production)}
}

// ExistingUserResponse is returned with 200 when the email is already registered.
type ExistingUserResponse struct {
	Message string      `json:"message"`
	User    *model.User `json:"user"`
}

// HandleSignUp creates the user on first sign-in.
//
// HTTP: POST /users
// REQUEST BODY: {"displayName": "A", "email": "a@x.com", "photoURL": "..."}
//
//	201 + user                                   → created
//	200 + {"message":"User already exists",...}  → email already registered
func (h *UserHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var in service.SignUpInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.resp.writeError(w, r, err)
		return
	}

	user, created, err := h.svc.SignUp(r.Context(), in)
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	if !created {
		writeJSON(w, http.StatusOK, ExistingUserResponse{Message: "User already exists", User: user})
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// HandleGet returns a user by email.
//
// HTTP: GET /users/{email}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.GetByEmail(r.Context(), pathParam(r, "email"))
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
