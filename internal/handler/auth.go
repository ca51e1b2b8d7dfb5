package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/sakif/volunteerhub/internal/auth"
	"github.com/sakif/volunteerhub/internal/service"
)

// AuthHandler mints and clears the session cookie.
//
//   - HandleIssue   → POST /jwt: identity in, HttpOnly "token" cookie out
//   - HandleSignOut → POST /signout: expire the cookie
//
// The cookie is Secure only in production so local development over plain
// http keeps working.
type AuthHandler struct {
	svc          *service.AuthService
	secureCookie bool
	resp         responder
}

func NewAuthHandler(svc *service.AuthService, logger *zap.Logger, production bool) *AuthHandler {
	return &AuthHandler{
		svc:          svc,
		secureCookie: production,
		resp:         newResponder(logger, production),
	}
}

// HandleIssue signs a session token and sets it as the session cookie.
//
// HTTP: POST /jwt
// REQUEST BODY: {"email": "a@x.com", "name": "A"}
// RESPONSE: {"success": true} plus Set-Cookie: token=...; HttpOnly; SameSite=Lax; Max-Age=604800
func (h *AuthHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	var id auth.Identity
	if err := decodeJSON(w, r, &id); err != nil {
		h.resp.writeError(w, r, err)
		return
	}

	token, err := h.svc.IssueSession(r.Context(), id)
	if err != nil {
		h.resp.writeError(w, r, err)
		return
	}

	auth.SetSessionCookie(w, token, h.secureCookie)
	writeJSON(w, http.StatusOK, MessageResponse{Success: true})
}

// HandleSignOut expires the session cookie.
//
// HTTP: POST /signout
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, _ *http.Request) {
	auth.ClearSessionCookie(w, h.secureCookie)
	writeJSON(w, http.StatusOK, MessageResponse{Success: true})
}
