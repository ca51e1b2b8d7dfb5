package auth

import (
	"net/http"
	"time"
)

// SetSessionCookie writes the session token as an HttpOnly, SameSite=Lax
// cookie that expires with the token. secure is true in production only, so
// the cookie still works over plain http on localhost.
func SetSessionCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionTTL / time.Second),
		Expires:  time.Now().Add(SessionTTL),
	})
}

// ClearSessionCookie overwrites the session cookie with an expired, empty one.
// Attributes must match SetSessionCookie or browsers keep the original.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}
