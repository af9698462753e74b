package auth

import "net/http"

// Cookie names the web layer uses. Only the session token is
// authoritative; username and role cookies exist for display and for
// best-effort audit logging of already-dead sessions.
const (
	CookieSessionID = "session_id"
	CookieUsername  = "username"
	CookieRole      = "role"
)

func SetSessionCookies(w http.ResponseWriter, token, username string, role Role) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieSessionID,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	})
	http.SetCookie(w, &http.Cookie{
		Name:  CookieUsername,
		Value: username,
		Path:  "/",
	})
	http.SetCookie(w, &http.Cookie{
		Name:  CookieRole,
		Value: string(role),
		Path:  "/",
	})
}

func ClearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{CookieSessionID, CookieUsername, CookieRole} {
		http.SetCookie(w, &http.Cookie{
			Name:   name,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		})
	}
}
