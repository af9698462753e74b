package internal

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/sbasrik/gatehouse/internal/audit"
	"github.com/sbasrik/gatehouse/internal/auth"
	"github.com/sbasrik/gatehouse/internal/avatars"
	"github.com/sbasrik/gatehouse/internal/instrumentation"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templatesFS embed.FS

const maxAvatarUploadSize = 10 << 20 // 10 MiB

// genericLoginError is shown for both unknown usernames and wrong
// passwords, so the login form cannot be used to enumerate accounts.
// The audit log still keeps the two apart.
const genericLoginError = "wrong username or password"

type WebHandler struct {
	authService *auth.Service
	registry    auth.Registry
	avatarStore *avatars.Store
	auditLog    audit.Log
	instr       *instrumentation.Instrumentation
	templates   *template.Template
}

func NewWebHandler(
	authService *auth.Service,
	registry auth.Registry,
	avatarStore *avatars.Store,
	auditLog audit.Log,
	instr *instrumentation.Instrumentation,
) *WebHandler {
	return &WebHandler{
		authService: authService,
		registry:    registry,
		avatarStore: avatarStore,
		auditLog:    auditLog,
		instr:       instr,
		templates:   template.Must(template.ParseFS(templatesFS, "templates/*.html")),
	}
}

func (h *WebHandler) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/", h.handleLoginPage).Methods("GET").Name("root")
	r.HandleFunc("/login", h.handleLoginPage).Methods("GET").Name("login-page")
	r.HandleFunc("/login", h.handleLogin).Methods("POST").Name("login")
	r.HandleFunc("/logout", h.handleLogout).Methods("GET").Name("logout")
	r.HandleFunc("/register", h.handleRegisterPage).Methods("GET").Name("register-page")
	r.HandleFunc("/register", h.handleRegister).Methods("POST").Name("register")
	r.HandleFunc("/welcome/{username}", h.handleWelcome).Methods("GET").Name("welcome")
	r.HandleFunc("/main/{username}", h.handleMain).Methods("GET").Name("main")

	// everything else, still behind the access gate
	r.PathPrefix("/").HandlerFunc(h.handleNotFound).Name("unknown")
}

type loginPageData struct {
	Error string
	Next  string
}

type registerPageData struct {
	Error string
}

type profilePageData struct {
	Username string
	Avatar   string
	Role     string
}

func (h *WebHandler) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		log.Errorf("render template %s: %s", name, err)
	}
}

func (h *WebHandler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get("next")
	h.auditLog.Record(audit.Entry{
		Level: audit.LevelInfo,
		Event: "login page opened",
	})
	h.render(w, http.StatusOK, "login.html", loginPageData{Next: next})
}

func (h *WebHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		log.Errorf("login failed, parse form error: %s", err)
		h.recordValidationError(r, err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	username := strings.TrimSpace(r.Form.Get("username"))
	password := strings.TrimSpace(r.Form.Get("password"))
	next := r.Form.Get("next")

	if username == "" || password == "" {
		h.recordValidationError(r, errors.New("username or password empty"))
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	token, user, err := h.authService.Login(username, password)
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		h.instr.CounterFailedLogins.Inc()
		h.auditLog.Record(audit.Entry{
			Level:    audit.LevelWarning,
			Event:    "wrong username",
			Username: username,
		})
		h.render(w, http.StatusOK, "login.html", loginPageData{Error: genericLoginError, Next: next})
		return
	case errors.Is(err, auth.ErrWrongPassword):
		h.instr.CounterFailedLogins.Inc()
		h.auditLog.Record(audit.Entry{
			Level:    audit.LevelWarning,
			Event:    "wrong password",
			Username: username,
		})
		h.render(w, http.StatusOK, "login.html", loginPageData{Error: genericLoginError, Next: next})
		return
	case err != nil:
		log.Errorf("login for %s: %s", username, err)
		h.auditLog.Record(audit.Entry{
			Level:    audit.LevelError,
			Event:    "user registry failure",
			Username: username,
			Extra:    fmt.Sprintf("err=%s", err),
		})
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.instr.CounterLogins.Inc()
	h.instr.GaugeActiveSessions.Set(float64(h.authService.Store().Len()))
	h.auditLog.Record(audit.Entry{
		Level:     audit.LevelInfo,
		Event:     "login success",
		Username:  username,
		SessionID: token,
		Extra:     fmt.Sprintf("role=%s", user.Role),
	})

	if next == "register" {
		if user.Role != auth.RoleAdmin {
			// a privileged destination was requested; reject instead
			// of silently downgrading it
			h.authService.Logout(token)
			h.instr.GaugeActiveSessions.Set(float64(h.authService.Store().Len()))
			h.renderForbidden(w, r, username, token, string(user.Role))
			return
		}
		auth.SetSessionCookies(w, token, username, user.Role)
		http.Redirect(w, r, "/register", http.StatusFound)
		return
	}

	auth.SetSessionCookies(w, token, username, user.Role)
	http.Redirect(w, r, "/welcome/"+username, http.StatusFound)
}

func (h *WebHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := cookieValue(r, auth.CookieSessionID)
	username := cookieValue(r, auth.CookieUsername)
	role := cookieValue(r, auth.CookieRole)

	if token != "" && h.authService.Logout(token) {
		h.instr.GaugeActiveSessions.Set(float64(h.authService.Store().Len()))
		h.auditLog.Record(audit.Entry{
			Level:     audit.LevelInfo,
			Event:     "logout",
			Username:  username,
			SessionID: token,
			Extra:     fmt.Sprintf("role=%s", orDash(role)),
		})
	}

	auth.ClearSessionCookies(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *WebHandler) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok || session.Role != auth.RoleAdmin {
		h.renderForbidden(w, r, session.Username, session.Token, string(session.Role))
		return
	}

	h.auditLog.Record(audit.Entry{
		Level:     audit.LevelInfo,
		Event:     "register form opened",
		Username:  session.Username,
		SessionID: session.Token,
		Extra:     fmt.Sprintf("role=%s", session.Role),
	})
	h.render(w, http.StatusOK, "register.html", registerPageData{})
}

func (h *WebHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxAvatarUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		log.Errorf("register failed, parse form error: %s", err)
		h.recordValidationError(r, err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	username := strings.TrimSpace(r.Form.Get("username"))
	password := strings.TrimSpace(r.Form.Get("password"))
	operatorLogin := r.Form.Get("admin_login")
	operatorSecret := r.Form.Get("admin_password")

	if username == "" || password == "" {
		h.recordValidationError(r, errors.New("username or password empty"))
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if !h.authService.VerifyOperator(operatorLogin, operatorSecret) {
		// the submitted secret stays out of logs, matched or not
		h.auditLog.Record(audit.Entry{
			Level:    audit.LevelWarning,
			Event:    "wrong operator credentials",
			Username: operatorLogin,
		})
		h.render(w, http.StatusForbidden, "register.html", registerPageData{
			Error: "wrong operator credentials",
		})
		return
	}

	avatarPath := ""
	if file, header, err := r.FormFile("avatar"); err == nil {
		defer func() {
			if err := file.Close(); err != nil {
				log.Warnf("close avatar upload: %s", err)
			}
		}()
		avatarPath, err = h.avatarStore.Save(username, header.Filename, file)
		if err != nil {
			log.Errorf("save avatar for %s: %s", username, err)
			h.auditLog.Record(audit.Entry{
				Level:    audit.LevelError,
				Event:    "avatar store failure",
				Username: username,
				Extra:    fmt.Sprintf("err=%s", err),
			})
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
	} else if !errors.Is(err, http.ErrMissingFile) {
		log.Warnf("read avatar upload for %s: %s", username, err)
	}

	token, user, err := h.authService.Register(username, password, avatarPath)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		h.auditLog.Record(audit.Entry{
			Level:    audit.LevelWarning,
			Event:    "repeated registration attempt",
			Username: username,
		})
		h.render(w, http.StatusConflict, "register.html", registerPageData{
			Error: "user already exists",
		})
		return
	case err != nil:
		log.Errorf("register %s: %s", username, err)
		h.auditLog.Record(audit.Entry{
			Level:    audit.LevelError,
			Event:    "user registry failure",
			Username: username,
			Extra:    fmt.Sprintf("err=%s", err),
		})
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.instr.CounterRegistrations.Inc()
	h.instr.GaugeActiveSessions.Set(float64(h.authService.Store().Len()))
	h.auditLog.Record(audit.Entry{
		Level:    audit.LevelInfo,
		Event:    "new user registered",
		Username: username,
		Extra:    fmt.Sprintf("role=%s", user.Role),
	})

	// auto-login for the freshly registered account
	auth.SetSessionCookies(w, token, username, user.Role)
	http.Redirect(w, r, "/welcome/"+username, http.StatusFound)
}

func (h *WebHandler) handleWelcome(w http.ResponseWriter, r *http.Request) {
	h.handleProfilePage(w, r, "welcome.html", "welcome page opened")
}

func (h *WebHandler) handleMain(w http.ResponseWriter, r *http.Request) {
	h.handleProfilePage(w, r, "main.html", "main page opened")
}

func (h *WebHandler) handleProfilePage(w http.ResponseWriter, r *http.Request, templateName, auditEvent string) {
	username := mux.Vars(r)["username"]

	user, err := h.registry.Lookup(username)
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		h.handleNotFound(w, r)
		return
	case err != nil:
		log.Errorf("lookup %s: %s", username, err)
		h.auditLog.Record(audit.Entry{
			Level:    audit.LevelError,
			Event:    "user registry failure",
			Username: username,
			Extra:    fmt.Sprintf("err=%s", err),
		})
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.auditLog.Record(audit.Entry{
		Level:     audit.LevelInfo,
		Event:     auditEvent,
		Username:  username,
		SessionID: cookieValue(r, auth.CookieSessionID),
		Extra:     fmt.Sprintf("role=%s", user.Role),
	})
	h.render(w, http.StatusOK, templateName, profilePageData{
		Username: user.Username,
		Avatar:   user.AvatarPath,
		Role:     string(user.Role),
	})
}

func (h *WebHandler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFromContext(r.Context())
	h.auditLog.Record(audit.Entry{
		Level:     audit.LevelError,
		Event:     "page not found",
		Username:  orDash(session.Username),
		SessionID: session.Token,
		Extra:     fmt.Sprintf("role=%s url=%s", orDash(string(session.Role)), r.URL.Path),
	})
	h.render(w, http.StatusNotFound, "404.html", nil)
}

func (h *WebHandler) renderForbidden(w http.ResponseWriter, r *http.Request, username, token, role string) {
	h.auditLog.Record(audit.Entry{
		Level:     audit.LevelError,
		Event:     "access forbidden",
		Username:  orDash(username),
		SessionID: token,
		Extra:     fmt.Sprintf("role=%s url=%s", orDash(role), r.URL.Path),
	})
	h.render(w, http.StatusForbidden, "403.html", nil)
}

func (h *WebHandler) recordValidationError(r *http.Request, err error) {
	h.auditLog.Record(audit.Entry{
		Level:     audit.LevelError,
		Event:     "request validation failed",
		Username:  orDash(cookieValue(r, auth.CookieUsername)),
		SessionID: cookieValue(r, auth.CookieSessionID),
		Extra:     fmt.Sprintf("err=%s", err),
	})
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func orDash(s string) string {
	if s == "" {
		return audit.Placeholder
	}
	return s
}
