package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/sbasrik/gatehouse/internal/audit"
	"github.com/sbasrik/gatehouse/internal/auth"
	"github.com/sbasrik/gatehouse/internal/instrumentation"
	"github.com/sbasrik/gatehouse/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

// AccessGate runs before every protected handler and decides whether
// the request carries a live session. Only the session store's record
// is authoritative for the username and role seen downstream; the
// username/role cookies are used solely for best-effort audit logging
// of requests that are being turned away.
type AccessGate struct {
	store                *auth.SessionStore
	auditLog             audit.Log
	instr                *instrumentation.Instrumentation
	allowedPaths         map[string]bool
	allowedPathsPrefixes []string
}

func NewAccessGate(
	store *auth.SessionStore,
	auditLog audit.Log,
	instr *instrumentation.Instrumentation,
) *AccessGate {
	return &AccessGate{
		store:    store,
		auditLog: auditLog,
		instr:    instr,
		allowedPaths: map[string]bool{
			"/":       true,
			"/login":  true,
			"/logout": true,
		},
		allowedPathsPrefixes: []string{
			"/static/",
			"/assets/",
		},
	}
}

func (g *AccessGate) pathIsAlwaysAllowed(path string) bool {
	if g.allowedPaths[path] {
		return true
	}
	for _, prefix := range g.allowedPathsPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (g *AccessGate) Check() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.accessGate")
			defer span.End()

			if g.pathIsAlwaysAllowed(r.URL.Path) {
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r)
				return
			}

			token := cookieValue(r, auth.CookieSessionID)
			// display-only identity, may be stale or forged
			cookieUsername := cookieValue(r, auth.CookieUsername)
			cookieRole := cookieValue(r, auth.CookieRole)

			if token == "" {
				log.Tracef("[missing session] [access gate] unauthenticated => %s", r.URL.Path)
				g.auditLog.Record(audit.Entry{
					Level:    audit.LevelWarning,
					Event:    "access without session",
					Username: orDash(cookieUsername),
					Extra:    fmt.Sprintf("role=%s", orDash(cookieRole)),
				})
				span.SetStatus(codes.Error, "missing-session")
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}

			session, result := g.store.TouchAndCheck(token)
			switch result {
			case auth.TouchNotFound:
				// same treatment as a missing cookie, the response
				// must not reveal whether the token ever existed
				log.Tracef("[unknown session] [access gate] unauthenticated => %s", r.URL.Path)
				g.auditLog.Record(audit.Entry{
					Level:     audit.LevelWarning,
					Event:     "access without session",
					Username:  orDash(cookieUsername),
					SessionID: token,
					Extra:     fmt.Sprintf("role=%s", orDash(cookieRole)),
				})
				span.SetStatus(codes.Error, "unknown-session")
				http.Redirect(w, r, "/login", http.StatusFound)

			case auth.TouchExpired:
				g.instr.CounterExpiredSessions.Inc()
				g.instr.GaugeActiveSessions.Set(float64(g.store.Len()))
				g.auditLog.Record(audit.Entry{
					Level:     audit.LevelInfo,
					Event:     "session timed out",
					Username:  orDash(cookieUsername),
					SessionID: token,
					Extra:     fmt.Sprintf("role=%s", orDash(cookieRole)),
				})
				auth.ClearSessionCookies(w)
				span.SetStatus(codes.Error, "session-expired")
				http.Redirect(w, r, "/login", http.StatusFound)

			case auth.TouchValid:
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r.WithContext(auth.ContextWithSession(ctx, session)))
			}
		})
	}
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
