package internal

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sbasrik/gatehouse/internal/auth"
	"github.com/sbasrik/gatehouse/internal/config"
	"github.com/sbasrik/gatehouse/pkg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		Host:              "localhost",
		Port:              0,
		Environment:       "development",
		LogLevel:          "error",
		UsersFilePath:     filepath.Join(dir, "users.csv"),
		AuditLogPath:      filepath.Join(dir, "audit.csv"),
		StaticDirPath:     filepath.Join(dir, "static"),
		AssetsDirPath:     filepath.Join(dir, "assets"),
		AvatarsDirPath:    filepath.Join(dir, "static", "avatars"),
		SessionTTLMinutes: 3,
	}

	operatorHash, err := pkg.HashPassword("operator-secret")
	require.NoError(t, err)

	server, err := NewServer(NewServerParams{
		Config:               cfg,
		OperatorUsername:     "zvonko",
		OperatorPasswordHash: operatorHash,
		VersionInfo:          "test-version",
	})
	require.NoError(t, err)
	return server
}

func TestNewServer(t *testing.T) {
	server := newTestServer(t)

	require.NotNil(t, server.registry)
	require.NotNil(t, server.sessionStore)
	require.NotNil(t, server.authService)
	require.NotNil(t, server.avatarStore)
	require.NotNil(t, server.auditLog)
	require.NotNil(t, server.instr)
	require.NotNil(t, server.promRegistry)
	assert.Equal(t, 3*time.Minute, server.config.SessionTTL())
}

func TestServer_Router_GateInFront(t *testing.T) {
	server := newTestServer(t)
	router := server.routerSetup()

	t.Run("login page is open", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/login", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("version needs a session", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/version", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, "/login", rr.Header().Get("Location"))
	})

	t.Run("profile pages need a session", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/welcome/mila", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, "/login", rr.Header().Get("Location"))
	})
}

func TestServer_Router_VersionForLoggedInUsers(t *testing.T) {
	server := newTestServer(t)
	router := server.routerSetup()

	require.NoError(t, server.registry.Insert(auth.User{
		Username:     "mila",
		PasswordHash: auth.HashPassword("her-password"),
		Role:         auth.RoleUser,
	}))
	token, _, err := server.authService.Login("mila", "her-password")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/version", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieSessionID, Value: token})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "test-version", rr.Body.String())
}
