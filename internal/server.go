package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sbasrik/gatehouse/internal/audit"
	"github.com/sbasrik/gatehouse/internal/auth"
	"github.com/sbasrik/gatehouse/internal/avatars"
	"github.com/sbasrik/gatehouse/internal/config"
	"github.com/sbasrik/gatehouse/internal/instrumentation"
	"github.com/sbasrik/gatehouse/internal/middleware"
	"github.com/sbasrik/gatehouse/internal/telemetry/metrics"
	"github.com/sbasrik/gatehouse/pkg"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config       *config.Config
	registry     *auth.FileRegistry
	sessionStore *auth.SessionStore
	authService  *auth.Service
	avatarStore  *avatars.Store
	auditLog     audit.Log

	instr        *instrumentation.Instrumentation
	promRegistry *prometheus.Registry
}

type NewServerParams struct {
	Config               *config.Config
	OperatorUsername     string
	OperatorPasswordHash string
	VersionInfo          string
}

func NewServer(params NewServerParams) (*Server, error) {
	cfg := params.Config

	promRegistry := metrics.SetupPrometheus()
	instr := instrumentation.NewInstrumentationWithRegisterer("gatehouse", "main", promRegistry)
	instr.GaugeLifeSignal.Set(0) // set to 1 when all is set and ran

	registry := auth.NewFileRegistry(cfg.UsersFilePath)
	sessionStore := auth.NewSessionStore(cfg.SessionTTL())
	authService := auth.NewService(registry, sessionStore, auth.Operator{
		Username:     params.OperatorUsername,
		PasswordHash: params.OperatorPasswordHash,
	})

	avatarStore, err := avatars.NewStore(cfg.AvatarsDirPath, "/static/avatars")
	if err != nil {
		return nil, fmt.Errorf("new avatar store: %w", err)
	}

	return &Server{
		config:       cfg,
		versionInfo:  params.VersionInfo,
		registry:     registry,
		sessionStore: sessionStore,
		authService:  authService,
		avatarStore:  avatarStore,
		auditLog:     audit.NewFileLog(cfg.AuditLogPath),
		instr:        instr,
		promRegistry: promRegistry,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	// static content bypasses the access gate via its allowlist
	r.PathPrefix("/static/").Handler(
		http.StripPrefix("/static/", http.FileServer(http.Dir(s.config.StaticDirPath))),
	)
	r.PathPrefix("/assets/").Handler(
		http.StripPrefix("/assets/", http.FileServer(http.Dir(s.config.AssetsDirPath))),
	)

	// available to logged-in users only, the access gate covers it
	r.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		pkg.WriteResponse(w, "", s.versionInfo)
	}).Methods("GET").Name("version")

	webHandler := NewWebHandler(s.authService, s.registry, s.avatarStore, s.auditLog, s.instr)
	webHandler.SetupRoutes(r)

	accessGate := middleware.NewAccessGate(s.sessionStore, s.auditLog, s.instr)

	r.Use(middleware.PanicRecovery(s.instr))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.instr))
	r.Use(accessGate.Check())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		var err error
		if s.config.TLSCertPath != "" && s.config.TLSKeyPath != "" {
			log.Infof(" > server listening on: [%s] (TLS)", ipAndPort)
			err = s.httpServer.ListenAndServeTLS(s.config.TLSCertPath, s.config.TLSKeyPath)
		} else {
			log.Infof(" > server listening on: [%s]", ipAndPort)
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.instr.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.instr.GaugeLifeSignal.Set(0)

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown http server")
	}
	log.Warnln("server shut down")

	if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown metrics http server")
	}
	log.Warnln("metrics server shut down")
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.instr.GaugeRequests.Add(1)
	case http.StateClosed:
		s.instr.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
