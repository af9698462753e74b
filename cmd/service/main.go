package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/sbasrik/gatehouse/internal"
	"github.com/sbasrik/gatehouse/internal/config"
	"github.com/sbasrik/gatehouse/internal/logging"
	"github.com/sbasrik/gatehouse/pkg"

	log "github.com/sirupsen/logrus"
)

func main() {
	fmt.Println("starting ...")

	env := flag.String("env", "development", "environment [prod | production | dev | development ]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	flag.Parse()

	log.Warnf("---->> running in [%s] environment", *env)

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	logging.Setup(logging.LoggerSetupParams{
		LogFileName:      cfg.LogsPath,
		LogToStdout:      cfg.LogToStdout,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    false,
		Environment:      cfg.Environment,
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        sentryDSN,
		SentryServerName: "gatehouse",
	})

	log.Debugf("using port: %d", cfg.Port)
	log.Debugf("using server logs path: [%s]", cfg.LogsPath)
	log.Debugf("using users file: [%s]", cfg.UsersFilePath)
	log.Debugf("using audit log: [%s]", cfg.AuditLogPath)

	versionInfo, err := tryGetLastCommitHash()
	if err != nil {
		log.Tracef("failed to get last commit hash / version info: %s", err)
	} else {
		log.Tracef("running version: %s", versionInfo)
	}

	operatorUsername := os.Getenv("GATEHOUSE_OPERATOR_USERNAME")
	operatorPasswordHash := os.Getenv("GATEHOUSE_OPERATOR_PASSWORD_HASH")
	if operatorUsername == "" || operatorPasswordHash == "" {
		log.Errorf("operator credentials not set. use GATEHOUSE_OPERATOR_USERNAME and GATEHOUSE_OPERATOR_PASSWORD_HASH")
		operatorUsername = "admin"
		operatorPasswordHash = "$2a$14$6Gmhg85si2etd3K9oB8nYu1cxfbrdmhkg6wI6OXsa88IF4L2r/L9i"
	}

	chOsInterrupt := make(chan os.Signal, 1)
	signal.Notify(chOsInterrupt, os.Interrupt, syscall.SIGTERM)

	// static content is deployed separately; the avatars dir inside it
	// gets created by the avatar store on startup
	staticDirExists, err := pkg.PathExists(cfg.StaticDirPath, true)
	if err != nil {
		log.Fatalf("check static dir: %s", err)
	}
	if !staticDirExists {
		log.Warnf("static dir not found: %s", cfg.StaticDirPath)
	}

	server, err := internal.NewServer(internal.NewServerParams{
		Config:               cfg,
		OperatorUsername:     operatorUsername,
		OperatorPasswordHash: operatorPasswordHash,
		VersionInfo:          versionInfo,
	})
	if err != nil {
		log.Fatalf("new server: %s", err)
	}

	server.Serve(cfg.Host, cfg.Port)

	receivedSig := <-chOsInterrupt
	log.Warnf("signal [%s] received, killing everything ...", receivedSig)

	server.GracefulShutdown()
}

// tryGetLastCommitHash will try to get the last commit hash
// assumes that the built main executable is in project root
func tryGetLastCommitHash() (string, error) {
	cmd := exec.Command("/usr/bin/git", "rev-parse", "HEAD")
	stdout, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return pkg.BytesToString(stdout), nil
}
