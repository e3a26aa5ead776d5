// agentcored is the process entry point for the pseudo-console session
// engine core. It wires configuration, structured logging, the session
// registry (and its idle reaper), and graceful shutdown on SIGINT/SIGTERM
// — the direct generalization of cmd/catherdd/main.go.
//
// It deliberately contains no HTTP routing, upgrade handshake, or static
// file serving: those belong to an outer request-routing layer that
// mounts on top of the *session.Registry constructed here.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ianremillard/agentcore/internal/config"
	"github.com/ianremillard/agentcore/internal/session"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", os.Getenv("AGENTCORE_CONFIG"), "path to agentcore.yaml (env: AGENTCORE_CONFIG)")
	flag.Parse()
	if *configPath != "" {
		os.Setenv("AGENTCORE_CONFIG", *configPath)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	log := logrus.WithField("component", "agentcored")
	log.WithField("addr", cfg.Addr).Info("starting")

	// NewRegistry starts the idle reaper immediately; it runs for the
	// lifetime of the process and is torn down by Shutdown below.
	registry := session.NewRegistry()

	// Graceful shutdown on SIGINT / SIGTERM, mirroring cmd/catherdd's
	// signal.Notify pattern.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.WithField("signal", sig).Info("received signal, shutting down")
	registry.Shutdown()
}
