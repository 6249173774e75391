package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/atopx/tinyq/internal/config"
	httpsrv "github.com/atopx/tinyq/internal/http"
	"github.com/atopx/tinyq/internal/logger"
	"github.com/atopx/tinyq/internal/server"
)

func main() {
	bindAddr := flag.String("bind", "", "TCP bind address (overrides BIND_ADDR/default)")
	adminAddr := flag.String("admin", "", "Admin HTTP listen address (empty to disable)")
	debug := flag.Bool("debug", false, "Enable debug-level logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *bindAddr != "" {
		cfg.BindAddr = *bindAddr
	}
	if *adminAddr != "" {
		cfg.AdminAddr = *adminAddr
	}

	logLevel := logger.LevelInfo
	if *debug {
		logLevel = logger.LevelDebug
	}
	log := logger.New(os.Stderr, logLevel, "[tinyq]")

	log.Info("starting tinyq broker")
	srv := server.New(cfg, log)

	var admin *httpsrv.Server
	if cfg.AdminAddr != "" {
		admin = httpsrv.NewServer(cfg.AdminAddr, log, srv.Store())
		go func() {
			if err := admin.Start(); err != nil && err != http.ErrServerClosed {
				log.Error("admin http server: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	shutdownCh := make(chan struct{})
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		close(shutdownCh)
	}()

	if err := srv.Run(shutdownCh); err != nil {
		if admin != nil {
			_ = admin.Stop()
		}
		log.Error("server stopped: %v", err)
		os.Exit(1)
	}

	if admin != nil {
		_ = admin.Stop()
	}
	log.Info("tinyq stopped")
}
