// Command emgpiped is the background daemon: it watches the configured
// workfolder, converts edited containers back to cleaned results, and serves
// the control socket the emgpipe CLI talks to.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"

	"emgpipe/internal/config"
	"emgpipe/internal/daemon"
	"emgpipe/internal/ipc"
	"emgpipe/internal/journal"
	"emgpipe/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	activeLog := filepath.Join(cfg.Paths.LogDir, "emgpipe.log")
	logging.PruneOldLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, activeLog)

	store, err := journal.Open(cfg)
	if err != nil {
		logger.Error("open journal store", logging.Error(err))
		return
	}

	d, err := daemon.New(cfg, store, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.Paths.Socket, d, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		return
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	select {
	case <-ctx.Done():
	case <-ipcServer.StopRequests():
	}
	logger.Info("emgpiped shutting down")
}
