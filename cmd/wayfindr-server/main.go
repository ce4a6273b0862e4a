package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/caleywoods/wayfindr/internal/api"
	"github.com/caleywoods/wayfindr/internal/app"
	"github.com/caleywoods/wayfindr/internal/config"
	"github.com/caleywoods/wayfindr/internal/hub"
	"github.com/caleywoods/wayfindr/internal/influx"
	"github.com/caleywoods/wayfindr/internal/monitor"
	"github.com/caleywoods/wayfindr/internal/session"
	"github.com/caleywoods/wayfindr/internal/transport/websocket"
	"github.com/google/uuid"
)

// BuildDate can be set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

const binaryName = "wayfindr-server"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configDir := flag.String("config", ".", "directory containing "+config.FileName)
	flag.Parse()

	a, err := app.Init(app.Options{Binary: binaryName, ConfigDir: *configDir, Console: true})
	if err != nil {
		return err
	}
	logger := a.Logger
	logger.Info("Starting up...", "version", Version, "buildDate", BuildDate)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Close(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "shutdown:", err)
		}
	}()

	srvCfg := config.GetServerConfig()

	store, err := a.OpenStore()
	if err != nil {
		return err
	}
	reg := a.Registry(store)
	reg.LoadForSession(session.ServerKey(srvCfg.World))
	a.TrackSession(reg.SessionKey)

	d, err := a.Dispatcher("dispatcher")
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	wg := new(sync.WaitGroup)
	var mgr *influx.Manager
	defer func() {
		cancel()
		wg.Wait()
		if mgr != nil {
			_ = mgr.Close()
		}
	}()

	var recorder *influx.Recorder
	var hubRecorder hub.Recorder
	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		mgr = influx.NewManager(a.Zerolog("influx"), influxCfg.BackupDir)
		if err := mgr.Connect(influxCfg); err != nil {
			logger.Error("Failed to set up InfluxDB", "error", err)
			mgr = nil
		} else {
			recorder = influx.NewRecorder(mgr, func(err error) {
				logger.Warn("Failed to write replication outcome", "error", err)
			})
			hubRecorder = recorder
			wg.Add(1)
			go func() {
				defer wg.Done()
				recorder.Run(ctx, 10*time.Second)
			}()
		}
	}

	h, err := hub.New(reg, d, hub.Options{
		Operators:        parseOperators(srvCfg.Operators, a),
		NotifyRejections: srvCfg.NotifyRejections,
		Recorder:         hubRecorder,
		Logger:           a.SlogManager.Component("hub"),
	})
	if err != nil {
		return fmt.Errorf("failed to create hub: %w", err)
	}

	monDeps := monitor.Dependencies{
		World:    srvCfg.World,
		Peers:    h.Peers,
		Shared:   func() int { return len(h.Snapshot()) },
		Storage:  store.Stats,
		Path:     srvCfg.StatusFile,
		Interval: srvCfg.StatusInterval,
		Logger:   a.SlogManager.Component("monitor"),
	}
	if recorder != nil {
		monDeps.Pending = recorder.Pending
		monDeps.Dropped = recorder.Dropped
	}
	mon := monitor.NewService(monDeps)
	if srvCfg.StatusFile != "" {
		if err := mon.Start(); err != nil {
			logger.Error("Failed to start status monitor", "error", err)
		}
		defer mon.Stop()
	}

	router := api.NewRouter(api.Routes{
		Waypoints: h,
		Status:    mon,
		Socket:    websocket.NewHandler(h, a.SlogManager.Component("websocket")),
		Logger:    a.SlogManager.Component("http"),
	})
	httpServer := &http.Server{Addr: srvCfg.Listen, Handler: router}

	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	logger.Info("Listening", "addr", srvCfg.Listen, "world", srvCfg.World, "shared", reg.Len())

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-exit:
		logger.Info("Signal caught", "sig", sig)
	case err := <-serveErr:
		if err != nil {
			logger.Error("Server listen failed", "error", err)
			return err
		}
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	d.Flush()
	logger.Info("Stopped")
	return nil
}

// parseOperators skips entries that are not player ids.
func parseOperators(ids []string, a *app.App) []uuid.UUID {
	var ops []uuid.UUID
	for _, s := range ids {
		id, err := uuid.Parse(s)
		if err != nil {
			a.Logger.Warn("Ignoring invalid operator id", "value", s, "error", err)
			continue
		}
		ops = append(ops, id)
	}
	return ops
}
