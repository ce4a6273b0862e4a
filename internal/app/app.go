// Package app holds the startup sequence shared by the wayfindr binaries:
// configuration, logging, telemetry and the persistence stack.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/caleywoods/wayfindr/internal/cache"
	"github.com/caleywoods/wayfindr/internal/config"
	"github.com/caleywoods/wayfindr/internal/database"
	"github.com/caleywoods/wayfindr/internal/dispatcher"
	"github.com/caleywoods/wayfindr/internal/logging"
	intOtel "github.com/caleywoods/wayfindr/internal/otel"
	"github.com/caleywoods/wayfindr/internal/registry"
	"github.com/caleywoods/wayfindr/internal/storage"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Options controls Init.
type Options struct {
	Binary    string
	ConfigDir string
	// Console mirrors the log file to stdout.
	Console bool
}

// App carries the process-wide services every binary needs.
type App struct {
	Start       time.Time
	SlogManager *logging.SlogManager
	Logger      *slog.Logger
	LogFilePath string
	OTel        *intOtel.Provider

	level   string
	logFile *os.File
	graylog io.Closer
	dbm     *database.Manager
	store   *storage.Store
	key     atomic.Pointer[func() string]
}

// Init loads configuration and sets up logging. A missing config file is
// not fatal; defaults apply.
func Init(opts Options) (*App, error) {
	a := &App{
		Start:       time.Now(),
		SlogManager: logging.NewSlogManager(),
	}
	a.SlogManager.Setup(logging.Options{Level: viper.GetString("logLevel")})
	a.Logger = a.SlogManager.Logger()

	if err := config.Load(opts.ConfigDir); err != nil {
		a.Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		a.Logger.Info("Loaded config", "dir", opts.ConfigDir)
	}
	a.level = config.GetString("logLevel")

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create logs dir: %w", err)
	}
	a.LogFilePath = logging.LogFilePath(logsDir, opts.Binary, a.Start)
	if _, err := os.Stat(a.LogFilePath); err == nil {
		_ = os.Rename(a.LogFilePath, a.LogFilePath+".old")
	}
	f, err := os.OpenFile(a.LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	a.logFile = f

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		a.OTel, err = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			BatchTimeout:   otelCfg.BatchTimeout,
			MetricInterval: otelCfg.MetricInterval,
			LogWriter:      f,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			a.Logger.Error("Failed to initialize OTel provider", "error", err)
			a.OTel = nil
		} else {
			a.Logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
		}
	}

	var graylog io.Writer
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGraylogWriter(gl.Address)
		if err != nil {
			a.Logger.Error("Failed to connect to Graylog", "error", err)
		} else {
			graylog = w
			a.graylog = w
		}
	}

	var out io.Writer = f
	if opts.Console {
		out = io.MultiWriter(os.Stdout, f)
	}
	var provider *sdklog.LoggerProvider
	if a.OTel != nil {
		provider = a.OTel.LoggerProvider()
	}
	a.SlogManager.Setup(logging.Options{
		File:     out,
		Level:    a.level,
		Provider: provider,
		Graylog:  graylog,
		Context:  a.contextAttrs,
	})
	a.Logger = a.SlogManager.Logger()
	a.Logger.Info("Begin logging in logs directory", "path", a.LogFilePath, "binary", opts.Binary)
	return a, nil
}

// TrackSession adds the value of key to every log record.
func (a *App) TrackSession(key func() string) {
	a.key.Store(&key)
}

func (a *App) contextAttrs() []slog.Attr {
	fn := a.key.Load()
	if fn == nil {
		return nil
	}
	if key := (*fn)(); key != "" {
		return []slog.Attr{slog.String("session", key)}
	}
	return nil
}

// Zerolog returns a zerolog logger writing to the log file.
func (a *App) Zerolog(component string) zerolog.Logger {
	return logging.NewZerolog(a.logFile, a.level, component)
}

// Dispatcher creates a dispatcher logging through zerolog.
func (a *App) Dispatcher(component string) (*dispatcher.Dispatcher, error) {
	d, err := dispatcher.New(logging.NewDispatcherLogger(a.Zerolog(component)))
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	return d, nil
}

// OpenStore builds the configured backend and the cached store over it.
func (a *App) OpenStore() (*storage.Store, error) {
	storageCfg := config.GetStorageConfig()
	a.dbm = database.NewManager(a.Zerolog("database"))

	backend, err := storage.NewBackend(storageCfg, a.dbm, a.SlogManager.Component("storage"))
	if err != nil {
		return nil, err
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	a.Logger.Info("Storage backend initialized", "type", storageCfg.Type)

	cacheCfg := config.GetCacheConfig()
	a.store = storage.NewStore(backend,
		cache.NewSessionCache(cacheCfg.MaxEntries, cacheCfg.TTL),
		a.SlogManager.Component("storage"))
	return a.store, nil
}

// Registry creates a registry over store using the navigation settings.
func (a *App) Registry(store registry.Store) *registry.Registry {
	nav := config.GetNavigationConfig()
	return registry.New(store, registry.Options{
		Deadzone: nav.Deadzone,
		Logger:   a.SlogManager.Component("registry"),
	})
}

// Close releases everything Init and OpenStore acquired.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close failed: %w", err))
		}
	}
	if a.dbm != nil {
		if err := a.dbm.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close failed: %w", err))
		}
	}
	if err := a.SlogManager.Flush(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.OTel != nil {
		if err := a.OTel.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.graylog != nil {
		_ = a.graylog.Close()
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
	return errors.Join(errs...)
}
