// Command pushsync-device runs a push sync device against a device API.
//
// It registers one instance, keeps its interest set in sync and optionally
// associates a user. Against a real backend it needs the instance ID and,
// for user association, a token secret shared with the backend. With
// -simulate it serves an in-memory device API on a local port and talks to
// it over HTTP, which is handy for trying the engine without a backend.
//
// Usage:
//
//	pushsync-device [flags]
//
// Flags:
//
//	-config string       Settings file (YAML)
//	-instance string     Instance ID (overrides the settings file)
//	-endpoint string     Device API base URL
//	-store string        Store driver: memory, file, sqlite, redis
//	-store-path string   Store file for the file and sqlite drivers
//	-log-level string    Log level: debug, info, warn, error (default "info")
//	-event-log string    Append sync events to this file
//	-metrics string      Serve Prometheus metrics on this address
//	-simulate            Serve an in-memory device API locally
//	-push-token string   Fixed push token (random if empty)
//	-user-secret string  HS256 secret for minting user tokens
//	-subscribe string    Comma-separated interests to subscribe at start
//	-interactive         Enable interactive command mode
//	-reset               Clear all persisted state before starting
//
// Examples:
//
//	# Try it out without a backend
//	pushsync-device -simulate -interactive -subscribe donuts,hello
//
//	# Run from a settings file and record events
//	pushsync-device -config /etc/pushsync/device.yaml -event-log device.slog
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pushsync/pushsync-go/cmd/pushsync-device/interactive"
	"github.com/pushsync/pushsync-go/internal/fake"
	"github.com/pushsync/pushsync-go/pkg/auth"
	"github.com/pushsync/pushsync-go/pkg/config"
	"github.com/pushsync/pushsync-go/pkg/dispatch"
	"github.com/pushsync/pushsync-go/pkg/log"
	"github.com/pushsync/pushsync-go/pkg/metrics"
	"github.com/pushsync/pushsync-go/pkg/persistence"
	"github.com/pushsync/pushsync-go/pkg/service"
	"github.com/pushsync/pushsync-go/pkg/version"
)

// simulatedSecret signs user tokens in simulation mode when no
// -user-secret is given.
const simulatedSecret = "pushsync-simulated"

// userTokenTTL is the lifetime of locally minted user tokens.
const userTokenTTL = 10 * time.Minute

// Config holds the command line configuration.
// It implements interactive.DeviceConfig.
type Config struct {
	ConfigFile  string
	Instance    string
	Endpoint    string
	Store       string
	StorePath   string
	LogLevel    string
	EventLog    string
	Metrics     string
	Simulate    bool
	PushToken   string
	UserSecret  string
	Subscribe   string
	Interactive bool
	Reset       bool

	settings config.Settings
}

// InstanceID implements interactive.DeviceConfig.
func (c *Config) InstanceID() string {
	return c.settings.Instance.ID
}

// UserTokens implements interactive.DeviceConfig.
func (c *Config) UserTokens() auth.TokenProvider {
	if c.UserSecret == "" {
		return nil
	}
	return devTokenProvider(c.UserSecret, userTokenTTL)
}

var cfg Config

func init() {
	flag.StringVar(&cfg.ConfigFile, "config", "", "Settings file (YAML)")
	flag.StringVar(&cfg.Instance, "instance", "", "Instance ID (overrides the settings file)")
	flag.StringVar(&cfg.Endpoint, "endpoint", "", "Device API base URL")
	flag.StringVar(&cfg.Store, "store", "", "Store driver: memory, file, sqlite, redis")
	flag.StringVar(&cfg.StorePath, "store-path", "", "Store file for the file and sqlite drivers")
	flag.StringVar(&cfg.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&cfg.EventLog, "event-log", "", "Append sync events to this file")
	flag.StringVar(&cfg.Metrics, "metrics", "", "Serve Prometheus metrics on this address")
	flag.BoolVar(&cfg.Simulate, "simulate", false, "Serve an in-memory device API locally")
	flag.StringVar(&cfg.PushToken, "push-token", "", "Fixed push token (random if empty)")
	flag.StringVar(&cfg.UserSecret, "user-secret", "", "HS256 secret for minting user tokens")
	flag.StringVar(&cfg.Subscribe, "subscribe", "", "Comma-separated interests to subscribe at start")
	flag.BoolVar(&cfg.Interactive, "interactive", false, "Enable interactive command mode")
	flag.BoolVar(&cfg.Reset, "reset", false, "Clear all persisted state before starting")
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	settings, err := loadSettings(&cfg)
	if err != nil {
		return err
	}
	cfg.settings = settings

	level, _ := settings.SlogLevel()
	logOut := &swapWriter{w: os.Stderr}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	logger.Info("push sync device",
		"sdk", version.SDK,
		"instance", settings.Instance.ID,
		"store", settings.Store.Driver)

	// Event logging: a bounded history for the interactive mode, plus the
	// optional file and console sinks.
	history := log.NewMemoryLogger(1000)
	var fileLog *log.FileLogger
	if settings.Log.EventLog != "" {
		fileLog, err = log.NewFileLogger(settings.Log.EventLog)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		defer func() {
			if n := fileLog.Failed(); n > 0 {
				logger.Warn("sync events not recorded", "path", settings.Log.EventLog, "count", n)
			}
			_ = fileLog.Close()
		}()
		logger.Info("recording sync events", "path", settings.Log.EventLog)
	}
	var console log.Logger
	if settings.Log.Events {
		console = log.NewSlogAdapter(logger).WithLevel(slog.LevelInfo)
	}
	events := log.NewMultiLogger(history, optional(fileLog), console)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if settings.Metrics.Listen != "" {
		stop, err := serve(settings.Metrics.Listen, metricsHandler(reg), logger)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		defer stop()
		logger.Info("serving metrics", "addr", settings.Metrics.Listen)
	}

	// Simulated device API
	if cfg.Simulate {
		server := fake.NewServer()
		server.CheckUserToken = checkDevToken(cfg.UserSecret)
		stop, addr, err := serveSimulated(server, logger)
		if err != nil {
			return fmt.Errorf("simulated API: %w", err)
		}
		defer stop()
		settings.Instance.Endpoint = "http://" + addr
		logger.Info("serving simulated device API", "endpoint", settings.Instance.Endpoint)
	}

	store, err := persistence.Open(settings.StoreConfig())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	svcConfig := service.DefaultConfig()
	svcConfig.Store = store
	svcConfig.ClientFactory = settings.ClientFactory(logger)
	svcConfig.PushTokenSource = pushTokenSource(cfg.PushToken)
	svcConfig.RegisterPolicy = settings.RetryPolicy()
	if settings.Retry.MaxAttempts > 0 {
		svcConfig.RetryPolicy = settings.RetryPolicy()
	}
	svcConfig.RequestTimeout = settings.Instance.RequestTimeout
	svcConfig.TokenFetchTimeout = settings.Instance.TokenFetchTimeout
	svcConfig.Logger = logger
	svcConfig.EventLogger = events
	svcConfig.Metrics = m

	rt, err := service.NewRuntime(svcConfig)
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Reset {
		logger.Info("clearing persisted state")
		if err := waitOp(ctx, rt.ClearAllState()); err != nil {
			logger.Warn("failed to clear state", "error", err)
		}
	}

	inst, err := rt.Start(settings.Instance.ID, cfg.UserTokens())
	if err != nil {
		return fmt.Errorf("start instance: %w", err)
	}
	if names := splitNames(cfg.Subscribe); len(names) > 0 {
		go subscribeWhenRegistered(ctx, inst, names, logger)
	}

	// Run interactive mode or wait for signal
	if cfg.Interactive {
		dev, err := interactive.New(rt, &cfg, history)
		if err != nil {
			return fmt.Errorf("create interactive device: %w", err)
		}
		// Route log output through readline to keep the prompt intact
		logOut.Set(dev.Stdout())
		go dev.Run(ctx, cancel)
	} else {
		go logChanges(ctx, inst, logger)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig)
	case <-ctx.Done():
		// Interactive quit
	}
	logOut.Set(os.Stderr)

	logger.Info("shutting down; registration is kept")
	if err := rt.Close(); err != nil {
		logger.Warn("close runtime", "error", err)
	}
	return nil
}

// loadSettings merges the settings file with the command line flags.
func loadSettings(c *Config) (config.Settings, error) {
	var s config.Settings
	if c.ConfigFile != "" {
		var err error
		if s, err = config.Load(c.ConfigFile); err != nil {
			return s, err
		}
	}

	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&s.Instance.ID, c.Instance)
	override(&s.Instance.Endpoint, c.Endpoint)
	override(&s.Store.Driver, c.Store)
	override(&s.Store.Path, c.StorePath)
	override(&s.Log.Level, c.LogLevel)
	override(&s.Log.EventLog, c.EventLog)
	override(&s.Metrics.Listen, c.Metrics)

	if c.Simulate {
		if s.Instance.ID == "" {
			s.Instance.ID = "simulated"
		}
		if c.UserSecret == "" {
			c.UserSecret = simulatedSecret
		}
	}

	s = s.WithDefaults()
	return s, s.Validate()
}

// optional returns nil for a nil file logger so that MultiLogger skips it.
func optional(l *log.FileLogger) log.Logger {
	if l == nil {
		return nil
	}
	return l
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

// serve runs h on addr until the returned stop function is called.
func serve(addr string, h http.Handler, logger *slog.Logger) (func(), error) {
	stop, _, err := listen(addr, h, logger)
	return stop, err
}

func serveSimulated(server *fake.Server, logger *slog.Logger) (func(), string, error) {
	return listen("127.0.0.1:0", fake.Handler(server), logger)
}

func listen(addr string, h http.Handler, logger *slog.Logger) (func(), string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", err
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "addr", ln.Addr().String(), "error", err)
		}
	}()
	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return stop, ln.Addr().String(), nil
}

func subscribeWhenRegistered(ctx context.Context, inst *service.Instance, names []string, logger *slog.Logger) {
	if err := inst.AwaitRegistered(ctx); err != nil {
		return
	}
	for _, name := range names {
		if err := inst.Subscribe(name); err != nil {
			logger.Warn("subscribe failed", "interest", name, "error", err)
		}
	}
}

// logChanges reports listener callbacks when there is no prompt to print to.
func logChanges(ctx context.Context, inst *service.Instance, logger *slog.Logger) {
	inst.SetOnSubscriptionsChangedListener(dispatchLogger(logger))
	if err := inst.AwaitRegistered(ctx); err != nil {
		if ctx.Err() == nil {
			logger.Error("instance did not register", "error", err)
		}
		return
	}
	logger.Info("registered", "device_id", inst.DeviceID())
}

func dispatchLogger(logger *slog.Logger) dispatch.Listener {
	return dispatch.ListenerFuncs{
		SubscriptionsChanged: func(interests []string) {
			logger.Info("interests confirmed", "interests", interests)
		},
		Error: func(err error) {
			logger.Error("sync failed", "error", err)
		},
	}
}

func splitNames(s string) []string {
	var names []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

func waitOp(ctx context.Context, op interface{ Wait(context.Context) error }) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return op.Wait(ctx)
}

// swapWriter lets the log output move to readline once the prompt is up.
type swapWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *swapWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// Set replaces the destination.
func (s *swapWriter) Set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}
