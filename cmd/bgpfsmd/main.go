// bgpfsmd daemon -- BGP-4 per-peer Finite State Machine (RFC 4271 §8).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/trace"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/trungkstn/bgpfsmd/internal/adminapi"
	"github.com/trungkstn/bgpfsmd/internal/bgpio"
	"github.com/trungkstn/bgpfsmd/internal/config"
	bgpmetrics "github.com/trungkstn/bgpfsmd/internal/metrics"
	"github.com/trungkstn/bgpfsmd/internal/peer"
	"github.com/trungkstn/bgpfsmd/internal/wire"
)

// shutdownTimeout is the maximum time to wait for HTTP servers to drain
// active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

// drainTimeout is the time to wait after disabling every session before
// proceeding with shutdown, so the final Cease NOTIFICATIONs reach
// their peers (core spec §4.3 scenario 5, applied fleet-wide).
const drainTimeout = 2 * time.Second

// flightRecorderMinAge is the flight recorder window, sized for BGP's
// second-to-minute timescales rather than BFD's millisecond ones.
const flightRecorderMinAge = 5 * time.Second

// flightRecorderMaxBytes is the upper bound on flight recorder window size.
const flightRecorderMaxBytes = 4 * 1024 * 1024 // 4 MiB

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("bgpfsmd starting",
		slog.String("admin_addr", cfg.Admin.Addr),
		slog.String("metrics_addr", cfg.Metrics.Addr),
		slog.Int("peers", len(cfg.Peers)),
	)

	fr := startFlightRecorder(logger)

	reg := prometheus.NewRegistry()
	collector := bgpmetrics.NewCollector(reg)

	dialer := bgpio.NewDialer(cfg.BGP.MinTTL, logger)
	mgr := peer.NewManager(dialer, wire.Codec{}, logger, peer.WithManagerMetrics(collector))

	if err := runServers(cfg, mgr, dialer, reg, logger, *configPath, logLevel, fr); err != nil {
		logger.Error("bgpfsmd exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("bgpfsmd stopped")
	return 0
}

// runServers sets up and runs the BGP listener, admin/metrics HTTP
// servers, and daemon goroutines using an errgroup with signal-aware
// context for graceful shutdown, mirroring the teacher's runServers.
func runServers(
	cfg *config.Config,
	mgr *peer.Manager,
	dialer *bgpio.Dialer,
	reg *prometheus.Registry,
	logger *slog.Logger,
	configPath string,
	logLevel *slog.LevelVar,
	fr *trace.FlightRecorder,
) error {
	adminSrv := newAdminServer(cfg.Admin, mgr, logger)
	metricsSrv := newMetricsServer(cfg.Metrics, reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	ln, err := bgpio.NewListener(cfg.BGP.ListenAddr, dialer, mgr.Lookup, logger)
	if err != nil {
		return fmt.Errorf("create BGP listener: %w", err)
	}
	g.Go(func() error {
		return ln.Serve(gCtx)
	})

	dispatchStop := make(chan struct{})
	g.Go(func() error {
		mgr.RunDispatch(dispatchStop)
		return nil
	})

	startHTTPServers(gCtx, g, cfg, adminSrv, metricsSrv, logger)
	startDaemonGoroutines(gCtx, g, configPath, logLevel, mgr, logger)

	reconcilePeers(cfg, mgr, logger)

	notifyReady(logger)

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, mgr, dispatchStop, logger, fr, adminSrv, metricsSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run servers: %w", err)
	}
	return nil
}

func startHTTPServers(
	ctx context.Context,
	g *errgroup.Group,
	cfg *config.Config,
	adminSrv *http.Server,
	metricsSrv *http.Server,
	logger *slog.Logger,
) {
	lc := net.ListenConfig{}

	g.Go(func() error {
		logger.Info("admin API listening", slog.String("addr", cfg.Admin.Addr))
		return listenAndServe(ctx, &lc, adminSrv, cfg.Admin.Addr)
	})

	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr),
			slog.String("path", cfg.Metrics.Path),
		)
		return listenAndServe(ctx, &lc, metricsSrv, cfg.Metrics.Addr)
	})
}

func startDaemonGoroutines(
	ctx context.Context,
	g *errgroup.Group,
	configPath string,
	logLevel *slog.LevelVar,
	mgr *peer.Manager,
	logger *slog.Logger,
) {
	g.Go(func() error {
		return runWatchdog(ctx, logger)
	})

	sigHUP := make(chan os.Signal, 1)
	signal.Notify(sigHUP, syscall.SIGHUP)
	g.Go(func() error {
		defer signal.Stop(sigHUP)
		handleSIGHUP(ctx, sigHUP, configPath, logLevel, mgr, logger)
		return nil
	})
}

// -------------------------------------------------------------------------
// Systemd Integration — sd_notify + watchdog
// -------------------------------------------------------------------------

func notifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: READY")
	}
}

func notifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("failed to notify systemd stopping", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: STOPPING")
	}
}

func runWatchdog(ctx context.Context, logger *slog.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("failed to check systemd watchdog", slog.String("error", err.Error()))
		return nil
	}
	if interval == 0 {
		logger.Debug("systemd watchdog not configured, skipping keepalive")
		return nil
	}

	tickInterval := interval / 2
	logger.Info("systemd watchdog enabled",
		slog.Duration("watchdog_sec", interval),
		slog.Duration("keepalive_interval", tickInterval),
	)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, wdErr := daemon.SdNotify(false, daemon.SdNotifyWatchdog); wdErr != nil {
				logger.Warn("failed to send watchdog keepalive", slog.String("error", wdErr.Error()))
			}
		}
	}
}

// -------------------------------------------------------------------------
// SIGHUP Reload — log level + peer reconciliation
// -------------------------------------------------------------------------

func handleSIGHUP(
	ctx context.Context,
	sigHUP <-chan os.Signal,
	configPath string,
	logLevel *slog.LevelVar,
	mgr *peer.Manager,
	logger *slog.Logger,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigHUP:
			logger.Info("received SIGHUP, reloading configuration")
			reloadConfig(configPath, logLevel, mgr, logger)
		}
	}
}

func reloadConfig(
	configPath string,
	logLevel *slog.LevelVar,
	mgr *peer.Manager,
	logger *slog.Logger,
) {
	newCfg, err := loadConfig(configPath)
	if err != nil {
		logger.Error("failed to reload configuration, keeping current settings", slog.String("error", err.Error()))
		return
	}

	oldLevel := logLevel.Level()
	newLevel := config.ParseLogLevel(newCfg.Log.Level)
	logLevel.Set(newLevel)

	logger.Info("configuration reloaded",
		slog.String("old_log_level", oldLevel.String()),
		slog.String("new_log_level", newLevel.String()),
	)

	reconcilePeers(newCfg, mgr, logger)
}

// reconcilePeers diffs the declarative peers from the config against the
// Manager's current peer set, adding newly declared peers and removing
// ones no longer present.
func reconcilePeers(cfg *config.Config, mgr *peer.Manager, logger *slog.Logger) {
	existing := mgr.Peers()
	keep := make(map[string]bool, len(existing))

	for _, pc := range cfg.Peers {
		addr, err := pc.Addr()
		if err != nil {
			logger.Error("invalid peer config, skipping", slog.String("peer", pc.Address), slog.String("error", err.Error()))
			continue
		}
		keep[addr.String()] = true

		if _, ok := mgr.Lookup(addr); ok {
			continue
		}

		sessCfg, err := peerConfigToSession(pc, cfg.BGP)
		if err != nil {
			logger.Error("invalid peer session config, skipping", slog.String("peer", pc.Address), slog.String("error", err.Error()))
			continue
		}

		s, err := mgr.AddPeer(sessCfg)
		if err != nil {
			logger.Error("failed to add peer", slog.String("peer", pc.Address), slog.String("error", err.Error()))
			continue
		}
		s.Enable()
		logger.Info("peer added and enabled", slog.String("peer", pc.Address))
	}

	for _, addr := range existing {
		if keep[addr.String()] {
			continue
		}
		if err := mgr.RemovePeer(addr, nil); err != nil {
			logger.Warn("failed to remove stale peer", slog.String("peer", addr.String()), slog.String("error", err.Error()))
			continue
		}
		logger.Info("peer removed (no longer declared)", slog.String("peer", addr.String()))
	}
}

func peerConfigToSession(pc config.PeerConfig, defaults config.BGPConfig) (peer.Config, error) {
	addr, err := pc.Addr()
	if err != nil {
		return peer.Config{}, fmt.Errorf("parse peer address: %w", err)
	}
	localAddr, err := pc.LocalAddr()
	if err != nil {
		return peer.Config{}, fmt.Errorf("parse local address: %w", err)
	}

	modes := peer.AllowBoth
	switch pc.AllowedModes {
	case "connect-only":
		modes = peer.AllowConnectOnly
	case "accept-only":
		modes = peer.AllowAcceptOnly
	}

	idleHold, connectRetry, openHold, holdTime := pc.IdleHold, pc.ConnectRetry, pc.OpenHold, pc.HoldTime
	if idleHold == 0 {
		idleHold = defaults.DefaultIdleHold
	}
	if connectRetry == 0 {
		connectRetry = defaults.DefaultConnectRetry
	}
	if openHold == 0 {
		openHold = defaults.DefaultOpenHold
	}
	if holdTime == 0 {
		holdTime = defaults.DefaultHoldTime
	}

	localBGPIDAddr, err := netParseBGPID(defaults.LocalBGPID)
	if err != nil {
		return peer.Config{}, fmt.Errorf("parse local_bgp_id: %w", err)
	}

	return peer.Config{
		PeerAddress:   addr,
		AllowedModes:  modes,
		IdleHold:      idleHold,
		ConnectRetry:  connectRetry,
		OpenHold:      openHold,
		LocalAS:       defaults.LocalAS,
		LocalBGPID:    localBGPIDAddr,
		LocalAddr:     localAddr,
		HoldTime:      holdTime,
		JitterEnabled: defaults.JitterEnabled,
	}, nil
}

// netParseBGPID parses a dotted-quad BGP identifier into its uint32 form.
func netParseBGPID(s string) (uint32, error) {
	if s == "" {
		return 0, nil
	}
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return 0, fmt.Errorf("invalid BGP identifier %q", s)
	}
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3]), nil
}

// -------------------------------------------------------------------------
// Graceful Shutdown
// -------------------------------------------------------------------------

func gracefulShutdown(
	ctx context.Context,
	mgr *peer.Manager,
	dispatchStop chan struct{},
	logger *slog.Logger,
	fr *trace.FlightRecorder,
	servers ...*http.Server,
) error {
	logger.Info("initiating graceful shutdown")
	notifyStopping(logger)

	mgr.DisableAll(&peer.NotificationPayload{Code: peer.NotifyCodeCease, Subcode: 2})

	time.Sleep(drainTimeout)
	close(dispatchStop)

	if fr != nil {
		fr.Stop()
		logger.Debug("flight recorder stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown server: %w", err))
		}
	}
	return shutdownErr
}

// -------------------------------------------------------------------------
// Flight Recorder
// -------------------------------------------------------------------------

func startFlightRecorder(logger *slog.Logger) *trace.FlightRecorder {
	fr := trace.NewFlightRecorder(trace.FlightRecorderConfig{
		MinAge:   flightRecorderMinAge,
		MaxBytes: flightRecorderMaxBytes,
	})

	if err := fr.Start(); err != nil {
		logger.Warn("failed to start flight recorder", slog.String("error", err.Error()))
		return nil
	}

	logger.Info("flight recorder started",
		slog.Duration("min_age", flightRecorderMinAge),
		slog.Uint64("max_bytes", flightRecorderMaxBytes),
	)

	return fr
}

// -------------------------------------------------------------------------
// Server Setup
// -------------------------------------------------------------------------

func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func newAdminServer(cfg config.AdminConfig, mgr *peer.Manager, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           adminapi.New(mgr, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
