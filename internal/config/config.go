// Package config manages bgpfsmd daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete bgpfsmd configuration.
type Config struct {
	Admin   AdminConfig    `koanf:"admin"`
	Metrics MetricsConfig  `koanf:"metrics"`
	Log     LogConfig      `koanf:"log"`
	BGP     BGPConfig      `koanf:"bgp"`
	Peers   []PeerConfig   `koanf:"peers"`
}

// AdminConfig holds the admin HTTP API configuration (internal/adminapi).
type AdminConfig struct {
	// Addr is the admin HTTP listen address (e.g., ":8090").
	Addr string `koanf:"addr"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// BGPConfig holds the default BGP session parameters (core spec §3's
// configured-seconds intervals). These can be overridden per peer.
type BGPConfig struct {
	// LocalAS is the default local autonomous system number.
	LocalAS uint32 `koanf:"local_as"`

	// LocalBGPID is the default local BGP identifier, as a dotted-quad
	// string (conventionally a loopback address).
	LocalBGPID string `koanf:"local_bgp_id"`

	// DefaultIdleHold is the default IdleHoldTimer base interval.
	DefaultIdleHold time.Duration `koanf:"default_idle_hold"`

	// DefaultConnectRetry is the default ConnectRetryTimer interval.
	DefaultConnectRetry time.Duration `koanf:"default_connect_retry"`

	// DefaultOpenHold is the default OpenHoldTimer interval.
	DefaultOpenHold time.Duration `koanf:"default_open_hold"`

	// DefaultHoldTime is the default HoldTime offered in OPEN, before
	// negotiation (RFC 4271 §4.2: 0 means "no keepalives, no timeout").
	DefaultHoldTime time.Duration `koanf:"default_hold_time"`

	// JitterEnabled applies the core spec's uniform-reduction jitter to
	// every timer that uses it, by default.
	JitterEnabled bool `koanf:"jitter_enabled"`

	// MinTTL enables GTSM (RFC 5082) for every peer; 0 disables the
	// check. PeerConfig.MinTTL does not override it.
	MinTTL uint8 `koanf:"min_ttl"`

	// ListenAddr is the bind address for the shared inbound BGP TCP
	// listener ("" binds all interfaces on the well-known BGP port).
	ListenAddr string `koanf:"listen_addr"`
}

// PeerConfig describes one declaratively configured BGP peer. Each entry
// creates a Session on daemon startup and SIGHUP reload.
type PeerConfig struct {
	// Address is the peer's IP address — the sole collision key (core
	// spec §3, "far-end IP address as the sole collision key").
	Address string `koanf:"address"`

	// Local is the local IP address to bind/dial from (optional).
	Local string `koanf:"local"`

	// AllowedModes is "both", "connect-only", or "accept-only".
	AllowedModes string `koanf:"allowed_modes"`

	// RemoteAS, if set, pins the peer's expected AS; zero means
	// "accept whatever AS the peer advertises" (no enforcement here —
	// that belongs to the Routeing Engine per the core spec's scope).
	RemoteAS uint32 `koanf:"remote_as"`

	// Overrides of the BGPConfig defaults; zero value means "inherit".
	IdleHold     time.Duration `koanf:"idle_hold"`
	ConnectRetry time.Duration `koanf:"connect_retry"`
	OpenHold     time.Duration `koanf:"open_hold"`
	HoldTime     time.Duration `koanf:"hold_time"`
	// MinTTL is parsed but not applied: GTSM uses BGPConfig.MinTTL for
	// every peer.
	MinTTL       uint8         `koanf:"min_ttl"`
}

// PeerKey returns a unique identifier for the peer (address plus local
// address), used by Validate to reject duplicate peer entries.
func (pc PeerConfig) PeerKey() string {
	return pc.Address + "|" + pc.Local
}

// Addr parses Address as a netip.Addr.
func (pc PeerConfig) Addr() (netip.Addr, error) {
	if pc.Address == "" {
		return netip.Addr{}, fmt.Errorf("peer address: %w", ErrInvalidPeerAddress)
	}
	addr, err := netip.ParseAddr(pc.Address)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse peer address %q: %w", pc.Address, err)
	}
	return addr, nil
}

// LocalAddr parses Local as a netip.Addr; the zero value means "let the
// OS pick".
func (pc PeerConfig) LocalAddr() (netip.Addr, error) {
	if pc.Local == "" {
		return netip.Addr{}, nil
	}
	addr, err := netip.ParseAddr(pc.Local)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse peer local %q: %w", pc.Local, err)
	}
	return addr, nil
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults. The
// interval defaults are the conservative, widely deployed values (RFC
// 4271 §8 suggests ConnectRetryTime of 120s; this implementation starts
// lower, matching common vendor defaults of 30s/5s/10s for
// idle/connect-retry/open-hold in lab and small-deployment use).
func DefaultConfig() *Config {
	return &Config{
		Admin: AdminConfig{
			Addr: ":8090",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		BGP: BGPConfig{
			DefaultIdleHold:     30 * time.Second,
			DefaultConnectRetry: 5 * time.Second,
			DefaultOpenHold:     10 * time.Second,
			DefaultHoldTime:     90 * time.Second,
			JitterEnabled:       true,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for bgpfsmd configuration.
// Variables are named BGPFSMD_<section>_<key>, e.g., BGPFSMD_ADMIN_ADDR.
const envPrefix = "BGPFSMD_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (BGPFSMD_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	BGPFSMD_ADMIN_ADDR     -> admin.addr
//	BGPFSMD_METRICS_ADDR   -> metrics.addr
//	BGPFSMD_METRICS_PATH   -> metrics.path
//	BGPFSMD_LOG_LEVEL      -> log.level
//	BGPFSMD_LOG_FORMAT     -> log.format
//	BGPFSMD_BGP_LOCAL_AS   -> bgp.local_as
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms BGPFSMD_BGP_LOCAL_AS -> bgp.local_as.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"admin.addr":               defaults.Admin.Addr,
		"metrics.addr":             defaults.Metrics.Addr,
		"metrics.path":             defaults.Metrics.Path,
		"log.level":                defaults.Log.Level,
		"log.format":               defaults.Log.Format,
		"bgp.default_idle_hold":    defaults.BGP.DefaultIdleHold.String(),
		"bgp.default_connect_retry": defaults.BGP.DefaultConnectRetry.String(),
		"bgp.default_open_hold":    defaults.BGP.DefaultOpenHold.String(),
		"bgp.default_hold_time":    defaults.BGP.DefaultHoldTime.String(),
		"bgp.jitter_enabled":       defaults.BGP.JitterEnabled,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

var (
	ErrEmptyAdminAddr        = errors.New("admin.addr must not be empty")
	ErrInvalidLocalAS        = errors.New("bgp.local_as must be nonzero")
	ErrInvalidLocalBGPID     = errors.New("bgp.local_bgp_id must be a valid IPv4 dotted-quad")
	ErrInvalidPeerAddress    = errors.New("peer address is invalid")
	ErrInvalidAllowedModes   = errors.New("peer allowed_modes must be both, connect-only, or accept-only")
	ErrDuplicatePeerKey      = errors.New("duplicate peer key")
)

// Validate checks the configuration for logical errors. Returns the
// first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Admin.Addr == "" {
		return ErrEmptyAdminAddr
	}
	if cfg.BGP.LocalAS == 0 {
		return ErrInvalidLocalAS
	}
	if cfg.BGP.LocalBGPID != "" {
		addr, err := netip.ParseAddr(cfg.BGP.LocalBGPID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidLocalBGPID, err)
		}
		if !addr.Is4() {
			return ErrInvalidLocalBGPID
		}
	}
	return validatePeers(cfg.Peers)
}

// ValidAllowedModes lists the recognized allowed_modes strings.
var ValidAllowedModes = map[string]bool{
	"":             true, // inherit AllowBoth
	"both":         true,
	"connect-only": true,
	"accept-only":  true,
}

func validatePeers(peers []PeerConfig) error {
	seen := make(map[string]struct{}, len(peers))

	for i, pc := range peers {
		if _, err := pc.Addr(); err != nil {
			return fmt.Errorf("peers[%d]: %w: %w", i, ErrInvalidPeerAddress, err)
		}
		if !ValidAllowedModes[pc.AllowedModes] {
			return fmt.Errorf("peers[%d] allowed_modes %q: %w", i, pc.AllowedModes, ErrInvalidAllowedModes)
		}

		key := pc.PeerKey()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("peers[%d] key %q: %w", i, key, ErrDuplicatePeerKey)
		}
		seen[key] = struct{}{}
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
