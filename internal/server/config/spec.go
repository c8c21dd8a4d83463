package config

import "time"

// ServerConfig is the root configuration for korrosync-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server"`
	Storage StorageSection `koanf:"storage"`
	Gate    GateSection    `koanf:"gate"`
	Log     LogSection     `koanf:"log"`
}

// ServerSection configures the HTTP endpoint.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	// MetricsEnabled exposes Prometheus metrics on /metrics.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// TrustProxyHeaders resolves client IPs from X-Forwarded-For and
	// X-Real-IP. Leave off unless a trusted reverse proxy sets them;
	// the rate limiter keys on the resolved IP.
	TrustProxyHeaders bool `koanf:"trust_proxy_headers"`
}

// StorageSection configures storage behavior.
type StorageSection struct {
	// DataDir is the directory holding the entire durable state.
	DataDir string `koanf:"data_dir"`

	// SyncWrites enables fsync after each commit.
	SyncWrites bool `koanf:"sync_writes"`

	// GCInterval is the interval between value-log GC runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// GateSection configures the admission pipeline.
type GateSection struct {
	// RateRefill is the steady-state admission rate per client, in
	// requests per second.
	RateRefill float64 `koanf:"rate_refill"`

	// RateBurst is the per-client token bucket capacity.
	RateBurst int `koanf:"rate_burst"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
