package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr = "127.0.0.1:8080"

	DefaultDataDir    = "/var/lib/korrosync/data"
	DefaultGCInterval = 10 * time.Minute

	DefaultRateRefill = 2.0
	DefaultRateBurst  = 5

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:           DefaultHTTPAddr,
				MetricsEnabled: true,
			},
		},
		Storage: StorageSection{
			DataDir:    DefaultDataDir,
			SyncWrites: true,
			GCInterval: DefaultGCInterval,
		},
		Gate: GateSection{
			RateRefill: DefaultRateRefill,
			RateBurst:  DefaultRateBurst,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
