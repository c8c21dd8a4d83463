package config

import (
	"errors"
	"os"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	return verifyGate(&cfg.Gate)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.HTTP.Addr == "" {
		return errors.New("server.http.addr is required")
	}

	// TLS is all or nothing.
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	if cfg.HTTP.TLSCertFile != "" {
		if _, err := os.Stat(cfg.HTTP.TLSCertFile); err != nil {
			return errors.New("cannot read TLS certificate: " + err.Error())
		}
		if _, err := os.Stat(cfg.HTTP.TLSKeyFile); err != nil {
			return errors.New("cannot read TLS key: " + err.Error())
		}
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}

	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return errors.New("cannot create data directory: " + err.Error())
	}

	if cfg.GCInterval <= 0 {
		return errors.New("storage.gc_interval must be positive")
	}
	return nil
}

func verifyGate(cfg *GateSection) error {
	if cfg.RateRefill <= 0 {
		return errors.New("gate.rate_refill must be positive")
	}
	if cfg.RateBurst < 1 {
		return errors.New("gate.rate_burst must be at least 1")
	}
	return nil
}
