package certificates

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mp-manager/mp-manager/internal/config"
)

// RootCAs returns the pool used to verify the remote data sources. A nil pool
// means the system roots are used unchanged.
func RootCAs(cfg *config.HTTPConfig, logger *slog.Logger) (*x509.CertPool, error) {
	if (cfg == nil) || (cfg.CACerts == "") {
		return nil, nil
	}

	pool, err := x509.SystemCertPool()
	if err != nil {
		return nil, fmt.Errorf("Failed to load the x509.SystemCertPool: %w", err)
	}
	if pool == nil {
		pool = x509.NewCertPool()
		logger.Warn("Using an empty X509 certificate pool")
	}
	// this can be a comma separated list of certs
	for caCert := range strings.SplitSeq(cfg.CACerts, ",") {
		caCert = strings.TrimSpace(caCert)
		if caCert == "" {
			continue
		}
		block, err := readPEM(cfg.CertificateDir, caCert)
		if err != nil {
			return nil, err
		}
		if ok := pool.AppendCertsFromPEM(block); !ok {
			return nil, fmt.Errorf("Failed append CA certificate %s to the pool", caCert)
		}
		logger.Debug("Added CA certificate", "file", caCert)
	}
	return pool, nil
}

// TLSConfig wraps RootCAs for transports that take a *tls.Config.
func TLSConfig(cfg *config.HTTPConfig, logger *slog.Logger) (*tls.Config, error) {
	pool, err := RootCAs(cfg, logger)
	if (err != nil) || (pool == nil) {
		return nil, err
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func readPEM(dir string, name string) ([]byte, error) {
	// use OpenInRoot as it is a safe function that disallows reading outside of the root directory
	f, err := os.OpenInRoot(getDirAndName(dir, name))
	if err != nil {
		return nil, fmt.Errorf("Failed to load the CA certificate %s: %w", filepath.Join(dir, name), err)
	}
	defer f.Close()
	block, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("Failed to read the CA certificate %s: %w", filepath.Join(dir, name), err)
	}
	return block, nil
}

// This function will accept an absolute file name and split the name, or it will return the dir and name
func getDirAndName(dir string, name string) (string, string) {
	if filepath.IsAbs(name) {
		return filepath.Dir(name), filepath.Base(name)
	}
	if dir == "" {
		dir = "."
	}
	return dir, name
}
