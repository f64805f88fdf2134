package mongopool

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// buildTLSConfig assembles driver-level TLS parameters from a TLSConfig.
// The minimum version is clamped to TLS 1.2. VerifyPeer=false maps to
// InsecureSkipVerify, bypassing both host and chain checks.
func buildTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	out := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !cfg.VerifyPeer, // #nosec G402 -- operator opt-in for self-signed/test certificates
	}

	if cfg.CAFile != "" {
		pool, err := loadCAPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}

		out.RootCAs = pool
	}

	if cfg.Certificate != nil {
		pair, err := tls.LoadX509KeyPair(cfg.Certificate.CertificateFile, cfg.Certificate.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: loading client keypair: %w", ErrInvalidConfig, err)
		}

		out.Certificates = []tls.Certificate{pair}
	}

	return out, nil
}

func loadCAPool(caFile string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("%w: reading CA file: %w", ErrInvalidConfig, err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("%w: CA file %q contains no parsable certificates", ErrInvalidConfig, caFile)
	}

	return pool, nil
}
