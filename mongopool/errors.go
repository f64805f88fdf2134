package mongopool

import (
	"errors"
	"fmt"
)

var (
	// ErrNilContext is returned when a required context is nil.
	ErrNilContext = errors.New("context cannot be nil")
	// ErrNilManager is returned when a *Manager receiver is nil.
	ErrNilManager = errors.New("connection manager is nil")
	// ErrNilConnection is returned when a nil or unestablished connection is submitted.
	ErrNilConnection = errors.New("connection is nil")
	// ErrInvalidConfig indicates the provided configuration or URI is invalid.
	ErrInvalidConfig = errors.New("invalid connection configuration")
	// ErrNoHostAvailable is returned by Connect when the host list is empty.
	ErrNoHostAvailable = errors.New("no host available")
	// ErrConnect wraps connection establishment failures.
	ErrConnect = errors.New("mongo connect failed")
	// ErrValidation wraps liveness-probe failures.
	ErrValidation = errors.New("mongo validation failed")
	// ErrDisconnect wraps connection teardown failures.
	ErrDisconnect = errors.New("mongo disconnect failed")
	// ErrNilMongoClient is returned when the mongo driver returns a nil client.
	ErrNilMongoClient = errors.New("mongo driver returned nil client")
)

// Connection-string parse errors. Parse wraps each of them with
// ErrInvalidConfig so callers can match either the kind or the detail.
var (
	// ErrMissingScheme is returned when the URI has no scheme segment.
	ErrMissingScheme = errors.New("uri scheme is missing")
	// ErrEmptyHost is returned when a host token in the URI is empty.
	ErrEmptyHost = errors.New("uri host cannot be empty")
	// ErrInvalidPort is returned when a URI port is outside the valid TCP range.
	ErrInvalidPort = errors.New("uri port is invalid")
	// ErrInvalidCredential is returned when a percent-encoded credential cannot be decoded.
	ErrInvalidCredential = errors.New("uri credential cannot be decoded")
	// ErrInvalidSSLOption is returned when the ssl query option is neither "true" nor "false".
	ErrInvalidSSLOption = errors.New(`uri ssl option must be "true" or "false"`)
	// ErrInvalidQuery is returned when the URI query segment cannot be parsed.
	ErrInvalidQuery = errors.New("uri query is invalid")
)

// configError wraps a detail error with ErrInvalidConfig.
func configError(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
}
