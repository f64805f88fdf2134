package mongopool

import (
	"net"
	"strconv"
	"time"
)

const (
	// DefaultHostname is the hostname used when none is configured.
	DefaultHostname = "localhost"
	// DefaultPort is the MongoDB port used when none is configured.
	DefaultPort uint16 = 27017
	// DefaultDatabase is the database bound when none is configured.
	DefaultDatabase = "admin"

	defaultConnectTimeout         = 10 * time.Second
	defaultServerSelectionTimeout = 5 * time.Second
)

// Host is one network endpoint candidate for connection. It is a pure value;
// two Hosts with equal fields are interchangeable.
type Host struct {
	Hostname string
	Port     uint16
}

// DefaultHost returns localhost:27017.
func DefaultHost() Host {
	return Host{Hostname: DefaultHostname, Port: DefaultPort}
}

// Address returns the host in "hostname:port" form.
func (h Host) Address() string {
	return net.JoinHostPort(h.Hostname, strconv.Itoa(int(h.Port)))
}

// Credential is a username/password pair. Both are required together;
// a Config without a Credential requests no authentication.
type Credential struct {
	Username string
	Password string
}

// ClientCertificate points at the PEM files presented to the server in
// mutual-TLS mode.
type ClientCertificate struct {
	CertificateFile string
	KeyFile         string
}

// TLSConfig configures transport security for new connections.
//
// A non-nil Certificate selects mutual TLS ("authenticated" mode); nil
// selects server-only TLS. VerifyPeer=false disables trust validation
// entirely (host and chain checks) and exists only to accept
// self-signed/test certificates.
type TLSConfig struct {
	// CAFile is an optional path to a PEM bundle of trusted roots.
	CAFile string
	// Certificate is the optional client keypair for mutual TLS.
	Certificate *ClientCertificate
	// VerifyPeer controls server certificate validation.
	VerifyPeer bool
}

// Config describes everything needed to establish one connection. It is a
// pure value: building one performs no I/O, and a Manager never mutates the
// Config it was constructed with.
//
// An empty host list is legal here; it is rejected at connect time with
// ErrNoHostAvailable, not at build time.
type Config struct {
	// Hosts is the ordered list of candidate endpoints. Connect picks one
	// uniformly at random per call; duplicate entries weight the pick.
	Hosts []Host
	// Database is the database bound to every connection. Defaults to "admin".
	Database string
	// Credential enables authentication when non-nil.
	Credential *Credential
	// TLS enables transport security when non-nil.
	TLS *TLSConfig

	// ConnectTimeout bounds the driver dial. Defaults to 10s.
	ConnectTimeout time.Duration
	// ServerSelectionTimeout bounds driver server selection. Defaults to 5s.
	ServerSelectionTimeout time.Duration
}

// DefaultConfig returns a Config with defaults applied and no hosts.
func DefaultConfig() Config {
	return Config{Database: DefaultDatabase}
}

// clone deep-copies the Config so the copy shares no mutable state with the
// original.
func (c Config) clone() Config {
	out := c

	if c.Hosts != nil {
		out.Hosts = make([]Host, len(c.Hosts))
		copy(out.Hosts, c.Hosts)
	}

	if c.Credential != nil {
		credential := *c.Credential
		out.Credential = &credential
	}

	if c.TLS != nil {
		tlsCopy := *c.TLS
		if c.TLS.Certificate != nil {
			certCopy := *c.TLS.Certificate
			tlsCopy.Certificate = &certCopy
		}

		out.TLS = &tlsCopy
	}

	return out
}
