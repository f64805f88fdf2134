package mongopool

import "time"

// Builder accumulates a Config through chained calls. Each call mutates one
// field and returns the same builder; Build snapshots the accumulated state.
//
// WithHost appends, so calling it repeatedly produces a multi-host
// (replica-set-style) configuration. The security slot is single-valued:
// a later WithSSL or WithUnauthenticatedSSL replaces the earlier setting.
type Builder struct {
	cfg Config
}

// NewBuilder returns a Builder seeded with DefaultConfig.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

// WithHost appends a candidate host to the host list.
func (b *Builder) WithHost(hostname string, port uint16) *Builder {
	b.cfg.Hosts = append(b.cfg.Hosts, Host{Hostname: hostname, Port: port})

	return b
}

// WithDB sets the database to bind connections to.
func (b *Builder) WithDB(name string) *Builder {
	b.cfg.Database = name

	return b
}

// WithAuth sets the credential pair used to authenticate connections.
func (b *Builder) WithAuth(username, password string) *Builder {
	b.cfg.Credential = &Credential{Username: username, Password: password}

	return b
}

// WithSSL enables mutual TLS. caFile may be empty to use the system roots;
// certificateFile and keyFile are the client keypair presented to the server.
func (b *Builder) WithSSL(caFile, certificateFile, keyFile string, verifyPeer bool) *Builder {
	b.cfg.TLS = &TLSConfig{
		CAFile: caFile,
		Certificate: &ClientCertificate{
			CertificateFile: certificateFile,
			KeyFile:         keyFile,
		},
		VerifyPeer: verifyPeer,
	}

	return b
}

// WithUnauthenticatedSSL enables server-only TLS. caFile may be empty to use
// the system roots.
func (b *Builder) WithUnauthenticatedSSL(caFile string, verifyPeer bool) *Builder {
	b.cfg.TLS = &TLSConfig{
		CAFile:     caFile,
		VerifyPeer: verifyPeer,
	}

	return b
}

// WithConnectTimeout overrides the driver dial timeout.
func (b *Builder) WithConnectTimeout(d time.Duration) *Builder {
	b.cfg.ConnectTimeout = d

	return b
}

// WithServerSelectionTimeout overrides the driver server-selection timeout.
func (b *Builder) WithServerSelectionTimeout(d time.Duration) *Builder {
	b.cfg.ServerSelectionTimeout = d

	return b
}

// Build snapshots the accumulated state into an immutable Config. The
// builder remains usable afterwards; later calls do not affect the snapshot.
func (b *Builder) Build() Config {
	return b.cfg.clone()
}
