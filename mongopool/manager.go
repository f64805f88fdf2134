package mongopool

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/LerianStudio/lib-mongopool/log"
	"github.com/LerianStudio/lib-mongopool/telemetry"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// PoolManager is the contract a generic resource-pool engine calls back
// into: create a connection for an empty slot, revalidate a connection
// before lending it out, and decide whether a connection must be discarded.
type PoolManager interface {
	NewConnection(ctx context.Context) (*Connection, error)
	Check(ctx context.Context, conn *Connection) error
	IsUnusable(ctx context.Context, conn *Connection) bool
}

// connectionFailuresMetric counts Connect calls that did not produce a
// usable connection.
var connectionFailuresMetric = telemetry.Metric{
	Name:        "mongopool_connection_failures_total",
	Unit:        "1",
	Description: "Total number of connection attempts that failed",
}

// validationFailuresMetric counts liveness probes that found a connection
// unusable.
var validationFailuresMetric = telemetry.Metric{
	Name:        "mongopool_validation_failures_total",
	Unit:        "1",
	Description: "Total number of connection validations that failed",
}

// Manager creates and validates pooled connections from a Config. It holds
// no mutable state after construction and is safe for concurrent use by all
// pool workers without locking.
type Manager struct {
	cfg     Config
	logger  log.Logger
	metrics *telemetry.Factory
	deps    managerDeps
}

// Compile-time assertion: *Manager implements PoolManager.
var _ PoolManager = (*Manager)(nil)

// managerDeps isolates the driver calls and the host-selection randomness
// so unit tests can substitute deterministic implementations.
type managerDeps struct {
	pickHost   func(n int) int
	connect    func(ctx context.Context, clientOptions *options.ClientOptions) (*mongo.Client, error)
	ping       func(ctx context.Context, client *mongo.Client) error
	disconnect func(ctx context.Context, client *mongo.Client) error
}

func defaultDeps() managerDeps {
	return managerDeps{
		pickHost: rand.IntN,
		connect: func(ctx context.Context, clientOptions *options.ClientOptions) (*mongo.Client, error) {
			return mongo.Connect(ctx, clientOptions)
		},
		ping: func(ctx context.Context, client *mongo.Client) error {
			return client.Ping(ctx, nil)
		},
		disconnect: func(ctx context.Context, client *mongo.Client) error {
			return client.Disconnect(ctx)
		},
	}
}

// Option customizes a Manager at construction time.
type Option func(*Manager)

// WithLogger attaches a structured logger. Nil is replaced by the no-op
// logger.
func WithLogger(logger log.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics attaches a telemetry factory for the manager's operational
// counters. Nil disables metric recording.
func WithMetrics(factory *telemetry.Factory) Option {
	return func(m *Manager) {
		m.metrics = factory
	}
}

// New creates a Manager for the given configuration. The Config is deep-
// copied; the caller's value cannot influence the Manager afterwards.
func New(cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:    cfg.clone(),
		logger: log.NewNop(),
		deps:   defaultDeps(),
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		opt(m)
	}

	if m.logger == nil {
		m.logger = log.NewNop()
	}

	return m
}

// NewWithURI creates a Manager from a connection-string URI. Parse failures
// wrap ErrInvalidConfig.
func NewWithURI(uri string, opts ...Option) (*Manager, error) {
	cfg, err := Parse(uri)
	if err != nil {
		return nil, err
	}

	return New(cfg, opts...), nil
}

// Config returns a copy of the manager's configuration.
func (m *Manager) Config() Config {
	if m == nil {
		return Config{}
	}

	return m.cfg.clone()
}

// Connect establishes one new connection: it picks a host uniformly at
// random from the configured list, assembles transport and authentication
// parameters, dials through the driver, probes the result, and binds the
// configured database.
//
// Each call is a single independent attempt — a failure on the chosen host
// is returned to the caller rather than retried against another host; the
// owning pool decides whether to call again (re-running the random pick).
func (m *Manager) Connect(ctx context.Context) (*Connection, error) {
	if m == nil {
		return nil, ErrNilManager
	}

	if ctx == nil {
		return nil, ErrNilContext
	}

	tracer := otel.Tracer(telemetry.TracerName)

	ctx, span := tracer.Start(ctx, "mongopool.connect")
	defer span.End()

	span.SetAttributes(
		attribute.String(telemetry.AttrDBSystem, telemetry.DBSystemMongoDB),
		attribute.String(telemetry.AttrDBName, m.cfg.Database),
	)

	if len(m.cfg.Hosts) == 0 {
		telemetry.HandleSpanError(span, "no host available", ErrNoHostAvailable)

		return nil, ErrNoHostAvailable
	}

	host := m.cfg.Hosts[m.deps.pickHost(len(m.cfg.Hosts))]

	clientOptions, err := m.clientOptions(host)
	if err != nil {
		m.recordFailure(connectionFailuresMetric, "connect")

		telemetry.HandleSpanError(span, "failed to assemble client options", err)

		return nil, err
	}

	client, err := m.deps.connect(ctx, clientOptions)
	if err != nil {
		m.recordFailure(connectionFailuresMetric, "connect")
		m.log(ctx, "mongo connect failed", log.String("host", host.Address()), log.Err(err))

		telemetry.HandleSpanError(span, "failed to connect to mongo", err)

		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	if client == nil {
		m.recordFailure(connectionFailuresMetric, "connect")

		telemetry.HandleSpanError(span, "driver returned nil client", ErrNilMongoClient)

		return nil, ErrNilMongoClient
	}

	// The driver defers dialing, so probe now: without this, DNS/TCP/TLS/auth
	// failures would not surface from Connect as the pool contract requires.
	if err := m.deps.ping(ctx, client); err != nil {
		if disconnectErr := m.deps.disconnect(ctx, client); disconnectErr != nil {
			m.log(ctx, "failed to disconnect after probe failure", log.Err(disconnectErr))
		}

		m.recordFailure(connectionFailuresMetric, "connect")
		m.log(ctx, "mongo connect probe failed", log.String("host", host.Address()), log.Err(err))

		telemetry.HandleSpanError(span, "connect probe failed", err)

		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	conn := &Connection{
		id:         uuid.NewString(),
		client:     client,
		database:   client.Database(m.cfg.Database),
		disconnect: m.deps.disconnect,
	}

	span.SetAttributes(attribute.String(telemetry.AttrConnectionID, conn.id))

	if m.cfg.TLS == nil {
		m.logAtLevel(ctx, log.LevelWarn, "mongo connection established without TLS; "+
			"consider configuring TLS for production use")
	}

	m.log(ctx, "mongo connection established",
		log.String("host", host.Address()),
		log.String("connection_id", conn.id),
	)

	return conn, nil
}

// clientOptions assembles driver parameters for the selected host. The
// client is pinned to that single host (direct mode) so the random pick,
// not driver topology discovery, decides where traffic lands.
func (m *Manager) clientOptions(host Host) (*options.ClientOptions, error) {
	connectTimeout := m.cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}

	serverSelectionTimeout := m.cfg.ServerSelectionTimeout
	if serverSelectionTimeout <= 0 {
		serverSelectionTimeout = defaultServerSelectionTimeout
	}

	clientOptions := options.Client().
		SetHosts([]string{host.Address()}).
		SetDirect(true).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(serverSelectionTimeout)

	if m.cfg.TLS != nil {
		tlsConfig, err := buildTLSConfig(*m.cfg.TLS)
		if err != nil {
			return nil, err
		}

		clientOptions.SetTLSConfig(tlsConfig)
	}

	if m.cfg.Credential != nil {
		clientOptions.SetAuth(options.Credential{
			AuthSource:  m.cfg.Database,
			Username:    m.cfg.Credential.Username,
			Password:    m.cfg.Credential.Password,
			PasswordSet: true,
		})
	}

	return clientOptions, nil
}

// IsValid issues one lightweight liveness probe against the connection and
// returns nil iff it still responds. The check is point-in-time: it keeps
// no memory of past probes and performs exactly one round trip.
func (m *Manager) IsValid(ctx context.Context, conn *Connection) error {
	if m == nil {
		return ErrNilManager
	}

	if ctx == nil {
		return ErrNilContext
	}

	if conn == nil || conn.client == nil {
		return ErrNilConnection
	}

	tracer := otel.Tracer(telemetry.TracerName)

	ctx, span := tracer.Start(ctx, "mongopool.validate")
	defer span.End()

	span.SetAttributes(
		attribute.String(telemetry.AttrDBSystem, telemetry.DBSystemMongoDB),
		attribute.String(telemetry.AttrConnectionID, conn.id),
	)

	if err := m.deps.ping(ctx, conn.client); err != nil {
		m.recordFailure(validationFailuresMetric, "validate")
		m.log(ctx, "mongo validation failed", log.String("connection_id", conn.id), log.Err(err))

		telemetry.HandleSpanError(span, "validation probe failed", err)

		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	return nil
}

// HasBroken reports whether the connection would fail validation right now.
// It is a pure derivation from IsValid — the two can never disagree, so the
// owning pool cannot keep a connection that validation rejects or discard
// one that validation would accept.
func (m *Manager) HasBroken(ctx context.Context, conn *Connection) bool {
	return m.IsValid(ctx, conn) != nil
}

// NewConnection implements PoolManager.
func (m *Manager) NewConnection(ctx context.Context) (*Connection, error) {
	return m.Connect(ctx)
}

// Check implements PoolManager.
func (m *Manager) Check(ctx context.Context, conn *Connection) error {
	return m.IsValid(ctx, conn)
}

// IsUnusable implements PoolManager.
func (m *Manager) IsUnusable(ctx context.Context, conn *Connection) bool {
	return m.HasBroken(ctx, conn)
}

func (m *Manager) log(ctx context.Context, message string, fields ...log.Field) {
	m.logAtLevel(ctx, log.LevelDebug, message, fields...)
}

func (m *Manager) logAtLevel(ctx context.Context, level log.Level, message string, fields ...log.Field) {
	if m == nil || m.logger == nil {
		return
	}

	if !m.logger.Enabled(level) {
		return
	}

	m.logger.Log(ctx, level, message, fields...)
}

// recordFailure increments the given counter. No-op without a factory.
func (m *Manager) recordFailure(metric telemetry.Metric, operation string) {
	if m == nil || m.metrics == nil {
		return
	}

	counter, err := m.metrics.Counter(metric)
	if err != nil {
		m.logAtLevel(context.Background(), log.LevelWarn, "failed to create metric counter", log.Err(err))

		return
	}

	err = counter.
		WithLabels(map[string]string{
			"operation": telemetry.SanitizeMetricLabel(operation),
		}).
		AddOne(context.Background())
	if err != nil {
		m.logAtLevel(context.Background(), log.LevelWarn, "failed to record metric", log.Err(err))
	}
}
