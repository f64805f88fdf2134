//go:build unit

package mongopool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/LerianStudio/lib-mongopool/log"
	"github.com/LerianStudio/lib-mongopool/telemetry"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

// depsSpy is a managerDeps with counters, so tests can assert which driver
// calls ran and with what arguments.
type depsSpy struct {
	pickCalls       int
	pickN           int
	pickResult      int
	connectCalls    int
	lastOptions     *options.ClientOptions
	connectErr      error
	connectNilOnly  bool
	pingCalls       int
	pingErr         error
	disconnectCalls int
	disconnectErr   error
	client          *mongo.Client
}

func newDepsSpy() *depsSpy {
	return &depsSpy{client: &mongo.Client{}}
}

func (s *depsSpy) deps() managerDeps {
	return managerDeps{
		pickHost: func(n int) int {
			s.pickCalls++
			s.pickN = n

			return s.pickResult
		},
		connect: func(_ context.Context, clientOptions *options.ClientOptions) (*mongo.Client, error) {
			s.connectCalls++
			s.lastOptions = clientOptions

			if s.connectErr != nil {
				return nil, s.connectErr
			}

			if s.connectNilOnly {
				return nil, nil
			}

			return s.client, nil
		},
		ping: func(_ context.Context, _ *mongo.Client) error {
			s.pingCalls++

			return s.pingErr
		},
		disconnect: func(_ context.Context, _ *mongo.Client) error {
			s.disconnectCalls++

			return s.disconnectErr
		},
	}
}

// spyLogger records every emitted entry.
type spyLogger struct {
	entries []spyEntry
}

type spyEntry struct {
	level   log.Level
	message string
	fields  []log.Field
}

func (l *spyLogger) Log(_ context.Context, level log.Level, msg string, fields ...log.Field) {
	l.entries = append(l.entries, spyEntry{level: level, message: msg, fields: fields})
}

func (l *spyLogger) With(_ ...log.Field) log.Logger { return l }
func (l *spyLogger) WithGroup(_ string) log.Logger  { return l }
func (l *spyLogger) Enabled(_ log.Level) bool       { return true }
func (l *spyLogger) Sync(_ context.Context) error   { return nil }

func (l *spyLogger) messages() []string {
	out := make([]string, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.message)
	}

	return out
}

func twoHostConfig() Config {
	return Config{
		Hosts: []Host{
			{Hostname: "h1", Port: 27017},
			{Hostname: "h2", Port: 27018},
		},
		Database: "orders",
	}
}

func newTestManager(cfg Config, spy *depsSpy, opts ...Option) *Manager {
	m := New(cfg, opts...)
	m.deps = spy.deps()

	return m
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNew_ClonesConfig(t *testing.T) {
	t.Parallel()

	cfg := twoHostConfig()
	cfg.Credential = &Credential{Username: "alice", Password: "secret"}

	m := New(cfg)

	cfg.Hosts[0].Hostname = "mutated"
	cfg.Credential.Password = "mutated"

	got := m.Config()
	assert.Equal(t, "h1", got.Hosts[0].Hostname)
	assert.Equal(t, "secret", got.Credential.Password)

	// Config() itself hands out a copy.
	got.Hosts[0].Hostname = "mutated-again"
	assert.Equal(t, "h1", m.Config().Hosts[0].Hostname)
}

func TestNew_NilOptionsAreSafe(t *testing.T) {
	t.Parallel()

	m := New(twoHostConfig(), nil, WithLogger(nil), nil)

	require.NotNil(t, m)
	assert.NotNil(t, m.logger)
}

func TestNewWithURI(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		m, err := NewWithURI("mongodb://h1:27017,h2:27018/orders")
		require.NoError(t, err)
		assert.Equal(t, twoHostConfig(), m.Config())
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		m, err := NewWithURI("mongodb://h1/orders?ssl=maybe")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.Nil(t, m)
	})
}

// ---------------------------------------------------------------------------
// Connect
// ---------------------------------------------------------------------------

func TestConnect_NilGuards(t *testing.T) {
	t.Parallel()

	var nilManager *Manager

	_, err := nilManager.Connect(context.Background())
	assert.ErrorIs(t, err, ErrNilManager)

	m := newTestManager(twoHostConfig(), newDepsSpy())

	_, err = m.Connect(nil) //nolint:staticcheck // nil context is the case under test
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestConnect_EmptyHostListFailsWithoutIO(t *testing.T) {
	t.Parallel()

	spy := newDepsSpy()
	m := newTestManager(Config{Database: "orders"}, spy)

	conn, err := m.Connect(context.Background())

	require.ErrorIs(t, err, ErrNoHostAvailable)
	assert.Nil(t, conn)

	assert.Zero(t, spy.pickCalls)
	assert.Zero(t, spy.connectCalls)
	assert.Zero(t, spy.pingCalls)
}

func TestConnect_PicksHostFromList(t *testing.T) {
	t.Parallel()

	spy := newDepsSpy()
	spy.pickResult = 1

	m := newTestManager(twoHostConfig(), spy)

	conn, err := m.Connect(context.Background())
	require.NoError(t, err)
	require.NotNil(t, conn)

	assert.Equal(t, 1, spy.pickCalls)
	assert.Equal(t, 2, spy.pickN)

	require.NotNil(t, spy.lastOptions)
	assert.Equal(t, []string{"h2:27018"}, spy.lastOptions.Hosts)
}

func TestConnect_DefaultHostSelectionIsUniform(t *testing.T) {
	t.Parallel()

	m := New(twoHostConfig())
	pick := m.deps.pickHost

	const draws = 2000

	seen := make(map[int]int)

	for range draws {
		idx := pick(2)
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, 2)

		seen[idx]++
	}

	// Every index must be drawn with positive frequency. The bound is loose
	// on purpose; this is a smoke test, not a statistical one.
	assert.Greater(t, seen[0], draws/10)
	assert.Greater(t, seen[1], draws/10)
}

func TestConnect_ClientOptions(t *testing.T) {
	t.Parallel()

	t.Run("defaults_without_auth_or_tls", func(t *testing.T) {
		t.Parallel()

		spy := newDepsSpy()
		m := newTestManager(twoHostConfig(), spy)

		_, err := m.Connect(context.Background())
		require.NoError(t, err)

		opts := spy.lastOptions
		require.NotNil(t, opts)

		require.NotNil(t, opts.Direct)
		assert.True(t, *opts.Direct)

		require.NotNil(t, opts.ConnectTimeout)
		assert.Equal(t, defaultConnectTimeout, *opts.ConnectTimeout)

		require.NotNil(t, opts.ServerSelectionTimeout)
		assert.Equal(t, defaultServerSelectionTimeout, *opts.ServerSelectionTimeout)

		assert.Nil(t, opts.Auth)
		assert.Nil(t, opts.TLSConfig)
	})

	t.Run("credential_maps_to_driver_auth", func(t *testing.T) {
		t.Parallel()

		cfg := twoHostConfig()
		cfg.Credential = &Credential{Username: "alice", Password: "p@ss"}

		spy := newDepsSpy()
		m := newTestManager(cfg, spy)

		_, err := m.Connect(context.Background())
		require.NoError(t, err)

		require.NotNil(t, spy.lastOptions.Auth)
		assert.Equal(t, "alice", spy.lastOptions.Auth.Username)
		assert.Equal(t, "p@ss", spy.lastOptions.Auth.Password)
		assert.True(t, spy.lastOptions.Auth.PasswordSet)
		// Authentication happens against the configured database.
		assert.Equal(t, "orders", spy.lastOptions.Auth.AuthSource)
	})

	t.Run("unauthenticated_tls", func(t *testing.T) {
		t.Parallel()

		cfg := twoHostConfig()
		cfg.TLS = &TLSConfig{VerifyPeer: false}

		spy := newDepsSpy()
		m := newTestManager(cfg, spy)

		_, err := m.Connect(context.Background())
		require.NoError(t, err)

		require.NotNil(t, spy.lastOptions.TLSConfig)
		assert.True(t, spy.lastOptions.TLSConfig.InsecureSkipVerify)
	})

	t.Run("configured_timeouts_override_defaults", func(t *testing.T) {
		t.Parallel()

		cfg := twoHostConfig()
		cfg.ConnectTimeout = 3 * time.Second
		cfg.ServerSelectionTimeout = 2 * time.Second

		spy := newDepsSpy()
		m := newTestManager(cfg, spy)

		_, err := m.Connect(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 3*time.Second, *spy.lastOptions.ConnectTimeout)
		assert.Equal(t, 2*time.Second, *spy.lastOptions.ServerSelectionTimeout)
	})
}

func TestConnect_Success(t *testing.T) {
	t.Parallel()

	spy := newDepsSpy()
	m := newTestManager(twoHostConfig(), spy)

	conn, err := m.Connect(context.Background())
	require.NoError(t, err)
	require.NotNil(t, conn)

	assert.NotEmpty(t, conn.ID())
	assert.Same(t, spy.client, conn.Client())

	require.NotNil(t, conn.Database())
	assert.Equal(t, "orders", conn.Database().Name())

	// One probe per connect, no teardown on success.
	assert.Equal(t, 1, spy.pingCalls)
	assert.Zero(t, spy.disconnectCalls)
}

func TestConnect_AssignsDistinctIDs(t *testing.T) {
	t.Parallel()

	spy := newDepsSpy()
	m := newTestManager(twoHostConfig(), spy)

	first, err := m.Connect(context.Background())
	require.NoError(t, err)

	second, err := m.Connect(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID(), second.ID())
}

func TestConnect_DialFailure(t *testing.T) {
	t.Parallel()

	spy := newDepsSpy()
	spy.connectErr = errors.New("connection refused")

	m := newTestManager(twoHostConfig(), spy)

	conn, err := m.Connect(context.Background())

	require.ErrorIs(t, err, ErrConnect)
	assert.ErrorContains(t, err, "connection refused")
	assert.Nil(t, conn)

	// A single attempt: no retry against the other host.
	assert.Equal(t, 1, spy.pickCalls)
	assert.Equal(t, 1, spy.connectCalls)
	assert.Zero(t, spy.pingCalls)
}

func TestConnect_NilClientFromDriver(t *testing.T) {
	t.Parallel()

	spy := newDepsSpy()
	spy.connectNilOnly = true

	m := newTestManager(twoHostConfig(), spy)

	conn, err := m.Connect(context.Background())

	require.ErrorIs(t, err, ErrNilMongoClient)
	assert.Nil(t, conn)
}

func TestConnect_ProbeFailureTearsDownClient(t *testing.T) {
	t.Parallel()

	spy := newDepsSpy()
	spy.pingErr = errors.New("auth failed")

	m := newTestManager(twoHostConfig(), spy)

	conn, err := m.Connect(context.Background())

	require.ErrorIs(t, err, ErrConnect)
	assert.ErrorContains(t, err, "auth failed")
	assert.Nil(t, conn)

	assert.Equal(t, 1, spy.disconnectCalls)
}

func TestConnect_WarnsWhenTLSDisabled(t *testing.T) {
	t.Parallel()

	logger := &spyLogger{}
	spy := newDepsSpy()
	m := newTestManager(twoHostConfig(), spy, WithLogger(logger))

	_, err := m.Connect(context.Background())
	require.NoError(t, err)

	var warned bool

	for _, entry := range logger.entries {
		if entry.level == log.LevelWarn {
			warned = true
		}
	}

	assert.True(t, warned, "expected a warning about a non-TLS connection, got %v", logger.messages())
}

// ---------------------------------------------------------------------------
// IsValid / HasBroken
// ---------------------------------------------------------------------------

func TestIsValid(t *testing.T) {
	t.Parallel()

	t.Run("healthy_connection", func(t *testing.T) {
		t.Parallel()

		spy := newDepsSpy()
		m := newTestManager(twoHostConfig(), spy)

		conn, err := m.Connect(context.Background())
		require.NoError(t, err)

		probesBefore := spy.pingCalls

		require.NoError(t, m.IsValid(context.Background(), conn))

		// Exactly one round trip per validation.
		assert.Equal(t, probesBefore+1, spy.pingCalls)
	})

	t.Run("broken_connection", func(t *testing.T) {
		t.Parallel()

		spy := newDepsSpy()
		m := newTestManager(twoHostConfig(), spy)

		conn, err := m.Connect(context.Background())
		require.NoError(t, err)

		spy.pingErr = errors.New("socket closed")

		err = m.IsValid(context.Background(), conn)
		require.ErrorIs(t, err, ErrValidation)
		assert.ErrorContains(t, err, "socket closed")
	})

	t.Run("guards", func(t *testing.T) {
		t.Parallel()

		spy := newDepsSpy()
		m := newTestManager(twoHostConfig(), spy)

		conn, err := m.Connect(context.Background())
		require.NoError(t, err)

		var nilManager *Manager

		assert.ErrorIs(t, nilManager.IsValid(context.Background(), conn), ErrNilManager)
		assert.ErrorIs(t, m.IsValid(nil, conn), ErrNilContext) //nolint:staticcheck // nil context is the case under test
		assert.ErrorIs(t, m.IsValid(context.Background(), nil), ErrNilConnection)
		assert.ErrorIs(t, m.IsValid(context.Background(), &Connection{}), ErrNilConnection)
	})
}

func TestHasBroken_AgreesWithIsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pingErr error
	}{
		{name: "healthy", pingErr: nil},
		{name: "broken", pingErr: errors.New("socket closed")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			spy := newDepsSpy()
			m := newTestManager(twoHostConfig(), spy)

			conn, err := m.Connect(context.Background())
			require.NoError(t, err)

			spy.pingErr = tt.pingErr

			valid := m.IsValid(context.Background(), conn)
			broken := m.HasBroken(context.Background(), conn)

			assert.Equal(t, valid != nil, broken)
		})
	}
}

// ---------------------------------------------------------------------------
// PoolManager facade
// ---------------------------------------------------------------------------

func TestPoolManagerDelegation(t *testing.T) {
	t.Parallel()

	spy := newDepsSpy()
	m := newTestManager(twoHostConfig(), spy)

	var pool PoolManager = m

	conn, err := pool.NewConnection(context.Background())
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, 1, spy.connectCalls)

	require.NoError(t, pool.Check(context.Background(), conn))
	assert.False(t, pool.IsUnusable(context.Background(), conn))

	spy.pingErr = errors.New("socket closed")

	require.Error(t, pool.Check(context.Background(), conn))
	assert.True(t, pool.IsUnusable(context.Background(), conn))
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

func TestConnect_FailureIncrementsCounter(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	factory, err := telemetry.NewFactory(provider.Meter("test"))
	require.NoError(t, err)

	spy := newDepsSpy()
	spy.connectErr = errors.New("connection refused")

	m := newTestManager(twoHostConfig(), spy, WithMetrics(factory))

	_, err = m.Connect(context.Background())
	require.ErrorIs(t, err, ErrConnect)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)
	assert.Equal(t, "mongopool_connection_failures_total", rm.ScopeMetrics[0].Metrics[0].Name)

	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)
}
