package mongopool

import (
	"context"
	"fmt"
	"sync"

	"github.com/LerianStudio/lib-mongopool/telemetry"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Connection is the pooled resource: the driver client plus the database
// handle bound to it. Each Connection is owned by exactly one pool slot at
// a time; the pool guarantees it is never used and validated concurrently.
//
// The Connection exclusively owns the underlying client and releases it
// exactly once, on the first Close; later Close calls are no-ops.
type Connection struct {
	id       string
	client   *mongo.Client
	database *mongo.Database

	disconnect func(ctx context.Context, client *mongo.Client) error

	closeOnce sync.Once
}

// ID returns the connection's identity, used for log/span correlation.
func (c *Connection) ID() string {
	if c == nil {
		return ""
	}

	return c.id
}

// Client returns the underlying driver client, for validation and teardown.
func (c *Connection) Client() *mongo.Client {
	if c == nil {
		return nil
	}

	return c.client
}

// Database returns the bound database handle; ordinary callers operate on
// this.
func (c *Connection) Database() *mongo.Database {
	if c == nil {
		return nil
	}

	return c.database
}

// Close releases the driver client. The first call performs the disconnect
// and returns its result; every later call is a no-op returning nil, so the
// pool's discard path and a caller's own cleanup can race safely.
func (c *Connection) Close(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}

	if ctx == nil {
		return ErrNilContext
	}

	var err error

	ran := false

	c.closeOnce.Do(func() {
		ran = true

		ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "mongopool.close")
		defer span.End()

		span.SetAttributes(
			attribute.String(telemetry.AttrDBSystem, telemetry.DBSystemMongoDB),
			attribute.String(telemetry.AttrConnectionID, c.id),
		)

		err = c.disconnect(ctx, c.client)
		if err != nil {
			telemetry.HandleSpanError(span, "disconnect failed", err)
		}
	})

	if !ran || err == nil {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrDisconnect, err)
}
