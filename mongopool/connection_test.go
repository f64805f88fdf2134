//go:build unit

package mongopool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestConnection_NilReceiverAccessors(t *testing.T) {
	t.Parallel()

	var conn *Connection

	assert.Empty(t, conn.ID())
	assert.Nil(t, conn.Client())
	assert.Nil(t, conn.Database())
	assert.NoError(t, conn.Close(context.Background()))
}

func TestConnection_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	calls := 0
	conn := &Connection{
		id:     "test-connection",
		client: &mongo.Client{},
		disconnect: func(_ context.Context, _ *mongo.Client) error {
			calls++

			return nil
		},
	}

	require.NoError(t, conn.Close(context.Background()))
	require.NoError(t, conn.Close(context.Background()))
	require.NoError(t, conn.Close(context.Background()))

	assert.Equal(t, 1, calls)
}

func TestConnection_CloseReportsFirstErrorOnly(t *testing.T) {
	t.Parallel()

	conn := &Connection{
		id:     "test-connection",
		client: &mongo.Client{},
		disconnect: func(_ context.Context, _ *mongo.Client) error {
			return errors.New("already shut down")
		},
	}

	err := conn.Close(context.Background())
	require.ErrorIs(t, err, ErrDisconnect)
	assert.ErrorContains(t, err, "already shut down")

	// The disconnect already ran; later calls are no-ops.
	assert.NoError(t, conn.Close(context.Background()))
}

func TestConnection_CloseNilContext(t *testing.T) {
	t.Parallel()

	conn := &Connection{
		id:     "test-connection",
		client: &mongo.Client{},
		disconnect: func(_ context.Context, _ *mongo.Client) error {
			return nil
		},
	}

	err := conn.Close(nil) //nolint:staticcheck // nil context is the case under test
	require.ErrorIs(t, err, ErrNilContext)

	// The failed call must not consume the one-shot teardown.
	assert.NoError(t, conn.Close(context.Background()))
}
