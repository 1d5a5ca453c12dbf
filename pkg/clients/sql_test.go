package clients

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/prathamsinghrao/Etl-Lib/pkg/config"
	"github.com/prathamsinghrao/Etl-Lib/pkg/errors"
)

// stubDriver is a database/sql driver that hands out no-op connections. It
// lets the factory be exercised without a live database.
type stubDriver struct {
	opens    atomic.Int64
	failPing bool
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	d.opens.Add(1)
	return &stubDriverConn{failPing: d.failPing}, nil
}

type stubDriverConn struct {
	failPing bool
}

func (c *stubDriverConn) Prepare(string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare not supported")
}

func (c *stubDriverConn) Close() error { return nil }

func (c *stubDriverConn) Begin() (driver.Tx, error) {
	return nil, fmt.Errorf("transactions not supported")
}

func (c *stubDriverConn) Ping(context.Context) error {
	if c.failPing {
		return fmt.Errorf("ping refused")
	}
	return nil
}

var (
	healthyDriver  = &stubDriver{}
	pingLessDriver = &stubDriver{failPing: true}
)

func init() {
	sql.Register("stub", healthyDriver)
	sql.Register("stub-noping", pingLessDriver)
}

func TestFactoryResolvesNamedConnections(t *testing.T) {
	factory := NewSQLFactory(map[string]config.ConnectionConfig{
		"warehouse": {Driver: "stub", DSN: "stub://warehouse"},
	}, zaptest.NewLogger(t))
	t.Cleanup(func() { require.NoError(t, factory.Close()) })

	conn, err := factory.CreateNamedConnection(context.Background(), "warehouse")
	require.NoError(t, err)

	session, ok := conn.(*Conn)
	require.True(t, ok, "expected a *clients.Conn, got %T", conn)
	assert.Equal(t, "warehouse", session.Name())
	assert.Equal(t, "stub", session.Driver())

	require.NoError(t, conn.Close())
}

func TestFactorySessionsAreNotShared(t *testing.T) {
	factory := NewSQLFactory(map[string]config.ConnectionConfig{
		"warehouse": {Driver: "stub", DSN: "stub://warehouse"},
	}, zaptest.NewLogger(t))
	t.Cleanup(func() { require.NoError(t, factory.Close()) })

	first, err := factory.CreateNamedConnection(context.Background(), "warehouse")
	require.NoError(t, err)
	second, err := factory.CreateNamedConnection(context.Background(), "warehouse")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	require.NoError(t, first.Close())
	require.NoError(t, second.Close())
}

func TestFactoryUnknownConnection(t *testing.T) {
	factory := NewSQLFactory(nil, zaptest.NewLogger(t))
	t.Cleanup(func() { require.NoError(t, factory.Close()) })

	_, err := factory.CreateNamedConnection(context.Background(), "nowhere")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), `"nowhere"`)
}

func TestFactoryPingFailure(t *testing.T) {
	factory := NewSQLFactory(map[string]config.ConnectionConfig{
		"unreachable": {Driver: "stub-noping", DSN: "stub://nowhere"},
	}, zaptest.NewLogger(t))
	t.Cleanup(func() { require.NoError(t, factory.Close()) })

	_, err := factory.CreateNamedConnection(context.Background(), "unreachable")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	assert.Contains(t, err.Error(), `"unreachable"`)
}

func TestOpenAppliesPoolLimits(t *testing.T) {
	db, err := Open(context.Background(), config.ConnectionConfig{
		Driver:          "stub",
		DSN:             "stub://limits",
		MaxOpenConns:    7,
		MaxIdleConns:    3,
		ConnMaxLifetime: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	assert.Equal(t, 7, db.Stats().MaxOpenConnections)
	assert.Positive(t, healthyDriver.opens.Load())
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.ConnectionConfig{
		Driver: "no-such-driver",
		DSN:    "whatever",
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}
