// Package clients provides the SQL connection factory behind the execution
// context. Connections are declared by name in the pipeline configuration;
// operations and streaming nodes resolve them through the context, and every
// resolution yields a dedicated database session that is not shared with any
// other caller.
package clients

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"go.uber.org/zap"

	"github.com/prathamsinghrao/Etl-Lib/pkg/config"
	"github.com/prathamsinghrao/Etl-Lib/pkg/errors"
	"github.com/prathamsinghrao/Etl-Lib/pkg/pipeline"
)

// Conn is one dedicated database session checked out of the factory. It
// embeds *sql.Conn, so callers query and exec on it directly. Close returns
// the session to the underlying pool without affecting other sessions.
type Conn struct {
	*sql.Conn

	name   string
	driver string
}

// Name reports the configured connection name this session was resolved from.
func (c *Conn) Name() string { return c.name }

// Driver reports the database/sql driver name behind the session.
func (c *Conn) Driver() string { return c.driver }

// SQLFactory resolves named connections to dedicated database sessions. One
// *sql.DB handle is opened lazily per configured name; CreateNamedConnection
// checks a single session out of that handle, so concurrent callers never
// share a session even when they share a name.
type SQLFactory struct {
	mu      sync.Mutex
	configs map[string]config.ConnectionConfig
	handles map[string]*sql.DB
	logger  *zap.Logger
}

var _ pipeline.ConnectionFactory = (*SQLFactory)(nil)

// NewSQLFactory builds a factory over named connection configurations,
// typically config.PipelineConfig.Connections.
func NewSQLFactory(configs map[string]config.ConnectionConfig, log *zap.Logger) *SQLFactory {
	if log == nil {
		log = zap.NewNop()
	}
	return &SQLFactory{
		configs: configs,
		handles: make(map[string]*sql.DB),
		logger:  log.Named("clients"),
	}
}

// CreateNamedConnection resolves name to a dedicated session. The first
// resolution of each name opens and pings the underlying handle; later
// resolutions reuse it. The caller owns the returned connection and must
// close it.
func (f *SQLFactory) CreateNamedConnection(ctx context.Context, name string) (pipeline.Connection, error) {
	cc, ok := f.configs[name]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "connection %q is not configured", name)
	}

	db, err := f.handle(ctx, name, cc)
	if err != nil {
		return nil, err
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection,
			fmt.Sprintf("failed to check out session for connection %q", name))
	}

	return &Conn{Conn: conn, name: name, driver: cc.Driver}, nil
}

// Close shuts down every handle the factory opened. Sessions already checked
// out remain usable until their own Close.
func (f *SQLFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error
	for name, db := range f.handles {
		if err := db.Close(); err != nil {
			f.logger.Warn("failed to close connection handle",
				zap.String("connection", name), zap.Error(err))
			if firstErr == nil {
				firstErr = errors.Wrap(err, errors.ErrorTypeConnection,
					fmt.Sprintf("failed to close connection %q", name))
			}
		}
		delete(f.handles, name)
	}
	return firstErr
}

func (f *SQLFactory) handle(ctx context.Context, name string, cc config.ConnectionConfig) (*sql.DB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if db, ok := f.handles[name]; ok {
		return db, nil
	}

	db, err := Open(ctx, cc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection,
			fmt.Sprintf("failed to open connection %q", name))
	}
	f.handles[name] = db

	f.logger.Info("opened connection handle",
		zap.String("connection", name),
		zap.String("driver", cc.Driver),
		zap.Int("max_open_conns", cc.MaxOpenConns),
		zap.Int("max_idle_conns", cc.MaxIdleConns))

	return db, nil
}

// Open opens and pings a *sql.DB for one connection configuration, applying
// its pool limits. Most callers want the factory instead; Open exists for
// code that manages its own handle lifecycle.
func Open(ctx context.Context, cc config.ConnectionConfig) (*sql.DB, error) {
	db, err := sql.Open(cc.Driver, cc.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open database handle")
	}

	if cc.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cc.MaxOpenConns)
	}
	if cc.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cc.MaxIdleConns)
	}
	if cc.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cc.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to ping database")
	}

	return db, nil
}
