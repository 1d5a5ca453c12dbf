package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/prathamsinghrao/Etl-Lib/pkg/errors"
	"github.com/prathamsinghrao/Etl-Lib/pkg/metrics"
	"github.com/prathamsinghrao/Etl-Lib/pkg/models"
	"github.com/prathamsinghrao/Etl-Lib/pkg/pool"
)

// RecordPoolName is the registry name of the record pool every execution
// context carries. Nodes and connectors borrow records from this pool and
// return them once a record has been fully consumed.
const RecordPoolName = "records"

// Connection is a disposable handle to an external system. Factories return
// connections, operations use them, and the owner closes them when done.
type Connection interface {
	Close() error
}

// ConnectionFactory creates named connections on demand. Implementations
// resolve the name against their own configuration (DSNs, credentials) so
// operations never carry connection details themselves.
type ConnectionFactory interface {
	CreateNamedConnection(ctx context.Context, name string) (Connection, error)
}

// ErrorPolicy decides whether execution continues after a fault. It receives
// the execution context and the errors captured at the fault point; returning
// true resumes with the next unit of work, false aborts the pipeline.
type ErrorPolicy func(pctx *Context, errs []*errors.Error) bool

// ContinueOnError is a policy that keeps the pipeline running no matter what
// failed. Errors are still collected into the pipeline result.
func ContinueOnError() ErrorPolicy {
	return func(*Context, []*errors.Error) bool { return true }
}

// AbortOnError is a policy that stops the pipeline at the first fault. This
// is the default when no policy is configured.
func AbortOnError() ErrorPolicy {
	return func(*Context, []*errors.Error) bool { return false }
}

// Context is the shared execution state of one pipeline run. It carries the
// configuration and state maps, the object pool registry, the connection
// factory and the logger. A fresh context is created per execution so runs
// never observe each other's state.
//
// All map accessors are safe for concurrent use; parallel groups and stream
// processes read and write the same context from many goroutines.
type Context struct {
	id     string
	runCtx context.Context

	mu     sync.RWMutex
	config map[string]interface{}
	state  map[string]interface{}

	pools   *pool.Registry
	records *pool.Pool[*models.Record]

	connections ConnectionFactory
	logger      *zap.Logger
	policy      ErrorPolicy
}

// ContextOption configures a Context during construction.
type ContextOption func(*contextOptions)

type contextOptions struct {
	runCtx      context.Context
	logger      *zap.Logger
	policy      ErrorPolicy
	connections ConnectionFactory
	properties  map[string]interface{}

	poolInitial  int
	poolAutoGrow bool
	poolTracking bool
}

// WithContext attaches a parent context.Context carried through to
// connections and any operation that performs blocking work.
func WithContext(ctx context.Context) ContextOption {
	return func(o *contextOptions) { o.runCtx = ctx }
}

// WithLogger sets the logger operations obtain through Logger. Defaults to a
// no-op logger so library use stays silent unless wired.
func WithLogger(logger *zap.Logger) ContextOption {
	return func(o *contextOptions) { o.logger = logger }
}

// WithErrorPolicy sets the error-decision function consulted after faults.
func WithErrorPolicy(policy ErrorPolicy) ContextOption {
	return func(o *contextOptions) { o.policy = policy }
}

// WithConnectionFactory sets the factory behind Connection.
func WithConnectionFactory(factory ConnectionFactory) ContextOption {
	return func(o *contextOptions) { o.connections = factory }
}

// WithProperties seeds the configuration map.
func WithProperties(props map[string]interface{}) ContextOption {
	return func(o *contextOptions) { o.properties = props }
}

// WithRecordPool sizes the record pool registered under RecordPoolName.
func WithRecordPool(initial int, autoGrow, tracking bool) ContextOption {
	return func(o *contextOptions) {
		o.poolInitial = initial
		o.poolAutoGrow = autoGrow
		o.poolTracking = tracking
	}
}

// NewContext creates an execution context with its own pool registry and a
// registered record pool. The zero configuration is usable: background
// context, no-op logger, abort-on-error policy and a growing record pool.
func NewContext(opts ...ContextOption) (*Context, error) {
	o := &contextOptions{
		runCtx:       context.Background(),
		logger:       zap.NewNop(),
		policy:       AbortOnError(),
		poolInitial:  1024,
		poolAutoGrow: true,
	}
	for _, opt := range opts {
		opt(o)
	}

	registry := pool.NewRegistry()
	records, err := pool.Register(registry, RecordPoolName, o.poolInitial, o.poolAutoGrow,
		func() *models.Record { return models.NewRecord() },
		func(r *models.Record) { r.Reset() },
	)
	if err != nil {
		return nil, err
	}
	if o.poolTracking {
		records.EnableTracking()
	}

	c := &Context{
		id:          uuid.NewString(),
		runCtx:      o.runCtx,
		config:      make(map[string]interface{}),
		state:       make(map[string]interface{}),
		pools:       registry,
		records:     records,
		connections: o.connections,
		logger:      o.logger,
		policy:      o.policy,
	}
	for k, v := range o.properties {
		c.config[k] = v
	}
	return c, nil
}

// ID returns the unique identifier of this execution.
func (c *Context) ID() string {
	return c.id
}

// Context returns the context.Context this execution runs under.
func (c *Context) Context() context.Context {
	return c.runCtx
}

// Config returns the configuration value stored under key.
func (c *Context) Config(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.config[key]
	return v, ok
}

// SetConfig stores a configuration value under key.
func (c *Context) SetConfig(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config[key] = value
}

// ConfigString returns the configuration value under key as a string.
func (c *Context) ConfigString(key string) (string, error) {
	v, ok := c.Config(key)
	if !ok {
		return "", missingKey("config", key)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", conversionError("config", key, "string", err)
	}
	return s, nil
}

// ConfigInt returns the configuration value under key as an int64.
func (c *Context) ConfigInt(key string) (int64, error) {
	v, ok := c.Config(key)
	if !ok {
		return 0, missingKey("config", key)
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return 0, conversionError("config", key, "int64", err)
	}
	return n, nil
}

// ConfigBool returns the configuration value under key as a bool.
func (c *Context) ConfigBool(key string) (bool, error) {
	v, ok := c.Config(key)
	if !ok {
		return false, missingKey("config", key)
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, conversionError("config", key, "bool", err)
	}
	return b, nil
}

// State returns the state value stored under key.
func (c *Context) State(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.state[key]
	return v, ok
}

// SetState stores a state value under key.
func (c *Context) SetState(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[key] = value
}

// UpdateState atomically replaces the state value under key with the result
// of fn applied to the current value. fn receives nil when no value is set.
// Loop bodies use this for counters that must not race.
func (c *Context) UpdateState(key string, fn func(current interface{}) interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[key] = fn(c.state[key])
}

// StateString returns the state value under key as a string.
func (c *Context) StateString(key string) (string, error) {
	v, ok := c.State(key)
	if !ok {
		return "", missingKey("state", key)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", conversionError("state", key, "string", err)
	}
	return s, nil
}

// StateInt returns the state value under key as an int64.
func (c *Context) StateInt(key string) (int64, error) {
	v, ok := c.State(key)
	if !ok {
		return 0, missingKey("state", key)
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return 0, conversionError("state", key, "int64", err)
	}
	return n, nil
}

// Pools returns the pool registry owned by this context. Additional typed
// pools can be registered alongside the record pool.
func (c *Context) Pools() *pool.Registry {
	return c.pools
}

// BorrowRecord borrows a record from the context's record pool.
func (c *Context) BorrowRecord() (*models.Record, error) {
	rec, err := c.records.Borrow()
	if err != nil {
		if errors.IsType(err, errors.ErrorTypePoolExhausted) {
			metrics.PoolExhaustions.WithLabelValues(RecordPoolName).Inc()
		}
		return nil, err
	}
	metrics.PoolInUse.WithLabelValues(RecordPoolName).Inc()
	return rec, nil
}

// ReturnRecord returns a record to the context's record pool.
func (c *Context) ReturnRecord(r *models.Record) {
	if r == nil {
		return
	}
	c.records.Return(r)
	metrics.PoolInUse.WithLabelValues(RecordPoolName).Dec()
}

// Connection resolves name through the configured connection factory.
func (c *Context) Connection(name string) (Connection, error) {
	if c.connections == nil {
		return nil, errors.New(errors.ErrorTypeConfig,
			fmt.Sprintf("no connection factory configured, cannot resolve connection %q", name))
	}
	conn, err := c.connections.CreateNamedConnection(c.runCtx, name)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection,
			fmt.Sprintf("failed to create connection %q", name))
	}
	return conn, nil
}

// Logger returns a logger named after the requesting component.
func (c *Context) Logger(component string) *zap.Logger {
	if component == "" {
		return c.logger
	}
	return c.logger.Named(component)
}

// ShouldContinue consults the error policy with the errors captured at a
// fault point. A true result means execution resumes with the next unit of
// work; false means the run aborts.
func (c *Context) ShouldContinue(errs []*errors.Error) bool {
	if c.policy == nil {
		return false
	}
	return c.policy(c, errs)
}

// Close releases every pool registered on this context. Borrowed instances
// still in flight are abandoned; late returns are dropped.
func (c *Context) Close() {
	if abandoned := c.records.InUse(); abandoned > 0 {
		metrics.PoolInUse.WithLabelValues(RecordPoolName).Sub(float64(abandoned))
	}
	c.pools.Deallocate()
}

// Storage convenience keys. Connectors look up their target location and
// credentials under these well-known configuration keys.

// SetStoragePath records the filesystem or object path for a named storage.
func (c *Context) SetStoragePath(name, path string) {
	c.SetConfig(storageKey(name, "path"), path)
}

// StoragePath returns the path configured for a named storage.
func (c *Context) StoragePath(name string) (string, error) {
	return c.ConfigString(storageKey(name, "path"))
}

// SetStorageCredentials records the user and secret for a named storage.
func (c *Context) SetStorageCredentials(name, user, secret string) {
	c.SetConfig(storageKey(name, "user"), user)
	c.SetConfig(storageKey(name, "secret"), secret)
}

// StorageCredentials returns the credentials configured for a named storage.
func (c *Context) StorageCredentials(name string) (user, secret string, err error) {
	user, err = c.ConfigString(storageKey(name, "user"))
	if err != nil {
		return "", "", err
	}
	secret, err = c.ConfigString(storageKey(name, "secret"))
	if err != nil {
		return "", "", err
	}
	return user, secret, nil
}

func storageKey(name, field string) string {
	return fmt.Sprintf("storage.%s.%s", name, field)
}

func missingKey(scope, key string) *errors.Error {
	return errors.New(errors.ErrorTypeValidation,
		fmt.Sprintf("%s key %q is not set", scope, key))
}

func conversionError(scope, key, target string, cause error) *errors.Error {
	return errors.Wrap(cause, errors.ErrorTypeData,
		fmt.Sprintf("%s key %q is not convertible to %s", scope, key, target)).
		WithDetail("key", key).
		WithDetail("target_type", target)
}
