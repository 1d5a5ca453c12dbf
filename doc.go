// Package etl is a single-process framework for declaratively composing and
// executing data-transformation pipelines.
//
// A pipeline is a sequence of operations built once and executed against a
// fresh context per run. Three layers make up the framework:
//
// 1. Operation model: actions, scalars and enumerables composed with
// sequences, conditionals, do-while loops and parallel groups. Every
// operation returns a Result; failures and aborts travel inside results,
// never as panics.
//
// 2. Streaming runtime: source, transform, sink and merge nodes running as
// concurrent workers connected by bounded queues. A full queue blocks the
// producer, so memory stays proportional to queue capacity rather than
// dataset size.
//
// 3. Object pool: typed free-list pools amortize per-record allocation.
// Records are borrowed from the execution context, flow through the node
// graph, and return to the pool at the sink.
//
// # Quick Start
//
// Stream a CSV file into PostgreSQL:
//
//	proc, _ := stream.NewProcessBuilder("ingest").
//	    AddSource(mustSource(csv.NewSource("extract", map[string]interface{}{
//	        "path": "users.csv",
//	    })), "rows").
//	    AddSink(mustSink(postgres.NewSink("load", map[string]interface{}{
//	        "connection": "warehouse",
//	        "table":      "public.users",
//	    })), "rows").
//	    Build()
//
//	cfg := config.New("ingest-users")
//	cfg.Connections["warehouse"] = config.ConnectionConfig{
//	    Driver: "pgx",
//	    DSN:    os.Getenv("WAREHOUSE_DSN"),
//	}
//
//	pipe, _ := pipeline.NewBuilder("ingest-users").
//	    Add(proc).
//	    WithConfig(cfg).
//	    WithConnectionFactory(clients.NewSQLFactory(cfg.Connections, log)).
//	    WithLogger(log).
//	    Build()
//
//	result := pipe.Execute(context.Background())
//
// The same pipeline can be defined in YAML and run with the etl CLI; see
// cmd/etl.
//
// # Key Packages
//
//	pkg/pipeline    - operations, composites, context, engine
//	pkg/stream      - streaming nodes, adapters, processes
//	pkg/pool        - typed object pools and the pool registry
//	pkg/models      - the Record type with typed field access
//	pkg/connector   - connector registry plus csv, jsonl and postgres connectors
//	pkg/clients     - SQL connection factory behind the context
//	pkg/compression - stream codecs used by the file connectors
//	pkg/config      - YAML pipeline configuration with ${VAR} substitution
//	pkg/errors      - structured errors with types, details and stacks
//	pkg/logger      - zap logger construction
//	pkg/metrics     - prometheus collectors
//	pkg/observability - OpenTelemetry tracing bootstrap
//
// # Error Handling
//
// Build-time problems (empty pipelines, bad wiring, invalid configuration)
// are validation errors returned from Build, before anything runs. Runtime
// faults become execution errors tagged with the operation identity and are
// aggregated into the result. An error policy decides whether a run
// continues past a fault; the default aborts, and the abort identity is
// recorded in the result rather than thrown.
package etl
