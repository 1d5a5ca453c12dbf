// Package stream provides the streaming execution layer: graphs of
// concurrently running nodes exchanging pooled records over bounded
// adapters.
//
// A Process wires sources, transforms, merges and sinks together and runs
// as a single pipeline operation. Each node owns one worker; adapters are
// the only coupling between them. Emit blocks while an adapter's buffer is
// full, so a slow consumer throttles its producer without any further
// coordination. When a producer finishes it signals the end of its stream
// exactly once; consumers drain what is buffered and stop.
//
//	proc, err := stream.NewProcessBuilder("ingest").
//	    AddSource(stream.NewSource("read", readFn), "raw").
//	    AddTransform(stream.NewTransform("clean", cleanFn), "raw", "clean").
//	    AddSink(stream.NewSink("write", writeFn), "clean").
//	    Build()
//
// Records flow out of the execution context's pool at the source and back
// into it at the sink, so a long-running process reuses a fixed working
// set instead of allocating per record. A failed node signals the end of
// its outputs and drains its inputs back to the pool; siblings are never
// cancelled and the process reports all node errors when the graph has
// fully stopped.
package stream
