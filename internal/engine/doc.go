// Package engine runs an external Vowpal-Wabbit-style scoring process and
// mediates batched line-oriented communication with it over anonymous pipes.
//
// Two variants exist:
//
// NonBlocking is the high-throughput variant. Both pipes run in
// non-blocking mode and a single-threaded polling loop interleaves three
// concerns: generating protocol lines from the item source, flushing them
// to a pipe that may accept only part of a write, and draining a pipe that
// may deliver only part of a line. A pending-line ledger keeps the request
// and response streams paired under backpressure, and an optional deadline
// bounds each call. Predict produces results lazily, in item order, as pipe
// data becomes available; an elapsed deadline truncates the sequence and is
// not an error.
//
// Blocking is the simple synchronous variant for environments without
// non-blocking pipe support. It uses fixed-size batches and keeps one batch
// in flight (batch N is written while batch N-1's results are read). It is
// also the only variant that supports training.
//
// Neither variant is safe for concurrent use: an engine owns one unshared
// pipe pair and one unshared buffer pair. All scheduling is cooperative -
// the suspension points are exactly the yields of the prediction sequence,
// and no background goroutines run.
//
// The engine fails fast. A response line that does not parse as a float, a
// ledger that would go negative, or a child that exits non-zero all poison
// the session immediately: silent recovery could pair a result with the
// wrong input item.
package engine
