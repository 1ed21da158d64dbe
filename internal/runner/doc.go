// Package runner spawns hook subprocesses and supervises them.
//
// Each hook receives the run payload as one JSON object on stdin and is
// bounded by its manifest timeout. Output is captured with a hard cap,
// optionally scrubbed for secrets, and every outcome (exit, timeout,
// spawn failure) is reported as a terminal execution record rather than
// an error.
package runner
