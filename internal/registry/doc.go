// Package registry implements the handle lifecycle registry at the core of
// filetrack: a single-lock, in-memory bookkeeping layer that correlates
// every live file handle with its provenance so leaks, double closes, and
// use-after-close can be diagnosed at any point in a program's life,
// including at shutdown.
//
// # State machine
//
// Each tracked handle moves through NotTracked -> Open -> Closed. A
// mode-change keeps the entry Open while updating its mode and provenance.
// A second close is rejected and reported with both close sites. Closed
// entries are retained until Shutdown so post-close diagnostics stay
// possible; they are removed only by being overwritten when the runtime
// reuses a handle identity, or by the shutdown sweep.
//
// # Concurrency
//
// One non-reentrant mutex serializes every read and mutation, including
// lazy first-use initialization of the two backing indices and the
// shutdown sweep. Events are always published after the lock is released,
// so subscribers may call read-only registry methods from their handlers.
package registry
