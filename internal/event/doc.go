// Package event defines the observability events of the tracking registry
// and a small synchronous pub/sub bus to deliver them. The registry publishes
// an event for every lifecycle transition and anomaly it records, which lets
// the CLI, the live monitor, and tests observe tracking activity without
// reaching into registry internals.
//
// Events are published synchronously and always outside the registry's
// global lock, so handlers may safely call back into read-only registry
// methods. Handlers that panic are recovered and logged; one misbehaving
// subscriber cannot break delivery to the rest.
package event
