// Package ensemble runs a fixed set of per-instrument workers on a cadence.
//
// A pass runs one fetch cycle for every instrument, either one after another
// (serial) or fanned out (concurrent). The controller then sleeps one cadence
// and starts the next pass. In concurrent mode the controller waits at most
// the join timeout; a worker still running is abandoned for that pass and
// skipped by later passes until it returns, so no instrument ever has two
// cycles in flight.
//
// Worker errors and panics are logged and counted; they never reach the
// controller or other workers.
package ensemble
