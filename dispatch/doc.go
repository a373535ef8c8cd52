// Package dispatch orchestrates one inbound webhook call: platform
// validation, bounded routing lookup, record checks, adapter construction,
// handshake-or-verify, and the immediate synchronous acknowledgement.
// Broadcast is scheduled as a detached task and never blocks or fails the
// response path.
package dispatch
