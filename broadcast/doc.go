// Package broadcast runs the detached delivery path: re-parse the
// preserved body, transform it into the canonical event, and perform two
// independently retried effects, the advisory event-count increment and
// the delivery to whatever target is listening on the routing key. Nothing
// in this package can fail the originating request; it already completed.
package broadcast
