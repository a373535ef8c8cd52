// Package transport is the HTTP surface of the gateway: the platform
// ingestion endpoint and the live-connection endpoint. It decodes requests
// into pipeline calls and maps error envelopes onto definite statuses; no
// protocol logic lives here.
package transport
