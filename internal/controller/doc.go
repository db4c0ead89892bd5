// Package controller provides the HTTP client for the poultry-house
// controller API.
//
// # Overview
//
// The controller exposes one read endpoint and one toggle endpoint per
// target:
//
//	GET /api/get-initial-state          full state snapshot
//	GET /api/toggle-{auto,belt,fan,bulb,feeder,water}?state=0|1
//
// Every response is wrapped in a loose envelope. The payload lives under a
// named field ("data" for snapshots, "state" or "new_state" for toggles), or
// the whole body is the payload. Some firmware double-encodes the field as
// a JSON string; unwrapEnvelope undoes exactly one extra level, and nothing
// outside this package needs to know about it.
//
// # Architecture
//
//   - client.go: Client, Policy and the retrying request loop
//   - envelope.go: envelope normalization and payload decoding
//   - errors.go: the Error type and its ErrorKind taxonomy
//
// # Retries
//
// Each logical request gets Policy.Retries extra attempts. Each attempt has
// its own Policy.Timeout; the delay between attempts starts at BaseDelay,
// doubles, and is capped at MaxDelay (github.com/cenkalti/backoff/v4).
// Timeouts, network errors and 5xx answers are retried. 4xx answers, decode
// failures and caller cancellation are returned immediately.
//
// # Errors
//
// Every failure returned by Request, FetchSnapshot and Toggle is an *Error
// carrying a Kind:
//
//	KindNetwork  controller unreachable or request aborted
//	KindTimeout  an attempt exceeded its budget
//	KindHTTP     4xx/5xx status (Status holds the code)
//	KindDecode   envelope or payload could not be interpreted
//
// Use errors.Is with ErrTimeout, ErrNetwork, ErrHTTP or ErrDecode, or
// KindOf, to branch on the category.
package controller
