// Package signer turns a Sign(payload) call into one exchange with the
// local signing agent.
//
// A Client registers a single dispatcher on the connection and keeps a
// correlation table of outstanding requests keyed by request ID. Responses
// that echo the ID resolve that entry; responses without one resolve the
// oldest outstanding entry, which is exact as long as only one request is
// in flight on the connection (see Options.SingleFlight).
//
// Every request carries a mandatory timeout and honours context
// cancellation, and a dropped connection fails outstanding requests
// instead of leaving them waiting.
package signer
