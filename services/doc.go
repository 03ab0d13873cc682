// Package services contains the HTTP-facing layer of the engine: signed
// message envelopes, the auction and roulette route handlers, YAML
// configuration and the PostgreSQL round store.
//
// Handlers plug into api/httpserver.BaseServer through its RouteRegistrar
// interface; everything below them is plain package API so the same wiring
// works in-process for tests.
package services
