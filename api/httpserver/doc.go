// Package httpserver provides the shared HTTP server shell: chi router with
// standard middleware, structured request logging, health and drain
// endpoints, and an optional prometheus listener. Services plug their routes
// in through the RouteRegistrar interface.
package httpserver
