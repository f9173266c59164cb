// Package httpserver provides the base HTTP server the service binaries
// share: chi routing with standard middleware, request logging, liveness
// and readiness probes, drain control for load balancers, an optional
// Prometheus metrics listener, and graceful shutdown.
//
// Components expose their endpoints through the RouteRegistrar
// interface; the verifier's services.Handler is the primary registrar.
package httpserver
