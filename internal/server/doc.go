// Package server hosts the Fiber HTTP service, the request middleware chain
// and the shared upstream HTTP client. Repository resolution and artifact
// serving live in the proxy package; this package only wires a ProxyHandler
// behind a catch-all route and leaves the /-/ prefix to diagnostics routes
// registered by the routes subpackage.
package server
