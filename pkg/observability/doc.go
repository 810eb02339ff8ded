/*
Package observability holds the Prometheus instruments shared by the render and
generation paths.

Metrics are registered against a caller-supplied prometheus.Registerer so tests can
use a private registry while the server exposes the default one through promhttp.
*/
package observability
