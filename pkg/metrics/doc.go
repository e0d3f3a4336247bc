// Package metrics holds burrow's Prometheus collectors and the component
// health registry used by the readiness endpoints.
package metrics
