/*
Package api exposes burrow's HTTP and gRPC surfaces outside the broker
channel itself.

  - HealthServer serves /health, /ready, /live and /metrics.
  - GRPCHealth serves grpc.health.v1.Health, reporting the "" and
    burrow.BrokerEvents services from the component readiness registry.
  - ToolingHandler lets a workspace start flow request the tooling of one
    runtime over POST and blocks until the brokers have reported.

Readiness requires an open event bus, a readable attempt store when one is
configured, and every critical component registered with the metrics
package to be healthy.
*/
package api
