// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/runs and /v1/runs/{run_id}/cancel for run control.
//   - GET /v1/jobs/pending-review for the manual review queue.
//   - POST /v1/listings/{listing_id}/... for workflow actions.
package api
