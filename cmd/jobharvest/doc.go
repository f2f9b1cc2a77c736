// Command jobharvest runs the job-listings ingest service: the fetch
// pipeline, the run orchestrator, the listing workflow, and the operator
// HTTP API in one process.
package main
