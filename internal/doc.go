// Package internal documents the riskserver internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, and routing
// - domain: company, prediction, and upload business logic
// - dataset, scoring, batch: spreadsheet parsing and risk scoring
// - storage: database access and repositories (pgx + Postgres)
// - jobs: River background workers and queues
// - config, metrics, telemetry: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
