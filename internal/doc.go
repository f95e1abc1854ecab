// Package internal documents the explore-with-me server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, problem responses, and routing
// - domain: events, participation, users and categories
// - storage: postgres and in-memory repositories
// - jobs: river workers for ledger reconciliation
// - auth, audit, config, idempotency, metrics, notify, telemetry: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
