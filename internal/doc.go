// Package internal documents the restaurant inspection directory's internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, and routing
// - domain: facility/inspection entities, score normalization, the Repository contract
// - connectors: per-jurisdiction ingestion adapters
// - ingest/merge: deduplication and reconciliation of connector output
// - storage: the durable (Postgres) and ephemeral (in-memory) Repository backends
// - orchestrator: the refresh scheduler and connector fan-out
// - search, voting: the read and vote services
// - config, metrics, apierror, sanitize, validation: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
