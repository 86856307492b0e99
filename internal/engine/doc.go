// Package engine implements dependency reconciliation.
//
// The engine brings the cached interface documents and generated clients
// of a project into agreement with its manifest. Every dependency runs
// through its own state machine:
//
//	Requested → Fetching → Validating → (Valid | Invalid) → Generating → Installed
//
// ARCHITECTURE:
//
// Isolated Pipelines:
// Dependencies share no data, so each one is fetched, validated and
// generated independently with bounded parallelism (Config.Parallelism).
// A failure is recorded in that dependency's report entry and never stops
// the others. Partial success is a normal terminal state.
//
// Single Manifest Write:
// The manifest is the only shared mutable resource. Pipelines do not touch
// it; once every dependency has finished, the new records are applied in
// one locked load-diff-save. If that save fails, no dependency is reported
// Installed. If nothing changed the file is not rewritten.
//
// Write Ordering:
// Cached documents are written by their pipelines, before the manifest
// save, so a saved record never points at a missing file. Generated
// clients are written after the save and only for dependencies it
// committed. A failed save can leave a refreshed document on disk but
// never a replaced client.
//
// Explicit Configuration:
// Network, directories, parallelism and timeouts arrive in Config. The
// engine never reads the environment or process-wide state.
//
// CRITICAL PATTERNS:
//
// Deterministic Reports:
// Entries are ordered by group, then dependency name, regardless of which
// pipeline finished first. Wall-clock time is recorded only in the journal.
//
// No Cross-Run Caching:
// Every run re-fetches and re-validates. Nothing derived from a document is
// kept between runs.
package engine
